// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/llm"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.answers.retrieval")

// WeaviateRetriever implements Retriever against the Document class.
//
// # Description
//
// In similarity mode the question is embedded and the top SimilarityK
// nearest neighbors are returned. In hybrid mode a BM25 keyword query of
// size KeywordK runs against the same class and the two result sets are
// merged, deduplicated by chunk identity, and ordered by descending
// relevance.
//
// # Thread Safety
//
// WeaviateRetriever is safe for concurrent use. The underlying Weaviate
// client handles connection pooling.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder llm.Embedder
	config   Config
}

// Compile-time interface implementation check.
var _ Retriever = (*WeaviateRetriever)(nil)

// NewWeaviateRetriever creates a retriever with the given client,
// embedding provider, and configuration. Config values are validated
// and corrected if necessary.
func NewWeaviateRetriever(client *weaviate.Client, embedder llm.Embedder, config Config) *WeaviateRetriever {
	return &WeaviateRetriever{
		client:   client,
		embedder: embedder,
		config:   config.Validate(),
	}
}

// Retrieve returns the top passages for the standalone question,
// ordered by descending relevance.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, standaloneQuestion string) ([]datatypes.RetrievedPassage, error) {
	ctx, span := tracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.strategy", string(r.config.Strategy)))

	if strings.TrimSpace(standaloneQuestion) == "" {
		span.SetStatus(codes.Error, "empty question")
		return nil, ErrEmptyQuestion
	}

	similar, err := r.searchSimilar(ctx, standaloneQuestion, r.config.SimilarityK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "similarity search failed")
		return nil, err
	}

	if r.config.Strategy == StrategySimilarity {
		span.SetAttributes(attribute.Int("retrieval.passages", len(similar)))
		return similar, nil
	}

	keyword, err := r.searchKeyword(ctx, standaloneQuestion, r.config.KeywordK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "keyword search failed")
		return nil, err
	}

	merged := mergePassages(similar, keyword)
	span.SetAttributes(
		attribute.Int("retrieval.similarity_hits", len(similar)),
		attribute.Int("retrieval.keyword_hits", len(keyword)),
		attribute.Int("retrieval.passages", len(merged)),
	)
	slog.Debug("Hybrid retrieval complete",
		"similarityHits", len(similar),
		"keywordHits", len(keyword),
		"merged", len(merged))
	return merged, nil
}

// searchSimilar embeds the question and runs a nearVector query.
func (r *WeaviateRetriever) searchSimilar(ctx context.Context, question string, limit int) ([]datatypes.RetrievedPassage, error) {
	ctx, span := tracer.Start(ctx, "WeaviateRetriever.searchSimilar")
	defer span.End()

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		slog.Error("Failed to embed question for retrieval", "error", err)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	result, err := r.client.GraphQL().Get().
		WithClassName(datatypes.DocumentClassName).
		WithFields(passageFields()...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Weaviate similarity search failed", "error", err)
		return nil, fmt.Errorf("weaviate similarity search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate similarity search error: %s", result.Errors[0].Message)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocumentQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse similarity results: %w", err)
	}
	return passagesFromResults(parsed), nil
}

// searchKeyword runs a BM25 query over the same class.
func (r *WeaviateRetriever) searchKeyword(ctx context.Context, question string, limit int) ([]datatypes.RetrievedPassage, error) {
	ctx, span := tracer.Start(ctx, "WeaviateRetriever.searchKeyword")
	defer span.End()

	result, err := r.client.GraphQL().Get().
		WithClassName(datatypes.DocumentClassName).
		WithFields(passageFields()...).
		WithBM25(r.client.GraphQL().Bm25ArgBuilder().WithQuery(question)).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Weaviate keyword search failed", "error", err)
		return nil, fmt.Errorf("weaviate keyword search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate keyword search error: %s", result.Errors[0].Message)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocumentQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse keyword results: %w", err)
	}
	return passagesFromResults(parsed), nil
}

// passageFields lists the properties retrieved for every passage.
// certainty is requested instead of distance because it is always [0,1]
// regardless of the distance metric; score carries the BM25 relevance.
func passageFields() []graphql.Field {
	return []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "ingested_at"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
			{Name: "score"},
		}},
	}
}

// passagesFromResults converts typed query results into passages.
func passagesFromResults(resp *datatypes.DocumentQueryResponse) []datatypes.RetrievedPassage {
	if resp == nil {
		return []datatypes.RetrievedPassage{}
	}

	passages := make([]datatypes.RetrievedPassage, 0, len(resp.Get.Document))
	for _, doc := range resp.Get.Document {
		var score float64
		if doc.Additional.Certainty != nil {
			score = float64(*doc.Additional.Certainty)
		} else if doc.Additional.Score != nil {
			// BM25 scores arrive as strings from the GraphQL layer.
			if parsed, err := strconv.ParseFloat(*doc.Additional.Score, 64); err == nil {
				score = parsed
			}
		}

		passages = append(passages, datatypes.RetrievedPassage{
			Content: doc.Content,
			Source:  doc.Source,
			Metadata: map[string]interface{}{
				"id":          doc.Additional.ID,
				"ingested_at": doc.IngestedAt,
			},
			Score: score,
		})
	}
	return passages
}

// mergePassages fuses the similarity and keyword result sets.
//
// # Algorithm
//
//  1. Add all similarity passages, tracking seen chunks.
//  2. Add keyword passages whose chunk was not already seen.
//  3. Sort by score descending.
//
// Deduplication keys on the chunk id when present, falling back to the
// content text (two queries can return the same chunk).
func mergePassages(similar, keyword []datatypes.RetrievedPassage) []datatypes.RetrievedPassage {
	seen := make(map[string]bool)
	merged := make([]datatypes.RetrievedPassage, 0, len(similar)+len(keyword))

	for _, p := range similar {
		key := passageKey(p)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, p)
		}
	}
	for _, p := range keyword {
		key := passageKey(p)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, p)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged
}

func passageKey(p datatypes.RetrievedPassage) string {
	if p.Metadata != nil {
		if id, ok := p.Metadata["id"].(string); ok && id != "" {
			return id
		}
	}
	return p.Content
}
