// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/llm"
)

var (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10

	defaultSeparators = []string{"\n\n", "\n", " ", ""}

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ",
		"\n\n", "\n", " ", "",
	}
)

// IngestDocumentRequest is the body for POST /v1/documents.
type IngestDocumentRequest struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// CreateDocument ingests a document into the knowledge base.
//
// # Description
//
// Splits the document into chunks, embeds all chunks in one call, and
// imports them into Weaviate as a single batch. Chunk IDs are derived
// from the chunk content hash, so re-ingesting the same document
// overwrites its chunks instead of duplicating them.
//
// # Responses
//
//   - 201 {"status": "success", "source": ..., "chunks_processed": n}
//   - 400 {"error": "Invalid request body"} on malformed JSON or empty content
//   - 500 {"error": ...} when splitting, embedding, or the batch import fails
func CreateDocument(client *weaviate.Client, embedder llm.BatchEmbedder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestDocumentRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Content == "" || req.Source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		chunksCreated, err := RunIngestion(c.Request.Context(), client, embedder, req)
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Successfully processed document via API",
			"source", req.Source, "chunks_processed", chunksCreated)
		c.JSON(http.StatusCreated, gin.H{
			"status":           "success",
			"source":           req.Source,
			"chunks_processed": chunksCreated,
		})
	}
}

// ListDocuments returns the unique set of ingested document sources.
func ListDocuments(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		agg, err := client.GraphQL().Aggregate().
			WithClassName(datatypes.DocumentClassName).
			WithGroupBy("source").
			Do(c.Request.Context())
		if err != nil {
			slog.Error("Failed to aggregate documents from Weaviate", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query documents"})
			return
		}

		docList := []string{}
		if agg.Data["Aggregate"] != nil {
			aggMap, ok := agg.Data["Aggregate"].(map[string]interface{})
			if ok && aggMap[datatypes.DocumentClassName] != nil {
				groups, ok := aggMap[datatypes.DocumentClassName].([]interface{})
				if ok {
					for _, groupItem := range groups {
						groupMap, ok := groupItem.(map[string]interface{})
						if !ok || groupMap["groupedBy"] == nil {
							continue
						}
						groupedBy, ok := groupMap["groupedBy"].(map[string]interface{})
						if !ok || groupedBy["value"] == nil {
							continue
						}
						if source, ok := groupedBy["value"].(string); ok {
							docList = append(docList, source)
						}
					}
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"documents": docList})
	}
}

// DeleteDocument removes all chunks for a source from the knowledge base.
//
// # Responses
//
//   - 200 {"status": "success", "source": ...}
//   - 400 {"error": "Source query parameter is required"}
//   - 500 {"error": "Failed to delete document"}
func DeleteDocument(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Source query parameter is required"})
			return
		}

		whereFilter := filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.Equal).
			WithValueString(source)

		_, err := client.Batch().ObjectsBatchDeleter().
			WithClassName(datatypes.DocumentClassName).
			WithWhere(whereFilter).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("Failed to delete document chunks", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
			return
		}

		slog.Info("Deleted document chunks", "source", source)
		c.JSON(http.StatusOK, gin.H{"status": "success", "source": source})
	}
}

// RunIngestion splits, embeds, and imports one document. Shared by the
// HTTP handler and any offline seeding path.
func RunIngestion(ctx context.Context, client *weaviate.Client, embedder llm.BatchEmbedder, req IngestDocumentRequest) (int, error) {
	splitter := getSplitterForSource(req.Source)

	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", req.Source)
		return 0, nil
	}
	slog.Info("Split document into chunks", "source", req.Source, "chunk_count", len(chunks))

	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		hash := sha256.Sum256([]byte(chunk))
		docUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class:  datatypes.DocumentClassName,
			ID:     strfmt.UUID(docUUID.String()),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":     chunk,
				"source":      req.Source,
				"ingested_at": time.Now().UnixMilli(),
			},
		}
	}

	resp, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	chunksCreated := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			chunksCreated++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "source", req.Source, "error", errItem.Message)
			}
		}
	}

	return chunksCreated, nil
}

// getSplitterForSource picks a splitter by the source's file extension.
// Markdown gets heading-aware separators so chunks follow the document
// structure; everything else splits on paragraphs.
func getSplitterForSource(source string) textsplitter.TextSplitter {
	separators := defaultSeparators
	if filepath.Ext(source) == ".md" {
		separators = markdownSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(separators),
	)
}
