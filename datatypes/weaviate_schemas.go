// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// DocumentClassName is the Weaviate class holding the knowledge corpus.
const DocumentClassName = "Document"

func GetDocumentSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       DocumentClassName,
		Description: "A chunk of the knowledge corpus with its source.",
		// Vectors are supplied by the ingestion path, not a Weaviate module.
		Vectorizer: "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			Bm25:                   nil,
			CleanupIntervalSeconds: 0,
			IndexNullState:         true,
			IndexPropertyLength:    false,
			IndexTimestamps:        true,
			Stopwords:              nil,
			UsingBlockMaxWAND:      false,
		},
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text. Word-tokenized so BM25 keyword search works.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original file path or source of the chunk.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates the Document class if it does not exist.
// Called once at startup; a create failure is fatal because the service
// cannot answer anything without its corpus class.
func EnsureWeaviateSchema(client *weaviate.Client) {
	class := GetDocumentSchema()
	slog.Info("Checking schema", "class", class.Class)

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err != nil {
		// The client errors when the class is missing. Create it.
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
			log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	} else {
		slog.Info("Schema already exists", "class", class.Class)
	}
}
