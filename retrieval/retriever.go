// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval fetches the passages the answer synthesizer grounds
// on. Two strategies run over the same Weaviate Document class: pure
// vector similarity, and a hybrid that fuses a similarity result set
// with a BM25 keyword result set.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

// Strategy selects how passages are ranked. Fixed at initialization.
type Strategy string

const (
	// StrategySimilarity ranks purely by vector similarity.
	StrategySimilarity Strategy = "similarity"

	// StrategyHybrid fuses vector similarity with BM25 keyword matching.
	// This is the default.
	StrategyHybrid Strategy = "hybrid"
)

// Retriever returns the passages most relevant to a standalone question,
// ordered by descending relevance.
//
// Implementations must be safe for concurrent use and idempotent for
// identical input at a fixed corpus state.
type Retriever interface {
	Retrieve(ctx context.Context, standaloneQuestion string) ([]datatypes.RetrievedPassage, error)
}

// Config holds the retrieval parameters fixed at initialization.
type Config struct {
	// Strategy is "similarity" or "hybrid".
	Strategy Strategy `yaml:"strategy"`

	// SimilarityK is the size of the vector-similarity result set.
	SimilarityK int `yaml:"similarity_k"`

	// KeywordK is the size of the BM25 result set. Only used by the
	// hybrid strategy.
	KeywordK int `yaml:"keyword_k"`
}

// DefaultConfig returns the default retrieval configuration: hybrid
// fusion with one result per leg.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategyHybrid,
		SimilarityK: 1,
		KeywordK:    1,
	}
}

// Validate corrects out-of-range values and logs what it changed.
func (c Config) Validate() Config {
	defaults := DefaultConfig()

	switch c.Strategy {
	case StrategySimilarity, StrategyHybrid:
	case "":
		c.Strategy = defaults.Strategy
	default:
		slog.Warn("Unknown retrieval strategy, using default",
			"provided", c.Strategy, "default", defaults.Strategy)
		c.Strategy = defaults.Strategy
	}

	if c.SimilarityK < 1 {
		slog.Warn("Invalid SimilarityK config, using default",
			"provided", c.SimilarityK, "default", defaults.SimilarityK)
		c.SimilarityK = defaults.SimilarityK
	}

	if c.KeywordK < 1 {
		slog.Warn("Invalid KeywordK config, using default",
			"provided", c.KeywordK, "default", defaults.KeywordK)
		c.KeywordK = defaults.KeywordK
	}

	return c
}

// ErrEmptyQuestion is returned when Retrieve is called with nothing to
// search for. The pipeline validates questions earlier; this guards
// direct callers.
var ErrEmptyQuestion = fmt.Errorf("standalone question is empty")
