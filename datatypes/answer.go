// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request-scoped types that flow through the
// answering pipeline, plus the Weaviate schema and typed query parsing
// used by the retrieval layer.
package datatypes

import "strings"

// ConversationTurn is one prior exchange in a conversation, oldest first
// when a sequence of turns is passed to the pipeline.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Query is a single inbound question plus any conversation history the
// caller supplies. History may be empty; order is significant.
type Query struct {
	Question string             `json:"question"`
	History  []ConversationTurn `json:"history,omitempty"`
}

// SanitizeQuestion trims leading/trailing whitespace and replaces every
// internal newline with a single space. The result is what every
// downstream stage (condenser, retriever, synthesizer) sees.
func SanitizeQuestion(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "\n", " ")
}

// RetrievedPassage is one document fragment returned by the retriever.
// Passages are request-scoped and never persisted.
type RetrievedPassage struct {
	// Content is the passage text handed to the synthesizer.
	Content string `json:"content"`

	// Source identifies where the passage came from (file path, URL, ...).
	Source string `json:"source"`

	// Metadata carries any additional properties the index stored with
	// the fragment. Opaque to the pipeline.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Score is the relevance score assigned by the index, higher is
	// more relevant. BM25 scores and vector certainties share this
	// field; they are only compared within one strategy's result set.
	Score float64 `json:"score"`
}

// StandaloneQuestion is the condenser's output: the follow-up rewritten
// to be understandable without the conversation, plus the history excerpt
// the condenser judged relevant (empty when history was empty).
type StandaloneQuestion struct {
	Question       string `json:"standalone_question"`
	HistoryExcerpt string `json:"history_excerpt"`
}

// AnswerResult is the terminal artifact of one pipeline run.
type AnswerResult struct {
	// Text is the synthesizer's raw output, trimmed. Meaningless when
	// IsUnknown is true.
	Text string `json:"text"`

	// SourcePassages are the passages the answer was grounded on.
	SourcePassages []RetrievedPassage `json:"source_passages"`

	// IsUnknown is true when the model signalled it cannot answer from
	// the supplied context. The caller-visible answer is null.
	IsUnknown bool `json:"is_unknown"`
}
