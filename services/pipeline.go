// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services implements the question answering pipeline.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianAnswers/chain"
	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/observability"
	"github.com/AleutianAI/AleutianAnswers/retrieval"
)

var tracer = otel.Tracer("aleutian.answers.services")

// =============================================================================
// Resources
// =============================================================================

// Resources holds the expensive pipeline dependencies that are built
// lazily on the first request.
type Resources struct {
	// Condenser rewrites follow-up questions into standalone questions.
	Condenser *chain.Condenser

	// Synthesizer produces the final answer from retrieved passages.
	Synthesizer *chain.Synthesizer

	// Retriever fetches passages from the vector store.
	Retriever retrieval.Retriever
}

// ResourceBuilder constructs the pipeline resources. It is invoked at
// most once per process lifetime on success; a failed build is retried
// on the next request.
type ResourceBuilder func(ctx context.Context) (*Resources, error)

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline orchestrates condense, retrieve, and synthesize for a question.
//
// # Description
//
// Pipeline defers resource construction (LLM clients, vector store
// connection) until the first request needs them, so the process starts
// fast and survives a vector store that comes up after it. Concurrent
// first requests share a single initialization via singleflight; once
// built, resources are memoized for the process lifetime. A failed
// initialization is not memoized, so later requests retry it.
//
// # Thread Safety
//
// Pipeline is safe for concurrent use.
//
// # Example
//
//	pipeline := services.NewPipeline(buildResources)
//	result, err := pipeline.Answer(ctx, "does it support SSO?", history)
type Pipeline struct {
	build     ResourceBuilder
	initGroup singleflight.Group
	resources atomic.Pointer[Resources]
}

// NewPipeline creates a Pipeline that builds its resources lazily with
// the given builder.
func NewPipeline(build ResourceBuilder) *Pipeline {
	return &Pipeline{build: build}
}

// getResources returns the memoized resources, building them on first use.
func (p *Pipeline) getResources(ctx context.Context) (*Resources, error) {
	if res := p.resources.Load(); res != nil {
		return res, nil
	}

	v, err, _ := p.initGroup.Do("init", func() (interface{}, error) {
		// Another caller may have finished while this one queued.
		if res := p.resources.Load(); res != nil {
			return res, nil
		}

		slog.Info("initializing pipeline resources")
		res, err := p.build(ctx)
		if err != nil {
			return nil, fmt.Errorf("resource initialization failed: %w", err)
		}
		p.resources.Store(res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resources), nil
}

// Answer runs the full question answering pipeline.
//
// # Description
//
// Executes the three pipeline stages in order:
//  1. Condense the follow-up and history into a standalone question.
//  2. Retrieve passages for the standalone question.
//  3. Synthesize the answer from the passages.
//
// The condenser is always invoked, even with empty history, so every
// question is normalized by the same path. Retrieval returning zero
// passages is not an error; synthesis then runs with an empty context
// block and the model declines to answer.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - question: The sanitized user question.
//   - history: Prior conversation turns, oldest first. May be empty.
//
// # Outputs
//
//   - *datatypes.AnswerResult: The answer, its sources, and whether the
//     model declined to answer.
//   - error: Non-nil if initialization, condensing, retrieval, or
//     synthesis fails.
//
// # Limitations
//
//   - Latency is dominated by the two LLM calls.
//
// # Assumptions
//
//   - question has already been through datatypes.SanitizeQuestion.
func (p *Pipeline) Answer(ctx context.Context, question string, history []datatypes.ConversationTurn) (*datatypes.AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.answer")
	defer span.End()
	span.SetAttributes(
		attribute.Int("question.length", len(question)),
		attribute.Int("history.turns", len(history)),
	)

	res, err := p.getResources(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialization failed")
		return nil, err
	}

	standalone, err := p.condense(ctx, res, history, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "condense failed")
		return nil, err
	}

	passages, err := p.retrieve(ctx, res, standalone.Question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve failed")
		return nil, err
	}

	result, err := p.synthesize(ctx, res, standalone.Question, passages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesize failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("passages.count", len(passages)),
		attribute.Bool("answer.unknown", result.IsUnknown),
	)
	return result, nil
}

func (p *Pipeline) condense(ctx context.Context, res *Resources, history []datatypes.ConversationTurn, question string) (*datatypes.StandaloneQuestion, error) {
	ctx, span := tracer.Start(ctx, "pipeline.condense")
	defer span.End()
	defer observeStage(observability.StageCondense, time.Now())

	standalone, err := res.Condenser.Condense(ctx, history, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "condense failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("standalone.length", len(standalone.Question)))
	return standalone, nil
}

func (p *Pipeline) retrieve(ctx context.Context, res *Resources, question string) ([]datatypes.RetrievedPassage, error) {
	ctx, span := tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()
	defer observeStage(observability.StageRetrieve, time.Now())

	passages, err := res.Retriever.Retrieve(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("passages.count", len(passages)))
	return passages, nil
}

func (p *Pipeline) synthesize(ctx context.Context, res *Resources, question string, passages []datatypes.RetrievedPassage) (*datatypes.AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()
	defer observeStage(observability.StageSynthesize, time.Now())

	result, err := res.Synthesizer.Synthesize(ctx, question, passages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesize failed")
		return nil, err
	}
	if result.IsUnknown && observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordUnknownAnswer()
	}
	return result, nil
}

// observeStage records stage latency when metrics are initialized.
func observeStage(stage observability.Stage, start time.Time) {
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordStageDuration(stage, time.Since(start).Seconds())
	}
}
