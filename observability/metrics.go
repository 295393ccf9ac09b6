// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// answers service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the
// question answering pipeline. Metrics include:
//   - Request counters (by status)
//   - Unknown answer counters
//   - Usage counter write outcomes
//   - Per-stage latency histograms (condense, retrieve, synthesize)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for answers-service metrics
const answersSubsystem = "answers"

// AnswersMetrics holds all Prometheus metrics for the answering pipeline.
//
// # Description
//
// Provides counters and histograms for monitoring request outcomes and
// pipeline latency. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of /ask requests by HTTP status
//   - UnknownAnswersTotal: Counter of answers where the model declined
//   - UsageWritesTotal: Counter of token usage writes by outcome
//   - StageDurationSeconds: Histogram of pipeline stage latency
//
// # Thread Safety
//
// All operations are thread-safe.
type AnswersMetrics struct {
	// RequestsTotal counts /ask requests by HTTP status code.
	// Labels: status ("200", "400", "401", "500")
	RequestsTotal *prometheus.CounterVec

	// UnknownAnswersTotal counts answers where the model declined to answer.
	UnknownAnswersTotal prometheus.Counter

	// UsageWritesTotal counts asynchronous usage counter writes by outcome.
	// Labels: outcome (success, error)
	UsageWritesTotal *prometheus.CounterVec

	// StageDurationSeconds measures pipeline stage latency.
	// Labels: stage (condense, retrieve, synthesize)
	StageDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of AnswersMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnswersMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Outputs
//
//   - *AnswersMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *AnswersMetrics {
	DefaultMetrics = &AnswersMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "requests_total",
				Help:      "Total number of /ask requests by HTTP status",
			},
			[]string{"status"},
		),

		UnknownAnswersTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "unknown_answers_total",
				Help:      "Total answers where the model declined to answer",
			},
		),

		UsageWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "usage_writes_total",
				Help:      "Total asynchronous usage counter writes by outcome",
			},
			[]string{"outcome"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"stage"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Stage Names
// =============================================================================

// Stage identifies a pipeline stage for metrics labeling.
type Stage string

const (
	// StageCondense is the question condensing stage.
	StageCondense Stage = "condense"

	// StageRetrieve is the passage retrieval stage.
	StageRetrieve Stage = "retrieve"

	// StageSynthesize is the answer synthesis stage.
	StageSynthesize Stage = "synthesize"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed /ask request by HTTP status.
func (m *AnswersMetrics) RecordRequest(status string) {
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordUnknownAnswer records an answer where the model declined.
func (m *AnswersMetrics) RecordUnknownAnswer() {
	m.UnknownAnswersTotal.Inc()
}

// RecordUsageWrite records the outcome of an asynchronous usage write.
func (m *AnswersMetrics) RecordUsageWrite(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.UsageWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration records the latency of a pipeline stage.
func (m *AnswersMetrics) RecordStageDuration(stage Stage, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(string(stage)).Observe(seconds)
}
