// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the answers service.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/middleware"
	"github.com/AleutianAI/AleutianAnswers/observability"
	"github.com/AleutianAI/AleutianAnswers/services"
)

var tracer = otel.Tracer("aleutian.answers.handlers")

// HandleAsk answers a question from the knowledge base.
//
// # Description
//
// Handles GET /ask?question=... for authenticated callers. The question
// is sanitized (trimmed, newlines collapsed to spaces) and run through
// the answering pipeline. When the model declines to answer, the
// response carries an explicit null so clients can distinguish "no
// answer" from an empty string:
//
//	{"answer": null}
//
// # Responses
//
//   - 200 {"answer": "<text>"} or {"answer": null}
//   - 400 {"error": "Question query parameter is required"} when the
//     question parameter is missing or blank after sanitizing
//   - 500 {"error": "Internal Server Error"} when the pipeline fails;
//     the cause is logged, never returned to the caller
//
// # Inputs
//
//   - pipeline: The answering pipeline. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler ready for route registration.
func HandleAsk(pipeline *services.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		question := datatypes.SanitizeQuestion(c.Query("question"))
		if question == "" {
			span.SetStatus(codes.Error, "missing question parameter")
			recordRequest(http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Question query parameter is required",
			})
			return
		}
		span.SetAttributes(attribute.Int("question.length", len(question)))

		logAttrs := []any{"question_length", len(question)}
		if info := middleware.GetAuthInfo(c); info != nil {
			logAttrs = append(logAttrs, "user_id", info.UserID, "api_calls", info.APICallCount)
		}
		slog.Info("Answering question", logAttrs...)

		result, err := pipeline.Answer(ctx, question, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Answer pipeline failed", "error", err)
			recordRequest(http.StatusInternalServerError)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal Server Error",
			})
			return
		}

		recordRequest(http.StatusOK)
		if result.IsUnknown {
			span.SetAttributes(attribute.Bool("answer.unknown", true))
			c.JSON(http.StatusOK, gin.H{"answer": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": result.Text})
	}
}

// recordRequest reports a request outcome when metrics are initialized.
func recordRequest(status int) {
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordRequest(strconv.Itoa(status))
	}
}
