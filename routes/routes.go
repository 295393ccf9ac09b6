// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/AleutianAnswers/handlers"
	"github.com/AleutianAI/AleutianAnswers/llm"
	"github.com/AleutianAI/AleutianAnswers/middleware"
	"github.com/AleutianAI/AleutianAnswers/services"
	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

// SetupRoutes registers all HTTP routes.
//
// /health and /metrics are unauthenticated; /ask requires a bearer
// token. The v1 document administration routes are unguarded.
func SetupRoutes(router *gin.Engine, pipeline *services.Pipeline, store tokenstore.Store,
	client *weaviate.Client, embedder llm.BatchEmbedder) {

	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The token guard applies only to /ask; the v1 admin surface is
	// expected to sit behind the deployment's own network boundary.
	router.GET("/ask", middleware.TokenAuth(store), handlers.HandleAsk(pipeline))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/documents", handlers.CreateDocument(client, embedder))
		v1.GET("/documents", handlers.ListDocuments(client))
		v1.DELETE("/documents", handlers.DeleteDocument(client))
	}
}
