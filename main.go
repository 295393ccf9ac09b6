// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/AleutianAI/AleutianAnswers/chain"
	"github.com/AleutianAI/AleutianAnswers/config"
	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/llm"
	"github.com/AleutianAI/AleutianAnswers/observability"
	"github.com/AleutianAI/AleutianAnswers/retrieval"
	"github.com/AleutianAI/AleutianAnswers/routes"
	"github.com/AleutianAI/AleutianAnswers/services"
	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("answers-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient builds the client from WEAVIATE_SERVICE_URL and
// ensures the Document class exists.
func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Trim quotes and whitespace in case the container runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")
	if weaviateURL == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL environment variable not set")
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL is invalid: %q", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	datatypes.EnsureWeaviateSchema(client)
	return client
}

func main() {
	port := os.Getenv("ANSWERS_PORT")
	if port == "" {
		port = "12220"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	weaviateClient := newWeaviateClient()

	// --- Token store ---
	storeCfg := tokenstore.DefaultConfig()
	if path := os.Getenv("TOKEN_STORE_PATH"); path != "" {
		storeCfg.Path = path
	}
	store, err := tokenstore.Open(storeCfg)
	if err != nil {
		log.Fatalf("Failed to open the token store: %v", err)
	}
	defer store.Close()

	embedder, err := llm.NewOpenAIEmbedder(cfg.Models.Embedding)
	if err != nil {
		log.Fatalf("Failed to initialize the embedder: %v", err)
	}

	// The LLM clients and retriever are built on the first request, not
	// here, so the service starts even while its backends are warming up.
	pipeline := services.NewPipeline(func(ctx context.Context) (*services.Resources, error) {
		fastClient, err := llm.NewOpenAIClient(cfg.Models.Fast.Model)
		if err != nil {
			return nil, err
		}
		slowClient, err := llm.NewOpenAIClient(cfg.Models.Slow.Model)
		if err != nil {
			return nil, err
		}

		fastParams := cfg.Models.Fast.Params()
		slowParams := cfg.Models.Slow.Params()
		condenseGen := func(ctx context.Context, prompt string) (string, error) {
			return fastClient.Generate(ctx, prompt, fastParams)
		}
		synthesizeGen := func(ctx context.Context, prompt string) (string, error) {
			return slowClient.Generate(ctx, prompt, slowParams)
		}

		return &services.Resources{
			Condenser:   chain.NewCondenser(condenseGen),
			Synthesizer: chain.NewSynthesizer(synthesizeGen),
			Retriever:   retrieval.NewWeaviateRetriever(weaviateClient, embedder, cfg.Retrieval),
		}, nil
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("answers-service"))

	routes.SetupRoutes(router, pipeline, store, weaviateClient, embedder)

	log.Println("Starting the answers server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
