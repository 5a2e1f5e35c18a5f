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
	"os"
	"time"

	"github.com/gin-gonic/gin"
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

	"github.com/AleutianAI/CouncilFOSS/services/council/config"
	"github.com/AleutianAI/CouncilFOSS/services/council/observability"
	"github.com/AleutianAI/CouncilFOSS/services/council/orchestrator"
	"github.com/AleutianAI/CouncilFOSS/services/council/routes"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
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
		resource.WithAttributes(semconv.ServiceNameKey.String("council-service")))
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

// buildStore selects the durable MongoDB store or the in-memory fallback.
func buildStore(cfg *config.Config) store.Store {
	if cfg.MongoURI == "" {
		slog.Warn("MONGODB_URI not set. Running in lightweight in-memory mode; cases do not survive restarts.")
		return store.NewMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.NewMongo(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure MongoDB indexes: %v", err)
	}
	slog.Info("Connected to MongoDB", "database", cfg.DatabaseName)
	return st
}

// buildGateway wires the configured LLM backend behind the retry gateway.
func buildGateway(cfg *config.Config) *llm.Gateway {
	var (
		client llm.Client
		err    error
	)
	switch cfg.BackendType {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		client, err = llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel)
		slog.Info("Using Groq LLM backend")
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	temperature := cfg.GroqTemperature
	maxTokens := cfg.GroqMaxTokens
	return llm.NewGateway(client, cfg.RetryBudget, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	st := buildStore(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			slog.Error("Store shutdown failed", "error", err)
		}
	}()

	gateway := buildGateway(cfg)

	orc := orchestrator.New(st, gateway, orchestrator.Options{
		Rounds:      cfg.DeliberationRounds,
		CaseTimeout: time.Duration(cfg.CaseTimeoutSeconds) * time.Second,
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("council-service"))

	routes.SetupRoutes(router, orc, st, gateway)

	slog.Info("Starting the council server", "port", cfg.Port,
		"rounds", cfg.DeliberationRounds, "backend", cfg.BackendType)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
