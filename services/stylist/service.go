// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stylist wires the outfit composition engine, the garment
// catalog, the saved-outfit closet and the generation backend behind an
// HTTP surface for the presentation layer.
package stylist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianStyle/services/stylist/catalog"
	"github.com/AleutianAI/AleutianStyle/services/stylist/closet"
	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
	"github.com/AleutianAI/AleutianStyle/services/stylist/events"
)

// ServiceVersion is the stylist service version.
const ServiceVersion = "0.1.0"

// Config holds service configuration, normally read from the
// environment by cmd/stylist.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// CatalogPath optionally overrides the embedded seed catalog and is
	// hot-reloaded while the service runs.
	CatalogPath string

	// BaseImage optionally initializes the engine at startup. When
	// zero, the engine waits for the first POST /v1/stylist/reset.
	BaseImage engine.ImageRef

	// OTelEndpoint enables distributed tracing when non-empty.
	OTelEndpoint string

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Service owns the engine and its collaborators.
type Service struct {
	cfg      Config
	registry *engine.Registry
	engine   *engine.Engine
	index    *closet.Index
	emitter  *events.Emitter
	router   *gin.Engine
	logger   *slog.Logger

	watchCancel context.CancelFunc
	traceClean  func(context.Context)
}

// New creates a fully wired service.
//
// Description:
//
//	Seeds the garment registry from the catalog (on-disk override when
//	configured, embedded default otherwise), rehydrates the saved
//	outfit index from the durable store, builds the engine over the
//	generation backend and registers all routes.
//
// Inputs:
//
//	cfg - Service configuration.
//	gen - Image generation backend. Must not be nil.
//	store - Durable store for the saved-outfit index. Must not be nil.
func New(cfg Config, gen engine.Generator, store closet.Store) (*Service, error) {
	if gen == nil {
		return nil, errors.New("generator must not be nil")
	}
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		registry: engine.NewRegistry(),
		emitter:  events.NewEmitter(),
		logger:   logger,
	}

	s.seedCatalog()

	s.engine = engine.New(gen, s.registry,
		engine.WithEmitter(s.emitter),
		engine.WithLogger(logger),
	)
	if !cfg.BaseImage.IsZero() {
		if err := s.engine.Reset(cfg.BaseImage); err != nil {
			return nil, fmt.Errorf("set base image: %w", err)
		}
	}

	s.index = closet.NewIndex(store, logger)
	s.index.Load()

	if cfg.OTelEndpoint != "" {
		clean, err := initTracer(cfg.OTelEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			s.traceClean = clean
		}
	}

	if cfg.CatalogPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		go func() {
			err := catalog.Watch(ctx, cfg.CatalogPath, logger, func(garments []engine.Garment) {
				s.registry.Seed(garments)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("catalog watcher stopped", "error", err)
			}
		}()
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting stylist server", "port", s.cfg.Port, "garments", s.registry.Len())
	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *Service) Router() *gin.Engine {
	return s.router
}

// seedCatalog loads the seed catalog into the registry. An override that
// fails to load falls back to the embedded default.
func (s *Service) seedCatalog() {
	var garments []engine.Garment
	var err error
	if s.cfg.CatalogPath != "" {
		garments, err = catalog.LoadFile(s.cfg.CatalogPath)
		if err != nil {
			s.logger.Warn("catalog override unusable, using embedded default", "error", err)
		}
	}
	if garments == nil {
		garments, err = catalog.Load()
		if err != nil {
			// The embedded catalog is validated by tests; this only
			// fires if the binary shipped broken.
			s.logger.Error("embedded catalog unusable", "error", err)
			return
		}
	}
	s.registry.Seed(garments)
	s.logger.Info("catalog seeded", "garments", s.registry.Len())
}

// initRouter creates the Gin engine and registers all routes.
func (s *Service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("stylist-service"))

	h := NewHandlers(s)

	v1 := s.router.Group("/v1/stylist")
	v1.POST("/reset", h.HandleReset)
	v1.GET("/state", h.HandleState)
	v1.GET("/catalog", h.HandleCatalog)
	v1.POST("/garments", h.HandleUploadGarment)
	v1.POST("/garments/:id/apply", h.HandleApplyGarment)
	v1.POST("/undo", h.HandleUndo)
	v1.POST("/pose", h.HandleSelectPose)
	v1.GET("/outfits", h.HandleListOutfits)
	v1.POST("/outfits", h.HandleSaveOutfit)
	v1.DELETE("/outfits/:id", h.HandleDeleteOutfit)
	v1.POST("/outfits/:id/apply", h.HandleApplyOutfit)
	v1.GET("/events", h.HandleEvents)

	s.router.GET("/healthz", h.HandleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// cleanup releases resources when Run exits.
func (s *Service) cleanup() {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	if s.traceClean != nil {
		s.traceClean(context.Background())
	}
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("stylist-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}
