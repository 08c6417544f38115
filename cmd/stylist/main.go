// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command stylist starts the AleutianStyle virtual try-on HTTP server.
//
// It reads configuration from environment variables and starts the
// server.
//
// # Environment Variables
//
//   - STYLE_PORT: HTTP server port (default: 12230)
//   - STYLE_DATA_DIR: BadgerDB directory for saved outfits (default: ./data/closet)
//   - STYLE_CATALOG_PATH: on-disk catalog override, hot-reloaded (optional)
//   - STYLE_BASE_IMAGE: model photo to initialize the engine with (optional)
//   - STYLE_LOG_LEVEL: debug, info, warn, error (default: info)
//   - STYLE_LOG_DIR: enable file logging when set (optional)
//   - OPENAI_API_KEY: image backend API key (or /run/secrets/openai_api_key)
//   - STYLE_IMAGE_MODEL: image-output model name (optional)
//   - STYLE_IMAGE_BASE_URL: OpenAI-compatible gateway URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o stylist ./cmd/stylist
//
//	# Run
//	./stylist
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianStyle/pkg/logging"
	"github.com/AleutianAI/AleutianStyle/services/stylist"
	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
	"github.com/AleutianAI/AleutianStyle/services/stylist/genai"
	badgerstore "github.com/AleutianAI/AleutianStyle/services/stylist/storage/badger"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("STYLE_LOG_LEVEL")),
		LogDir:  os.Getenv("STYLE_LOG_DIR"),
		Service: "stylist",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := stylist.Config{
		Port:         getEnvInt("STYLE_PORT", 12230),
		CatalogPath:  os.Getenv("STYLE_CATALOG_PATH"),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Logger:       logger.Slog(),
	}

	if path := os.Getenv("STYLE_BASE_IMAGE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read base image %s: %v", path, err)
		}
		mime, err := engine.ValidateImage(raw)
		if err != nil {
			log.Fatalf("Base image %s: %v", path, err)
		}
		cfg.BaseImage = engine.ImageRef{MIME: mime, Data: raw}
	}

	gen, err := genai.NewClient()
	if err != nil {
		log.Fatalf("Failed to create generation client: %v", err)
	}

	storeCfg := badgerstore.DefaultConfig()
	storeCfg.Path = getEnvString("STYLE_DATA_DIR", "./data/closet")
	storeCfg.Logger = logger.Slog()
	store, err := badgerstore.OpenKV(storeCfg)
	if err != nil {
		log.Fatalf("Failed to open durable store: %v", err)
	}
	defer store.Close()

	slog.Info("Starting stylist",
		"port", cfg.Port,
		"data_dir", storeCfg.Path,
		"catalog_override", cfg.CatalogPath != "",
	)

	svc, err := stylist.New(cfg, gen, store)
	if err != nil {
		log.Fatalf("Failed to create stylist service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Stylist error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
