// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog loads the seed garment catalog.
//
// The default catalog ships embedded in the binary; an on-disk override
// can replace it at startup and is hot-reloaded while the service runs.
// A malformed override is logged and ignored, never fatal.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

const (
	// MaxYAMLFileSize is the maximum allowed catalog file size (1MB).
	// Prevents memory issues from large files.
	MaxYAMLFileSize = 1024 * 1024

	// MaxGarments is the maximum entries allowed in a catalog.
	MaxGarments = 500
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// entry is one catalog row as it appears on disk.
type entry struct {
	ID       string  `yaml:"id" validate:"required"`
	Name     string  `yaml:"name" validate:"required"`
	ImageURL string  `yaml:"image_url" validate:"required,url"`
	Brand    string  `yaml:"brand"`
	Material string  `yaml:"material"`
	PriceUSD float64 `yaml:"price_usd" validate:"gte=0"`
}

// catalogFile is the on-disk document shape.
type catalogFile struct {
	Garments []entry `yaml:"garments" validate:"required,dive"`
}

var validate = validator.New()

// Load parses and validates the embedded default catalog.
func Load() ([]engine.Garment, error) {
	return parse(defaultCatalogYAML)
}

// LoadFile parses and validates a catalog override from disk.
//
// Outputs:
//
//	[]engine.Garment - The garments, in file order.
//	error - Non-nil on read, size, parse or validation failure.
func LoadFile(path string) ([]engine.Garment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("catalog %s exceeds %d bytes", path, MaxYAMLFileSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return parse(raw)
}

// parse unmarshals and validates catalog YAML.
func parse(raw []byte) ([]engine.Garment, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if len(f.Garments) > MaxGarments {
		return nil, fmt.Errorf("catalog has %d garments, max %d", len(f.Garments), MaxGarments)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Garments))
	out := make([]engine.Garment, 0, len(f.Garments))
	for _, e := range f.Garments {
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate garment id %q", e.ID)
		}
		seen[e.ID] = true
		out = append(out, engine.Garment{
			ID:       e.ID,
			Name:     e.Name,
			Image:    engine.ImageRef{URL: e.ImageURL},
			Brand:    e.Brand,
			Material: e.Material,
			PriceUSD: e.PriceUSD,
		})
	}
	return out, nil
}

// Watch reloads a catalog override whenever the file changes and feeds
// the result to onChange.
//
// Description:
//
//	Watches the file's directory (editors replace files rather than
//	write in place) and reloads on create/write events for the target
//	path. A reload that fails validation is logged and skipped; the
//	previous catalog stays active. Watch blocks until ctx is done.
//
// Inputs:
//
//	path - The override file to watch.
//	onChange - Receives the freshly loaded garments.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func([]engine.Garment)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch catalog directory %s: %w", dir, err)
	}
	logger.Info("watching catalog override", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			garments, err := LoadFile(path)
			if err != nil {
				logger.Warn("catalog reload skipped", "error", err)
				continue
			}
			logger.Info("catalog reloaded", "garments", len(garments))
			onChange(garments)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", "error", err)
		}
	}
}
