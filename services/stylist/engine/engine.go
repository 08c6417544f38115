// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianStyle/services/stylist/events"
)

// Generator is the image generation backend consumed by the engine.
//
// Both calls are single-attempt: the engine never retries, and any
// failure is reported upward uniformly. Implementations own their own
// timeout policy.
type Generator interface {
	// TryOn applies a garment to a base image and returns the composed
	// result.
	TryOn(ctx context.Context, base, garment ImageRef) (ImageRef, error)

	// Repose re-renders a base image in a new pose.
	Repose(ctx context.Context, base ImageRef, pose Pose) (ImageRef, error)
}

// LayerView is a read-only snapshot of one history layer.
type LayerView struct {
	// GarmentID is empty for the root layer.
	GarmentID string `json:"garment_id,omitempty"`

	// Poses lists the cached pose ids in insertion order; the first one
	// is the representative.
	Poses []Pose `json:"poses"`
}

// Engine owns the composition history: an append-only log of layers, a
// cursor, the process-wide active pose pointer and the single-flight
// guard. See the package documentation for the full model.
type Engine struct {
	mu         sync.Mutex
	layers     []*Layer
	position   int
	activePose Pose
	busy       bool

	gen      Generator
	registry *Registry
	emitter  *events.Emitter
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter attaches an event emitter for progress broadcasts.
func WithEmitter(em *events.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithLogger sets the engine logger (default slog.Default).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with no history. Reset must be called with the
// base model image before any other operation.
//
// Inputs:
//
//	gen - Image generation backend. Must not be nil.
//	registry - Garment registry shared with the catalog. Must not be nil.
func New(gen Generator, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		gen:        gen,
		registry:   registry,
		activePose: DefaultPose,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reset discards all history and starts over from a single root layer
// whose pose cache holds the base image under the default pose.
//
// Outputs:
//
//	error - ErrBusy if a generation call is in flight, ErrInvalidImage
//	if base references nothing.
func (e *Engine) Reset(base ImageRef) error {
	if base.IsZero() {
		return fmt.Errorf("%w: empty base image", ErrInvalidImage)
	}
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.layers = []*Layer{{Cache: NewPoseCache(DefaultPose, base)}}
	e.position = 0
	e.activePose = DefaultPose
	historyDepth.Set(1)
	e.mu.Unlock()

	e.logger.Info("engine reset", "base", base.URL != "" || len(base.Data) > 0)
	return nil
}

// AddGarment layers a garment on top of the current composition.
//
// Description:
//
//	If the layer just beyond the cursor holds the same garment id, this
//	is a redo hit: the cursor advances with no generation call.
//	Otherwise one TryOn call is issued against base; on success the
//	redo buffer is discarded (branch overwrite), the new layer is
//	appended, the cursor advances and the garment is registered. On
//	failure history is left exactly as it was.
//
// Inputs:
//
//	g - The garment to apply.
//	base - Base image for generation, normally the currently displayed
//	image. A zero ref falls back to the current layer's representative.
//
// Outputs:
//
//	error - ErrBusy, ErrNotInitialized, or a wrapped
//	ErrGenerationFailed. Never leaves a partial layer behind.
func (e *Engine) AddGarment(ctx context.Context, g Garment, base ImageRef) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if len(e.layers) == 0 {
		e.mu.Unlock()
		return ErrNotInitialized
	}

	// Redo hit: the exact garment the user undid is re-selected.
	if e.position+1 < len(e.layers) && e.layers[e.position+1].GarmentID == g.ID {
		e.position++
		e.activePose = DefaultPose
		redoHits.Inc()
		e.mu.Unlock()
		e.emit(events.TypeLayerAdded, map[string]string{
			"garment_id": g.ID,
			"redo":       "true",
		})
		return nil
	}

	if base.IsZero() {
		_, rep, _ := e.layers[e.position].Cache.Representative()
		base = rep
	}
	e.busy = true
	e.mu.Unlock()

	result, err := e.gen.TryOn(ctx, base, g.Image)

	e.mu.Lock()
	e.busy = false
	if err != nil {
		e.mu.Unlock()
		generationCalls.WithLabelValues(kindTryOn, outcomeError).Inc()
		e.logger.Warn("try-on failed", "garment_id", g.ID, "error", err)
		return fmt.Errorf("%w: apply garment %q: %v", ErrGenerationFailed, g.ID, err)
	}
	generationCalls.WithLabelValues(kindTryOn, outcomeOK).Inc()

	e.layers = append(e.layers[:e.position+1], &Layer{
		GarmentID: g.ID,
		Cache:     NewPoseCache(DefaultPose, result),
	})
	e.position = len(e.layers) - 1
	e.activePose = DefaultPose
	historyDepth.Set(float64(len(e.layers)))
	e.mu.Unlock()

	e.registry.Add(g)
	e.emit(events.TypeLayerAdded, map[string]string{"garment_id": g.ID})
	return nil
}

// RemoveLastGarment moves the cursor back one layer. The layer itself is
// retained in the redo buffer; the active pose resets to the default.
// Silently a no-op at the root.
func (e *Engine) RemoveLastGarment() error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if len(e.layers) == 0 || e.position == 0 {
		e.mu.Unlock()
		return nil
	}
	removed := e.layers[e.position].GarmentID
	e.position--
	e.activePose = DefaultPose
	e.mu.Unlock()

	e.emit(events.TypeLayerRemoved, map[string]string{"garment_id": removed})
	return nil
}

// SelectPose switches the active pose of the current layer.
//
// Description:
//
//	A pose already present in the layer's cache switches the pointer
//	immediately with no call. Otherwise the pointer is set
//	optimistically, one Repose call is issued against the layer's
//	representative image (first cached entry, not necessarily the pose
//	on display), and the result is inserted on success. On failure the
//	pointer reverts to its prior value.
//
// Outputs:
//
//	error - ErrBusy, ErrUnknownPose, or a wrapped ErrGenerationFailed.
//	Nil (no-op) when no layers exist or pose is already active.
func (e *Engine) SelectPose(ctx context.Context, pose Pose) error {
	if !pose.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPose, pose)
	}
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if len(e.layers) == 0 {
		e.mu.Unlock()
		return nil
	}
	if pose == e.activePose {
		e.mu.Unlock()
		return nil
	}

	layer := e.layers[e.position]
	if layer.Cache.Has(pose) {
		e.activePose = pose
		poseCacheHits.Inc()
		e.mu.Unlock()
		e.emit(events.TypePoseChanged, map[string]string{"pose": string(pose)})
		return nil
	}

	prev := e.activePose
	e.activePose = pose // optimistic: UI reflects intent immediately
	e.busy = true
	_, rep, _ := layer.Cache.Representative()
	e.mu.Unlock()

	img, err := e.gen.Repose(ctx, rep, pose)

	e.mu.Lock()
	e.busy = false
	if err != nil {
		e.activePose = prev
		e.mu.Unlock()
		generationCalls.WithLabelValues(kindRepose, outcomeError).Inc()
		e.logger.Warn("repose failed", "pose", pose, "error", err)
		return fmt.Errorf("%w: render pose %q: %v", ErrGenerationFailed, pose, err)
	}
	generationCalls.WithLabelValues(kindRepose, outcomeOK).Inc()

	// The layer captured at call time is mutated even though the pointer
	// is already correct; single-flight guarantees the cursor has not
	// moved meanwhile.
	layer.Cache.Put(pose, img)
	e.mu.Unlock()

	e.emit(events.TypePoseChanged, map[string]string{"pose": string(pose)})
	return nil
}

// ActiveLayers returns snapshots of the layers from the root through the
// cursor inclusive: the visible composition.
func (e *Engine) ActiveLayers() []LayerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.layers) == 0 {
		return nil
	}
	out := make([]LayerView, 0, e.position+1)
	for _, l := range e.layers[:e.position+1] {
		out = append(out, LayerView{GarmentID: l.GarmentID, Poses: l.Cache.Poses()})
	}
	return out
}

// ActiveGarmentIDs returns the ordered non-root garment ids of the
// visible composition; this is what gets saved as an outfit.
func (e *Engine) ActiveGarmentIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.layers) == 0 {
		return nil
	}
	out := make([]string, 0, e.position)
	for _, l := range e.layers[:e.position+1] {
		if !l.IsRoot() {
			out = append(out, l.GarmentID)
		}
	}
	return out
}

// CurrentImage returns the image on display: the current layer's entry
// for the active pose when cached, otherwise its representative.
func (e *Engine) CurrentImage() ImageRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.layers) == 0 {
		return ImageRef{}
	}
	layer := e.layers[e.position]
	if img, ok := layer.Cache.Get(e.activePose); ok {
		return img
	}
	_, rep, _ := layer.Cache.Representative()
	return rep
}

// Position returns the cursor index.
func (e *Engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// HistoryLen returns the total layer count including the redo buffer.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.layers)
}

// ActivePose returns the active pose pointer.
func (e *Engine) ActivePose() Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activePose
}

// Busy reports whether a generation call is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// emit broadcasts an event if an emitter is attached.
func (e *Engine) emit(t events.Type, fields map[string]string) {
	if e.emitter != nil {
		e.emitter.Emit(t, fields)
	}
}
