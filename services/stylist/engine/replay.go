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
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianStyle/services/stylist/events"
)

// ApplyOutfit rebuilds the composition from an ordered garment-id list,
// the replay half of loading a saved outfit.
//
// Description:
//
//	The cursor resets to the root (the existing base image is kept, not
//	regenerated), then each id is resolved through the registry and
//	applied with one TryOn call whose base is the image produced by the
//	immediately preceding step. Every step commits and becomes visible
//	before the next one starts. Unlike AddGarment, replay never
//	consults the redo buffer: it is rebuilding from a named snapshot,
//	not continuing an interactive session, so every step is a fresh
//	generation call.
//
//	The pipeline stops on the first failure. Layers already built
//	remain in place; there is no rollback.
//
// Inputs:
//
//	garmentIDs - Ordered non-root garment ids of the saved outfit.
//
// Outputs:
//
//	int - Number of garments successfully applied.
//	error - ErrBusy, ErrNotInitialized, wrapped ErrGarmentNotFound when
//	an id no longer resolves, or wrapped ErrGenerationFailed.
func (e *Engine) ApplyOutfit(ctx context.Context, garmentIDs []string) (int, error) {
	ctx, span := otel.Tracer("aleutianstyle/stylist/engine").Start(ctx, "engine.ApplyOutfit")
	defer span.End()
	span.SetAttributes(attribute.Int("outfit.garments", len(garmentIDs)))

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return 0, ErrBusy
	}
	if len(e.layers) == 0 {
		e.mu.Unlock()
		return 0, ErrNotInitialized
	}
	e.busy = true
	e.position = 0
	e.activePose = DefaultPose
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	for i, id := range garmentIDs {
		g, err := e.registry.Resolve(id)
		if err != nil {
			// The outfit references a garment that no longer exists.
			// Progress so far stays visible.
			replaySteps.WithLabelValues(outcomeError).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "garment resolution failed")
			e.logger.Warn("replay aborted", "step", i, "garment_id", id, "error", err)
			e.emit(events.TypeReplayFailed, map[string]string{
				"step":       strconv.Itoa(i),
				"garment_id": id,
				"reason":     "unresolved",
			})
			return i, fmt.Errorf("replay step %d: %w", i, err)
		}

		e.mu.Lock()
		_, base, _ := e.layers[e.position].Cache.Representative()
		e.mu.Unlock()

		result, err := e.gen.TryOn(ctx, base, g.Image)
		if err != nil {
			generationCalls.WithLabelValues(kindTryOn, outcomeError).Inc()
			replaySteps.WithLabelValues(outcomeError).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			e.logger.Warn("replay aborted", "step", i, "garment_id", id, "error", err)
			e.emit(events.TypeReplayFailed, map[string]string{
				"step":       strconv.Itoa(i),
				"garment_id": id,
				"reason":     "generation",
			})
			return i, fmt.Errorf("%w: replay step %d (garment %q): %v", ErrGenerationFailed, i, id, err)
		}
		generationCalls.WithLabelValues(kindTryOn, outcomeOK).Inc()
		replaySteps.WithLabelValues(outcomeOK).Inc()

		e.mu.Lock()
		e.layers = append(e.layers[:e.position+1], &Layer{
			GarmentID: g.ID,
			Cache:     NewPoseCache(DefaultPose, result),
		})
		e.position = len(e.layers) - 1
		historyDepth.Set(float64(len(e.layers)))
		e.mu.Unlock()

		// Progressive commit: each step is observable before the next
		// generation call is issued.
		e.emit(events.TypeReplayStep, map[string]string{
			"step":       strconv.Itoa(i),
			"garment_id": g.ID,
		})
	}

	e.emit(events.TypeReplayDone, map[string]string{
		"garments": strconv.Itoa(len(garmentIDs)),
	})
	return len(garmentIDs), nil
}
