// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events broadcasts composition progress to subscribers.
//
// The engine emits an event for every observable state change (layer
// added, layer removed, pose changed, replay progress) so that the
// presentation layer can show the composition growing one garment at a
// time during replay rather than only seeing the final state.
package events

import "time"

// Type identifies the kind of event.
type Type string

const (
	// TypeLayerAdded fires when a garment layer is appended (new edit or
	// redo hit).
	TypeLayerAdded Type = "layer_added"

	// TypeLayerRemoved fires when the cursor moves back on undo.
	TypeLayerRemoved Type = "layer_removed"

	// TypePoseChanged fires when the active pose pointer switches.
	TypePoseChanged Type = "pose_changed"

	// TypeReplayStep fires after each garment of a saved outfit is
	// applied, before the pipeline continues with the next one.
	TypeReplayStep Type = "replay_step"

	// TypeReplayDone fires when every garment of a saved outfit applied.
	TypeReplayDone Type = "replay_done"

	// TypeReplayFailed fires when the pipeline stops early. Layers built
	// so far remain in place.
	TypeReplayFailed Type = "replay_failed"
)

// Event is a single broadcast notification.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Type is the event kind.
	Type Type `json:"type"`

	// Timestamp is when the event was emitted (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Fields carries event-specific context (garment id, pose, step...).
	Fields map[string]string `json:"fields,omitempty"`
}

// Handler is a function that processes events.
type Handler func(event Event)
