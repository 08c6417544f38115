// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"testing"
)

func TestEmitter_Subscribe(t *testing.T) {
	t.Run("delivers to all-type subscribers", func(t *testing.T) {
		e := NewEmitter()
		var got []Event
		e.Subscribe(func(ev Event) { got = append(got, ev) })

		e.Emit(TypeLayerAdded, map[string]string{"garment_id": "jacket"})
		e.Emit(TypePoseChanged, nil)

		if len(got) != 2 {
			t.Fatalf("received %d events, want 2", len(got))
		}
		if got[0].Type != TypeLayerAdded || got[0].Fields["garment_id"] != "jacket" {
			t.Errorf("first event = %+v", got[0])
		}
		if got[0].ID == "" || got[0].Timestamp.IsZero() {
			t.Error("event missing id or timestamp")
		}
	})

	t.Run("type filter screens out other events", func(t *testing.T) {
		e := NewEmitter()
		var got []Event
		e.Subscribe(func(ev Event) { got = append(got, ev) }, TypeReplayStep, TypeReplayDone)

		e.Emit(TypeLayerAdded, nil)
		e.Emit(TypeReplayStep, nil)
		e.Emit(TypeReplayDone, nil)

		if len(got) != 2 {
			t.Fatalf("received %d events, want 2", len(got))
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		e := NewEmitter()
		count := 0
		id := e.Subscribe(func(Event) { count++ })

		e.Emit(TypeLayerAdded, nil)
		e.Unsubscribe(id)
		e.Emit(TypeLayerAdded, nil)

		if count != 1 {
			t.Errorf("handler ran %d times, want 1", count)
		}
	})

	t.Run("a panicking handler does not break the others", func(t *testing.T) {
		e := NewEmitter()
		e.Subscribe(func(Event) { panic("boom") })
		delivered := false
		e.Subscribe(func(Event) { delivered = true })

		e.Emit(TypeLayerAdded, nil)

		if !delivered {
			t.Error("second handler was not invoked")
		}
	})
}

func TestEmitter_Recent(t *testing.T) {
	t.Run("keeps only the newest events", func(t *testing.T) {
		e := NewEmitter(WithBufferSize(3))
		for i := 0; i < 5; i++ {
			e.Emit(TypeReplayStep, map[string]string{"step": string(rune('0' + i))})
		}

		recent := e.Recent()
		if len(recent) != 3 {
			t.Fatalf("Recent() returned %d events, want 3", len(recent))
		}
		if recent[0].Fields["step"] != "2" || recent[2].Fields["step"] != "4" {
			t.Errorf("buffer window = [%s..%s], want [2..4]",
				recent[0].Fields["step"], recent[2].Fields["step"])
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		e := NewEmitter()
		e.Emit(TypeLayerAdded, nil)

		recent := e.Recent()
		recent[0].Type = TypeReplayFailed

		if e.Recent()[0].Type != TypeLayerAdded {
			t.Error("mutating the returned slice changed the buffer")
		}
	})
}
