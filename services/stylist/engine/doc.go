// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the outfit composition engine - the mutable
// history of layered garment edits at the heart of AleutianStyle.
//
// # Architecture Overview
//
// The engine sits between the HTTP surface (handlers) and the image
// generation backend, owning all composition state:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                      HTTP SURFACE                            │
//	│        (apply garment, undo, switch pose, replay)            │
//	└──────────────────────────────┬───────────────────────────────┘
//	                               │
//	                               ▼
//	┌──────────────────────────────────────────────────────────────┐
//	│                         Engine                               │
//	│                                                              │
//	│  layers:  [root] [jacket] [scarf] [hat]                      │
//	│              ▲       ▲                ▲                      │
//	│              │       └─ position      └─ redo buffer         │
//	│              └─ base model image                             │
//	│                                                              │
//	│  Each layer owns a PoseCache: pose id → generated image.     │
//	│  The first entry ever inserted is the layer's                │
//	│  representative image, the canonical base for any further    │
//	│  derivation (pose re-render, replay continuation).           │
//	└──────────────────────────────┬───────────────────────────────┘
//	                               │ one call in flight, ever
//	                               ▼
//	┌──────────────────────────────────────────────────────────────┐
//	│               Generator (image generation backend)           │
//	│        TryOn(base, garment)        Repose(base, pose)        │
//	└──────────────────────────────────────────────────────────────┘
//
// # Core Concepts
//
// ## History as an append-only log
//
// Layers are never edited in place except to grow a pose cache. Undo moves
// the cursor back without discarding layers; the abandoned tail is the redo
// buffer. Re-applying the exact garment at position+1 is a redo hit and
// costs no generation call. Applying anything else truncates the tail
// first (branch overwrite), mirroring standard undo-history semantics.
//
// ## Single-flight discipline
//
// At most one generation call may be outstanding. Every mutating entry
// point checks the engine's busy flag and returns ErrBusy without touching
// state while a call is in flight. Because of this, no mutation can ever
// interleave with the completion of another: completion order equals issue
// order trivially.
//
// ## Failure policy
//
// A failed TryOn leaves history length, cursor and caches exactly as they
// were. A failed Repose reverts the optimistic pose pointer. Replay is the
// one deliberate exception: it commits progressively and keeps the layers
// already built when a later step fails.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. State is guarded by a
// single mutex; the mutex is never held across a generation call.
package engine
