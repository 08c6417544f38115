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
	"fmt"
	"sync"
)

// Registry is the deduplicating, insertion-ordered set of every garment
// the process has seen: the seed catalog plus ad-hoc uploads plus
// anything applied during a session.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Garment
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Garment)}
}

// Add registers a garment. Idempotent: if the id is already present the
// call is a no-op and the first insertion's metadata wins.
//
// Outputs:
//
//	bool - True if the garment was newly inserted.
func (r *Registry) Add(g Garment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[g.ID]; ok {
		return false
	}
	r.byID[g.ID] = g
	r.order = append(r.order, g.ID)
	return true
}

// Seed adds every garment in the slice, typically the startup catalog.
func (r *Registry) Seed(garments []Garment) {
	for _, g := range garments {
		r.Add(g)
	}
}

// Resolve returns the garment for id.
//
// Outputs:
//
//	Garment - The registered garment.
//	error - ErrGarmentNotFound (wrapped) if the id is unknown.
func (r *Registry) Resolve(id string) (Garment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byID[id]
	if !ok {
		return Garment{}, fmt.Errorf("%w: %q", ErrGarmentNotFound, id)
	}
	return g, nil
}

// List returns all garments in insertion order.
func (r *Registry) List() []Garment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Garment, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered garments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
