// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package closet keeps the named saved-outfit index and persists it
// through the durable store.
//
// Saved outfits are immutable snapshots: create and delete are the only
// operations. Every mutation rewrites the whole index synchronously
// under one fixed key; persistence failures are logged and treated as
// non-fatal so the in-memory index is never rolled back.
package closet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

// StoreKey is the fixed durable-store key the whole index lives under.
const StoreKey = "closet/outfits/v1"

// ErrOutfitNotFound is returned when a saved-outfit id is unknown.
var ErrOutfitNotFound = errors.New("saved outfit not found")

// Store is the durable key-value layer the index persists through.
type Store interface {
	// Get returns the raw value under key, or false when absent.
	Get(key string) ([]byte, bool, error)

	// Set stores the raw value under key.
	Set(key string, value []byte) error
}

// SavedOutfit is one named snapshot of a composition: the ordered
// non-root garment ids plus a preview image. Immutable once saved.
type SavedOutfit struct {
	// ID is a generated unique identifier.
	ID string `json:"id"`

	// Name is the user-chosen display name.
	Name string `json:"name"`

	// GarmentIDs is the ordered garment sequence, root excluded.
	GarmentIDs []string `json:"garment_ids"`

	// Preview is the composed image at save time.
	Preview engine.ImageRef `json:"preview"`

	// CreatedAt is when the outfit was saved (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Index is the in-memory saved-outfit collection, newest first.
//
// Thread Safety: safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	outfits []SavedOutfit
	store   Store
	logger  *slog.Logger
}

// NewIndex creates an index over the given store.
func NewIndex(store Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: store, logger: logger}
}

// Load rehydrates the index from the durable store.
//
// Description:
//
//	Called once at process start. Absent or malformed stored data is
//	treated as "no saved outfits" - logged, never propagated as a
//	fatal error.
func (ix *Index) Load() {
	raw, ok, err := ix.store.Get(StoreKey)
	if err != nil {
		ix.logger.Warn("closet load failed, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	var outfits []SavedOutfit
	if err := json.Unmarshal(raw, &outfits); err != nil {
		ix.logger.Warn("closet data malformed, starting empty", "error", err)
		return
	}
	ix.mu.Lock()
	ix.outfits = outfits
	ix.mu.Unlock()
	ix.logger.Info("closet loaded", "outfits", len(outfits))
}

// Save creates a new outfit with a fresh id, prepends it and persists
// the full index synchronously.
//
// Outputs:
//
//	SavedOutfit - The created snapshot.
//	error - Non-nil only on invalid input; a persistence failure is
//	logged and the in-memory save stands (best-effort writes).
func (ix *Index) Save(name string, garmentIDs []string, preview engine.ImageRef) (SavedOutfit, error) {
	if name == "" {
		return SavedOutfit{}, errors.New("outfit name must not be empty")
	}
	if len(garmentIDs) == 0 {
		return SavedOutfit{}, errors.New("outfit must contain at least one garment")
	}

	ids := make([]string, len(garmentIDs))
	copy(ids, garmentIDs)
	outfit := SavedOutfit{
		ID:         uuid.NewString(),
		Name:       name,
		GarmentIDs: ids,
		Preview:    preview,
		CreatedAt:  time.Now().UTC(),
	}

	ix.mu.Lock()
	ix.outfits = append([]SavedOutfit{outfit}, ix.outfits...)
	ix.mu.Unlock()

	ix.persist()
	return outfit, nil
}

// Delete removes an outfit by id and persists the full index.
//
// Outputs:
//
//	error - ErrOutfitNotFound (wrapped) when the id is unknown.
func (ix *Index) Delete(id string) error {
	ix.mu.Lock()
	found := false
	kept := ix.outfits[:0]
	for _, o := range ix.outfits {
		if o.ID == id {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	ix.outfits = kept
	ix.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %q", ErrOutfitNotFound, id)
	}
	ix.persist()
	return nil
}

// Get returns the outfit with the given id.
func (ix *Index) Get(id string) (SavedOutfit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, o := range ix.outfits {
		if o.ID == id {
			return o, nil
		}
	}
	return SavedOutfit{}, fmt.Errorf("%w: %q", ErrOutfitNotFound, id)
}

// List returns all saved outfits, newest first.
func (ix *Index) List() []SavedOutfit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]SavedOutfit, len(ix.outfits))
	copy(out, ix.outfits)
	return out
}

// persist writes the full index to the durable store. Failures are
// logged and swallowed: persistence is best-effort and must never tear
// the in-memory state.
func (ix *Index) persist() {
	ix.mu.RLock()
	raw, err := json.Marshal(ix.outfits)
	ix.mu.RUnlock()
	if err != nil {
		ix.logger.Error("closet marshal failed", "error", err)
		return
	}
	if err := ix.store.Set(StoreKey, raw); err != nil {
		ix.logger.Error("closet persist failed", "error", err)
	}
}
