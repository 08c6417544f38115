// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stylist

import (
	"time"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

// ResetRequest initializes the engine with a new base model image.
type ResetRequest struct {
	// ImageB64 is the base model photo, standard base64.
	ImageB64 string `json:"image_b64" binding:"required"`
}

// UploadGarmentRequest registers an ad-hoc garment from raw image bytes.
type UploadGarmentRequest struct {
	Name     string  `json:"name" binding:"required,max=120"`
	ImageB64 string  `json:"image_b64" binding:"required"`
	Brand    string  `json:"brand" binding:"max=120"`
	Material string  `json:"material" binding:"max=120"`
	PriceUSD float64 `json:"price_usd" binding:"gte=0"`
}

// SelectPoseRequest switches the active pose of the current layer.
type SelectPoseRequest struct {
	Pose string `json:"pose" binding:"required"`
}

// SaveOutfitRequest names and saves the visible composition.
type SaveOutfitRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

// StateResponse is the full engine view the presentation layer renders.
type StateResponse struct {
	// Initialized is false until a base image has been set.
	Initialized bool `json:"initialized"`

	// Position is the history cursor.
	Position int `json:"position"`

	// HistoryLen counts all layers including the redo buffer.
	HistoryLen int `json:"history_len"`

	// ActivePose is the pose currently on display.
	ActivePose string `json:"active_pose"`

	// Busy is true while a generation call is in flight.
	Busy bool `json:"busy"`

	// Layers is the visible composition, root first.
	Layers []engine.LayerView `json:"layers"`

	// GarmentIDs is the ordered non-root garment sequence.
	GarmentIDs []string `json:"garment_ids"`

	// CurrentImage locates the image on display (URL or data URL).
	CurrentImage string `json:"current_image,omitempty"`

	// Poses is the fixed pose enumeration for selector rendering.
	Poses []engine.Pose `json:"poses"`
}

// OutfitSummary is a saved outfit without the preview payload.
type OutfitSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GarmentIDs []string  `json:"garment_ids"`
	Preview    string    `json:"preview,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApplyOutfitResponse reports replay progress.
type ApplyOutfitResponse struct {
	// Applied is the number of garments successfully layered.
	Applied int `json:"applied"`

	// Total is the garment count of the saved outfit.
	Total int `json:"total"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Garments int    `json:"garments"`
	Outfits  int    `json:"outfits"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
