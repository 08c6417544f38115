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
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianStyle/services/stylist/closet"
	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

// Handlers contains the HTTP handlers for the stylist service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleReset handles POST /v1/stylist/reset.
//
// Description:
//
//	Validates the uploaded base model photo and resets the engine to a
//	single root layer around it. All prior history is discarded.
//
// Response:
//
//	200 OK: StateResponse
//	400 Bad Request: Body invalid or not an image
//	409 Conflict: A generation call is in flight
func (h *Handlers) HandleReset(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReset")

	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	img, err := decodeImage(req.ImageB64)
	if err != nil {
		logger.Warn("Base image rejected", "error", err)
		respondError(c, err)
		return
	}

	if err := h.svc.engine.Reset(img); err != nil {
		respondError(c, err)
		return
	}
	logger.Info("Engine reset")
	c.JSON(http.StatusOK, h.state())
}

// HandleState handles GET /v1/stylist/state.
func (h *Handlers) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, h.state())
}

// HandleCatalog handles GET /v1/stylist/catalog: every garment known to
// the registry, seed catalog and uploads alike, in insertion order.
func (h *Handlers) HandleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.registry.List())
}

// HandleUploadGarment handles POST /v1/stylist/garments.
//
// Description:
//
//	Registers an ad-hoc garment from raw image bytes. The payload is
//	sniffed and rejected when it is not an image; nothing reaches the
//	generation backend for invalid uploads.
//
// Response:
//
//	201 Created: engine.Garment
//	400 Bad Request: Body invalid or not an image
func (h *Handlers) HandleUploadGarment(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUploadGarment")

	var req UploadGarmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	img, err := decodeImage(req.ImageB64)
	if err != nil {
		logger.Warn("Garment image rejected", "error", err)
		respondError(c, err)
		return
	}

	g := engine.Garment{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Image:    img,
		Brand:    req.Brand,
		Material: req.Material,
		PriceUSD: req.PriceUSD,
	}
	h.svc.registry.Add(g)
	logger.Info("Garment uploaded", "garment_id", g.ID, "name", g.Name)
	c.JSON(http.StatusCreated, g)
}

// HandleApplyGarment handles POST /v1/stylist/garments/:id/apply.
//
// Description:
//
//	Layers the garment onto the current composition. A redo hit costs
//	no generation call; anything else issues exactly one TryOn against
//	the currently displayed image.
//
// Response:
//
//	200 OK: StateResponse
//	404 Not Found: Unknown garment id
//	409 Conflict: Busy or not initialized
//	502 Bad Gateway: Generation failed (history unchanged)
func (h *Handlers) HandleApplyGarment(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyGarment")

	g, err := h.svc.registry.Resolve(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.svc.engine.AddGarment(c.Request.Context(), g, h.svc.engine.CurrentImage()); err != nil {
		logger.Warn("Apply failed", "garment_id", g.ID, "error", err)
		respondError(c, err)
		return
	}
	logger.Info("Garment applied", "garment_id", g.ID)
	c.JSON(http.StatusOK, h.state())
}

// HandleUndo handles POST /v1/stylist/undo. Removing at the root is a
// silent no-op, mirroring the engine.
func (h *Handlers) HandleUndo(c *gin.Context) {
	if err := h.svc.engine.RemoveLastGarment(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.state())
}

// HandleSelectPose handles POST /v1/stylist/pose.
//
// Response:
//
//	200 OK: StateResponse
//	400 Bad Request: Pose outside the fixed enumeration
//	409 Conflict: Busy
//	502 Bad Gateway: Generation failed (pose pointer reverted)
func (h *Handlers) HandleSelectPose(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSelectPose")

	var req SelectPoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.svc.engine.SelectPose(c.Request.Context(), engine.Pose(req.Pose)); err != nil {
		logger.Warn("Pose switch failed", "pose", req.Pose, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.state())
}

// HandleListOutfits handles GET /v1/stylist/outfits.
func (h *Handlers) HandleListOutfits(c *gin.Context) {
	outfits := h.svc.index.List()
	out := make([]OutfitSummary, 0, len(outfits))
	for _, o := range outfits {
		out = append(out, summarize(o))
	}
	c.JSON(http.StatusOK, out)
}

// HandleSaveOutfit handles POST /v1/stylist/outfits.
//
// Description:
//
//	Snapshots the visible composition: the ordered garment ids plus the
//	currently displayed image as preview. The index is persisted
//	synchronously; a store failure is logged but never fails the save.
//
// Response:
//
//	201 Created: OutfitSummary
//	400 Bad Request: No garments applied or invalid body
func (h *Handlers) HandleSaveOutfit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveOutfit")

	var req SaveOutfitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ids := h.svc.engine.ActiveGarmentIDs()
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Nothing to save: no garments applied",
			Code:  "EMPTY_OUTFIT",
		})
		return
	}

	outfit, err := h.svc.index.Save(req.Name, ids, h.svc.engine.CurrentImage())
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	logger.Info("Outfit saved", "outfit_id", outfit.ID, "garments", len(ids))
	c.JSON(http.StatusCreated, summarize(outfit))
}

// HandleDeleteOutfit handles DELETE /v1/stylist/outfits/:id.
func (h *Handlers) HandleDeleteOutfit(c *gin.Context) {
	if err := h.svc.index.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleApplyOutfit handles POST /v1/stylist/outfits/:id/apply.
//
// Description:
//
//	Replays a saved outfit from the root. The composition grows one
//	garment at a time (watch /v1/stylist/events); on failure the layers
//	already built stay in place and the error reports how far the
//	pipeline got.
//
// Response:
//
//	200 OK: ApplyOutfitResponse
//	404 Not Found: Unknown outfit id
//	409 Conflict: Busy or not initialized
//	422 Unprocessable Entity: Outfit references a garment that no
//	longer resolves
//	502 Bad Gateway: Generation failed mid-replay
func (h *Handlers) HandleApplyOutfit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyOutfit")

	outfit, err := h.svc.index.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	applied, err := h.svc.engine.ApplyOutfit(c.Request.Context(), outfit.GarmentIDs)
	if err != nil {
		logger.Warn("Replay stopped early", "outfit_id", outfit.ID, "applied", applied, "error", err)
		status := http.StatusBadGateway
		code := "GENERATION_FAILED"
		if errors.Is(err, engine.ErrGarmentNotFound) {
			status = http.StatusUnprocessableEntity
			code = "GARMENT_NOT_FOUND"
		} else if errors.Is(err, engine.ErrBusy) || errors.Is(err, engine.ErrNotInitialized) {
			respondError(c, err)
			return
		}
		c.JSON(status, ErrorResponse{
			Error:   err.Error(),
			Code:    code,
			Details: partialDetails(applied, len(outfit.GarmentIDs)),
		})
		return
	}
	logger.Info("Outfit applied", "outfit_id", outfit.ID, "garments", applied)
	c.JSON(http.StatusOK, ApplyOutfitResponse{Applied: applied, Total: len(outfit.GarmentIDs)})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  ServiceVersion,
		Garments: h.svc.registry.Len(),
		Outfits:  len(h.svc.index.List()),
	})
}

// state assembles the StateResponse from the engine.
func (h *Handlers) state() StateResponse {
	e := h.svc.engine
	layers := e.ActiveLayers()
	return StateResponse{
		Initialized:  e.HistoryLen() > 0,
		Position:     e.Position(),
		HistoryLen:   e.HistoryLen(),
		ActivePose:   string(e.ActivePose()),
		Busy:         e.Busy(),
		Layers:       layers,
		GarmentIDs:   e.ActiveGarmentIDs(),
		CurrentImage: e.CurrentImage().Locator(),
		Poses:        engine.Poses(),
	}
}

// respondError maps the engine/closet error taxonomy onto HTTP codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "ENGINE_BUSY"})
	case errors.Is(err, engine.ErrNotInitialized):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "NOT_INITIALIZED"})
	case errors.Is(err, engine.ErrGarmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "GARMENT_NOT_FOUND"})
	case errors.Is(err, closet.ErrOutfitNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "OUTFIT_NOT_FOUND"})
	case errors.Is(err, engine.ErrUnknownPose):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_POSE"})
	case errors.Is(err, engine.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_IMAGE"})
	case errors.Is(err, engine.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "GENERATION_FAILED"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
	}
}

// decodeImage decodes standard base64 and validates the bytes are image
// content.
func decodeImage(b64 string) (engine.ImageRef, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return engine.ImageRef{}, engine.ErrInvalidImage
	}
	mime, err := engine.ValidateImage(raw)
	if err != nil {
		return engine.ImageRef{}, err
	}
	return engine.ImageRef{MIME: mime, Data: raw}, nil
}

// summarize strips the preview payload down to a locator string.
func summarize(o closet.SavedOutfit) OutfitSummary {
	return OutfitSummary{
		ID:         o.ID,
		Name:       o.Name,
		GarmentIDs: o.GarmentIDs,
		Preview:    o.Preview.Locator(),
		CreatedAt:  o.CreatedAt,
	}
}

func partialDetails(applied, total int) string {
	if applied == 0 {
		return "no garments were applied"
	}
	return fmt.Sprintf("partial composition retained: applied %d of %d garments", applied, total)
}

// getOrCreateRequestID returns the inbound request id or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
