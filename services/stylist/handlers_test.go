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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
	badgerstore "github.com/AleutianAI/AleutianStyle/services/stylist/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

// scriptedGen is a deterministic generation backend for handler tests.
type scriptedGen struct {
	tryOnErr  error
	reposeErr error
	calls     int
}

func (g *scriptedGen) TryOn(_ context.Context, base, garment engine.ImageRef) (engine.ImageRef, error) {
	g.calls++
	if g.tryOnErr != nil {
		return engine.ImageRef{}, g.tryOnErr
	}
	return engine.ImageRef{MIME: "image/png", Data: append(append([]byte{}, base.Data...), garment.Data...)}, nil
}

func (g *scriptedGen) Repose(_ context.Context, base engine.ImageRef, pose engine.Pose) (engine.ImageRef, error) {
	g.calls++
	if g.reposeErr != nil {
		return engine.ImageRef{}, g.reposeErr
	}
	return engine.ImageRef{MIME: "image/png", Data: append([]byte(pose), base.Data...)}, nil
}

func newTestService(t *testing.T, gen engine.Generator) (*Service, *badgerstore.KV) {
	t.Helper()
	kv, err := badgerstore.OpenKV(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	svc, err := New(Config{}, gen, kv)
	require.NoError(t, err)
	return svc, kv
}

func doJSON(t *testing.T, svc *Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	return w
}

func resetEngine(t *testing.T, svc *Service) StateResponse {
	t.Helper()
	w := doJSON(t, svc, http.MethodPost, "/v1/stylist/reset", ResetRequest{
		ImageB64: base64.StdEncoding.EncodeToString(pngBytes),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestHandleHealth(t *testing.T) {
	svc, _ := newTestService(t, &scriptedGen{})
	w := doJSON(t, svc, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Greater(t, resp.Garments, 0, "embedded catalog should seed the registry")
}

func TestHandleReset(t *testing.T) {
	t.Run("initializes the engine", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		state := resetEngine(t, svc)
		assert.True(t, state.Initialized)
		assert.Equal(t, 1, state.HistoryLen)
		assert.Equal(t, string(engine.DefaultPose), state.ActivePose)
		assert.NotEmpty(t, state.CurrentImage)
	})

	t.Run("rejects a non-image payload", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/reset", ResetRequest{
			ImageB64: base64.StdEncoding.EncodeToString([]byte("plain text")),
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_IMAGE", errorCode(t, w))
	})

	t.Run("rejects a missing body field", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/reset", map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
	})
}

func TestHandleState(t *testing.T) {
	svc, _ := newTestService(t, &scriptedGen{})
	w := doJSON(t, svc, http.MethodGet, "/v1/stylist/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.False(t, state.Initialized)
	assert.Len(t, state.Poses, len(engine.Poses()))
}

func TestHandleCatalog(t *testing.T) {
	svc, _ := newTestService(t, &scriptedGen{})
	w := doJSON(t, svc, http.MethodGet, "/v1/stylist/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var garments []engine.Garment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &garments))
	assert.NotEmpty(t, garments)
}

func TestHandleApplyGarment(t *testing.T) {
	t.Run("layers a catalog garment", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		id := svc.registry.List()[0].ID

		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var state StateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
		assert.Equal(t, []string{id}, state.GarmentIDs)
		assert.Equal(t, 1, state.Position)
	})

	t.Run("unknown garment id", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/ghost/apply", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "GARMENT_NOT_FOUND", errorCode(t, w))
	})

	t.Run("before reset", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		id := svc.registry.List()[0].ID
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "NOT_INITIALIZED", errorCode(t, w))
	})

	t.Run("generation failure maps to bad gateway", func(t *testing.T) {
		gen := &scriptedGen{tryOnErr: fmt.Errorf("backend down")}
		svc, _ := newTestService(t, gen)
		resetEngine(t, svc)
		id := svc.registry.List()[0].ID

		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "GENERATION_FAILED", errorCode(t, w))

		// History is untouched.
		var state StateResponse
		ws := doJSON(t, svc, http.MethodGet, "/v1/stylist/state", nil)
		require.NoError(t, json.Unmarshal(ws.Body.Bytes(), &state))
		assert.Equal(t, 1, state.HistoryLen)
	})
}

func TestHandleUploadGarment(t *testing.T) {
	t.Run("registers and applies an ad-hoc garment", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)

		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments", UploadGarmentRequest{
			Name:     "Vintage Tee",
			ImageB64: base64.StdEncoding.EncodeToString(pngBytes),
			Brand:    "Aleutian",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var g engine.Garment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
		require.NotEmpty(t, g.ID)

		w = doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+g.ID+"/apply", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects non-image bytes", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments", UploadGarmentRequest{
			Name:     "Not An Image",
			ImageB64: base64.StdEncoding.EncodeToString([]byte("nope")),
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_IMAGE", errorCode(t, w))
	})
}

func TestHandleUndo(t *testing.T) {
	svc, _ := newTestService(t, &scriptedGen{})
	resetEngine(t, svc)
	id := svc.registry.List()[0].ID
	doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)

	w := doJSON(t, svc, http.MethodPost, "/v1/stylist/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 0, state.Position)
	assert.Equal(t, 2, state.HistoryLen, "undone layer stays in the redo buffer")

	// Undo at the root stays a 200 no-op.
	w = doJSON(t, svc, http.MethodPost, "/v1/stylist/undo", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleSelectPose(t *testing.T) {
	t.Run("renders a new pose", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)

		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/pose", SelectPoseRequest{
			Pose: string(engine.PoseSideProfile),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var state StateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
		assert.Equal(t, string(engine.PoseSideProfile), state.ActivePose)
	})

	t.Run("unknown pose", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/pose", SelectPoseRequest{Pose: "handstand"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UNKNOWN_POSE", errorCode(t, w))
	})

	t.Run("generation failure reverts the pose", func(t *testing.T) {
		gen := &scriptedGen{reposeErr: fmt.Errorf("backend down")}
		svc, _ := newTestService(t, gen)
		resetEngine(t, svc)

		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/pose", SelectPoseRequest{
			Pose: string(engine.PoseBack),
		})
		require.Equal(t, http.StatusBadGateway, w.Code)

		ws := doJSON(t, svc, http.MethodGet, "/v1/stylist/state", nil)
		var state StateResponse
		require.NoError(t, json.Unmarshal(ws.Body.Bytes(), &state))
		assert.Equal(t, string(engine.DefaultPose), state.ActivePose)
	})
}

func TestHandleOutfits(t *testing.T) {
	saveOutfit := func(t *testing.T, svc *Service, name string) OutfitSummary {
		t.Helper()
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/outfits", SaveOutfitRequest{Name: name})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var out OutfitSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	t.Run("save list apply delete round trip", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		id := svc.registry.List()[0].ID
		doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)

		outfit := saveOutfit(t, svc, "Everyday")
		assert.Equal(t, []string{id}, outfit.GarmentIDs)
		assert.NotEmpty(t, outfit.Preview)

		w := doJSON(t, svc, http.MethodGet, "/v1/stylist/outfits", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []OutfitSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)

		w = doJSON(t, svc, http.MethodPost, "/v1/stylist/outfits/"+outfit.ID+"/apply", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var applied ApplyOutfitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &applied))
		assert.Equal(t, 1, applied.Applied)
		assert.Equal(t, 1, applied.Total)

		w = doJSON(t, svc, http.MethodDelete, "/v1/stylist/outfits/"+outfit.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, svc, http.MethodDelete, "/v1/stylist/outfits/"+outfit.ID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "OUTFIT_NOT_FOUND", errorCode(t, w))
	})

	t.Run("saving with nothing applied", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/outfits", SaveOutfitRequest{Name: "Empty"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "EMPTY_OUTFIT", errorCode(t, w))
	})

	t.Run("applying an unknown outfit id", func(t *testing.T) {
		svc, _ := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/outfits/ghost/apply", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "OUTFIT_NOT_FOUND", errorCode(t, w))
	})

	t.Run("outfits survive a restart through the durable store", func(t *testing.T) {
		svc, kv := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)
		id := svc.registry.List()[0].ID
		doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+id+"/apply", nil)
		saveOutfit(t, svc, "Persistent")

		restarted, err := New(Config{}, &scriptedGen{}, kv)
		require.NoError(t, err)

		w := doJSON(t, restarted, http.MethodGet, "/v1/stylist/outfits", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []OutfitSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "Persistent", list[0].Name)
	})

	t.Run("outfit referencing a vanished garment", func(t *testing.T) {
		svc, kv := newTestService(t, &scriptedGen{})
		resetEngine(t, svc)

		// Apply an ad-hoc upload, save it, then restart: the upload is
		// gone from the fresh registry while the outfit still names it.
		w := doJSON(t, svc, http.MethodPost, "/v1/stylist/garments", UploadGarmentRequest{
			Name:     "One Off",
			ImageB64: base64.StdEncoding.EncodeToString(pngBytes),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var g engine.Garment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
		doJSON(t, svc, http.MethodPost, "/v1/stylist/garments/"+g.ID+"/apply", nil)
		outfit := saveOutfit(t, svc, "Orphaned")

		restarted, err := New(Config{}, &scriptedGen{}, kv)
		require.NoError(t, err)
		resetEngine(t, restarted)

		w = doJSON(t, restarted, http.MethodPost, "/v1/stylist/outfits/"+outfit.ID+"/apply", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "GARMENT_NOT_FOUND", errorCode(t, w))
	})
}
