// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

const validCatalog = `garments:
  - id: denim-jacket-01
    name: Classic Denim Jacket
    image_url: https://example.com/denim.png
    brand: Aleutian
    material: denim
    price_usd: 89.5
  - id: silk-scarf-01
    name: Silk Scarf
    image_url: https://example.com/scarf.png
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	// The embedded default must always be valid.
	garments, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, garments)
	for _, g := range garments {
		assert.NotEmpty(t, g.ID)
		assert.NotEmpty(t, g.Name)
		assert.NotEmpty(t, g.Image.URL)
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("parses a valid override", func(t *testing.T) {
		garments, err := LoadFile(writeCatalog(t, validCatalog))
		require.NoError(t, err)
		require.Len(t, garments, 2)
		assert.Equal(t, "denim-jacket-01", garments[0].ID)
		assert.Equal(t, "https://example.com/denim.png", garments[0].Image.URL)
		assert.Equal(t, 89.5, garments[0].PriceUSD)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, "garments: [{{"))
		assert.Error(t, err)
	})

	t.Run("rejects a missing required field", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, `garments:
  - id: no-name-01
    image_url: https://example.com/x.png
`))
		assert.Error(t, err)
	})

	t.Run("rejects a non-url image", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, `garments:
  - id: bad-url-01
    name: Bad URL
    image_url: not-a-url
`))
		assert.Error(t, err)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, `garments:
  - id: twin-01
    name: Twin A
    image_url: https://example.com/a.png
  - id: twin-01
    name: Twin B
    image_url: https://example.com/b.png
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("rejects a negative price", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, `garments:
  - id: freebie-01
    name: Freebie
    image_url: https://example.com/f.png
    price_usd: -1
`))
		assert.Error(t, err)
	})
}

func TestWatch(t *testing.T) {
	t.Run("reloads on write and skips invalid content", func(t *testing.T) {
		path := writeCatalog(t, validCatalog)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloads := make(chan []engine.Garment, 4)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = Watch(ctx, path, nil, func(gs []engine.Garment) { reloads <- gs })
		}()

		// Give the watcher time to attach before the first write.
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, os.WriteFile(path, []byte(`garments:
  - id: solo-01
    name: Solo
    image_url: https://example.com/solo.png
`), 0600))

		select {
		case gs := <-reloads:
			require.Len(t, gs, 1)
			assert.Equal(t, "solo-01", gs[0].ID)
		case <-time.After(5 * time.Second):
			t.Fatal("no reload observed after a valid write")
		}

		// An invalid write must not produce a callback.
		require.NoError(t, os.WriteFile(path, []byte("garments: [{{"), 0600))
		select {
		case gs := <-reloads:
			t.Fatalf("invalid write produced a reload: %v", gs)
		case <-time.After(500 * time.Millisecond):
		}

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop on context cancel")
		}
	})
}
