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
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// -----------------------------------------------------------------------------
// Poses
// -----------------------------------------------------------------------------

// Pose is one of the fixed set of camera/stance instructions used to
// re-render a composed image.
type Pose string

const (
	PoseFront        Pose = "front"
	PoseSideProfile  Pose = "side profile"
	PoseBack         Pose = "back"
	PoseThreeQuarter Pose = "three-quarter"
	PoseWalking      Pose = "walking"
	PoseSeated       Pose = "seated"
)

// DefaultPose is the pose every new layer is generated in, and the pose
// the active pointer resets to whenever the current layer changes.
const DefaultPose = PoseFront

// allPoses fixes the enumeration order for clients that render a selector.
var allPoses = []Pose{
	PoseFront,
	PoseSideProfile,
	PoseBack,
	PoseThreeQuarter,
	PoseWalking,
	PoseSeated,
}

// Poses returns the fixed pose enumeration in display order.
func Poses() []Pose {
	out := make([]Pose, len(allPoses))
	copy(out, allPoses)
	return out
}

// Valid reports whether p is a member of the fixed pose enumeration.
func (p Pose) Valid() bool {
	for _, known := range allPoses {
		if p == known {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// ImageRef
// -----------------------------------------------------------------------------

// ImageRef is an opaque reference to image content. Either Data (raw
// bytes plus MIME type) or URL is set; the engine never inspects pixels.
type ImageRef struct {
	// MIME is the content type of Data (e.g. "image/png").
	MIME string `json:"mime,omitempty"`

	// Data holds raw image bytes. Marshals as base64 in JSON.
	Data []byte `json:"data,omitempty"`

	// URL points at remotely hosted image content.
	URL string `json:"url,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (r ImageRef) IsZero() bool {
	return len(r.Data) == 0 && r.URL == ""
}

// Locator returns a string the generation backend can consume directly:
// the URL when one is set, otherwise a data URL built from Data.
func (r ImageRef) Locator() string {
	if r.URL != "" {
		return r.URL
	}
	if len(r.Data) == 0 {
		return ""
	}
	mime := r.MIME
	if mime == "" {
		mime = http.DetectContentType(r.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ParseDataURL decodes a "data:image/...;base64,..." string into an
// ImageRef holding the raw bytes.
//
// Outputs:
//
//	ImageRef - The decoded reference.
//	error - Non-nil if the string is not a base64 image data URL.
func ParseDataURL(s string) (ImageRef, error) {
	const prefix = "data:"
	if !strings.HasPrefix(s, prefix) {
		return ImageRef{}, fmt.Errorf("not a data URL")
	}
	rest := s[len(prefix):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return ImageRef{}, fmt.Errorf("data URL is not base64 encoded")
	}
	mime := rest[:sep]
	raw, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return ImageRef{}, fmt.Errorf("decode data URL payload: %w", err)
	}
	return ImageRef{MIME: mime, Data: raw}, nil
}

// ValidateImage checks that raw bytes look like image content.
//
// Description:
//
//	Sniffs the content type of the first bytes. Used to reject ad-hoc
//	uploads that are not images before any generation call is attempted.
//
// Outputs:
//
//	string - The detected MIME type on success.
//	error - ErrInvalidImage (wrapped) if the bytes are not an image.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrInvalidImage, mime)
	}
	return mime, nil
}

// -----------------------------------------------------------------------------
// Garment
// -----------------------------------------------------------------------------

// Garment is one wearable item. Immutable once created; identity is the
// ID alone and deduplication compares nothing else.
type Garment struct {
	// ID is the stable unique identifier.
	ID string `json:"id"`

	// Name is the display name shown to the user.
	Name string `json:"name"`

	// Image locates the garment's source image.
	Image ImageRef `json:"image"`

	// Brand, Material and Price are optional merchandising metadata.
	Brand    string  `json:"brand,omitempty"`
	Material string  `json:"material,omitempty"`
	PriceUSD float64 `json:"price_usd,omitempty"`
}

// -----------------------------------------------------------------------------
// PoseCache
// -----------------------------------------------------------------------------

// PoseCache maps pose → generated image for one layer. Entries are never
// removed; the set is bounded by the fixed pose enumeration. The first
// entry ever inserted is the layer's representative image.
//
// Thread Safety: not safe for concurrent use on its own; the owning
// Engine's mutex guards all access.
type PoseCache struct {
	entries map[Pose]ImageRef
	order   []Pose
}

// NewPoseCache creates a cache seeded with a single entry, which becomes
// the representative image.
func NewPoseCache(pose Pose, img ImageRef) *PoseCache {
	c := &PoseCache{entries: make(map[Pose]ImageRef, len(allPoses))}
	c.Put(pose, img)
	return c
}

// Has reports whether the cache holds an image for pose.
func (c *PoseCache) Has(pose Pose) bool {
	_, ok := c.entries[pose]
	return ok
}

// Get returns the image cached for pose.
func (c *PoseCache) Get(pose Pose) (ImageRef, bool) {
	img, ok := c.entries[pose]
	return img, ok
}

// Put inserts an image for pose. Inserting an already-present pose
// replaces the image but keeps the original insertion order, so the
// representative never changes once set.
func (c *PoseCache) Put(pose Pose, img ImageRef) {
	if _, ok := c.entries[pose]; !ok {
		c.order = append(c.order, pose)
	}
	c.entries[pose] = img
}

// Representative returns the first-inserted entry. This is the canonical
// base image for any further derivation from the owning layer - not
// necessarily the pose currently displayed.
func (c *PoseCache) Representative() (Pose, ImageRef, bool) {
	if len(c.order) == 0 {
		return "", ImageRef{}, false
	}
	p := c.order[0]
	return p, c.entries[p], true
}

// Poses returns the cached pose ids in insertion order.
func (c *PoseCache) Poses() []Pose {
	out := make([]Pose, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of cached entries.
func (c *PoseCache) Len() int {
	return len(c.order)
}

// -----------------------------------------------------------------------------
// Layer
// -----------------------------------------------------------------------------

// Layer is one step of composition history: an optional garment (absent
// only on the root layer) plus the cache of images generated for it.
type Layer struct {
	// GarmentID references a garment in the registry. Empty on the root
	// layer only.
	GarmentID string

	// Cache holds every image generated for this layer, keyed by pose.
	Cache *PoseCache
}

// IsRoot reports whether this is the base-model layer.
func (l *Layer) IsRoot() bool {
	return l.GarmentID == ""
}
