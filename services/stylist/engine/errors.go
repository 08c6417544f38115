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

import "errors"

var (
	// ErrBusy is returned by mutating operations while a generation call
	// is in flight. State is never touched when ErrBusy is returned.
	ErrBusy = errors.New("a generation call is already in flight")

	// ErrNotInitialized is returned when an operation needs a current
	// layer but Reset has never been called.
	ErrNotInitialized = errors.New("engine has no base image")

	// ErrGenerationFailed wraps any failure reported by the image
	// generation backend. The engine never retries.
	ErrGenerationFailed = errors.New("image generation failed")

	// ErrGarmentNotFound is returned when a garment id cannot be
	// resolved through the registry.
	ErrGarmentNotFound = errors.New("garment not found")

	// ErrInvalidImage is returned when supplied bytes are not image
	// content.
	ErrInvalidImage = errors.New("not an image")

	// ErrUnknownPose is returned when a pose id is outside the fixed
	// enumeration.
	ErrUnknownPose = errors.New("unknown pose")
)
