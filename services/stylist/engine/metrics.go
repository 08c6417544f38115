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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylist_generation_calls_total",
		Help: "Generation calls issued to the image backend by kind and outcome",
	}, []string{"kind", "outcome"})

	redoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylist_redo_hits_total",
		Help: "Garment applications served from the redo buffer without a generation call",
	})

	poseCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylist_pose_cache_hits_total",
		Help: "Pose switches served from a layer's pose cache",
	})

	historyDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stylist_history_depth",
		Help: "Number of layers in the composition history including the redo buffer",
	})

	replaySteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylist_replay_steps_total",
		Help: "Replay pipeline steps by outcome",
	}, []string{"outcome"})
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
	kindTryOn    = "try_on"
	kindRepose   = "repose"
)
