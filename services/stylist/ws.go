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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianStyle/services/stylist/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The presentation layer runs on a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second

	// wsEventBacklog bounds the per-client queue. A client that cannot
	// keep up drops events rather than stalling the engine.
	wsEventBacklog = 32
)

// HandleEvents handles GET /v1/stylist/events.
//
// Description:
//
//	Upgrades to a websocket and streams composition events as JSON.
//	The recent-event buffer is flushed first so a client connecting
//	mid-replay still sees the steps already applied.
func (h *Handlers) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan events.Event, wsEventBacklog)
	subID := h.svc.emitter.Subscribe(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			// Slow client; drop rather than block the emitter.
		}
	})
	defer h.svc.emitter.Unsubscribe(subID)

	for _, ev := range h.svc.emitter.Recent() {
		if err := writeEvent(conn, ev); err != nil {
			return
		}
	}

	// Reader goroutine: drains control frames and signals close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-ch:
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}
