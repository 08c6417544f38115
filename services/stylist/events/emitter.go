// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscription pairs a handler with an optional type filter.
type subscription struct {
	handler Handler
	types   []Type
}

// Emitter broadcasts events to subscribers and keeps a bounded replay
// buffer so late subscribers can catch up on recent history.
//
// Thread Safety: Emitter is safe for concurrent use.
type Emitter struct {
	mu            sync.RWMutex
	subscriptions map[string]subscription
	buffer        []Event
	bufferSize    int
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize sets the event buffer size (default 64).
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// NewEmitter creates a new event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscriptions: make(map[string]subscription),
		bufferSize:    64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers a handler for the given event types (all types when
// none are given) and returns the subscription id.
//
// The handler is invoked synchronously on the emitting goroutine and must
// not block.
func (e *Emitter) Subscribe(h Handler, types ...Type) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.subscriptions[id] = subscription{handler: h, types: types}
	e.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	delete(e.subscriptions, id)
	e.mu.Unlock()
}

// Emit broadcasts an event of the given type to matching subscribers.
func (e *Emitter) Emit(t Type, fields map[string]string) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}

	e.mu.Lock()
	e.buffer = append(e.buffer, ev)
	if len(e.buffer) > e.bufferSize {
		e.buffer = e.buffer[len(e.buffer)-e.bufferSize:]
	}
	subs := make([]subscription, 0, len(e.subscriptions))
	for _, s := range e.subscriptions {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		if !matches(s, ev.Type) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panicked", "type", ev.Type, "panic", r)
				}
			}()
			s.handler(ev)
		}()
	}
}

// Recent returns a copy of the buffered events, oldest first.
func (e *Emitter) Recent() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}

func matches(s subscription, t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, want := range s.types {
		if want == t {
			return true
		}
	}
	return false
}
