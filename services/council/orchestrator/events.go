// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"log/slog"
	"sync"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/observability"
)

// eventBufferSize is the per-case backlog. A client connecting mid-run sees
// up to this many buffered milestones; a full buffer drops new events rather
// than blocking the deliberation.
const eventBufferSize = 64

// Bus routes deliberation milestones to at most one stream listener per case.
//
// # Description
//
// The orchestrator registers a case when its run starts and publishes events
// as transitions occur. Publishing never blocks: a missing or slow listener
// must not stall the deliberation, the store is the durable record and the
// stream is only a projection of it. Channels are single-consumer; opening a
// second stream for the same live case steals events from the first.
//
// # Thread Safety
//
// Safe for concurrent use across cases and between one publisher and one
// subscriber per case.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan datatypes.StreamEvent
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan datatypes.StreamEvent)}
}

// Register creates the event channel for a case run. Registering a case that
// already has a channel is a no-op, the existing backlog is kept.
func (b *Bus) Register(caseID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[caseID]; !ok {
		b.subs[caseID] = make(chan datatypes.StreamEvent, eventBufferSize)
	}
}

// Subscribe returns the case's event channel. The second return is false
// when the case has no live run, the caller should then answer from the
// durable record instead.
func (b *Bus) Subscribe(caseID string) (<-chan datatypes.StreamEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[caseID]
	return ch, ok
}

// Publish delivers an event to the case's channel without blocking.
// Events for unregistered cases or full buffers are dropped with a log line;
// the durable artifacts in the store are unaffected.
func (b *Bus) Publish(caseID string, ev datatypes.StreamEvent) {
	b.mu.Lock()
	ch, ok := b.subs[caseID]
	b.mu.Unlock()
	if !ok {
		slog.Debug("Dropping event for unregistered case", "case_id", caseID, "type", ev.Type)
		return
	}
	select {
	case ch <- ev:
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.RecordEventPublished(ev.Type)
		}
	default:
		slog.Warn("Event buffer full, dropping event", "case_id", caseID, "type", ev.Type)
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.RecordEventDropped(ev.Type)
		}
	}
}

// Close ends the case's event sequence. The channel is closed so a listener
// draining the backlog still receives every buffered event, then sees EOF.
func (b *Bus) Close(caseID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[caseID]; ok {
		close(ch)
		delete(b.subs, caseID)
	}
}
