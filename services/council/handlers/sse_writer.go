// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Implementations
// handle the SSE wire format (event: type\ndata: json\n\n) internally.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Hash: SHA-256 hash of event content for integrity
//   - PrevHash: Hash of previous event for chain verification
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders before the first write
type SSEWriter interface {
	// WriteEvent writes a single SSE event to the response. Id, CreatedAt,
	// Hash, and PrevHash are populated here; the event is flushed
	// immediately after writing.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteError writes an error event. The message must already be
	// sanitized for client display.
	WriteError(caseID, errMsg string) error

	// WriteDone writes the terminal summary event. Should only be called
	// once per stream; no events follow it.
	WriteDone(caseID, status, message string) error

	// WriteKeepAlive sends an SSE comment (": ping\n\n") to keep the TCP
	// connection alive through load balancer idle timeouts. Comments are
	// ignored by clients and do not advance the hash chain.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// The writer maintains a hash chain for integrity verification: each event's
// Hash is SHA-256 of its content and each PrevHash links to the previous
// event, providing chain of custody for milestones and timestamps.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Outputs
//
//   - SSEWriter: Ready to write SSE events.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{
		writer:   w,
		flusher:  flusher,
		prevHash: "",
	}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Populate metadata
	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash

	// Compute hash of event content (before setting Hash field)
	event.Hash = computeEventHash(event)

	// Update chain for next event
	w.prevHash = event.Hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Write SSE format: event: type\ndata: json\n\n
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// computeEventHash computes SHA-256 over all content fields for chain of
// custody. Called before the Hash field is set.
func computeEventHash(event datatypes.StreamEvent) string {
	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%d|%s|%s|%s|%d|%s|%s|%s",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.CaseID,
		event.Agent,
		event.Round,
		event.ArtifactID,
		event.ConflictID,
		event.StrategyID,
		event.Version,
		event.Status,
		event.Message,
		event.Error,
	)
	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

func (w *sseWriter) WriteError(caseID, errMsg string) error {
	return w.WriteEvent(datatypes.NewErrorEvent(caseID, errMsg))
}

func (w *sseWriter) WriteDone(caseID, status, message string) error {
	return w.WriteEvent(datatypes.NewDoneEvent(caseID, status, message))
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// SSE comment format: colon followed by text, then double newline
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
