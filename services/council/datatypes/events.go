// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// Stream event types emitted over SSE during a deliberation.
const (
	EventAgentStarted     = "agent_started"
	EventAgentCompleted   = "agent_completed"
	EventConflictDetected = "conflict_detected"
	EventStrategyReady    = "strategy_ready"
	EventError            = "error"
	EventDone             = "done"
)

// StreamEvent is one entry in a case's ordered event stream.
//
// # Description
//
// The orchestrator publishes these as deliberation milestones occur; the SSE
// writer adds Id, CreatedAt, Hash, and PrevHash at write time so every
// delivered event carries a verifiable chain of custody. Only the fields
// relevant to the event type are populated.
//
// # Fields
//
//   - Id: UUID v4 assigned at write time.
//   - Type: One of the Event* constants.
//   - CreatedAt: Unix timestamp in milliseconds, set at write time.
//   - Hash / PrevHash: SHA-256 chain maintained by the SSE writer.
//   - CaseID: The case this event belongs to.
//   - Agent / Round: Populated for agent_started and agent_completed.
//   - ArtifactID: The persisted artifact for agent_completed.
//   - ConflictID: Populated for conflict_detected.
//   - StrategyID / Version: Populated for strategy_ready.
//   - Status: Terminal case status, populated for done.
//   - Message: Human-readable progress text.
//   - Error: Sanitized failure description for error events.
type StreamEvent struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
	Hash      string `json:"hash,omitempty"`
	PrevHash  string `json:"prev_hash,omitempty"`

	CaseID     string `json:"case_id,omitempty"`
	Agent      string `json:"agent,omitempty"`
	Round      int    `json:"round,omitempty"`
	ArtifactID string `json:"artifact_id,omitempty"`
	ConflictID string `json:"conflict_id,omitempty"`
	StrategyID string `json:"strategy_id,omitempty"`
	Version    int    `json:"version,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewAgentStartedEvent signals that a persona began working on a round.
func NewAgentStartedEvent(caseID, agent string, round int) StreamEvent {
	return StreamEvent{
		Type:   EventAgentStarted,
		CaseID: caseID,
		Agent:  agent,
		Round:  round,
	}
}

// NewAgentCompletedEvent signals a persisted artifact from a persona.
func NewAgentCompletedEvent(caseID, agent string, round int, artifactID string) StreamEvent {
	return StreamEvent{
		Type:       EventAgentCompleted,
		CaseID:     caseID,
		Agent:      agent,
		Round:      round,
		ArtifactID: artifactID,
	}
}

// NewConflictDetectedEvent signals one persisted Conflict record.
func NewConflictDetectedEvent(caseID, conflictID string) StreamEvent {
	return StreamEvent{
		Type:       EventConflictDetected,
		CaseID:     caseID,
		ConflictID: conflictID,
	}
}

// NewStrategyReadyEvent signals the final synthesized strategy.
func NewStrategyReadyEvent(caseID, strategyID string, version int) StreamEvent {
	return StreamEvent{
		Type:       EventStrategyReady,
		CaseID:     caseID,
		StrategyID: strategyID,
		Version:    version,
	}
}

// NewErrorEvent signals an unrecoverable deliberation failure.
func NewErrorEvent(caseID, message string) StreamEvent {
	return StreamEvent{
		Type:   EventError,
		CaseID: caseID,
		Error:  message,
	}
}

// NewDoneEvent is the terminal summary event closing a stream.
func NewDoneEvent(caseID, status, message string) StreamEvent {
	return StreamEvent{
		Type:    EventDone,
		CaseID:  caseID,
		Status:  status,
		Message: message,
	}
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone
}
