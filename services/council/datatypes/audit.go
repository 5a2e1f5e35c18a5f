// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Coordination bookkeeping for multi-agent runs: execution records,
// step-by-step reasoning traces, and inter-agent hand-offs.
package datatypes

import "time"

// Agent run states.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// AgentRun tracks one persona invocation for auditability.
//
// # Description
//
// A run is created in running status before the generation call and closed
// to succeeded (with the produced artifact id) or failed (with the captured
// error) regardless of outcome. Timestamps bracket the whole invocation
// including retries.
type AgentRun struct {
	RunID      string     `json:"run_id" bson:"run_id"`
	CaseID     string     `json:"case_id" bson:"case_id"`
	Agent      string     `json:"agent" bson:"agent"`
	Status     string     `json:"status" bson:"status"`
	ArtifactID string     `json:"artifact_id,omitempty" bson:"artifact_id,omitempty"`
	Error      string     `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at" bson:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

// NewAgentRun creates a run record in running status.
func NewAgentRun(caseID, agent string) *AgentRun {
	return &AgentRun{
		RunID:     NewRunID(),
		CaseID:    caseID,
		Agent:     agent,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// ReasoningStep is one entry in a run's thinking trace. CaseID is carried
// alongside RunID so case deletion cascades over reasoning steps with the
// same case_id filter as every other dependent collection.
type ReasoningStep struct {
	StepID      string    `json:"step_id" bson:"step_id"`
	RunID       string    `json:"run_id" bson:"run_id"`
	CaseID      string    `json:"case_id" bson:"case_id"`
	Seq         int       `json:"seq" bson:"seq"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// AgentMessage records one persona's output being handed to another as input.
// Sender and recipient are role ids, not display names.
type AgentMessage struct {
	MessageID string    `json:"message_id" bson:"message_id"`
	CaseID    string    `json:"case_id" bson:"case_id"`
	Sender    string    `json:"sender" bson:"sender"`
	Recipient string    `json:"recipient" bson:"recipient"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
