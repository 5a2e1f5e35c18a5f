// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// Agent is one role-bound persona of the council.
//
// # Description
//
// Every generation goes through the retry gateway; an Agent never talks to a
// backend directly. Each invocation is wrapped in an AgentRun audit record
// with a step-by-step reasoning trace, so a failed deliberation can be
// reconstructed from the store alone.
//
// # Thread Safety
//
// Agents are stateless after construction and safe for concurrent use.
type Agent struct {
	Role Role
	Name string

	gateway *llm.Gateway
	store   store.Store
}

// New constructs a persona for the given role.
//
// # Limitations
//
//   - Panics on nil gateway or store; these are wiring bugs, not runtime
//     conditions.
func New(role Role, gateway *llm.Gateway, st store.Store) *Agent {
	if gateway == nil {
		panic("agents.New: gateway must not be nil")
	}
	if st == nil {
		panic("agents.New: store must not be nil")
	}
	return &Agent{
		Role:    role,
		Name:    role.Name(),
		gateway: gateway,
		store:   st,
	}
}

// Think runs one generation wrapped in an AgentRun record.
//
// # Description
//
// The run is created in running status before the generation call. On
// success the persist callback stores the produced artifact and returns its
// id, which closes the run as succeeded. Any failure, generation or
// persistence, closes the run as failed with the captured error. Audit
// bookkeeping failures are logged but do not fail the invocation; the
// artifact is the payload, the trace is advisory.
//
// # Inputs
//
//   - ctx: Deliberation context; cancellation aborts retries in the gateway.
//   - caseID: Case this invocation belongs to.
//   - userPrompt: Assembled prompt carrying case facts and prior artifacts.
//   - persist: Persists the artifact built from the model output and returns
//     its id. Must not be nil.
//
// # Outputs
//
//   - string: The persisted artifact id.
//   - error: Non-nil when generation or persistence failed.
func (a *Agent) Think(ctx context.Context, caseID, userPrompt string,
	persist func(output string) (string, error)) (string, error) {

	run := datatypes.NewAgentRun(caseID, a.Name)
	if err := a.store.PutAgentRun(ctx, run); err != nil {
		slog.Warn("Could not record agent run", "agent", a.Name, "case_id", caseID, "error", err)
	}
	seq := 0
	step := func(description string) {
		seq++
		err := a.store.PutReasoningStep(ctx, &datatypes.ReasoningStep{
			StepID:      datatypes.NewStepID(),
			RunID:       run.RunID,
			CaseID:      caseID,
			Seq:         seq,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("Could not record reasoning step", "run_id", run.RunID, "error", err)
		}
	}

	step("prompt assembled")
	slog.Info("Agent invoking model", "agent", a.Name, "case_id", caseID)

	output, err := a.gateway.Invoke(ctx, a.Role.SystemPrompt(), userPrompt)
	if err != nil {
		a.closeRun(ctx, run.RunID, datatypes.RunStatusFailed, "", err.Error())
		return "", err
	}
	step("response received")

	artifactID, err := persist(output)
	if err != nil {
		a.closeRun(ctx, run.RunID, datatypes.RunStatusFailed, "", err.Error())
		return "", err
	}
	step("artifact persisted")

	a.closeRun(ctx, run.RunID, datatypes.RunStatusSucceeded, artifactID, "")
	slog.Info("Agent completed", "agent", a.Name, "case_id", caseID, "artifact_id", artifactID)
	return artifactID, nil
}

// HandOff records one persona's output being passed to another as input.
// Sender and recipient are role ids.
func (a *Agent) HandOff(ctx context.Context, caseID string, recipient Role, content string) {
	err := a.store.PutAgentMessage(ctx, &datatypes.AgentMessage{
		MessageID: datatypes.NewMessageID(),
		CaseID:    caseID,
		Sender:    string(a.Role),
		Recipient: string(recipient),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Could not record agent message",
			"case_id", caseID, "sender", a.Role, "recipient", recipient, "error", err)
	}
}

func (a *Agent) closeRun(ctx context.Context, runID, status, artifactID, errMsg string) {
	if err := a.store.CloseAgentRun(ctx, runID, status, artifactID, errMsg); err != nil {
		slog.Warn("Could not close agent run", "run_id", runID, "error", err)
	}
}
