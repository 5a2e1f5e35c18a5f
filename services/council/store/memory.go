// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

// Memory implements Store with in-process maps.
//
// # Description
//
// Used in lightweight mode (no MONGODB_URI) and throughout the test suite.
// It enforces the same uniqueness invariants as the Mongo implementation so
// duplicate-id behavior is identical in both modes. Nothing survives a
// process restart.
type Memory struct {
	mu sync.RWMutex

	cases            map[string]datatypes.Case
	arguments        map[string]datatypes.Argument
	counterarguments map[string]datatypes.Counterargument
	conflicts        map[string]datatypes.Conflict
	strategies       map[string]datatypes.Strategy
	agentRuns        map[string]datatypes.AgentRun
	reasoningSteps   map[string]datatypes.ReasoningStep
	agentMessages    map[string]datatypes.AgentMessage
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cases:            make(map[string]datatypes.Case),
		arguments:        make(map[string]datatypes.Argument),
		counterarguments: make(map[string]datatypes.Counterargument),
		conflicts:        make(map[string]datatypes.Conflict),
		strategies:       make(map[string]datatypes.Strategy),
		agentRuns:        make(map[string]datatypes.AgentRun),
		reasoningSteps:   make(map[string]datatypes.ReasoningStep),
		agentMessages:    make(map[string]datatypes.AgentMessage),
	}
}

// EnsureIndexes is a no-op; maps enforce key uniqueness natively.
func (m *Memory) EnsureIndexes(_ context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close(_ context.Context) error { return nil }

func (m *Memory) CreateCase(_ context.Context, c *datatypes.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[c.CaseID]; ok {
		return fmt.Errorf("cases %s: %w", c.CaseID, ErrDuplicate)
	}
	m.cases[c.CaseID] = *c
	return nil
}

func (m *Memory) GetCase(_ context.Context, caseID string) (*datatypes.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) ListCases(_ context.Context, limit int) ([]datatypes.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]datatypes.Case, 0, len(m.cases))
	for _, c := range m.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateCaseStatus(_ context.Context, caseID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	c.Status = status
	m.cases[caseID] = c
	return nil
}

func (m *Memory) DeleteCase(_ context.Context, caseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cases, caseID)
	for id, a := range m.arguments {
		if a.CaseID == caseID {
			delete(m.arguments, id)
		}
	}
	for id, c := range m.counterarguments {
		if c.CaseID == caseID {
			delete(m.counterarguments, id)
		}
	}
	for id, c := range m.conflicts {
		if c.CaseID == caseID {
			delete(m.conflicts, id)
		}
	}
	for id, r := range m.agentRuns {
		if r.CaseID == caseID {
			delete(m.agentRuns, id)
		}
	}
	// Same case_id filter the Mongo cascade uses.
	for id, s := range m.reasoningSteps {
		if s.CaseID == caseID {
			delete(m.reasoningSteps, id)
		}
	}
	for id, s := range m.strategies {
		if s.CaseID == caseID {
			delete(m.strategies, id)
		}
	}
	for id, msg := range m.agentMessages {
		if msg.CaseID == caseID {
			delete(m.agentMessages, id)
		}
	}
	return nil
}

func (m *Memory) PutArgument(_ context.Context, a *datatypes.Argument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.arguments[a.ArgumentID]; ok {
		return fmt.Errorf("arguments %s: %w", a.ArgumentID, ErrDuplicate)
	}
	// One contribution per (case, agent, round), mirroring the compound
	// unique index on the Mongo side.
	for _, existing := range m.arguments {
		if existing.CaseID == a.CaseID && existing.Agent == a.Agent && existing.Round == a.Round {
			return fmt.Errorf("arguments %s/%s/round %d: %w", a.CaseID, a.Agent, a.Round, ErrDuplicate)
		}
	}
	m.arguments[a.ArgumentID] = *a
	return nil
}

func (m *Memory) ArgumentsForCase(_ context.Context, caseID string) ([]datatypes.Argument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.Argument{}
	for _, a := range m.arguments {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	sortByCreated(out, func(a datatypes.Argument) time.Time { return a.CreatedAt })
	return out, nil
}

func (m *Memory) ArgumentsForRound(_ context.Context, caseID string, round int) ([]datatypes.Argument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.Argument{}
	for _, a := range m.arguments {
		if a.CaseID == caseID && a.Round == round {
			out = append(out, a)
		}
	}
	sortByCreated(out, func(a datatypes.Argument) time.Time { return a.CreatedAt })
	return out, nil
}

func (m *Memory) PutCounterargument(_ context.Context, c *datatypes.Counterargument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counterarguments[c.CounterargumentID]; ok {
		return fmt.Errorf("counterarguments %s: %w", c.CounterargumentID, ErrDuplicate)
	}
	m.counterarguments[c.CounterargumentID] = *c
	return nil
}

func (m *Memory) CounterargumentsForCase(_ context.Context, caseID string) ([]datatypes.Counterargument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.Counterargument{}
	for _, c := range m.counterarguments {
		if c.CaseID == caseID {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c datatypes.Counterargument) time.Time { return c.CreatedAt })
	return out, nil
}

func (m *Memory) CounterargumentsForRound(_ context.Context, caseID string, round int) ([]datatypes.Counterargument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.Counterargument{}
	for _, c := range m.counterarguments {
		if c.CaseID == caseID && c.Round == round {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c datatypes.Counterargument) time.Time { return c.CreatedAt })
	return out, nil
}

func (m *Memory) PutConflict(_ context.Context, c *datatypes.Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conflicts[c.ConflictID]; ok {
		return fmt.Errorf("conflicts %s: %w", c.ConflictID, ErrDuplicate)
	}
	m.conflicts[c.ConflictID] = *c
	return nil
}

func (m *Memory) ConflictsForCase(_ context.Context, caseID string) ([]datatypes.Conflict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.Conflict{}
	for _, c := range m.conflicts {
		if c.CaseID == caseID {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c datatypes.Conflict) time.Time { return c.CreatedAt })
	return out, nil
}

func (m *Memory) PutStrategy(_ context.Context, s *datatypes.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strategies[s.StrategyID]; ok {
		return fmt.Errorf("strategies %s: %w", s.StrategyID, ErrDuplicate)
	}
	m.strategies[s.StrategyID] = *s
	return nil
}

func (m *Memory) LatestStrategy(_ context.Context, caseID string) (*datatypes.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *datatypes.Strategy
	for _, s := range m.strategies {
		if s.CaseID != caseID {
			continue
		}
		if latest == nil || s.Version > latest.Version {
			copied := s
			latest = &copied
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("strategy for case %s: %w", caseID, ErrNotFound)
	}
	return latest, nil
}

func (m *Memory) MaxStrategyVersion(_ context.Context, caseID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, s := range m.strategies {
		if s.CaseID == caseID && s.Version > max {
			max = s.Version
		}
	}
	return max, nil
}

func (m *Memory) PutAgentRun(_ context.Context, r *datatypes.AgentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agentRuns[r.RunID]; ok {
		return fmt.Errorf("agent_runs %s: %w", r.RunID, ErrDuplicate)
	}
	m.agentRuns[r.RunID] = *r
	return nil
}

func (m *Memory) CloseAgentRun(_ context.Context, runID, status, artifactID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.agentRuns[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	r.Status = status
	r.EndedAt = &now
	if artifactID != "" {
		r.ArtifactID = artifactID
	}
	if errMsg != "" {
		r.Error = errMsg
	}
	m.agentRuns[runID] = r
	return nil
}

func (m *Memory) PutReasoningStep(_ context.Context, s *datatypes.ReasoningStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reasoningSteps[s.StepID]; ok {
		return fmt.Errorf("reasoning_steps %s: %w", s.StepID, ErrDuplicate)
	}
	m.reasoningSteps[s.StepID] = *s
	return nil
}

func (m *Memory) PutAgentMessage(_ context.Context, msg *datatypes.AgentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agentMessages[msg.MessageID]; ok {
		return fmt.Errorf("agent_messages %s: %w", msg.MessageID, ErrDuplicate)
	}
	m.agentMessages[msg.MessageID] = *msg
	return nil
}

// AgentRunsForCase returns audit records for a case, oldest first.
// Not part of the Store interface; used by tests to assert run bookkeeping.
func (m *Memory) AgentRunsForCase(caseID string) []datatypes.AgentRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.AgentRun{}
	for _, r := range m.agentRuns {
		if r.CaseID == caseID {
			out = append(out, r)
		}
	}
	sortByCreated(out, func(r datatypes.AgentRun) time.Time { return r.StartedAt })
	return out
}

// ReasoningStepsForCase returns trace entries for a case, oldest first.
func (m *Memory) ReasoningStepsForCase(caseID string) []datatypes.ReasoningStep {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.ReasoningStep{}
	for _, s := range m.reasoningSteps {
		if s.CaseID == caseID {
			out = append(out, s)
		}
	}
	sortByCreated(out, func(s datatypes.ReasoningStep) time.Time { return s.CreatedAt })
	return out
}

// MessagesForCase returns hand-off records for a case, oldest first.
func (m *Memory) MessagesForCase(caseID string) []datatypes.AgentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []datatypes.AgentMessage{}
	for _, msg := range m.agentMessages {
		if msg.CaseID == caseID {
			out = append(out, msg)
		}
	}
	sortByCreated(out, func(msg datatypes.AgentMessage) time.Time { return msg.CreatedAt })
	return out
}

func sortByCreated[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return at(items[i]).Before(at(items[j]))
	})
}

var _ Store = (*Memory)(nil)
