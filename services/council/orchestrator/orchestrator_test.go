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
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// councilMock answers persona prompts with canned text and conflict
// comparisons with a scripted verdict.
type councilMock struct {
	mu             sync.Mutex
	verdict        string
	synthesisErr   error
	synthesisCalls int
	totalCalls     int
}

func (m *councilMock) Generate(_ context.Context, systemPrompt, userPrompt string, _ llm.GenerationParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCalls++

	if strings.Contains(userPrompt, "materially disagree") {
		return m.verdict, nil
	}
	if strings.Contains(systemPrompt, "Jessica") {
		m.synthesisCalls++
		if m.synthesisErr != nil {
			return "", m.synthesisErr
		}
		return "final synthesized strategy", nil
	}
	return "persona output", nil
}

func noConflictMock() *councilMock {
	return &councilMock{verdict: `{"conflict": false, "severity": "", "description": ""}`}
}

func newTestOrchestrator(t *testing.T, st *store.Memory, client llm.Client, rounds, retryBudget int) *Orchestrator {
	t.Helper()
	gw := llm.NewGateway(client, retryBudget, llm.GenerationParams{})
	return New(st, gw, Options{Rounds: rounds, CaseTimeout: time.Minute})
}

func createCase(t *testing.T, o *Orchestrator, caseID string) *datatypes.Case {
	t.Helper()
	c := &datatypes.Case{
		CaseID:    caseID,
		Title:     "Smith v. Jones",
		Facts:     "breach of supply contract",
		Status:    datatypes.CaseStatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, o.store.CreateCase(context.Background(), c))
	return c
}

// runToCompletion starts the analysis and drains the event channel until the
// run closes it, returning every event in delivery order.
func runToCompletion(t *testing.T, o *Orchestrator, caseID string) []datatypes.StreamEvent {
	t.Helper()
	// Subscribe before the run starts so no milestone can slip past the
	// drain loop; Register is idempotent and keeps the backlog.
	o.Bus().Register(caseID)
	ch, ok := o.Bus().Subscribe(caseID)
	require.True(t, ok)
	require.NoError(t, o.StartAnalysis(caseID))

	events := []datatypes.StreamEvent{}
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("deliberation did not finish in time")
		}
	}
}

func eventsOfType(events []datatypes.StreamEvent, eventType string) []datatypes.StreamEvent {
	out := []datatypes.StreamEvent{}
	for _, ev := range events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestTwoRoundDeliberation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	o := newTestOrchestrator(t, st, noConflictMock(), 2, 0)
	createCase(t, o, "C1")

	events := runToCompletion(t, o, "C1")

	args, err := st.ArgumentsForCase(ctx, "C1")
	require.NoError(t, err)
	strategist := 0
	researcher := 0
	for _, a := range args {
		switch a.Agent {
		case "Harvey":
			strategist++
		case "Louis":
			researcher++
		}
	}
	assert.Equal(t, 2, strategist, "one strategist argument per round")
	assert.Equal(t, 1, researcher, "researcher contributes in round 1 only")

	counters, err := st.CounterargumentsForCase(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, counters, 2)
	for _, ca := range counters {
		assert.Equal(t, "Tanner", ca.Agent)
		assert.NotEmpty(t, ca.TargetArgumentID)
	}

	strategy, err := st.LatestStrategy(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, strategy.Version)
	assert.Equal(t, "final synthesized strategy", strategy.Content)

	c, err := st.GetCase(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.CaseStatusComplete, c.Status)

	ready := eventsOfType(events, datatypes.EventStrategyReady)
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].Version)
	assert.Equal(t, strategy.StrategyID, ready[0].StrategyID)

	done := eventsOfType(events, datatypes.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, datatypes.CaseStatusComplete, done[0].Status)
	assert.Equal(t, done[0], events[len(events)-1], "done is the terminal event")
	assert.Empty(t, eventsOfType(events, datatypes.EventError))
}

func TestSingleRoundShape(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	o := newTestOrchestrator(t, st, noConflictMock(), 1, 0)
	createCase(t, o, "case-r1")

	runToCompletion(t, o, "case-r1")

	args, err := st.ArgumentsForCase(ctx, "case-r1")
	require.NoError(t, err)
	assert.Len(t, args, 2, "strategist plus researcher, exactly one cycle")

	counters, err := st.CounterargumentsForCase(ctx, "case-r1")
	require.NoError(t, err)
	assert.Len(t, counters, 1)

	strategy, err := st.LatestStrategy(ctx, "case-r1")
	require.NoError(t, err)
	assert.Equal(t, 1, strategy.Version)
}

func TestCounterargumentsNeverExceedArgumentsPerRound(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	o := newTestOrchestrator(t, st, noConflictMock(), 3, 0)
	createCase(t, o, "case-rounds")

	runToCompletion(t, o, "case-rounds")

	for round := 1; round <= 3; round++ {
		args, err := st.ArgumentsForRound(ctx, "case-rounds", round)
		require.NoError(t, err)
		counters, err := st.CounterargumentsForRound(ctx, "case-rounds", round)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(counters), len(args), "round %d", round)
	}
}

func TestConflictsDetectedAndStreamed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	mock := &councilMock{
		verdict: `{"conflict": true, "severity": "high", "description": "fundamental disagreement"}`,
	}
	o := newTestOrchestrator(t, st, mock, 1, 0)
	createCase(t, o, "case-conf")

	events := runToCompletion(t, o, "case-conf")

	conflicts, err := st.ConflictsForCase(ctx, "case-conf")
	require.NoError(t, err)
	// Round 1: one counterargument compared against two arguments.
	assert.Len(t, conflicts, 2)
	for _, cf := range conflicts {
		assert.Equal(t, datatypes.SeverityHigh, cf.Severity)
	}

	detected := eventsOfType(events, datatypes.EventConflictDetected)
	assert.Len(t, detected, len(conflicts))
}

func TestRerunAppendsNextStrategyVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	o := newTestOrchestrator(t, st, noConflictMock(), 1, 0)
	createCase(t, o, "case-rerun")

	runToCompletion(t, o, "case-rerun")
	runToCompletion(t, o, "case-rerun")

	latest, err := st.LatestStrategy(ctx, "case-rerun")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version, "versions are strictly increasing and gapless")

	c, err := st.GetCase(ctx, "case-rerun")
	require.NoError(t, err)
	assert.Equal(t, datatypes.CaseStatusComplete, c.Status)

	// The second run continues round numbering instead of writing a second
	// round-1 contribution for the same agent.
	args, err := st.ArgumentsForCase(ctx, "case-rerun")
	require.NoError(t, err)
	harveyRounds := []int{}
	seen := map[string]bool{}
	for _, a := range args {
		key := fmt.Sprintf("%s/%d", a.Agent, a.Round)
		assert.False(t, seen[key], "duplicate contribution %s", key)
		seen[key] = true
		if a.Agent == "Harvey" {
			harveyRounds = append(harveyRounds, a.Round)
		}
	}
	sort.Ints(harveyRounds)
	assert.Equal(t, []int{1, 2}, harveyRounds)
}

func TestSynthesizerFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	mock := noConflictMock()
	mock.synthesisErr = errors.New("provider down")
	o := newTestOrchestrator(t, st, mock, 1, 1)
	createCase(t, o, "case-fail")

	events := runToCompletion(t, o, "case-fail")

	// Retry budget of 1 means exactly two synthesis attempts.
	assert.Equal(t, 2, mock.synthesisCalls)

	c, err := st.GetCase(ctx, "case-fail")
	require.NoError(t, err)
	assert.Equal(t, datatypes.CaseStatusFailed, c.Status)

	_, err = st.LatestStrategy(ctx, "case-fail")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Prior-round artifacts are preserved, not rolled back.
	args, err := st.ArgumentsForCase(ctx, "case-fail")
	require.NoError(t, err)
	assert.NotEmpty(t, args)

	require.NotEmpty(t, eventsOfType(events, datatypes.EventError))
	done := eventsOfType(events, datatypes.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, datatypes.CaseStatusFailed, done[0].Status)
}

func TestStartAnalysisRejectsConcurrentRun(t *testing.T) {
	st := store.NewMemory()
	release := make(chan struct{})
	blocking := &blockingClient{release: release, firstCall: make(chan struct{})}
	o := newTestOrchestrator(t, st, blocking, 1, 0)
	createCase(t, o, "case-busy")

	require.NoError(t, o.StartAnalysis("case-busy"))
	ch, ok := o.Bus().Subscribe("case-busy")
	require.True(t, ok)
	blocking.waitForFirstCall(t)

	err := o.StartAnalysis("case-busy")
	require.ErrorIs(t, err, ErrAnalysisRunning)

	close(release)
	for range ch {
	}
}

func TestUnknownCasePublishesErrorAndCloses(t *testing.T) {
	st := store.NewMemory()
	o := newTestOrchestrator(t, st, noConflictMock(), 1, 0)

	events := runToCompletion(t, o, "case-nonexistent")

	require.NotEmpty(t, eventsOfType(events, datatypes.EventError))
	done := eventsOfType(events, datatypes.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, datatypes.CaseStatusFailed, done[0].Status)
}

// blockingClient parks the first generation until released, then answers
// everything with a no-conflict verdict or plain text.
type blockingClient struct {
	release   chan struct{}
	firstCall chan struct{}
	once      sync.Once
}

func (b *blockingClient) Generate(ctx context.Context, _, userPrompt string, _ llm.GenerationParams) (string, error) {
	b.once.Do(func() {
		close(b.firstCall)
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	})
	if strings.Contains(userPrompt, "materially disagree") {
		return `{"conflict": false, "severity": "", "description": ""}`, nil
	}
	return "output", nil
}

func (b *blockingClient) waitForFirstCall(t *testing.T) {
	t.Helper()
	select {
	case <-b.firstCall:
	case <-time.After(5 * time.Second):
		t.Fatal("first generation call never arrived")
	}
}
