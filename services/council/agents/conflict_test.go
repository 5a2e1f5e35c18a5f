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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// scriptedClient returns canned responses in order, then repeats the last.
type scriptedClient struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedClient) Generate(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func TestParseVerdictPlainJSON(t *testing.T) {
	v, err := parseVerdict(`{"conflict": true, "severity": "high", "description": "direct contradiction"}`)
	require.NoError(t, err)
	assert.True(t, v.Conflict)
	assert.Equal(t, "high", v.Severity)
	assert.Equal(t, "direct contradiction", v.Description)
}

func TestParseVerdictMarkdownFenced(t *testing.T) {
	raw := "Here is my analysis:\n```json\n{\"conflict\": true, \"severity\": \"low\", \"description\": \"minor\"}\n```\nHope that helps."
	v, err := parseVerdict(raw)
	require.NoError(t, err)
	assert.True(t, v.Conflict)
	assert.Equal(t, "low", v.Severity)
}

func TestParseVerdictEmbeddedInProse(t *testing.T) {
	raw := `After comparing both positions I conclude {"conflict": false, "severity": "", "description": ""} as stated.`
	v, err := parseVerdict(raw)
	require.NoError(t, err)
	assert.False(t, v.Conflict)
}

func TestParseVerdictNoJSON(t *testing.T) {
	_, err := parseVerdict("the positions are in total agreement, nothing to report")
	require.Error(t, err)
}

func detectFixtures() (*datatypes.Case, []datatypes.Argument, []datatypes.Counterargument) {
	c := &datatypes.Case{CaseID: "case-1", Title: "A v. B", Facts: "facts",
		Status: datatypes.CaseStatusAnalyzing, CreatedAt: time.Now().UTC()}
	arg := datatypes.Argument{ArgumentID: "arg-1", CaseID: "case-1", Agent: "Harvey",
		Content: "sue immediately", Round: 1, CreatedAt: time.Now().UTC()}
	counter := datatypes.Counterargument{CounterargumentID: "counter-1", CaseID: "case-1",
		TargetArgumentID: "arg-1", Agent: "Tanner", Content: "suit is premature",
		Round: 1, CreatedAt: time.Now().UTC()}
	return c, []datatypes.Argument{arg}, []datatypes.Counterargument{counter}
}

func TestDetectPersistsAndEmitsConflict(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	client := &scriptedClient{responses: []string{
		`{"conflict": true, "severity": "HIGH", "description": "timing dispute"}`,
	}}
	d := NewDetector(llm.NewGateway(client, 0, llm.GenerationParams{}), st)

	c, args, counters := detectFixtures()
	emitted := []datatypes.Conflict{}
	conflicts, err := d.Detect(ctx, c, 1, args, counters, func(cf datatypes.Conflict) {
		emitted = append(emitted, cf)
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Len(t, emitted, 1)

	// Severity is normalized onto the closed set.
	assert.Equal(t, datatypes.SeverityHigh, conflicts[0].Severity)
	assert.Equal(t, "arg-1", conflicts[0].ArgumentID)
	assert.Equal(t, "counter-1", conflicts[0].CounterargumentID)
	assert.Equal(t, 1, conflicts[0].Round)

	stored, err := st.ConflictsForCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestDetectZeroConflictsIsValid(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	client := &scriptedClient{responses: []string{
		`{"conflict": false, "severity": "", "description": ""}`,
	}}
	d := NewDetector(llm.NewGateway(client, 0, llm.GenerationParams{}), st)

	c, args, counters := detectFixtures()
	conflicts, err := d.Detect(ctx, c, 1, args, counters, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	stored, err := st.ConflictsForCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDetectUnparseableVerdictSkipsPair(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	client := &scriptedClient{responses: []string{"I refuse to answer in JSON"}}
	d := NewDetector(llm.NewGateway(client, 0, llm.GenerationParams{}), st)

	c, args, counters := detectFixtures()
	conflicts, err := d.Detect(ctx, c, 1, args, counters, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectGenerationFailurePropagates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	client := &scriptedClient{err: errors.New("provider down")}
	d := NewDetector(llm.NewGateway(client, 0, llm.GenerationParams{}), st)

	c, args, counters := detectFixtures()
	_, err := d.Detect(ctx, c, 1, args, counters, nil)
	require.Error(t, err)

	var genErr *llm.GenerationError
	assert.True(t, errors.As(err, &genErr))
}
