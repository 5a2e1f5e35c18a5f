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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

func testCase(id string) *datatypes.Case {
	return &datatypes.Case{
		CaseID:    id,
		Title:     "Smith v. Jones",
		Facts:     "contract breach",
		Status:    datatypes.CaseStatusCreated,
		CreatedAt: time.Now().UTC(),
	}
}

func TestDuplicateCaseRejected(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	first := testCase("case-dup")
	first.Title = "original"
	require.NoError(t, st.CreateCase(ctx, first))

	second := testCase("case-dup")
	second.Title = "impostor"
	err := st.CreateCase(ctx, second)
	require.ErrorIs(t, err, ErrDuplicate)

	// The first write is unaffected.
	got, err := st.GetCase(ctx, "case-dup")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)
}

func TestGetCaseNotFound(t *testing.T) {
	st := NewMemory()
	_, err := st.GetCase(context.Background(), "case-missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListCasesMostRecentFirstBounded(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		c := testCase(datatypes.NewCaseID())
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.CreateCase(ctx, c))
	}

	cases, err := st.ListCases(ctx, 3)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.True(t, cases[0].CreatedAt.After(cases[1].CreatedAt))
	assert.True(t, cases[1].CreatedAt.After(cases[2].CreatedAt))
}

func TestUpdateCaseStatus(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	require.NoError(t, st.CreateCase(ctx, testCase("case-1")))

	require.NoError(t, st.UpdateCaseStatus(ctx, "case-1", datatypes.CaseStatusAnalyzing))
	got, err := st.GetCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.CaseStatusAnalyzing, got.Status)

	err = st.UpdateCaseStatus(ctx, "case-missing", datatypes.CaseStatusComplete)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStrategyVersioning(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	require.NoError(t, st.CreateCase(ctx, testCase("case-1")))

	v, err := st.MaxStrategyVersion(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, err = st.LatestStrategy(ctx, "case-1")
	require.ErrorIs(t, err, ErrNotFound)

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.PutStrategy(ctx, &datatypes.Strategy{
			StrategyID: datatypes.NewStrategyID(),
			CaseID:     "case-1",
			Version:    i,
			Content:    "v-content",
			CreatedAt:  time.Now().UTC(),
		}))
	}

	latest, err := st.LatestStrategy(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	v, err = st.MaxStrategyVersion(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestDeleteCaseCascadesAndIsolates(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	seed := func(caseID string) {
		require.NoError(t, st.CreateCase(ctx, testCase(caseID)))
		arg := &datatypes.Argument{
			ArgumentID: datatypes.NewArgumentID(), CaseID: caseID,
			Agent: "harvey", Content: "a", Round: 1, CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, st.PutArgument(ctx, arg))
		require.NoError(t, st.PutCounterargument(ctx, &datatypes.Counterargument{
			CounterargumentID: datatypes.NewCounterargumentID(), CaseID: caseID,
			TargetArgumentID: arg.ArgumentID, Agent: "tanner", Content: "c",
			Round: 1, CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, st.PutConflict(ctx, &datatypes.Conflict{
			ConflictID: datatypes.NewConflictID(), CaseID: caseID,
			ArgumentID: arg.ArgumentID, Severity: datatypes.SeverityMedium,
			CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, st.PutStrategy(ctx, &datatypes.Strategy{
			StrategyID: datatypes.NewStrategyID(), CaseID: caseID,
			Version: 1, CreatedAt: time.Now().UTC(),
		}))
		run := datatypes.NewAgentRun(caseID, "harvey")
		require.NoError(t, st.PutAgentRun(ctx, run))
		require.NoError(t, st.PutReasoningStep(ctx, &datatypes.ReasoningStep{
			StepID: datatypes.NewStepID(), RunID: run.RunID, CaseID: caseID,
			Seq: 1, Description: "thinking", CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, st.PutAgentMessage(ctx, &datatypes.AgentMessage{
			MessageID: datatypes.NewMessageID(), CaseID: caseID,
			Sender: "harvey", Recipient: "tanner", Content: "handoff",
			CreatedAt: time.Now().UTC(),
		}))
	}
	seed("case-del")
	seed("case-keep")

	require.NoError(t, st.DeleteCase(ctx, "case-del"))

	_, err := st.GetCase(ctx, "case-del")
	require.ErrorIs(t, err, ErrNotFound)

	args, err := st.ArgumentsForCase(ctx, "case-del")
	require.NoError(t, err)
	assert.Empty(t, args)
	counters, err := st.CounterargumentsForCase(ctx, "case-del")
	require.NoError(t, err)
	assert.Empty(t, counters)
	conflicts, err := st.ConflictsForCase(ctx, "case-del")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	_, err = st.LatestStrategy(ctx, "case-del")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, st.AgentRunsForCase("case-del"))
	assert.Empty(t, st.ReasoningStepsForCase("case-del"))
	assert.Empty(t, st.MessagesForCase("case-del"))

	// The other case survives intact.
	_, err = st.GetCase(ctx, "case-keep")
	require.NoError(t, err)
	args, err = st.ArgumentsForCase(ctx, "case-keep")
	require.NoError(t, err)
	assert.Len(t, args, 1)
	assert.Len(t, st.AgentRunsForCase("case-keep"), 1)
	assert.Len(t, st.ReasoningStepsForCase("case-keep"), 1)
}

// The Mongo cascade deletes reasoning steps with the same case_id filter as
// every other collection, so the persisted document must carry that key.
func TestReasoningStepDocumentCarriesCaseID(t *testing.T) {
	step := &datatypes.ReasoningStep{
		StepID:      datatypes.NewStepID(),
		RunID:       datatypes.NewRunID(),
		CaseID:      "case-1",
		Seq:         1,
		Description: "prompt assembled",
		CreatedAt:   time.Now().UTC(),
	}

	raw, err := bson.Marshal(step)
	require.NoError(t, err)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "case-1", doc["case_id"])
}

func TestDuplicateRoundContributionRejected(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	require.NoError(t, st.CreateCase(ctx, testCase("case-1")))

	first := &datatypes.Argument{
		ArgumentID: datatypes.NewArgumentID(), CaseID: "case-1",
		Agent: "Harvey", Content: "original", Round: 1, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.PutArgument(ctx, first))

	// A fresh argument id does not excuse a second contribution by the same
	// agent in the same round.
	second := &datatypes.Argument{
		ArgumentID: datatypes.NewArgumentID(), CaseID: "case-1",
		Agent: "Harvey", Content: "impostor", Round: 1, CreatedAt: time.Now().UTC(),
	}
	err := st.PutArgument(ctx, second)
	require.ErrorIs(t, err, ErrDuplicate)

	// A different agent or a different round is fine.
	require.NoError(t, st.PutArgument(ctx, &datatypes.Argument{
		ArgumentID: datatypes.NewArgumentID(), CaseID: "case-1",
		Agent: "Louis", Round: 1, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.PutArgument(ctx, &datatypes.Argument{
		ArgumentID: datatypes.NewArgumentID(), CaseID: "case-1",
		Agent: "Harvey", Round: 2, CreatedAt: time.Now().UTC(),
	}))

	args, err := st.ArgumentsForCase(ctx, "case-1")
	require.NoError(t, err)
	require.Len(t, args, 3)
	for _, a := range args {
		assert.NotEqual(t, "impostor", a.Content)
	}
}

func TestRoundScopedReads(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	require.NoError(t, st.CreateCase(ctx, testCase("case-1")))

	for round := 1; round <= 2; round++ {
		require.NoError(t, st.PutArgument(ctx, &datatypes.Argument{
			ArgumentID: datatypes.NewArgumentID(), CaseID: "case-1",
			Agent: "harvey", Round: round, CreatedAt: time.Now().UTC(),
		}))
	}

	r1, err := st.ArgumentsForRound(ctx, "case-1", 1)
	require.NoError(t, err)
	assert.Len(t, r1, 1)
	assert.Equal(t, 1, r1[0].Round)

	all, err := st.ArgumentsForCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCloseAgentRun(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	run := datatypes.NewAgentRun("case-1", "jessica")
	require.NoError(t, st.PutAgentRun(ctx, run))

	require.NoError(t, st.CloseAgentRun(ctx, run.RunID,
		datatypes.RunStatusSucceeded, "strategy-1", ""))

	runs := st.AgentRunsForCase("case-1")
	require.Len(t, runs, 1)
	assert.Equal(t, datatypes.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, "strategy-1", runs[0].ArtifactID)
	require.NotNil(t, runs[0].EndedAt)

	err := st.CloseAgentRun(ctx, "run-missing", datatypes.RunStatusFailed, "", "boom")
	require.ErrorIs(t, err, ErrNotFound)
}
