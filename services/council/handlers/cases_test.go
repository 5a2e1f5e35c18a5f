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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/orchestrator"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// cannedClient answers conflict comparisons with a no-conflict verdict and
// everything else with plain text.
type cannedClient struct{}

func (cannedClient) Generate(_ context.Context, _, userPrompt string, _ llm.GenerationParams) (string, error) {
	if strings.Contains(userPrompt, "materially disagree") {
		return `{"conflict": false, "severity": "", "description": ""}`, nil
	}
	return "persona output", nil
}

type testEnv struct {
	router *gin.Engine
	store  *store.Memory
	orc    *orchestrator.Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	gw := llm.NewGateway(cannedClient{}, 0, llm.GenerationParams{})
	orc := orchestrator.New(st, gw, orchestrator.Options{Rounds: 1, CaseTimeout: time.Minute})

	router := gin.New()
	router.POST("/api/cases", CreateCase(orc))
	router.GET("/api/cases", ListCases(st))
	router.GET("/api/cases/:caseId", GetCase(orc))
	router.GET("/api/cases/:caseId/arguments", GetArguments(st))
	router.GET("/api/cases/:caseId/conflicts", GetConflicts(st))
	router.GET("/api/cases/:caseId/strategy", GetStrategy(st))
	router.GET("/api/cases/:caseId/stream", StreamCase(orc, st))
	router.POST("/api/cases/:caseId/analyze", StartAnalysis(orc, st))
	router.DELETE("/api/cases/:caseId", DeleteCase(st))
	return &testEnv{router: router, store: st, orc: orc}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedCase(t *testing.T, caseID, status string) *datatypes.Case {
	t.Helper()
	c := &datatypes.Case{
		CaseID:    caseID,
		Title:     "Smith v. Jones",
		Facts:     "breach of supply contract",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateCase(context.Background(), c))
	return c
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateCaseStartsAnalysis(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cases",
		`{"title": "Smith v. Jones", "facts": "breach of supply contract", "jurisdiction": "Delaware", "stakes": "$2M damages"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	caseID, _ := body["case_id"].(string)
	assert.True(t, strings.HasPrefix(caseID, "case-"))
	assert.Equal(t, "Smith v. Jones", body["title"])
	assert.Equal(t, datatypes.CaseStatusCreated, body["status"])
	assert.Contains(t, body["message"], "/stream")

	c, err := env.store.GetCase(context.Background(), caseID)
	require.NoError(t, err)
	assert.Equal(t, "breach of supply contract", c.Facts)
}

func TestCreateCaseRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cases", `{"title": "No facts here"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	cases, err := env.store.ListCases(context.Background(), 20)
	require.NoError(t, err)
	assert.Empty(t, cases, "rejected intake leaves no trace")
}

func TestCreateCaseRejectsOversizedTitle(t *testing.T) {
	env := newTestEnv(t)

	huge := strings.Repeat("x", datatypes.MaxFieldBytes+1)
	rec := env.do(t, http.MethodPost, "/api/cases",
		`{"title": "`+huge+`", "facts": "some facts"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCaseNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/cases/case-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCaseReturnsFullReadModel(t *testing.T) {
	env := newTestEnv(t)
	env.seedCase(t, "case-1", datatypes.CaseStatusComplete)
	ctx := context.Background()
	require.NoError(t, env.store.PutArgument(ctx, &datatypes.Argument{
		ArgumentID: "arg-1", CaseID: "case-1", Agent: "Harvey", Round: 1,
		Content: "lead with the indemnity clause", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, env.store.PutStrategy(ctx, &datatypes.Strategy{
		StrategyID: "strategy-1", CaseID: "case-1", Version: 1,
		Content: "final strategy", CreatedAt: time.Now().UTC(),
	}))

	rec := env.do(t, http.MethodGet, "/api/cases/case-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var details datatypes.CaseDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	require.NotNil(t, details.Case)
	assert.Equal(t, "case-1", details.Case.CaseID)
	assert.Len(t, details.Arguments, 1)
	require.NotNil(t, details.Strategy)
	assert.Equal(t, 1, details.Strategy.Version)
}

func TestGetStrategyBeforeSynthesis(t *testing.T) {
	env := newTestEnv(t)
	env.seedCase(t, "case-1", datatypes.CaseStatusCreated)

	rec := env.do(t, http.MethodGet, "/api/cases/case-1/strategy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["strategy"])
	assert.Equal(t, "Strategy not yet generated. Run analysis first.", body["message"])
}

func TestListCasesBounded(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		env.seedCase(t, datatypes.NewCaseID(), datatypes.CaseStatusCreated)
	}

	rec := env.do(t, http.MethodGet, "/api/cases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(listCasesLimit), body["count"])
}

func TestDeleteCaseCascades(t *testing.T) {
	env := newTestEnv(t)
	env.seedCase(t, "case-1", datatypes.CaseStatusComplete)
	ctx := context.Background()
	require.NoError(t, env.store.PutArgument(ctx, &datatypes.Argument{
		ArgumentID: "arg-1", CaseID: "case-1", Agent: "Harvey", Round: 1,
		Content: "x", CreatedAt: time.Now().UTC(),
	}))

	rec := env.do(t, http.MethodDelete, "/api/cases/case-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "case-1")

	_, err := env.store.GetCase(ctx, "case-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	args, err := env.store.ArgumentsForCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestDeleteCaseNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/cases/case-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAnalysisUnknownCase(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cases/case-missing/analyze", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAnalysisRerun(t *testing.T) {
	env := newTestEnv(t)
	env.seedCase(t, "case-1", datatypes.CaseStatusComplete)

	rec := env.do(t, http.MethodPost, "/api/cases/case-1/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "/api/cases/case-1/stream")
}
