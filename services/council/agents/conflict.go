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
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// Detector compares arguments against counterarguments and records material
// disagreements.
//
// # Description
//
// Detection is a generation-backed comparison, not a structural diff: for
// each (argument, counterargument) pair of a round the detector asks the
// model whether the two texts materially disagree and expects a JSON verdict
// {"conflict", "severity", "description"}. The adversary's system prompt is
// reused as context since the counterargument is its author's work. A round
// producing zero conflicts is valid.
type Detector struct {
	gateway *llm.Gateway
	store   store.Store
}

// NewDetector builds a Detector. Panics on nil dependencies.
func NewDetector(gateway *llm.Gateway, st store.Store) *Detector {
	if gateway == nil {
		panic("agents.NewDetector: gateway must not be nil")
	}
	if st == nil {
		panic("agents.NewDetector: store must not be nil")
	}
	return &Detector{gateway: gateway, store: st}
}

// verdict is the expected JSON shape of one comparison response.
type verdict struct {
	Conflict    bool   `json:"conflict"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Detect runs the comparison for every pair of the round.
//
// # Description
//
// Each detected conflict is persisted and emitted immediately, not batched,
// so a listening stream sees disagreements as they are found. A generation
// failure is terminal for the deliberation and propagates to the caller; an
// unparseable verdict is treated as no conflict and logged, since the model
// did answer.
//
// # Inputs
//
//   - ctx: Deliberation context.
//   - c: The case under review.
//   - round: Round the artifacts belong to.
//   - args / counters: The round's artifacts.
//   - emit: Called once per persisted conflict. May be nil.
//
// # Outputs
//
//   - []datatypes.Conflict: All conflicts persisted by this call.
//   - error: Non-nil on generation or persistence failure.
func (d *Detector) Detect(ctx context.Context, c *datatypes.Case, round int,
	args []datatypes.Argument, counters []datatypes.Counterargument,
	emit func(datatypes.Conflict)) ([]datatypes.Conflict, error) {

	detected := []datatypes.Conflict{}
	for _, counter := range counters {
		for _, arg := range args {
			raw, err := d.gateway.Invoke(ctx, RoleAdversary.SystemPrompt(),
				comparisonPrompt(&arg, &counter))
			if err != nil {
				return detected, fmt.Errorf("conflict comparison: %w", err)
			}

			v, err := parseVerdict(raw)
			if err != nil {
				slog.Warn("Unparseable conflict verdict, treating as no conflict",
					"case_id", c.CaseID, "argument_id", arg.ArgumentID, "error", err)
				continue
			}
			if !v.Conflict {
				continue
			}

			conflict := datatypes.Conflict{
				ConflictID:        datatypes.NewConflictID(),
				CaseID:            c.CaseID,
				ArgumentID:        arg.ArgumentID,
				CounterargumentID: counter.CounterargumentID,
				Description:       v.Description,
				Severity:          datatypes.NormalizeSeverity(v.Severity),
				Round:             round,
				CreatedAt:         time.Now().UTC(),
			}
			if err := d.store.PutConflict(ctx, &conflict); err != nil {
				return detected, fmt.Errorf("persist conflict: %w", err)
			}
			detected = append(detected, conflict)
			if emit != nil {
				emit(conflict)
			}
		}
	}
	return detected, nil
}

func comparisonPrompt(arg *datatypes.Argument, counter *datatypes.Counterargument) string {
	var b strings.Builder
	b.WriteString("Compare the following two positions from a legal deliberation and decide whether they materially disagree.\n")
	fmt.Fprintf(&b, "\nPOSITION A (argument by %s):\n%s\n", arg.Agent, arg.Content)
	fmt.Fprintf(&b, "\nPOSITION B (counterargument by %s):\n%s\n", counter.Agent, counter.Content)
	b.WriteString(`
Return ONLY a valid JSON object (no markdown, no code blocks, no other text):

{
  "conflict": true or false - whether the positions materially disagree,
  "severity": "low", "medium", or "high" - how damaging the disagreement is to position A,
  "description": "one or two sentences describing the core of the disagreement, or empty string if none"
}
`)
	return b.String()
}

// Verdict extraction patterns, most specific first: fenced JSON, then a
// nested object, then any braced span.
var verdictPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	regexp.MustCompile(`(?s)\{.*?\}`),
}

// parseVerdict tolerantly extracts the JSON verdict from model output.
// Models wrap JSON in prose and markdown fences often enough that strict
// parsing alone would drop too many valid answers.
func parseVerdict(raw string) (verdict, error) {
	var v verdict
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v, nil
	}

	for _, pattern := range verdictPatterns {
		match := pattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		candidate := match[0]
		if len(match) > 1 {
			candidate = match[1]
		}
		candidate = strings.TrimSpace(candidate)
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v, nil
		}
	}
	return verdict{}, fmt.Errorf("no valid JSON verdict in response")
}
