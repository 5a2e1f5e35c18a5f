// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Deliberation artifacts. Every type here is append-only: once persisted an
// artifact is never mutated, which is what makes the store the audit record.
package datatypes

import (
	"strings"
	"time"
)

// Conflict severity classifications.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Argument is one persona's proposal for a round.
//
// (case_id, agent, round) uniquely identifies a contribution in that round.
type Argument struct {
	ArgumentID string    `json:"argument_id" bson:"argument_id"`
	CaseID     string    `json:"case_id" bson:"case_id"`
	Agent      string    `json:"agent" bson:"agent"`
	Content    string    `json:"content" bson:"content"`
	Round      int       `json:"round" bson:"round"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Counterargument is the adversary's attack on a specific Argument.
// TargetArgumentID must reference an Argument in the same case.
type Counterargument struct {
	CounterargumentID string    `json:"counterargument_id" bson:"counterargument_id"`
	CaseID            string    `json:"case_id" bson:"case_id"`
	TargetArgumentID  string    `json:"target_argument_id" bson:"target_argument_id"`
	Agent             string    `json:"agent" bson:"agent"`
	Content           string    `json:"content" bson:"content"`
	Round             int       `json:"round" bson:"round"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// Conflict records a material disagreement between one Argument and one
// Counterargument, as judged by the conflict detector.
type Conflict struct {
	ConflictID        string    `json:"conflict_id" bson:"conflict_id"`
	CaseID            string    `json:"case_id" bson:"case_id"`
	ArgumentID        string    `json:"argument_id" bson:"argument_id"`
	CounterargumentID string    `json:"counterargument_id" bson:"counterargument_id"`
	Description       string    `json:"description" bson:"description"`
	Severity          string    `json:"severity" bson:"severity"`
	Round             int       `json:"round" bson:"round"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// Strategy is the synthesizer's final output for one deliberation run.
//
// Version strictly increases per case_id; re-running deliberation appends a
// higher version without deleting prior ones.
type Strategy struct {
	StrategyID string    `json:"strategy_id" bson:"strategy_id"`
	CaseID     string    `json:"case_id" bson:"case_id"`
	Version    int       `json:"version" bson:"version"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// NormalizeSeverity maps a free-text severity onto the closed set,
// defaulting to medium when the text is unrecognizable.
func NormalizeSeverity(s string) string {
	switch normalized := strings.ToLower(strings.TrimSpace(s)); normalized {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return normalized
	}
	return SeverityMedium
}
