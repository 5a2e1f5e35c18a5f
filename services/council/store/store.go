// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store is the coordination backbone for multi-agent deliberation.
//
// # Description
//
// The store is the single source of truth: no entity is cached in
// orchestrator memory across process restarts. Every collection enforces a
// uniqueness constraint on its primary id, so duplicate writes fail with
// ErrDuplicate instead of silently overwriting. Two implementations exist:
// Mongo for production and Memory for tests and lightweight mode.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a write collided with an existing primary id.
	// Callers must generate fresh ids rather than retry the same write.
	ErrDuplicate = errors.New("duplicate id")
)

// Store is the typed facade over the document store.
//
// # Description
//
// One method per domain operation rather than a generic put/find surface, so
// every caller states its intent and the compiler checks the entity types.
// All methods are safe for concurrent use; each write targets a uniquely
// keyed document.
//
// # Limitations
//
//   - Reads return entities without any store-internal ids.
//   - ListCases is bounded by the caller-supplied limit; there is no cursor.
type Store interface {
	// EnsureIndexes creates collections and indexes idempotently. An index
	// existing with a conflicting shape is replaced, not left stale.
	EnsureIndexes(ctx context.Context) error

	CreateCase(ctx context.Context, c *datatypes.Case) error
	GetCase(ctx context.Context, caseID string) (*datatypes.Case, error)
	ListCases(ctx context.Context, limit int) ([]datatypes.Case, error)
	UpdateCaseStatus(ctx context.Context, caseID, status string) error

	// DeleteCase removes the case and every dependent document across all
	// collections. Other cases' rows are untouched.
	DeleteCase(ctx context.Context, caseID string) error

	PutArgument(ctx context.Context, a *datatypes.Argument) error
	ArgumentsForCase(ctx context.Context, caseID string) ([]datatypes.Argument, error)
	ArgumentsForRound(ctx context.Context, caseID string, round int) ([]datatypes.Argument, error)

	PutCounterargument(ctx context.Context, c *datatypes.Counterargument) error
	CounterargumentsForCase(ctx context.Context, caseID string) ([]datatypes.Counterargument, error)
	CounterargumentsForRound(ctx context.Context, caseID string, round int) ([]datatypes.Counterargument, error)

	PutConflict(ctx context.Context, c *datatypes.Conflict) error
	ConflictsForCase(ctx context.Context, caseID string) ([]datatypes.Conflict, error)

	PutStrategy(ctx context.Context, s *datatypes.Strategy) error
	// LatestStrategy returns ErrNotFound when the case has no strategy yet.
	LatestStrategy(ctx context.Context, caseID string) (*datatypes.Strategy, error)
	// MaxStrategyVersion returns 0 when the case has no strategy yet.
	MaxStrategyVersion(ctx context.Context, caseID string) (int, error)

	PutAgentRun(ctx context.Context, r *datatypes.AgentRun) error
	CloseAgentRun(ctx context.Context, runID, status, artifactID, errMsg string) error

	PutReasoningStep(ctx context.Context, s *datatypes.ReasoningStep) error
	PutAgentMessage(ctx context.Context, m *datatypes.AgentMessage) error

	Close(ctx context.Context) error
}
