// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "github.com/google/uuid"

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.New().String()
}

// NewCaseID returns a fresh case identifier.
func NewCaseID() string { return "case-" + generateUUID() }

// NewArgumentID returns a fresh argument identifier.
func NewArgumentID() string { return "arg-" + generateUUID() }

// NewCounterargumentID returns a fresh counterargument identifier.
func NewCounterargumentID() string { return "counter-" + generateUUID() }

// NewConflictID returns a fresh conflict identifier.
func NewConflictID() string { return "conflict-" + generateUUID() }

// NewStrategyID returns a fresh strategy identifier.
func NewStrategyID() string { return "strategy-" + generateUUID() }

// NewRunID returns a fresh agent-run identifier.
func NewRunID() string { return "run-" + generateUUID() }

// NewStepID returns a fresh reasoning-step identifier.
func NewStepID() string { return "step-" + generateUUID() }

// NewMessageID returns a fresh agent-message identifier.
func NewMessageID() string { return "msg-" + generateUUID() }
