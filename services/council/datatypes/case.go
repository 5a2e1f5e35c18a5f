// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the council service.
//
// This file contains the Case entity and its intake request type. Artifact
// entities produced during deliberation live in artifacts.go, the audit
// entities in audit.go, and the stream event shapes in events.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxFieldBytes is the maximum size of a single text intake field.
	// Checks byte length, not rune count, to bound memory use.
	MaxFieldBytes = 32 * 1024 // 32KB

	// MaxFactsBytes is the maximum size of the case facts field. Facts are
	// often pasted from extracted documents, so they get a larger cap.
	MaxFactsBytes = 128 * 1024 // 128KB
)

// Case lifecycle states maintained by the orchestrator.
const (
	CaseStatusCreated   = "created"
	CaseStatusAnalyzing = "analyzing"
	CaseStatusComplete  = "complete"
	CaseStatusFailed    = "failed"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// caseValidate is the validator instance for council datatypes.
// Initialized in init() with custom validators.
var caseValidate *validator.Validate

func init() {
	caseValidate = validator.New()

	_ = caseValidate.RegisterValidation("maxfieldbytes", validateMaxFieldBytes)
	_ = caseValidate.RegisterValidation("maxfactsbytes", validateMaxFactsBytes)
}

func validateMaxFieldBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxFieldBytes
}

func validateMaxFactsBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxFactsBytes
}

// =============================================================================
// Case Entity
// =============================================================================

// Case is the root entity of one deliberation.
//
// # Description
//
// A Case holds the intake facts every persona reads plus the lifecycle
// status the orchestrator maintains. The case_id is immutable once created;
// deleting a case cascades to every dependent collection.
//
// # Fields
//
//   - CaseID: Unique identifier ("case-" + UUID v4). Immutable.
//   - Title: Short case caption, e.g. "Smith v. Jones Corporation".
//   - Facts: Free-text facts and background every agent reasons over.
//   - Jurisdiction: Governing jurisdiction, free text.
//   - Stakes: What is at risk (damages, injunction, reputation).
//   - Status: One of the CaseStatus* constants.
//   - CreatedAt: Intake time (UTC).
type Case struct {
	CaseID       string    `json:"case_id" bson:"case_id"`
	Title        string    `json:"title" bson:"title"`
	Facts        string    `json:"facts" bson:"facts"`
	Jurisdiction string    `json:"jurisdiction" bson:"jurisdiction"`
	Stakes       string    `json:"stakes" bson:"stakes"`
	Status       string    `json:"status" bson:"status"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// =============================================================================
// Intake Request
// =============================================================================

// CaseCreateRequest is the intake payload for POST /api/cases.
//
// # Description
//
// Carries the facts of a new case. Validation rejects missing or oversized
// fields before anything is persisted; a rejected intake leaves no trace in
// the store.
//
// # Validation
//
// Uses go-playground/validator:
//   - Title: required, max 32KB
//   - Facts: required, max 128KB
//   - Jurisdiction, Stakes: optional, max 32KB each
type CaseCreateRequest struct {
	Title        string `json:"title" validate:"required,maxfieldbytes"`
	Facts        string `json:"facts" validate:"required,maxfactsbytes"`
	Jurisdiction string `json:"jurisdiction" validate:"maxfieldbytes"`
	Stakes       string `json:"stakes" validate:"maxfieldbytes"`
}

// Validate validates the CaseCreateRequest fields.
func (r *CaseCreateRequest) Validate() error {
	return caseValidate.Struct(r)
}

// NewCase builds a Case from a validated intake request.
func (r *CaseCreateRequest) NewCase() *Case {
	return &Case{
		CaseID:       NewCaseID(),
		Title:        r.Title,
		Facts:        r.Facts,
		Jurisdiction: r.Jurisdiction,
		Stakes:       r.Stakes,
		Status:       CaseStatusCreated,
		CreatedAt:    time.Now().UTC(),
	}
}

// =============================================================================
// Aggregate Response
// =============================================================================

// CaseDetails is the full read model for GET /api/cases/:caseId.
//
// Strategy is the latest version only; prior versions stay queryable through
// the strategies collection but are not returned here.
type CaseDetails struct {
	Case             *Case             `json:"case"`
	Arguments        []Argument        `json:"arguments"`
	Counterarguments []Counterargument `json:"counterarguments"`
	Conflicts        []Conflict        `json:"conflicts"`
	Strategy         *Strategy         `json:"strategy"`
}
