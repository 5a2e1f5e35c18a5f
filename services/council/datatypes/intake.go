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

// CaseIntake is the best-effort extraction result for the document-processing
// endpoint.
//
// # Description
//
// Field names are camelCase on the wire because the object feeds the intake
// form directly. Missing fields are empty strings, never null; KeyDates is
// always present, possibly empty. On total extraction failure the description
// carries the raw leading document text so the caller still gets something
// to edit.
type CaseIntake struct {
	CaseTitle       string   `json:"caseTitle"`
	CaseType        string   `json:"caseType"`
	PlaintiffName   string   `json:"plaintiffName"`
	DefendantName   string   `json:"defendantName"`
	OtherParties    string   `json:"otherParties"`
	Jurisdiction    string   `json:"jurisdiction"`
	CaseDescription string   `json:"caseDescription"`
	MoneyAtStake    string   `json:"moneyAtStake"`
	StakesRange     string   `json:"stakesRange"`
	CaseStatus      string   `json:"caseStatus"`
	KeyDates        []string `json:"keyDates"`
}

// EmptyCaseIntake returns an intake object with every field defaulted and
// the given description text.
func EmptyCaseIntake(description string) *CaseIntake {
	return &CaseIntake{
		CaseDescription: description,
		KeyDates:        []string{},
	}
}
