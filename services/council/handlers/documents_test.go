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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

func TestParseIntakeJSONBareObject(t *testing.T) {
	intake := parseIntakeJSON(`{"caseTitle": "Smith v. Jones", "caseType": "Contract Dispute"}`)
	require.NotNil(t, intake)
	assert.Equal(t, "Smith v. Jones", intake.CaseTitle)
	assert.Equal(t, "Contract Dispute", intake.CaseType)
}

func TestParseIntakeJSONFencedBlock(t *testing.T) {
	response := "Here is the extraction:\n```json\n{\"caseTitle\": \"Acme v. Widget\"}\n```\nDone."
	intake := parseIntakeJSON(response)
	require.NotNil(t, intake)
	assert.Equal(t, "Acme v. Widget", intake.CaseTitle)
}

func TestParseIntakeJSONEmbeddedInProse(t *testing.T) {
	response := `Sure! The extracted fields are {"caseTitle": "Doe v. Roe", "jurisdiction": "Delaware"} as requested.`
	intake := parseIntakeJSON(response)
	require.NotNil(t, intake)
	assert.Equal(t, "Doe v. Roe", intake.CaseTitle)
	assert.Equal(t, "Delaware", intake.Jurisdiction)
}

func TestParseIntakeJSONNoObject(t *testing.T) {
	assert.Nil(t, parseIntakeJSON("I could not find any case information."))
}

func TestNormalizeIntakeCleansMoneyAndDerivesRange(t *testing.T) {
	intake := &datatypes.CaseIntake{
		CaseDescription: "a dispute",
		MoneyAtStake:    "$2,500,000",
	}
	normalizeIntake(intake, "raw text")

	assert.Equal(t, "2500000", intake.MoneyAtStake)
	assert.Equal(t, "1m-5m", intake.StakesRange)
}

func TestNormalizeIntakeDefaultsDescription(t *testing.T) {
	intake := &datatypes.CaseIntake{CaseDescription: "   "}
	normalizeIntake(intake, "the raw document text")

	assert.Equal(t, "the raw document text", intake.CaseDescription)
	assert.NotNil(t, intake.KeyDates)
}

func TestStakesRangeBuckets(t *testing.T) {
	tests := []struct {
		digits string
		want   string
	}{
		{"50000", "under-100k"},
		{"100000", "100k-500k"},
		{"499999", "100k-500k"},
		{"750000", "500k-1m"},
		{"2500000", "1m-5m"},
		{"7000000", "5m-10m"},
		{"15000000", "over-10m"},
		{"not-a-number", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stakesRange(tt.digits), "amount %s", tt.digits)
	}
}

func TestNormalizeJurisdiction(t *testing.T) {
	assert.Equal(t, "Delaware", normalizeJurisdiction("State of Delaware, Chancery Court"))
	assert.Equal(t, "Federal", normalizeJurisdiction("federal district court"))
	assert.Equal(t, "Narnia", normalizeJurisdiction("Narnia"), "unknown jurisdictions pass through")
}

func TestNormalizeCaseTypeBidirectional(t *testing.T) {
	assert.Equal(t, "Employment", normalizeCaseType("employment discrimination matter"))
	assert.Equal(t, "Trade Secrets", normalizeCaseType("trade secrets"))
	assert.Equal(t, "Fraud", normalizeCaseType("FRAUD"))
	assert.Equal(t, "something else", normalizeCaseType("something else"))
}

func TestFallbackExtractScrapesLabeledFields(t *testing.T) {
	doc := `Case Title: Smith v. Jones Corporation
Case Type: breach of contract
Plaintiff: John Smith
Defendant: Jones Corporation
Jurisdiction: Superior Court of California
Case Status: Ongoing Litigation
The plaintiff seeks damages: $750,000 for the failed delivery.`

	intake := fallbackExtract(doc)

	assert.Equal(t, "Smith v. Jones Corporation", intake.CaseTitle)
	assert.Equal(t, "Contract Dispute", intake.CaseType)
	assert.Equal(t, "John Smith", intake.PlaintiffName)
	assert.Equal(t, "Jones Corporation", intake.DefendantName)
	assert.Equal(t, "California", intake.Jurisdiction)
	assert.Equal(t, "Ongoing Litigation", intake.CaseStatus)
	assert.Equal(t, "750000", intake.MoneyAtStake)
	assert.Equal(t, "500k-1m", intake.StakesRange)
}

func TestFallbackExtractCaptionPattern(t *testing.T) {
	doc := "In the matter of Smith v. Jones the parties dispute a supply agreement."
	intake := fallbackExtract(doc)
	assert.Contains(t, intake.CaseTitle, "Smith v")
}

func TestFallbackExtractAlwaysCarriesDescription(t *testing.T) {
	doc := strings.Repeat("unstructured narrative text ", 200)
	intake := fallbackExtract(doc)
	assert.NotEmpty(t, intake.CaseDescription)
	assert.LessOrEqual(t, len(intake.CaseDescription), descriptionCharLimit)
}

func TestLeadingTextRespectsUTF8(t *testing.T) {
	text := strings.Repeat("é", 100)
	cut := leadingText(text, 101)
	assert.LessOrEqual(t, len(cut), 101)
	assert.True(t, strings.HasPrefix(text, cut))
	for _, r := range cut {
		assert.NotEqual(t, '�', r)
	}
}

func TestLimitTextShortInputUnchanged(t *testing.T) {
	assert.Equal(t, "short", limitText("short", extractionCharLimit))
}
