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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// extractionCharLimit caps how much document text is sent to the model.
const extractionCharLimit = 10000

// descriptionCharLimit caps the raw-text fallback description.
const descriptionCharLimit = 2000

const documentProcessorPrompt = "You are a legal document processor."

// ProcessDocuments handles POST /api/cases/process-documents.
//
// # Description
//
// Accepts one or more PDF uploads, extracts their text, and asks the model
// to pull structured intake fields out of it. The endpoint is best effort by
// design: when the model's answer cannot be parsed it falls back to pattern
// matching over the raw text, and when even that finds nothing the raw
// leading text is returned as the description so the client can prefill the
// intake form either way.
//
// # Outputs
//
//   - 200: CaseIntake with extracted or fallback fields.
//   - 400: A file is not a PDF or could not be read.
func ProcessDocuments(gateway *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
			return
		}

		texts := make([]string, 0, len(files))
		for _, fh := range files {
			if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File %s is not a PDF", fh.Filename)})
				return
			}
			text, err := extractPDFText(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error processing %s: %v", fh.Filename, err)})
				return
			}
			texts = append(texts, text)
		}

		combined := strings.Join(texts, "\n\n")
		if strings.TrimSpace(combined) == "" {
			c.JSON(http.StatusOK, datatypes.EmptyCaseIntake(
				"No text could be extracted from the PDF. Please fill the form manually."))
			return
		}

		intake := extractIntake(c, gateway, combined)
		c.JSON(http.StatusOK, intake)
	}
}

// extractPDFText pulls the plain text out of one uploaded PDF.
func extractPDFText(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}

// extractIntake runs the model extraction and degrades through the fallback
// chain: model JSON, then regex over the raw text, then raw leading text.
func extractIntake(c *gin.Context, gateway *llm.Gateway, combined string) *datatypes.CaseIntake {
	prompt := extractionPrompt(limitText(combined, extractionCharLimit))

	response, err := gateway.Invoke(c.Request.Context(), documentProcessorPrompt, prompt)
	if err != nil {
		slog.Warn("Document extraction generation failed, using pattern fallback", "error", err)
		response = ""
	}

	if response != "" {
		if intake := parseIntakeJSON(response); intake != nil {
			normalizeIntake(intake, combined)
			return intake
		}
		slog.Warn("No valid JSON in extraction response, using pattern fallback")
	}

	return fallbackExtract(combined)
}

// limitText bounds text to roughly max characters, preferring natural split
// points over a hard cut.
func limitText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(max),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		return text[:max]
	}
	return chunks[0]
}

func extractionPrompt(limitedText string) string {
	return fmt.Sprintf(`You are a legal document parser. Extract case information from the following legal document and return it as a valid JSON object.

DOCUMENT TEXT:
%s

Extract the following fields and return ONLY a valid JSON object (no markdown, no code blocks, just pure JSON):

{
  "caseTitle": "Extract the case title (e.g., 'Smith v. Jones Corporation') or empty string if not found",
  "caseType": "Extract the case type. Must be one of: Contract Dispute, Intellectual Property, Employment, Fraud, Trade Secrets, Personal Injury, Real Estate, Corporate, or Other. If not found, use empty string",
  "plaintiffName": "Extract the plaintiff or claimant name or empty string if not found",
  "defendantName": "Extract the defendant name or empty string if not found",
  "otherParties": "Extract any other parties mentioned or empty string if none",
  "jurisdiction": "Extract jurisdiction. Prefer: California, New York, Texas, Delaware, Florida, Illinois, Federal, or Other. If not found, use empty string",
  "caseDescription": "Extract a comprehensive summary of the case facts, dispute, and key details. If not found, use the first 2000 characters of the document",
  "moneyAtStake": "Extract the monetary amount at stake as a string with only numbers (no $ or commas). Example: '500000' for $500,000. If not found, use empty string",
  "stakesRange": "If moneyAtStake is found, calculate the range: 'under-100k', '100k-500k', '500k-1m', '1m-5m', '5m-10m', or 'over-10m'. Otherwise empty string",
  "caseStatus": "Extract case status (e.g., 'Ongoing Litigation', 'Pre-litigation', 'Appeal', etc.) or empty string if not found",
  "keyDates": []
}

IMPORTANT:
- Return ONLY the JSON object, no explanations, no markdown code blocks, no other text
- Use empty strings for missing fields, not null
- For moneyAtStake, extract only the numeric value (remove $ and commas)
- For caseType and jurisdiction, try to match the provided options`, limitedText)
}

// Model answers arrive in several shapes: bare JSON, fenced blocks, JSON
// embedded in prose. Tried in order.
var intakeJSONPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	regexp.MustCompile(`(?s)\{.*?\}`),
}

// parseIntakeJSON pulls a CaseIntake out of a model response, or nil when no
// candidate parses.
func parseIntakeJSON(response string) *datatypes.CaseIntake {
	candidates := []string{response}
	for _, pattern := range intakeJSONPatterns {
		match := pattern.FindStringSubmatch(response)
		if match == nil {
			continue
		}
		if len(match) > 1 {
			candidates = append(candidates, match[1])
		} else {
			candidates = append(candidates, match[0])
		}
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		var intake datatypes.CaseIntake
		if err := json.Unmarshal([]byte(candidate), &intake); err == nil {
			return &intake
		}
	}
	return nil
}

// Intake form option lists. The extraction normalizes free text onto these
// so the frontend dropdowns can preselect.
var (
	intakeJurisdictions = []string{
		"California", "New York", "Texas", "Delaware", "Florida", "Illinois", "Federal",
	}
	intakeCaseTypes = []string{
		"Contract Dispute", "Intellectual Property", "Employment",
		"Fraud", "Trade Secrets", "Personal Injury",
		"Real Estate", "Corporate", "Other",
	}
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// normalizeIntake cleans a model-extracted intake in place: defaults the
// description, strips the money figure to digits, derives the stakes range,
// and maps jurisdiction and case type onto the form options.
func normalizeIntake(intake *datatypes.CaseIntake, combined string) {
	if strings.TrimSpace(intake.CaseDescription) == "" {
		intake.CaseDescription = leadingText(combined, descriptionCharLimit)
	}
	if intake.KeyDates == nil {
		intake.KeyDates = []string{}
	}

	if intake.MoneyAtStake != "" {
		intake.MoneyAtStake = nonDigits.ReplaceAllString(intake.MoneyAtStake, "")
		if intake.StakesRange == "" && intake.MoneyAtStake != "" {
			intake.StakesRange = stakesRange(intake.MoneyAtStake)
		}
	}

	if intake.Jurisdiction != "" {
		intake.Jurisdiction = normalizeJurisdiction(intake.Jurisdiction)
	}
	if intake.CaseType != "" {
		intake.CaseType = normalizeCaseType(intake.CaseType)
	}
}

// stakesRange buckets a digits-only amount into the form's range options.
func stakesRange(digits string) string {
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return ""
	}
	switch {
	case amount < 100_000:
		return "under-100k"
	case amount < 500_000:
		return "100k-500k"
	case amount < 1_000_000:
		return "500k-1m"
	case amount < 5_000_000:
		return "1m-5m"
	case amount < 10_000_000:
		return "5m-10m"
	default:
		return "over-10m"
	}
}

// normalizeJurisdiction maps free text onto a known jurisdiction when it
// contains one; otherwise the original text is kept.
func normalizeJurisdiction(raw string) string {
	lower := strings.ToLower(raw)
	for _, j := range intakeJurisdictions {
		if strings.Contains(lower, strings.ToLower(j)) {
			return j
		}
	}
	return raw
}

// normalizeCaseType maps free text onto a known case type using containment
// in either direction ("employment dispute" and "employment" both match
// "Employment").
func normalizeCaseType(raw string) string {
	lower := strings.ToLower(raw)
	for _, ct := range intakeCaseTypes {
		ctLower := strings.ToLower(ct)
		if strings.Contains(lower, ctLower) || strings.Contains(ctLower, lower) {
			return ct
		}
	}
	return raw
}

// leadingText returns at most max bytes of text without cutting a UTF-8
// sequence in half.
func leadingText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// =============================================================================
// Pattern Fallback
// =============================================================================

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)case title[:\s]+([^\n]+)`),
		regexp.MustCompile(`(?i)title[:\s]+([^\n]+)`),
		regexp.MustCompile(`([A-Z][a-z]+\s+v\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	}
	typePattern      = regexp.MustCompile(`(?i)(?:case )?type[:\s]+([^\n]+)`)
	plaintiffPattern = regexp.MustCompile(`(?i)(?:plaintiff|claimant)[:\s/]+([^\n]+)`)
	defendantPattern = regexp.MustCompile(`(?i)defendant[:\s/]+([^\n]+)`)
	otherPattern     = regexp.MustCompile(`(?i)other part(?:ies|y)[:\s]+([^\n]+)`)
	jurisPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)jurisdiction[:\s]+([^\n]+)`),
		regexp.MustCompile(`(?i)governing law[:\s]+([^\n]+)`),
		regexp.MustCompile(`(?i)venue[:\s]+([^\n]+)`),
	}
	descPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)case description[:\s]+([^\n]+(?:\n[^\n]+)*)`),
		regexp.MustCompile(`(?i)description[:\s]+([^\n]+(?:\n[^\n]+)*)`),
		regexp.MustCompile(`(?i)facts[:\s]+([^\n]+(?:\n[^\n]+)*)`),
	}
	moneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$[\d,]+(?:\.[\d]+)?`),
		regexp.MustCompile(`(?i)[\d,]+(?:\.[\d]+)?\s*(?:dollars?|USD)`),
		regexp.MustCompile(`(?i)damages?[:\s]+[$]?[\d,]+`),
		regexp.MustCompile(`(?i)amount[:\s]+[$]?[\d,]+`),
	}
	statusPattern = regexp.MustCompile(`(?i)(?:case )?status[:\s]+([^\n]+)`)
)

// Loose mapping from type keywords to form options, checked in order.
var caseTypeKeywords = []struct {
	keyword  string
	caseType string
}{
	{"contract", "Contract Dispute"},
	{"breach", "Contract Dispute"},
	{"trade secret", "Trade Secrets"},
	{"employment", "Employment"},
	{"fraud", "Fraud"},
	{"personal injury", "Personal Injury"},
	{"real estate", "Real Estate"},
	{"corporate", "Corporate"},
	{"intellectual property", "Intellectual Property"},
	{"ip", "Intellectual Property"},
}

// fallbackExtract scrapes intake fields straight off the document text when
// the model gave nothing usable.
func fallbackExtract(combined string) *datatypes.CaseIntake {
	intake := datatypes.EmptyCaseIntake(leadingText(combined, descriptionCharLimit))

	for _, pattern := range titlePatterns {
		if m := pattern.FindStringSubmatch(combined); m != nil {
			intake.CaseTitle = strings.TrimSpace(m[1])
			break
		}
	}

	if m := typePattern.FindStringSubmatch(combined); m != nil {
		rawType := strings.TrimSpace(m[1])
		intake.CaseType = rawType
		lower := strings.ToLower(rawType)
		for _, kw := range caseTypeKeywords {
			if strings.Contains(lower, kw.keyword) {
				intake.CaseType = kw.caseType
				break
			}
		}
	}

	if m := plaintiffPattern.FindStringSubmatch(combined); m != nil {
		intake.PlaintiffName = strings.TrimSpace(m[1])
	}
	if m := defendantPattern.FindStringSubmatch(combined); m != nil {
		intake.DefendantName = strings.TrimSpace(m[1])
	}
	if m := otherPattern.FindStringSubmatch(combined); m != nil {
		intake.OtherParties = strings.TrimSpace(m[1])
	}

	for _, pattern := range jurisPatterns {
		if m := pattern.FindStringSubmatch(combined); m != nil {
			intake.Jurisdiction = normalizeJurisdiction(strings.TrimSpace(m[1]))
			break
		}
	}

	for _, pattern := range descPatterns {
		if m := pattern.FindStringSubmatch(combined); m != nil {
			intake.CaseDescription = strings.TrimSpace(m[1])
			break
		}
	}

	lower := strings.ToLower(combined)
	if strings.Contains(combined, "$") || strings.Contains(lower, "damages") || strings.Contains(lower, "stake") {
		for _, pattern := range moneyPatterns {
			if m := pattern.FindString(combined); m != "" {
				digits := nonDigits.ReplaceAllString(m, "")
				if digits != "" {
					intake.MoneyAtStake = digits
					intake.StakesRange = stakesRange(digits)
					break
				}
			}
		}
	}

	if m := statusPattern.FindStringSubmatch(combined); m != nil {
		intake.CaseStatus = strings.TrimSpace(m[1])
	}

	return intake
}
