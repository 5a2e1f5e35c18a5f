// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP handlers for the council service.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/orchestrator"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
)

// listCasesLimit bounds the case listing to the most recent entries.
const listCasesLimit = 20

// CreateCase handles POST /api/cases.
//
// # Description
//
// Validates the intake, persists the case, and launches the deliberation in
// the background. The response returns immediately; clients follow progress
// on the stream endpoint.
//
// # Outputs
//
//   - 200: Case created, analysis started.
//   - 400: Invalid or oversized intake fields. Nothing is persisted.
//   - 500: Store failure.
func CreateCase(orc *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CaseCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
			return
		}

		created, err := orc.CreateCase(c.Request.Context(), &req)
		if err != nil {
			slog.Error("Case creation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create case"})
			return
		}

		if err := orc.StartAnalysis(created.CaseID); err != nil {
			slog.Error("Analysis launch failed", "case_id", created.CaseID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"case_id": created.CaseID,
			"title":   created.Title,
			"status":  created.Status,
			"message": fmt.Sprintf("Case created. Connect to /api/cases/%s/stream for real-time updates.", created.CaseID),
		})
	}
}

// StartAnalysis handles POST /api/cases/:caseId/analyze.
//
// # Description
//
// Re-runs the deliberation for an existing case. A completed case may be
// re-analyzed; the new strategy is appended under the next version. A case
// with a run already in flight is rejected with 409.
func StartAnalysis(orc *orchestrator.Orchestrator, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")

		if _, err := st.GetCase(c.Request.Context(), caseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		if err := orc.StartAnalysis(caseID); err != nil {
			if errors.Is(err, orchestrator.ErrAnalysisRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": "Analysis already running for this case"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"case_id": caseID,
			"message": fmt.Sprintf("Analysis started. Connect to /api/cases/%s/stream for real-time updates.", caseID),
		})
	}
}

// ListCases handles GET /api/cases. Returns the most recent cases, newest
// first, bounded to listCasesLimit.
func ListCases(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cases, err := st.ListCases(c.Request.Context(), listCasesLimit)
		if err != nil {
			slog.Error("Case listing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cases"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cases": cases, "count": len(cases)})
	}
}

// GetCase handles GET /api/cases/:caseId.
//
// Returns the full read model: the case plus every argument,
// counterargument, and conflict, and the latest strategy version (null when
// no synthesis has finished yet).
func GetCase(orc *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")

		details, err := orc.GetCaseWithDetails(c.Request.Context(), caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			slog.Error("Case detail lookup failed", "case_id", caseID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}
		c.JSON(http.StatusOK, details)
	}
}

// GetArguments handles GET /api/cases/:caseId/arguments. Returns both the
// proposing personas' arguments and the adversary's counterarguments.
func GetArguments(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")
		ctx := c.Request.Context()

		if _, err := st.GetCase(ctx, caseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		args, err := st.ArgumentsForCase(ctx, caseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load arguments"})
			return
		}
		counters, err := st.CounterargumentsForCase(ctx, caseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load counterarguments"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"arguments":        args,
			"counterarguments": counters,
		})
	}
}

// GetConflicts handles GET /api/cases/:caseId/conflicts.
func GetConflicts(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")
		ctx := c.Request.Context()

		if _, err := st.GetCase(ctx, caseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		conflicts, err := st.ConflictsForCase(ctx, caseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conflicts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conflicts": conflicts, "count": len(conflicts)})
	}
}

// GetStrategy handles GET /api/cases/:caseId/strategy.
//
// Returns the latest strategy version. When no synthesis has completed the
// strategy field is null and the message tells the client to run analysis.
func GetStrategy(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")
		ctx := c.Request.Context()

		if _, err := st.GetCase(ctx, caseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		strategy, err := st.LatestStrategy(ctx, caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusOK, gin.H{
					"strategy": nil,
					"message":  "Strategy not yet generated. Run analysis first.",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load strategy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"strategy": strategy})
	}
}

// DeleteCase handles DELETE /api/cases/:caseId.
//
// # Description
//
// Cascades across every dependent collection: arguments, counterarguments,
// conflicts, strategies, agent runs, reasoning steps, and agent messages.
// Unknown cases return 404 before anything is touched.
func DeleteCase(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")
		ctx := c.Request.Context()

		if _, err := st.GetCase(ctx, caseID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		if err := st.DeleteCase(ctx, caseID); err != nil {
			slog.Error("Case deletion failed", "case_id", caseID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete case"})
			return
		}

		slog.Info("Case deleted", "case_id", caseID)
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Case %s and all associated data deleted", caseID),
		})
	}
}
