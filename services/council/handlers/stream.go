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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/observability"
	"github.com/AleutianAI/CouncilFOSS/services/council/orchestrator"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
)

// keepAliveInterval is how often an idle stream gets an SSE comment so load
// balancers do not cut the connection.
const keepAliveInterval = 15 * time.Second

// StreamCase handles GET /api/cases/:caseId/stream.
//
// # Description
//
// Streams deliberation milestones for one case as Server-Sent Events. An
// unknown case returns 404 before any event is written. A case already in a
// terminal state gets its terminal events replayed immediately without
// re-running anything. Otherwise the handler subscribes to the case's event
// channel and forwards milestones until the done event or until the run
// closes the channel.
//
// A client disconnect ends only this stream; the deliberation keeps running
// to its own terminal state.
func StreamCase(orc *orchestrator.Orchestrator, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID := c.Param("caseId")
		ctx := c.Request.Context()

		cs, err := st.GetCase(ctx, caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.StreamStarted()
			defer observability.DefaultMetrics.StreamEnded()
		}

		// Terminal cases replay their outcome from the store; the live event
		// channel is gone once the run finishes.
		switch cs.Status {
		case datatypes.CaseStatusComplete:
			replayComplete(c, st, writer, caseID)
			return
		case datatypes.CaseStatusFailed:
			_ = writer.WriteError(caseID, "Analysis failed. Artifacts from completed rounds are preserved.")
			_ = writer.WriteDone(caseID, datatypes.CaseStatusFailed, "Analysis finished with errors.")
			return
		}

		ch, ok := orc.Bus().Subscribe(caseID)
		if !ok {
			// Non-terminal case with no run in flight. Tell the client to
			// start one rather than holding an empty connection open.
			_ = writer.WriteDone(caseID, cs.Status,
				"No analysis in progress. POST /api/cases/"+caseID+"/analyze to start one.")
			return
		}

		slog.Info("Stream opened", "case_id", caseID)
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case event, open := <-ch:
				if !open {
					slog.Info("Stream closed by deliberation", "case_id", caseID)
					return
				}
				if err := writer.WriteEvent(event); err != nil {
					slog.Warn("Stream write failed", "case_id", caseID, "error", err)
					return
				}
				if event.IsTerminal() {
					slog.Info("Stream finished", "case_id", caseID, "status", event.Status)
					return
				}
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					slog.Warn("Keepalive failed", "case_id", caseID, "error", err)
					return
				}
				if observability.DefaultMetrics != nil {
					observability.DefaultMetrics.RecordKeepAlive()
				}
			case <-ctx.Done():
				// Client left; the deliberation keeps running.
				slog.Info("Client disconnected from stream", "case_id", caseID)
				if observability.DefaultMetrics != nil {
					observability.DefaultMetrics.RecordClientDisconnect()
				}
				return
			}
		}
	}
}

// replayComplete writes the terminal events for an already completed case:
// the latest strategy milestone followed by the done event.
func replayComplete(c *gin.Context, st store.Store, writer SSEWriter, caseID string) {
	strategy, err := st.LatestStrategy(c.Request.Context(), caseID)
	if err == nil {
		_ = writer.WriteEvent(datatypes.NewStrategyReadyEvent(caseID, strategy.StrategyID, strategy.Version))
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Strategy replay lookup failed", "case_id", caseID, "error", err)
	}
	_ = writer.WriteDone(caseID, datatypes.CaseStatusComplete,
		"Analysis complete. Final strategy is ready.")
}
