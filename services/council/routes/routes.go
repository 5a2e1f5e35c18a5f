// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/CouncilFOSS/services/council/handlers"
	"github.com/AleutianAI/CouncilFOSS/services/council/orchestrator"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// SetupRoutes registers every council endpoint on the router.
//
// All dependencies must be non-nil; handler construction panics otherwise.
func SetupRoutes(router *gin.Engine, orc *orchestrator.Orchestrator, st store.Store, gateway *llm.Gateway) {
	if orc == nil {
		panic("routes.SetupRoutes: orchestrator must not be nil")
	}
	if st == nil {
		panic("routes.SetupRoutes: store must not be nil")
	}
	if gateway == nil {
		panic("routes.SetupRoutes: gateway must not be nil")
	}

	router.GET("/", handlers.Root())
	router.GET("/health", handlers.HealthCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/agents", handlers.AgentsInfo())
		api.POST("/cases/process-documents", handlers.ProcessDocuments(gateway))

		api.POST("/cases", handlers.CreateCase(orc))
		api.GET("/cases", handlers.ListCases(st))
		api.GET("/cases/:caseId", handlers.GetCase(orc))
		api.DELETE("/cases/:caseId", handlers.DeleteCase(st))
		api.POST("/cases/:caseId/analyze", handlers.StartAnalysis(orc, st))
		api.GET("/cases/:caseId/arguments", handlers.GetArguments(st))
		api.GET("/cases/:caseId/conflicts", handlers.GetConflicts(st))
		api.GET("/cases/:caseId/strategy", handlers.GetStrategy(st))
		api.GET("/cases/:caseId/stream", handlers.StreamCase(orc, st))
	}
}
