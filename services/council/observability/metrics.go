// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the council service.
//
// # Description
//
// Metrics cover the deliberation pipeline end to end:
//   - Deliberation counters and duration histograms (by outcome)
//   - Persona invocation counters (by agent and outcome)
//   - Conflict detection counters
//   - Stream event publish/drop counters and active stream gauges
//
// Exposed via the /metrics endpoint for Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for council metrics
const councilSubsystem = "council"

// CouncilMetrics holds all Prometheus metrics for the deliberation pipeline.
//
// Initialize once at startup via InitMetrics(). Components guard on a nil
// DefaultMetrics so tests can run without registering collectors.
type CouncilMetrics struct {
	// DeliberationsTotal counts finished deliberations.
	// Labels: status (complete, failed)
	DeliberationsTotal *prometheus.CounterVec

	// DeliberationDurationSeconds measures full deliberation wall-clock.
	// Labels: status (complete, failed)
	DeliberationDurationSeconds *prometheus.HistogramVec

	// AgentInvocationsTotal counts persona invocations.
	// Labels: agent (Harvey, Louis, Tanner, Jessica), status (success, error)
	AgentInvocationsTotal *prometheus.CounterVec

	// ConflictsDetectedTotal counts persisted conflict records.
	ConflictsDetectedTotal prometheus.Counter

	// EventsPublishedTotal counts stream events delivered to a case channel.
	// Labels: type (agent_started, agent_completed, ...)
	EventsPublishedTotal *prometheus.CounterVec

	// EventsDroppedTotal counts events dropped on a full or absent channel.
	// Labels: type
	EventsDroppedTotal *prometheus.CounterVec

	// ActiveStreams tracks currently open SSE connections.
	ActiveStreams prometheus.Gauge

	// KeepAlivesTotal counts keepalive pings sent on streams.
	KeepAlivesTotal prometheus.Counter

	// ClientDisconnectsTotal counts clients leaving before the terminal event.
	ClientDisconnectsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of CouncilMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *CouncilMetrics

// InitMetrics initializes the default metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *CouncilMetrics {
	DefaultMetrics = &CouncilMetrics{
		DeliberationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "deliberations_total",
				Help:      "Total finished deliberations by terminal status",
			},
			[]string{"status"},
		),

		DeliberationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "deliberation_duration_seconds",
				Help:      "Full deliberation wall-clock duration in seconds",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
			},
			[]string{"status"},
		),

		AgentInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "agent_invocations_total",
				Help:      "Total persona invocations by agent and outcome",
			},
			[]string{"agent", "status"},
		),

		ConflictsDetectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "conflicts_detected_total",
				Help:      "Total conflict records persisted",
			},
		),

		EventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "events_published_total",
				Help:      "Total stream events delivered to case channels by type",
			},
			[]string{"type"},
		),

		EventsDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "events_dropped_total",
				Help:      "Total stream events dropped on full or absent channels by type",
			},
			[]string{"type"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open SSE connections",
			},
		),

		KeepAlivesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "keepalives_total",
				Help:      "Total keepalive pings sent on streams",
			},
		),

		ClientDisconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: councilSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total clients disconnected before the terminal event",
			},
		),
	}

	return DefaultMetrics
}

// RecordDeliberation records a finished deliberation and its duration.
func (m *CouncilMetrics) RecordDeliberation(success bool, seconds float64) {
	status := "complete"
	if !success {
		status = "failed"
	}
	m.DeliberationsTotal.WithLabelValues(status).Inc()
	m.DeliberationDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordAgentInvocation records one persona invocation outcome.
func (m *CouncilMetrics) RecordAgentInvocation(agent string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.AgentInvocationsTotal.WithLabelValues(agent, status).Inc()
}

// RecordConflicts adds to the conflict counter.
func (m *CouncilMetrics) RecordConflicts(n int) {
	if n > 0 {
		m.ConflictsDetectedTotal.Add(float64(n))
	}
}

// RecordEventPublished counts a delivered stream event.
func (m *CouncilMetrics) RecordEventPublished(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventDropped counts a dropped stream event.
func (m *CouncilMetrics) RecordEventDropped(eventType string) {
	m.EventsDroppedTotal.WithLabelValues(eventType).Inc()
}

// StreamStarted increments the active streams gauge.
func (m *CouncilMetrics) StreamStarted() { m.ActiveStreams.Inc() }

// StreamEnded decrements the active streams gauge.
func (m *CouncilMetrics) StreamEnded() { m.ActiveStreams.Dec() }

// RecordKeepAlive increments the keepalive counter.
func (m *CouncilMetrics) RecordKeepAlive() { m.KeepAlivesTotal.Inc() }

// RecordClientDisconnect increments the client disconnect counter.
func (m *CouncilMetrics) RecordClientDisconnect() { m.ClientDisconnectsTotal.Inc() }
