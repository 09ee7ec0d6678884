// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus collectors for the agent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agribot_workflow_state",
		Help: "Current workflow state (active state=1, others 0)",
	}, []string{"state"})

	workflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_workflow_transitions_total",
		Help: "Workflow state transitions",
	}, []string{"from", "to"})

	stationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_stations_completed_total",
		Help: "Stations completed by session kind",
	}, []string{"kind"})

	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_sessions_completed_total",
		Help: "Sessions completed by session kind",
	}, []string{"kind"})

	sessionMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agribot_session_merges_total",
		Help: "Water sessions started in place instead of reconnecting",
	})

	workflowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_workflow_errors_total",
		Help: "Errors promoted to the workflow by kind",
	}, []string{"kind"})

	recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_recoveries_total",
		Help: "Recovery paths taken (crash|event|surface)",
	}, []string{"kind"})

	unitsPoured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_units_poured_total",
		Help: "Resource units poured into stations by outcome (consumed|timeout)",
	}, []string{"outcome"})

	heldUnits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agribot_held_units",
		Help: "Resource units held at last refresh by state (full|empty)",
	}, []string{"state"})

	adaptiveDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agribot_adaptive_delay_seconds",
		Help: "Current delay between poured units",
	})

	pauseRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agribot_pause_remaining_seconds",
		Help: "Time left before the next session (0 when not paused)",
	})

	connectionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_connection_attempts_total",
		Help: "Connection sequences by outcome (success|blocked|failed)",
	}, []string{"outcome"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agribot_tick_duration_seconds",
		Help:    "Time spent inside one workflow tick",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
)

// SetWorkflowState marks state as the active workflow state.
func SetWorkflowState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		workflowState.WithLabelValues(s).Set(v)
	}
}

// RecordTransition counts a state change.
func RecordTransition(from, to string) {
	workflowTransitions.WithLabelValues(from, to).Inc()
}

// RecordStationCompleted counts a finished station.
func RecordStationCompleted(kind string) {
	stationsCompleted.WithLabelValues(kind).Inc()
}

// RecordSessionCompleted counts a finished session.
func RecordSessionCompleted(kind string) {
	sessionsCompleted.WithLabelValues(kind).Inc()
}

// RecordSessionMerge counts a merged water session.
func RecordSessionMerge() { sessionMerges.Inc() }

// RecordWorkflowError counts an error by kind.
func RecordWorkflowError(kind string) {
	workflowErrors.WithLabelValues(kind).Inc()
}

// RecordRecovery counts a recovery path.
func RecordRecovery(kind string) {
	recoveries.WithLabelValues(kind).Inc()
}

// RecordUnitPoured counts a poured unit by outcome.
func RecordUnitPoured(outcome string) {
	unitsPoured.WithLabelValues(outcome).Inc()
}

// SetHeldUnits publishes the refreshed unit counts.
func SetHeldUnits(full, empty int) {
	heldUnits.WithLabelValues("full").Set(float64(full))
	heldUnits.WithLabelValues("empty").Set(float64(empty))
}

// SetAdaptiveDelay publishes the current pour delay.
func SetAdaptiveDelay(d time.Duration) { adaptiveDelay.Set(d.Seconds()) }

// SetPauseRemaining publishes the remaining pause.
func SetPauseRemaining(d time.Duration) {
	if d < 0 {
		d = 0
	}
	pauseRemaining.Set(d.Seconds())
}

// RecordConnectionAttempt counts a finished connection sequence.
func RecordConnectionAttempt(outcome string) {
	connectionAttempts.WithLabelValues(outcome).Inc()
}

// ObserveTick records how long one tick took.
func ObserveTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }
