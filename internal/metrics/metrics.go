// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics provides Prometheus instrumentation for phase transitions,
// external-service calls and sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/validation-engine/internal/failure"
)

// Transition outcomes.
const (
	OutcomeAdvanced = "advanced"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_engine_transitions_total",
			Help: "Phase transition attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	externalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_engine_external_calls_total",
			Help: "External service calls by service and result kind",
		},
		[]string{"service", "result"}, // result: ok or a failure kind
	)

	externalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "validation_engine_external_call_duration_seconds",
			Help:    "External service call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "validation_engine_sessions_active",
			Help: "Sessions with an action currently executing",
		},
	)

	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_engine_sessions_created_total",
			Help: "Sessions created",
		},
	)

	resultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_engine_results_discarded_total",
			Help: "Action results dropped because the session was reset mid-flight",
		},
	)
)

// RecordTransition counts one transition attempt.
func RecordTransition(action, outcome string) {
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordExternalCall counts one external call and observes its duration.
func RecordExternalCall(service, result string, d time.Duration) {
	externalCallsTotal.WithLabelValues(service, result).Inc()
	externalCallDuration.WithLabelValues(service).Observe(d.Seconds())
}

// Result maps an adapter error to the result label used by RecordExternalCall.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return failure.KindOf(err).String()
}

// SessionStarted increments the active-session gauge; call the returned func when done.
func SessionStarted() func() {
	sessionsActive.Inc()
	return sessionsActive.Dec
}

// SessionCreated counts a new session.
func SessionCreated() {
	sessionsCreated.Inc()
}

// ResultDiscarded counts a dropped in-flight result.
func ResultDiscarded() {
	resultsDiscarded.Inc()
}
