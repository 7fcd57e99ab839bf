// Package metrics holds the Prometheus collectors for the turn engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripledger"

var (
	// Turns counts handled turns.
	// Labels: outcome (ok, ignored, store_read_error, store_write_error, stale, submitted, cleared)
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Chat turns handled, by outcome",
	}, []string{"outcome"})

	// TurnDuration measures a whole turn including store calls.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Time to handle one chat turn",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// Confirmations counts answered overwrite confirmations.
	// Labels: answer (yes, no, rejected)
	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "confirmations_total",
		Help:      "Conflict confirmations, by answer",
	}, []string{"answer"})

	// StoreErrors counts failed store calls.
	// Labels: op (read_all, upsert, get)
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Record store errors, by operation",
	}, []string{"op"})

	// Submissions counts persisted records.
	// Labels: form, status (submitted, updated)
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Records persisted, by form and status",
	}, []string{"form", "status"})

	// ActiveSessions is the number of open drafts.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Drafts currently held in memory",
	})

	// Reminders counts idle draft reminders.
	// Labels: result (sent, failed)
	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_total",
		Help:      "Idle draft reminders, by result",
	}, []string{"result"})
)
