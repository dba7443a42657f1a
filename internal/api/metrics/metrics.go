// Package metrics defines and registers all custom Prometheus metrics for
// the dreamchat API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default registry on import; the router exposes
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dreamchat"

// ── Guard metrics ─────────────────────────────────────────────────────────────

// GuardDenialsTotal counts requests the admission pipeline rejected.
// Label:
//   - reason: "unauthenticated", "forbidden", "quota_exceeded", "tier_required", "bad_request", "internal"
var GuardDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_denials_total",
		Help:      "Total number of requests rejected by the admission pipeline.",
	},
	[]string{"reason"},
)

// AdmissionDecisionsTotal counts quota evaluations by outcome.
// Labels:
//   - tier: "free" or "paid"
//   - outcome: "admit" or "deny"
var AdmissionDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_decisions_total",
		Help:      "Total number of quota admission decisions, by tier and outcome.",
	},
	[]string{"tier", "outcome"},
)

// ── Relay metrics ─────────────────────────────────────────────────────────────

// StreamsTotal counts finished relay runs.
// Label:
//   - state: "completed" or "failed"
var StreamsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streams_total",
		Help:      "Total number of relay runs, by terminal state.",
	},
	[]string{"state"},
)

// StreamChunksTotal counts text increments forwarded to callers.
var StreamChunksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_chunks_total",
		Help:      "Total number of text increments forwarded to callers.",
	},
)

// StreamDuration measures how long a relay run takes from engine start to
// terminal frame.
// Label:
//   - state: "completed" or "failed"
var StreamDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stream_duration_seconds",
		Help:      "Duration of a relay run from engine start to terminal frame.",
		Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"state"},
)

// PersistenceFailuresTotal counts assistant messages that could not be
// persisted after the success marker was already sent. These are the
// best-effort losses the relay accepts.
var PersistenceFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Total number of assistant messages lost to best-effort persistence.",
	},
)

// EngineFailuresTotal counts engine runs that ended in a failure event.
var EngineFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_failures_total",
		Help:      "Total number of engine runs that failed.",
	},
)
