// Package metrics instruments the session and method-invocation layers
// with Prometheus collectors: how many method calls complete with each
// status kind, how long an Exchange round-trip takes, and how many
// sessions are currently open. This is supplementary observability —
// spec.md's Non-goals exclude a CLI dashboard, not ambient
// instrumentation of the core itself (see SPEC_FULL.md's ambient-stack
// notes) — grounded on the teacher's cmd/tcgdiskstat exporter, which
// registers domain counters against the same client_golang registry
// this package uses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MethodCalls counts method invocations by method name and the
	// resulting status kind (e.g. "SUCCESS", "NOT_AUTHORIZED").
	MethodCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcgstorage",
		Subsystem: "session",
		Name:      "method_calls_total",
		Help:      "Method invocations, by method name and result status.",
	}, []string{"method", "status"})

	// ExchangeDuration observes how long one Exchange round-trip (send
	// plus the outstandingData poll loop) took.
	ExchangeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tcgstorage",
		Subsystem: "core",
		Name:      "exchange_duration_seconds",
		Help:      "Duration of one IF-SEND/IF-RECV Exchange round-trip.",
		Buckets:   prometheus.DefBuckets,
	})

	// OpenSessions reports whether an EncryptedDevice façade currently
	// holds an active session (0 or 1; this module enforces at most one
	// session per façade, per spec.md's Non-goals).
	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tcgstorage",
		Subsystem: "device",
		Name:      "open_sessions",
		Help:      "1 if the façade currently holds an active session, else 0.",
	})
)

// Registry is this package's private registry; callers that run an
// exporter (the teacher's cmd/tcgdiskstat pattern) register it into
// their own http.Handler rather than using the global default registry,
// so importing this package never has the side effect of polluting a
// consumer's own metrics namespace.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(MethodCalls, ExchangeDuration, OpenSessions)
}

// ObserveExchange records one Exchange round-trip's duration.
func ObserveExchange(d time.Duration) {
	ExchangeDuration.Observe(d.Seconds())
}

// ObserveMethodCall records one method invocation's outcome.
func ObserveMethodCall(method, status string) {
	MethodCalls.WithLabelValues(method, status).Inc()
}
