// Package metrics exposes the Prometheus instruments of the workflow service.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workflow"

type Recorder struct {
	registry *prometheus.Registry

	approvals      *prometheus.CounterVec
	approveLatency prometheus.Histogram
	transitions    *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	violations     prometheus.Counter
	sweptOverrides prometheus.Counter
	wsClients      prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Approval attempts by outcome.",
		}, []string{"outcome"}),
		approveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approve_duration_seconds",
			Help:      "Latency of the approve operation.",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied state transitions by kind.",
		}, []string{"kind"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_decisions_total",
			Help:      "Permission checks by kind and decision.",
		}, []string{"kind", "decision"}),
		violations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_projection_violations_total",
			Help:      "Cases whose completed_steps disagreed with the approval ledger.",
		}),
		sweptOverrides: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_expired_total",
			Help:      "Permission overrides deactivated by the expiry sweep.",
		}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected case event websocket clients.",
		}),
	}
}

// Approval records one approve call. outcome is one of recorded,
// duplicate, forbidden, invalid or error.
func (r *Recorder) Approval(outcome string, started time.Time) {
	if r == nil {
		return
	}
	r.approvals.WithLabelValues(outcome).Inc()
	r.approveLatency.Observe(time.Since(started).Seconds())
}

// Transition counts an applied transition; kind is automatic or manual.
func (r *Recorder) Transition(kind string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(kind).Inc()
}

func (r *Recorder) Decision(kind string, allowed bool) {
	if r == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	r.decisions.WithLabelValues(kind, decision).Inc()
}

func (r *Recorder) InvariantViolation() {
	if r == nil {
		return
	}
	r.violations.Inc()
}

func (r *Recorder) OverridesExpired(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.sweptOverrides.Add(float64(n))
}

func (r *Recorder) SubscriberDelta(d int) {
	if r == nil {
		return
	}
	r.wsClients.Add(float64(d))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
