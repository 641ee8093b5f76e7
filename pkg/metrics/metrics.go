// Package metrics exposes Prometheus instrumentation for the verifier and
// anchor advancer, mirroring the teacher's direct prometheus/client_golang
// dependency but instrumenting Beats' own surface (it has no consensus
// layer to report on).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every counter/histogram Beats exports.
type Registry struct {
	registry *prometheus.Registry

	VerifyRequestsTotal    *prometheus.CounterVec // labels: mode, outcome
	BeatsComputedTotal     prometheus.Counter
	AnchorAdvanceTotal     *prometheus.CounterVec // labels: outcome
	TimestampRequestsTotal *prometheus.CounterVec // labels: tier
}

// New builds a Registry with every metric registered against a fresh
// prometheus.Registry (not the global default, so tests can build their
// own instances without collisions).
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		VerifyRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beats_verify_requests_total",
			Help: "Total verify requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		BeatsComputedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beats_beats_computed_total",
			Help: "Total beats spot-checked across every verify request.",
		}),
		AnchorAdvanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beats_anchor_advance_total",
			Help: "Total anchor advancer ticks by outcome.",
		}, []string{"outcome"}),
		TimestampRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beats_timestamp_requests_total",
			Help: "Total timestamp requests by rate-limit tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(r.VerifyRequestsTotal, r.BeatsComputedTotal, r.AnchorAdvanceTotal, r.TimestampRequestsTotal)
	return r
}

// Handler returns the /api/metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
