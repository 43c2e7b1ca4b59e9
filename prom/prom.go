// Package prom bridges the harness's metric events to Prometheus: one
// counter for write outcomes and one histogram for shadow-write latency.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentfold/shadowwrite"
)

// Handler is a shadowwrite.MetricHandler backed by a Prometheus registry.
type Handler struct {
	writes    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New registers the collectors with reg and returns the handler. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a private
// registry in tests.
func New(reg prometheus.Registerer) *Handler {
	h := &Handler{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shadow_write_total",
			Help: "Shadow write attempts by outcome.",
		}, []string{"outcome", "entity_type", "operation"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shadow_write_duration_milliseconds",
			Help:    "Shadow write latency in milliseconds, fault injection included.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"entity_type", "operation"}),
	}
	reg.MustRegister(h.writes, h.durations)
	return h
}

// HandleMetric translates one event. Unknown event names are dropped.
func (h *Handler) HandleMetric(event shadowwrite.MetricEvent) {
	switch event.Name {
	case shadowwrite.MetricShadowWriteSuccess:
		h.writes.WithLabelValues("success", event.EntityType, string(event.Operation)).Inc()
	case shadowwrite.MetricShadowWriteFailure:
		h.writes.WithLabelValues("failure", event.EntityType, string(event.Operation)).Inc()
	case shadowwrite.MetricShadowWriteDuration:
		h.durations.WithLabelValues(event.EntityType, string(event.Operation)).Observe(event.Value)
	}
}
