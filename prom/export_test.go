package prom

import "github.com/prometheus/client_golang/prometheus"

func (h *Handler) WritesCounter() *prometheus.CounterVec { return h.writes }

func (h *Handler) DurationsHistogram() *prometheus.HistogramVec { return h.durations }
