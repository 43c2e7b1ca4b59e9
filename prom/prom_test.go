package prom_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rentfold/shadowwrite"
	"github.com/rentfold/shadowwrite/prom"
)

func TestHandlerCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := prom.New(reg)

	h.HandleMetric(shadowwrite.MetricEvent{
		Name:       shadowwrite.MetricShadowWriteSuccess,
		EntityType: "properties",
		Operation:  shadowwrite.OpCreate,
		Value:      1,
	})
	h.HandleMetric(shadowwrite.MetricEvent{
		Name:       shadowwrite.MetricShadowWriteSuccess,
		EntityType: "properties",
		Operation:  shadowwrite.OpCreate,
		Value:      1,
	})
	h.HandleMetric(shadowwrite.MetricEvent{
		Name:       shadowwrite.MetricShadowWriteFailure,
		EntityType: "listings",
		Operation:  shadowwrite.OpDelete,
		Value:      1,
	})

	success := h.WritesCounter().WithLabelValues("success", "properties", "create")
	failure := h.WritesCounter().WithLabelValues("failure", "listings", "delete")
	assert.Equal(t, float64(2), testutil.ToFloat64(success))
	assert.Equal(t, float64(1), testutil.ToFloat64(failure))
}

func TestHandlerObservesDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := prom.New(reg)

	h.HandleMetric(shadowwrite.MetricEvent{
		Name:       shadowwrite.MetricShadowWriteDuration,
		EntityType: "properties",
		Operation:  shadowwrite.OpUpdate,
		Value:      3.5,
	})

	count := testutil.CollectAndCount(h.DurationsHistogram(), "shadow_write_duration_milliseconds")
	assert.Equal(t, 1, count)
}

func TestHandlerDropsUnknownEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := prom.New(reg)

	// Must neither panic nor create a series.
	h.HandleMetric(shadowwrite.MetricEvent{Name: "unrelated_event", Value: 42})

	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		assert.Empty(t, mf.GetMetric())
	}
}
