package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/errors"
)

func gather(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestBillingMetrics_StartOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics("billing-service", reg)

	_, done := m.StartOperation(context.Background(), "start")
	done(nil)
	_, done = m.StartOperation(context.Background(), "start")
	done(errors.New(errors.ErrConflict, "duplicate"))

	assert.Equal(t, 1.0, gather(t, reg, "billing_service_timer_operations_total",
		map[string]string{"operation": "start", "outcome": "success"}))
	assert.Equal(t, 1.0, gather(t, reg, "billing_service_timer_operations_total",
		map[string]string{"operation": "start", "outcome": "conflict"}))
}

func TestBillingMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics("billing-service", reg)

	m.RateResolved("case_default")
	m.HoursBilled(decimal.RequireFromString("0.1"))
	m.HoursBilled(decimal.RequireFromString("1.5"))
	m.EntryRejected("validation")

	assert.Equal(t, 1.0, gather(t, reg, "billing_service_rates_resolutions_total", map[string]string{"source": "case_default"}))
	assert.InDelta(t, 1.6, gather(t, reg, "billing_service_time_entries_billed_hours_total", nil), 1e-9)
	assert.Equal(t, 1.0, gather(t, reg, "billing_service_time_entries_rejections_total", map[string]string{"stage": "validation"}))
}

func TestBillingMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewBillingMetrics("billing-service", reg)
	second := NewBillingMetrics("billing-service", reg)

	first.RateResolved("firm_default")
	second.RateResolved("firm_default")
	assert.Equal(t, 2.0, gather(t, reg, "billing_service_rates_resolutions_total", map[string]string{"source": "firm_default"}))
}

func TestBillingMetrics_NilSafe(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		_, done := m.StartOperation(context.Background(), "pause")
		done(nil)
		m.RateResolved("explicit")
		m.HoursBilled(decimal.NewFromInt(1))
		m.EntryRejected("sink")
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "not_found", outcome(errors.New(errors.ErrNotFound, "x")))
	assert.Equal(t, "error", outcome(assert.AnError))
}
