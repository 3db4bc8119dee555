package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/metrics"
)

// BillingMetrics содержит метрики таймеров и расчета ставок.
// Nil-значение допустимо и ничего не записывает.
type BillingMetrics struct {
	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	rateResolutions *prometheus.CounterVec
	billedHours     prometheus.Counter
	entryRejections *prometheus.CounterVec

	tracer trace.Tracer
}

// NewBillingMetrics создает метрики в переданном реестре
func NewBillingMetrics(serviceName string, reg prometheus.Registerer) *BillingMetrics {
	namespace := metrics.Namespace(serviceName)

	operations := metrics.Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "operations_total",
			Help:      "Total number of timer operations by outcome",
		},
		[]string{"operation", "outcome"},
	))

	operationTime := metrics.Register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "operation_duration_seconds",
			Help:      "Duration of timer operations in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	))

	rateResolutions := metrics.Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "resolutions_total",
			Help:      "Base rate resolutions by waterfall source",
		},
		[]string{"source"},
	))

	billedHours := metrics.Register(reg, prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "time_entries",
			Name:      "billed_hours_total",
			Help:      "Rounded hours accepted as draft time entries",
		},
	))

	entryRejections := metrics.Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "time_entries",
			Name:      "rejections_total",
			Help:      "Draft time entries rejected after a timer was stopped",
		},
		[]string{"stage"},
	))

	return &BillingMetrics{
		operations:      operations,
		operationTime:   operationTime,
		rateResolutions: rateResolutions,
		billedHours:     billedHours,
		entryRejections: entryRejections,
		tracer:          otel.Tracer(serviceName),
	}
}

// outcome возвращает метку результата по коду ошибки
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch errors.CodeOf(err) {
	case errors.ErrConflict:
		return "conflict"
	case errors.ErrNotFound:
		return "not_found"
	case errors.ErrForbidden:
		return "forbidden"
	case errors.ErrValidation:
		return "invalid"
	case errors.ErrConfiguration:
		return "misconfigured"
	default:
		return "error"
	}
}

// StartOperation открывает span операции и возвращает функцию завершения,
// которая записывает длительность и результат
func (m *BillingMetrics) StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	if m == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "timer."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		m.operations.WithLabelValues(operation, outcome(err)).Inc()
		m.operationTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// RateResolved учитывает шаг, на котором найдена базовая ставка
func (m *BillingMetrics) RateResolved(source string) {
	if m == nil {
		return
	}
	m.rateResolutions.WithLabelValues(source).Inc()
}

// HoursBilled добавляет принятые часы
func (m *BillingMetrics) HoursBilled(hours decimal.Decimal) {
	if m == nil {
		return
	}
	m.billedHours.Add(hours.InexactFloat64())
}

// EntryRejected учитывает отклоненный черновик; stage: validation или sink
func (m *BillingMetrics) EntryRejected(stage string) {
	if m == nil {
		return
	}
	m.entryRejections.WithLabelValues(stage).Inc()
}
