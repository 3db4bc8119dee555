package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"LegalPracticePlatform/pkg/logger"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// Metrics представляет систему метрик HTTP слоя
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsCount     *prometheus.CounterVec
	InFlight        prometheus.Gauge

	// OpenTelemetry Tracer
	Tracer trace.Tracer `json:"-"`

	gatherer prometheus.Gatherer
}

// Namespace приводит имя сервиса к допустимому имени Prometheus
func Namespace(serviceName string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(serviceName)
}

// Register регистрирует коллектор; при повторной регистрации возвращает уже
// зарегистрированный экземпляр
func Register[T prometheus.Collector](reg prometheus.Registerer, collector T) T {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// NewMetrics создает систему метрик в глобальном реестре Prometheus
func NewMetrics(serviceName string) *Metrics {
	return NewMetricsWithRegistry(serviceName, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry создает систему метрик в переданном реестре
func NewMetricsWithRegistry(serviceName string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	namespace := Namespace(serviceName)

	requestCount := Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	))

	requestDuration := Register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	))

	errorsCount := Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of HTTP errors",
		},
		[]string{"method", "endpoint", "error_type"},
	))

	inFlight := Register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests being served",
		},
	))

	return &Metrics{
		RequestCount:    requestCount,
		RequestDuration: requestDuration,
		ErrorsCount:     errorsCount,
		InFlight:        inFlight,
		Tracer:          otel.Tracer(serviceName),
		gatherer:        gatherer,
	}
}

// GetHandler возвращает HTTP обработчик для эндпоинта /metrics
func (m *Metrics) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware создает middleware для сбора метрик и трассировки.
// В контекст запроса кладется trace_id для логов.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.Tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		ctx = logger.WithTraceID(ctx, traceIDFor(ctx, r))
		r = r.WithContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		m.InFlight.Inc()
		start := time.Now()

		next.ServeHTTP(wrapped, r)

		m.InFlight.Dec()
		duration := time.Since(start).Seconds()

		// Шаблон маршрута вместо пути, чтобы id таймеров не раздували кардинальность
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)

		if wrapped.statusCode >= 400 {
			errorType := "client_error"
			if wrapped.statusCode >= 500 {
				errorType = "server_error"
			}
			m.ErrorsCount.WithLabelValues(r.Method, endpoint, errorType).Inc()
		}

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", endpoint),
			attribute.Int("http.status_code", wrapped.statusCode),
			attribute.Float64("http.duration", duration),
		)
	})
}

// traceIDFor берет trace_id из активного спана, затем из X-Request-ID, иначе генерирует новый
func traceIDFor(ctx context.Context, r *http.Request) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// responseWriter обертка для перехвата статуса ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader перехватывает установку статуса
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// InitializeOpenTelemetry устанавливает глобальный провайдер трассировки.
// Возвращает функцию остановки провайдера.
func InitializeOpenTelemetry(serviceName, version string) func(context.Context) error {
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.AlwaysSample())),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown
}
