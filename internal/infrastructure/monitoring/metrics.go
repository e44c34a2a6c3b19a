package monitoring

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

const namespace = "tracectx"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls    *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec

	// Tracing metrics
	EngineRegistrations prometheus.Counter
	TracerFailures      prometheus.Counter
	SpansStarted        *prometheus.CounterVec
	SpansFinished       *prometheus.CounterVec
	UnitDuration        *prometheus.HistogramVec
	ContextsCleared     prometheus.Counter

	// Queue metrics
	MessagesPublished *prometheus.CounterVec
	MessagesConsumed  *prometheus.CounterVec
	MessagesDropped   prometheus.Counter
	QueueDepth        prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
	latency  *latencies
}

var _ tracing.Observer = (*Metrics)(nil)

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	SpansStarted    int64   `json:"spans_started"`
	SpansFinished   int64   `json:"spans_finished"`
	SpansFailed     int64   `json:"spans_failed"`
	ContextsCleared int64   `json:"contexts_cleared"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	// Latency summarizes recent unit durations per component
	Latency map[string]LatencySummary `json:"latency"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		latency:   newLatencies(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// gRPC metrics
		GRPCCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_calls_total",
				Help:      "Total number of gRPC calls",
			},
			[]string{"method", "code"},
		),
		GRPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_duration_seconds",
				Help:      "gRPC call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),

		// Tracing metrics
		EngineRegistrations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracer_registrations_total",
				Help:      "Total number of tracing engines registered",
			},
		),
		TracerFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracer_unavailable_total",
				Help:      "Total number of failed tracing engine initializations",
			},
		),
		SpansStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spans_started_total",
				Help:      "Total number of spans started, by parent source",
			},
			[]string{"parent"},
		),
		SpansFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spans_finished_total",
				Help:      "Total number of spans finished, by outcome",
			},
			[]string{"status"},
		),
		UnitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Duration of traced units of work in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"component", "status"},
		),
		ContextsCleared: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contexts_cleared_total",
				Help:      "Total number of trace context stores torn down",
			},
		),

		// Queue metrics
		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_messages_published_total",
				Help:      "Total number of messages published",
			},
			[]string{"topic"},
		),
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_messages_consumed_total",
				Help:      "Total number of messages handled, by outcome",
			},
			[]string{"topic", "status"},
		),
		MessagesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_messages_dropped_total",
				Help:      "Total number of messages rejected because the queue was full",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of messages waiting in the queue",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordGRPCCall records a gRPC call
func (m *Metrics) RecordGRPCCall(method, code string, duration time.Duration) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPublish records a message accepted by the broker
func (m *Metrics) RecordPublish(topic string, depth int) {
	m.MessagesPublished.WithLabelValues(topic).Inc()
	m.QueueDepth.Set(float64(depth))
}

// RecordDrop records a message rejected by a full queue
func (m *Metrics) RecordDrop() {
	m.MessagesDropped.Inc()
}

// RecordConsume records a handled message
func (m *Metrics) RecordConsume(topic, status string, depth int) {
	m.MessagesConsumed.WithLabelValues(topic, status).Inc()
	m.QueueDepth.Set(float64(depth))
}

// EngineRegistered implements tracing.Observer.
func (m *Metrics) EngineRegistered() {
	m.EngineRegistrations.Inc()
}

// TracerUnavailable implements tracing.Observer.
func (m *Metrics) TracerUnavailable() {
	m.TracerFailures.Inc()
}

// SpanStarted implements tracing.Observer.
func (m *Metrics) SpanStarted(parent tracing.ParentKind) {
	m.SpansStarted.WithLabelValues(string(parent)).Inc()

	m.mu.Lock()
	m.snapshot.SpansStarted++
	m.mu.Unlock()
}

// SpanFinished implements tracing.Observer.
func (m *Metrics) SpanFinished(status string) {
	m.SpansFinished.WithLabelValues(status).Inc()

	m.mu.Lock()
	m.snapshot.SpansFinished++
	if status == tracing.StatusFailure {
		m.snapshot.SpansFailed++
	}
	m.mu.Unlock()
}

// UnitCompleted implements tracing.Observer.
func (m *Metrics) UnitCompleted(component, status string, duration time.Duration) {
	m.UnitDuration.WithLabelValues(component, status).Observe(duration.Seconds())
	m.latency.observe(component, duration)
}

// ContextCleared implements tracing.Observer.
func (m *Metrics) ContextCleared() {
	m.ContextsCleared.Inc()

	m.mu.Lock()
	m.snapshot.ContextsCleared++
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	s.Latency = m.latency.summarize()
	return s
}
