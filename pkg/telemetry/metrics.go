package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for dynamic strings. A Metrics created
// with metrics disabled accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	templatesActive  prometheus.Gauge
	producersActive  *prometheus.GaugeVec
	slotUpdates      *prometheus.CounterVec
	renders          prometheus.Counter
	callbackDuration prometheus.Histogram
	diagnostics      *prometheus.CounterVec
	producerErrors   *prometheus.CounterVec
	parseErrors      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		templatesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "templates_active",
				Help:      "Current number of subscribed dynamic strings",
			},
		),
		producersActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "producers_active",
				Help:      "Current number of running segment producers",
			},
			[]string{"kind"},
		),
		slotUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slot_updates_total",
				Help:      "Total number of segment slot updates",
			},
			[]string{"kind"},
		),
		renders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of renders delivered to callbacks",
			},
		),
		callbackDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_callback_duration_seconds",
				Help:      "Time spent inside render callbacks on the main loop",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnostics_total",
				Help:      "Total number of diagnostic outputs from producers",
			},
			[]string{"kind"},
		),
		producerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "producer_errors_total",
				Help:      "Total number of producers that failed to start",
			},
			[]string{"kind", "code"},
		),
		parseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of templates rejected by the parser",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.templatesActive,
		m.producersActive,
		m.slotUpdates,
		m.renders,
		m.callbackDuration,
		m.diagnostics,
		m.producerErrors,
		m.parseErrors,
	)

	return m, nil
}

// NewNopMetrics returns a collector that records nothing.
func NewNopMetrics() *Metrics {
	return &Metrics{}
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TemplateSubscribed increments the active template gauge.
func (m *Metrics) TemplateSubscribed() {
	if m.templatesActive == nil {
		return
	}
	m.templatesActive.Inc()
}

// TemplateClosed decrements the active template gauge.
func (m *Metrics) TemplateClosed() {
	if m.templatesActive == nil {
		return
	}
	m.templatesActive.Dec()
}

// ProducerStarted increments the running producer gauge for kind.
func (m *Metrics) ProducerStarted(kind string) {
	if m.producersActive == nil {
		return
	}
	m.producersActive.WithLabelValues(kind).Inc()
}

// ProducerStopped decrements the running producer gauge for kind.
func (m *Metrics) ProducerStopped(kind string) {
	if m.producersActive == nil {
		return
	}
	m.producersActive.WithLabelValues(kind).Dec()
}

// RecordSlotUpdate counts a slot write by a producer of kind.
func (m *Metrics) RecordSlotUpdate(kind string) {
	if m.slotUpdates == nil {
		return
	}
	m.slotUpdates.WithLabelValues(kind).Inc()
}

// RecordRender counts a delivered render and the time its callback took.
func (m *Metrics) RecordRender(duration time.Duration) {
	if m.renders == nil {
		return
	}
	m.renders.Inc()
	m.callbackDuration.Observe(duration.Seconds())
}

// RecordDiagnostic counts a diagnostic output.
func (m *Metrics) RecordDiagnostic(kind string) {
	if m.diagnostics == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

// RecordProducerError counts a producer failure.
func (m *Metrics) RecordProducerError(kind, code string) {
	if m.producerErrors == nil {
		return
	}
	m.producerErrors.WithLabelValues(kind, code).Inc()
}

// RecordParseError counts a rejected template.
func (m *Metrics) RecordParseError(code string) {
	if m.parseErrors == nil {
		return
	}
	m.parseErrors.WithLabelValues(code).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. The returned
// server is nil when metrics are disabled.
func (m *Metrics) StartMetricsServer() (*http.Server, error) {
	if !m.config.Enabled {
		return nil, nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return server, nil
}
