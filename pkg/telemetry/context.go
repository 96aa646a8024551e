package telemetry

import (
	"context"
	"errors"
	"net/http"
)

// Telemetry bundles logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config

	metricsServer *http.Server
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// NewNop returns telemetry that records nothing.
func NewNop() *Telemetry {
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  NewNopTracer(),
		Metrics: NewNopMetrics(),
		Events:  NewNopEventPublisher(),
		Config:  DefaultConfig(),
	}
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	server, err := t.Metrics.StartMetricsServer()
	if err != nil {
		return err
	}
	t.metricsServer = server
	return nil
}

// Flush forces all pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// Shutdown stops all telemetry components in reverse order of creation.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.metricsServer != nil {
		errs = append(errs, t.metricsServer.Shutdown(ctx))
	}
	errs = append(errs, t.Events.Shutdown(ctx))
	errs = append(errs, t.Tracer.Shutdown(ctx))
	return errors.Join(errs...)
}
