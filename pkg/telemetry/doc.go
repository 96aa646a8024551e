// Package telemetry provides observability for ironbar: structured logging
// (zerolog), tracing (OpenTelemetry), metrics (Prometheus) and an event
// publisher used as the diagnostic sink for dynamic strings.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger.NewComponentLogger("dynamic")
//	logger.WithTemplateID(id).Info("Template subscribed")
//
// Tests and embedders that do not care about telemetry use NewNop, which
// discards logs, registers no metrics and exports no spans.
//
// # Events
//
// Producers report stderr output, failures and exits as events:
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// # Metrics
//
// Metrics are registered on a private registry and served by
// StartMetricsServer at MetricsConfig.Path:
//
//   - ironbar_templates_active
//   - ironbar_producers_active{kind}
//   - ironbar_slot_updates_total{kind}
//   - ironbar_renders_total
//   - ironbar_render_callback_duration_seconds
//   - ironbar_diagnostics_total{kind}
//   - ironbar_producer_errors_total{kind,code}
//   - ironbar_parse_errors_total{code}
package telemetry
