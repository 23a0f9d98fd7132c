// Package observability provides logging, Prometheus metrics and OpenTelemetry
// tracing setup for the plugin host.
//
// # Logging
//
//	logger, err := observability.NewLogger("info", observability.FormatText, os.Stderr)
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.PackagesSkippedTotal.WithLabelValues("inspect").Inc()
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, observability.TracingConfig{Endpoint: "localhost:4317"}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
package observability
