// Package observability provides metrics, structured logging, and
// distributed tracing for the enrichment engine.
//
// # Metrics
//
// Metrics are Prometheus counters/histograms tracking enrichment
// iterations, terminal outcomes and stop reasons, token spend, per-tool
// call volume, and the Validator's confidence at the iteration a run
// stopped on.
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolCall("fetch_page")
//	metrics.RecordRunOutcome(category, stopReason, iterations, tokensUsed, answerRate, confidence)
//
// # Logging
//
// Logging wraps log/slog with request correlation and redaction of
// sensitive data (API keys, bearer tokens, secrets) that might otherwise
// leak into a log line from client-supplied request text.
//
//	ctx = observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddIteration(ctx, iteration)
//	logger.Info(ctx, "enrichment iteration complete", "tokens_used", tokensUsed)
//
// # Tracing
//
// Tracing uses OpenTelemetry to follow a request across the Planner,
// Executor, and Validator stages of a run.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "rcve"})
//	defer shutdown(context.Background())
//	ctx, span := tracer.Start(ctx, "enrichment_iteration")
//	defer span.End()
package observability
