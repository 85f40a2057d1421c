// Package observability provides OpenTelemetry tracing and metrics for
// nodeflow passes, plus the health model served by the HTTP surface.
//
// Every resolve and flow pass is wrapped by BeginPass, which opens a span,
// tags the context with the pass id for log correlation and records the
// pass duration when it ends:
//
//	ctx, pass := observability.BeginPass(ctx, "nodeflow", "flow", passID, observability.SpanFlow, metrics)
//	defer pass.End(ctx, status, err)
//
// Exporters are OTLP over HTTP; InitTracer and InitMeter return providers
// whose Shutdown flushes pending data.
//
// Health checks run concurrently through CheckAll:
//
//	report := observability.CheckAll(ctx, "nodeflow", version, observability.Named("store", st))
package observability
