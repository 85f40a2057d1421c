package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/nodeflow/logger"
)

// Pass tracks one engine pass from span start to metric record.
type Pass struct {
	Service   string
	Operation string
	ID        string
	Started   time.Time

	span    trace.Span
	metrics *Metrics
}

type passKey struct{}

// BeginPass starts the span for a pass and returns a context carrying the
// pass, its span and its id for log correlation. metrics may be nil.
func BeginPass(ctx context.Context, service, operation, passID, spanName string, metrics *Metrics) (context.Context, *Pass) {
	p := &Pass{
		Service:   service,
		Operation: operation,
		ID:        passID,
		Started:   time.Now(),
		metrics:   metrics,
	}
	ctx, p.span = StartSpan(ctx, spanName)
	p.span.SetAttributes(
		attribute.String(AttrServiceName, service),
		attribute.String(AttrOperationName, operation),
		attribute.String(AttrPassID, passID),
	)
	ctx = logger.ContextWithPassID(ctx, passID)
	return context.WithValue(ctx, passKey{}, p), p
}

// PassFromContext returns the pass started by BeginPass, or nil.
func PassFromContext(ctx context.Context) *Pass {
	p, _ := ctx.Value(passKey{}).(*Pass)
	return p
}

// End closes the span with the final status and records the pass metric.
func (p *Pass) End(ctx context.Context, status string, err error) {
	elapsed := p.Elapsed()
	recordError(p.span, err)
	p.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, elapsed.Milliseconds()),
	)
	p.span.End()

	if p.metrics != nil {
		p.metrics.RecordPass(ctx, p.Operation, status, elapsed)
	}
}

// Elapsed returns the time since the pass began.
func (p *Pass) Elapsed() time.Duration {
	return time.Since(p.Started)
}
