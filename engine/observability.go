package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
)

const (
	phaseResolve = "resolve"
	phaseStep    = "step"
)

// TraceNodes wraps node callbacks with a "nodeflow.node" span.
func TraceNodes() Decorator {
	return func(def Definition) Definition {
		if inner := def.Resolve; inner != nil {
			def.Resolve = func(ctx context.Context, call *ResolveCall) (map[string]any, error) {
				ctx, span := startNodeSpan(ctx, call.Node.ID, def.Type, phaseResolve)
				defer span.End()
				out, err := inner(ctx, call)
				if err != nil {
					observability.SetSpanError(ctx, err)
				}
				return out, err
			}
		}
		if inner := def.Step; inner != nil {
			def.Step = func(ctx context.Context, call *StepCall) (StepResult, error) {
				ctx, span := startNodeSpan(ctx, call.Node.ID, def.Type, phaseStep)
				defer span.End()
				observability.SetSpanAttribute(ctx, observability.AttrPortID, call.Triggered)
				res, err := inner(ctx, call)
				if err != nil {
					observability.SetSpanError(ctx, err)
				}
				return res, err
			}
		}
		return def
	}
}

func startNodeSpan(ctx context.Context, nodeID, nodeType, phase string) (context.Context, trace.Span) {
	ctx, span := observability.StartSpan(ctx, observability.SpanNode)
	observability.SetSpanAttribute(ctx, observability.AttrNodeID, nodeID)
	observability.SetSpanAttribute(ctx, observability.AttrNodeType, nodeType)
	observability.SetSpanAttribute(ctx, "nodeflow.phase", phase)
	return ctx, span
}

// MeterNodes counts node invocations and failures.
func MeterNodes(metrics *observability.Metrics) Decorator {
	return func(def Definition) Definition {
		record := func(ctx context.Context, phase string, err error) {
			metrics.RecordNode(ctx, def.Type, phase)
			if err != nil {
				metrics.RecordNodeError(ctx, def.Type, string(errorCode(err)))
			}
		}
		if inner := def.Resolve; inner != nil {
			def.Resolve = func(ctx context.Context, call *ResolveCall) (map[string]any, error) {
				out, err := inner(ctx, call)
				record(ctx, phaseResolve, err)
				return out, err
			}
		}
		if inner := def.Step; inner != nil {
			def.Step = func(ctx context.Context, call *StepCall) (StepResult, error) {
				res, err := inner(ctx, call)
				record(ctx, phaseStep, err)
				return res, err
			}
		}
		return def
	}
}

// LogNodes logs every node callback at debug level.
func LogNodes(log *logger.Logger) Decorator {
	return func(def Definition) Definition {
		entry := func(ctx context.Context, nodeID, phase string, start time.Time, err error) {
			fields := logger.Fields(
				logger.FieldNodeID, nodeID,
				logger.FieldNodeType, def.Type,
				"phase", phase,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			if err != nil {
				log.WithContext(ctx).Debug("node callback failed", logger.MergeWithError(fields, err))
				return
			}
			log.WithContext(ctx).Debug("node callback completed", fields)
		}
		if inner := def.Resolve; inner != nil {
			def.Resolve = func(ctx context.Context, call *ResolveCall) (map[string]any, error) {
				start := time.Now()
				out, err := inner(ctx, call)
				entry(ctx, call.Node.ID, phaseResolve, start, err)
				return out, err
			}
		}
		if inner := def.Step; inner != nil {
			def.Step = func(ctx context.Context, call *StepCall) (StepResult, error) {
				start := time.Now()
				res, err := inner(ctx, call)
				entry(ctx, call.Node.ID, phaseStep, start, err)
				return res, err
			}
		}
		return def
	}
}

func errorCode(err error) errors.ErrorCode {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code
	}
	return errors.ErrCodeOperationFailed
}
