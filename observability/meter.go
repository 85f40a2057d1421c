package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/nodeflow/logger"
)

// InitMeter installs a periodic OTLP metric provider as the global
// provider and returns it for shutdown.
func InitMeter(ctx context.Context, cfg Config, res Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	r, err := res.build()
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)

	logger.Info("Meter initialized", logger.Fields(
		"service", res.Service,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the engine and the HTTP surface.
type Metrics struct {
	passTotal       metric.Int64Counter
	passDuration    metric.Float64Histogram
	nodeInvocations metric.Int64Counter
	nodeErrors      metric.Int64Counter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	passTotal, err := meter.Int64Counter("pass.total",
		metric.WithDescription("Total number of resolve and flow passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pass.total counter: %w", err)
	}

	passDuration, err := meter.Float64Histogram("pass.duration",
		metric.WithDescription("Duration of passes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pass.duration histogram: %w", err)
	}

	nodeInvocations, err := meter.Int64Counter("node.invocations",
		metric.WithDescription("Node resolve and step invocations by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.invocations counter: %w", err)
	}

	nodeErrors, err := meter.Int64Counter("node.errors",
		metric.WithDescription("Node failures by type and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.errors counter: %w", err)
	}

	requestTotal, err := meter.Int64Counter("request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	requestActive, err := meter.Int64UpDownCounter("request.active",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.active gauge: %w", err)
	}

	return &Metrics{
		passTotal:       passTotal,
		passDuration:    passDuration,
		nodeInvocations: nodeInvocations,
		nodeErrors:      nodeErrors,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestActive:   requestActive,
	}, nil
}

// RecordPass records a finished pass. entry is "resolve" or "flow".
func (m *Metrics) RecordPass(ctx context.Context, entry, status string, duration time.Duration) {
	m.passTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry", entry),
		attribute.String("status", status),
	))
	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("entry", entry),
	))
}

// RecordNode records one invocation of a node callback. phase is
// "resolve" or "step".
func (m *Metrics) RecordNode(ctx context.Context, nodeType, phase string) {
	m.nodeInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", nodeType),
		attribute.String("phase", phase),
	))
}

// RecordNodeError records a node failure.
func (m *Metrics) RecordNodeError(ctx context.Context, nodeType, code string) {
	m.nodeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", nodeType),
		attribute.String("code", code),
	))
}

// RecordRequestStart increments the in-flight request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements in-flight requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, route, status string, duration time.Duration) {
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
	))
}
