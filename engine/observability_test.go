package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
)

func TestTraceNodes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	f := newFixture(t)
	f.reg.Use(TraceNodes())
	e := f.engine(t)

	if _, err := e.StartExecutionFlow(context.Background(), f.chain(t), FlowRequest{Event: "go"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var flows, nodes int
	for _, s := range exporter.GetSpans() {
		switch s.Name {
		case observability.SpanFlow:
			flows++
		case observability.SpanNode:
			nodes++
		}
	}
	if flows != 1 || nodes != 3 {
		t.Fatalf("expected 1 flow span and 3 node spans, got %d and %d", flows, nodes)
	}
}

func TestMeterNodes(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	f := newFixture(t)
	f.reg.Use(MeterNodes(metrics))
	e := f.engine(t, WithMetrics(metrics))

	g := &graph.Graph{Nodes: []*graph.Node{f.node(t, "bad", "FAIL", nil)}}
	_, meta, _ := e.ResolveSingleOutput(context.Background(), g, "bad", "Out")
	if meta.Status != StatusError {
		t.Fatalf("expected the decorated failure to surface, got %s", meta.Status)
	}
}

func TestLogNodes(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t)
	f.reg.Use(LogNodes(logger.NewWithWriter(&buf, "debug", "test")))
	e := f.engine(t)

	g := &graph.Graph{Nodes: []*graph.Node{f.node(t, "c", "CONST", map[string]any{"value": 1})}}
	if _, _, err := e.ResolveSingleOutput(context.Background(), g, "c", "Out"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "node callback completed") || !strings.Contains(out, `"node_id":"c"`) {
		t.Fatalf("expected a debug entry for c, got %q", out)
	}
}
