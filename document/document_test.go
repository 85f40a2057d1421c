package document

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/nodes"
	"github.com/kbukum/nodeflow/store"
)

const counterYAML = `
name: counter
nodes:
  - id: tick
    type: EVENT_LISTENER
    config: {eventName: tick}
  - id: count
    type: STATE
    config: {key: count, initialValue: 0}
  - id: one
    type: VALUE_PROVIDER
    config: {value: 1}
  - id: inc
    type: ADDITION
connections:
  - {fromNode: tick, fromPort: Fired, toNode: count, toPort: Set}
  - {fromNode: count, fromPort: Current, toNode: inc, toPort: Number1}
  - {fromNode: one, fromPort: Value, toNode: inc, toPort: Number2}
  - {fromNode: inc, fromPort: Sum, toNode: count, toPort: Value}
store:
  count: 41
breakpoints: [count]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(nodes.NewRegistry(), store.NewMemory(), engine.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterYAML)

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "counter" || len(doc.Nodes) != 4 || len(doc.Connections) != 4 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !reflect.DeepEqual(doc.Breakpoints, []string{"count"}) {
		t.Fatalf("unexpected breakpoints %v", doc.Breakpoints)
	}
}

func TestLoadFile_JSONNamedAfterFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "single.json",
		`{"nodes":[{"id":"v","type":"VALUE_PROVIDER","config":{"value":3}}]}`)

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "single" {
		t.Fatalf("expected the file name, got %q", doc.Name)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		code errors.ErrorCode
	}{
		{"malformed", "nodes: [", errors.ErrCodeInvalidFormat},
		{"node without type", "nodes: [{id: a}]", errors.ErrCodeInvalidInput},
		{"connection without port", "nodes: []\nconnections: [{fromNode: a, toNode: b, toPort: X}]", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), YAML)
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestBuildAndApply(t *testing.T) {
	doc, err := Parse([]byte(counterYAML), YAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := newEngine(t)
	g, err := Build(doc, e.Registry(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if n, ok := g.Node("inc"); !ok || len(n.Inputs) != 2 {
		t.Fatalf("expected generated ports on inc, got %+v", n)
	}
	if err := Apply(e, doc); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(e.Breakpoints(), []string{"count"}) {
		t.Fatalf("unexpected breakpoints %v", e.Breakpoints())
	}

	v, _, err := e.ResolveSingleOutput(context.Background(), g, "inc", "Sum")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v != 42.0 {
		t.Fatalf("expected the restored store value to flow through, got %v", v)
	}

	meta, err := e.StartExecutionFlow(context.Background(), g, engine.FlowRequest{Event: "tick"})
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if meta.Status != engine.StatusPaused || meta.PausedNode != "count" {
		t.Fatalf("expected a pause at the restored breakpoint, got %s %q", meta.Status, meta.PausedNode)
	}
	e.Cancel()

	var saved Document
	Capture(e, &saved)
	if saved.Store["count"] != 41 {
		t.Fatalf("expected the captured store, got %v", saved.Store)
	}
}

func TestBuild_UnknownType(t *testing.T) {
	doc := &Document{Nodes: []Node{{ID: "x", Type: "NOPE"}}}
	if _, err := Build(doc, nodes.NewRegistry(), nil); !errors.HasCode(err, errors.ErrCodeUnknownNodeType) {
		t.Fatalf("expected UNKNOWN_NODE_TYPE, got %v", err)
	}
}

func TestBuild_InlineContainer(t *testing.T) {
	doc, err := Parse([]byte(`
nodes:
  - id: n
    type: VALUE_PROVIDER
    config: {value: 4}
  - id: box
    type: CONTAINER
    subGraph:
      nodes:
        - {id: in, type: GRAPH_INPUT, config: {port: x}}
        - {id: neg, type: SUBTRACTION}
        - {id: out, type: GRAPH_OUTPUT, config: {port: y}}
      connections:
        - {fromNode: in, fromPort: Value, toNode: neg, toPort: B}
        - {fromNode: neg, fromPort: Difference, toNode: out, toPort: Value}
connections:
  - {fromNode: n, fromPort: Value, toNode: box, toPort: x}
`), YAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := newEngine(t)
	g, err := Build(doc, e.Registry(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	v, _, err := e.ResolveSingleOutput(context.Background(), g, "box", "y")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v != -4.0 {
		t.Fatalf("expected -4, got %v", v)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(counterYAML), YAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "copy.json")
	if err := Save(path, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.Name != "counter" || len(back.Nodes) != len(doc.Nodes) {
		t.Fatalf("unexpected document after save %+v", back)
	}
}

func TestApply_Store(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		opts []ApplyOption
		want map[string]any
	}{
		{"no store section clears", &Document{Name: "other"}, nil, map[string]any{}},
		{"entries replace", &Document{Store: map[string]any{"fresh": 2.0}}, nil, map[string]any{"fresh": 2.0}},
		{"keep without store section", &Document{Name: "other"}, []ApplyOption{KeepStore(true)}, map[string]any{"count": 7.0}},
		{"keep still loads entries", &Document{Store: map[string]any{}}, []ApplyOption{KeepStore(true)}, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			if err := e.Store().Set("count", 7.0); err != nil {
				t.Fatal(err)
			}
			if err := Apply(e, tt.doc, tt.opts...); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got := e.Store().Snapshot(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected store %v, got %v", tt.want, got)
			}
		})
	}
}
