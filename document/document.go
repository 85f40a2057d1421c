package document

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/nodes"
	"github.com/kbukum/nodeflow/store"
	"github.com/kbukum/nodeflow/validation"
)

// Format is the encoding of a document file.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the format from a file extension. Unknown extensions are
// read as YAML, which also accepts JSON.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// Document is a persisted graph plus its session state.
type Document struct {
	Name        string         `json:"name" yaml:"name"`
	Nodes       []Node         `json:"nodes" yaml:"nodes" validate:"dive"`
	Connections []Connection   `json:"connections,omitempty" yaml:"connections,omitempty" validate:"dive"`
	Store       map[string]any `json:"store,omitempty" yaml:"store,omitempty"`
	Breakpoints []string       `json:"breakpoints,omitempty" yaml:"breakpoints,omitempty"`
}

// Node is a graph node as written on disk. Ports may be omitted and are
// then generated from the node type. A molecular node takes its sub-graph
// either inline or from the document named by Include.
type Node struct {
	ID       string            `json:"id" yaml:"id" validate:"required"`
	Type     string            `json:"type" yaml:"type" validate:"required"`
	Inputs   []graph.Port      `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs  []graph.Port      `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Config   map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	Literals map[string]any    `json:"literals,omitempty" yaml:"literals,omitempty"`
	Loop     *graph.LoopConfig `json:"loop,omitempty" yaml:"loop,omitempty"`
	SubGraph *SubGraph         `json:"subGraph,omitempty" yaml:"subGraph,omitempty"`
	Include  string            `json:"include,omitempty" yaml:"include,omitempty"`
}

// SubGraph is an inline sub-graph.
type SubGraph struct {
	Nodes       []Node       `json:"nodes" yaml:"nodes" validate:"dive"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty" validate:"dive"`
}

// Connection is a directed edge as written on disk.
type Connection struct {
	FromNode string `json:"fromNode" yaml:"fromNode" validate:"required"`
	FromPort string `json:"fromPort" yaml:"fromPort" validate:"required"`
	ToNode   string `json:"toNode" yaml:"toNode" validate:"required"`
	ToPort   string `json:"toPort" yaml:"toPort" validate:"required"`
}

// Parse decodes and validates a document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.InvalidFormat("document", string(format)).WithCause(err)
	}
	if err := validation.Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	if format == JSON {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}

// Build converts doc into an executable graph. Includes are loaded through
// loader, which may be nil when the document has none.
func Build(doc *Document, reg *engine.Registry, loader Loader) (*graph.Graph, error) {
	b := &builder{
		reg:      reg,
		loader:   loader,
		stack:    make(map[string]bool),
		resolved: make(map[string]*graph.Graph),
	}
	b.stack[doc.Name] = true
	g, err := b.graph(doc.Nodes, doc.Connections)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

type builder struct {
	reg    *engine.Registry
	loader Loader
	// stack is the current include path; resolved caches finished includes.
	stack    map[string]bool
	resolved map[string]*graph.Graph
}

func (b *builder) graph(ns []Node, cs []Connection) (*graph.Graph, error) {
	g := &graph.Graph{
		Nodes:       make([]*graph.Node, 0, len(ns)),
		Connections: make([]graph.Connection, 0, len(cs)),
	}
	for i := range ns {
		n, err := b.node(&ns[i])
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, c := range cs {
		g.Connections = append(g.Connections, graph.Connection(c))
	}
	return g, nil
}

func (b *builder) node(dn *Node) (*graph.Node, error) {
	n, err := b.reg.Instantiate(dn.ID, dn.Type, dn.Config)
	if err != nil {
		return nil, err
	}
	n.Literals = dn.Literals
	n.Loop = dn.Loop

	switch {
	case dn.Include != "" && dn.SubGraph != nil:
		return nil, errors.InvalidInput("include", fmt.Sprintf("node %s has both an inline sub-graph and an include", dn.ID))
	case dn.Include != "":
		if n.SubGraph, err = b.include(dn.Include); err != nil {
			return nil, err
		}
	case dn.SubGraph != nil:
		if n.SubGraph, err = b.graph(dn.SubGraph.Nodes, dn.SubGraph.Connections); err != nil {
			return nil, err
		}
	}
	if n.SubGraph != nil {
		n.Kind = graph.Molecular
		if n.Type == nodes.TypeContainer && len(dn.Inputs) == 0 && len(dn.Outputs) == 0 {
			n.Inputs, n.Outputs = nodes.ContainerPorts(n.SubGraph)
		}
	}
	if len(dn.Inputs) > 0 || len(dn.Outputs) > 0 {
		n.Inputs, n.Outputs = dn.Inputs, dn.Outputs
	}
	return n, nil
}

func (b *builder) include(name string) (*graph.Graph, error) {
	if b.stack[name] {
		return nil, errors.InvalidInput("include", fmt.Sprintf("circular include of document %q", name))
	}
	if g, ok := b.resolved[name]; ok {
		return g, nil
	}
	if b.loader == nil {
		return nil, errors.NotFound("document", name)
	}
	sub, err := b.loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("document: loading include %q: %w", name, err)
	}

	b.stack[name] = true
	defer delete(b.stack, name)
	g, err := b.graph(sub.Nodes, sub.Connections)
	if err != nil {
		return nil, err
	}
	b.resolved[name] = g
	return g, nil
}

// ApplyOption configures Apply.
type ApplyOption func(*applyOptions)

type applyOptions struct {
	keepStore bool
}

// KeepStore makes Apply leave the store alone when the document has no
// store section, so a persistent store keeps the entries of earlier runs.
func KeepStore(keep bool) ApplyOption {
	return func(o *applyOptions) { o.keepStore = keep }
}

// Apply restores the session state of doc on e. The global store is
// cleared and filled with the document entries, and the breakpoint set is
// replaced by the document breakpoints.
func Apply(e *engine.Engine, doc *Document, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if doc.Store != nil || !o.keepStore {
		if err := store.Load(e.Store(), doc.Store); err != nil {
			return err
		}
	}
	e.SetBreakpoints(doc.Breakpoints)
	return nil
}

// Capture records the session state of e into doc.
func Capture(e *engine.Engine, doc *Document) {
	doc.Store = e.Store().Snapshot()
	doc.Breakpoints = e.Breakpoints()
}
