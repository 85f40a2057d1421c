package graph

// NodeKind distinguishes leaf nodes from nodes that own a sub-graph.
type NodeKind string

const (
	Atomic    NodeKind = "atomic"
	Molecular NodeKind = "molecular"
)

// PortKind distinguishes value-carrying ports from control pulses.
type PortKind string

const (
	Data      PortKind = "data"
	Execution PortKind = "exec"
)

// Port belongs to exactly one node.
type Port struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     PortKind `json:"kind" yaml:"kind"`
	Category Category `json:"category,omitempty" yaml:"category,omitempty"`
	// Default is used when the input has neither a connection nor a literal.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
}

// LoopConfig configures a bounded loop node.
type LoopConfig struct {
	MaxIterations int `json:"maxIterations" yaml:"maxIterations"`
}

// Node is a typed unit of computation.
type Node struct {
	ID      string         `json:"id" yaml:"id"`
	Type    string         `json:"type" yaml:"type"`
	Kind    NodeKind       `json:"kind,omitempty" yaml:"kind,omitempty"`
	Inputs  []Port         `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []Port         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Literals are per-input overrides used when an input has no connection.
	Literals map[string]any `json:"literals,omitempty" yaml:"literals,omitempty"`
	SubGraph *Graph         `json:"subGraph,omitempty" yaml:"subGraph,omitempty"`
	Loop     *LoopConfig    `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// Input returns the input port with the given id.
func (n *Node) Input(id string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Output returns the output port with the given id.
func (n *Node) Output(id string) (Port, bool) {
	for _, p := range n.Outputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// ExecInputs returns the ids of the node's execution input ports in order.
func (n *Node) ExecInputs() []string {
	var ids []string
	for _, p := range n.Inputs {
		if p.Kind == Execution {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// ExecOutputs returns the ids of the node's execution output ports in order.
func (n *Node) ExecOutputs() []string {
	var ids []string
	for _, p := range n.Outputs {
		if p.Kind == Execution {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// ConfigString returns a string config value or def.
func (n *Node) ConfigString(key, def string) string {
	if v, ok := n.Config[key].(string); ok {
		return v
	}
	return def
}

// ConfigInt returns an integer config value or def. Numeric values decoded
// from JSON or YAML arrive as float64 or int and are both accepted.
func (n *Node) ConfigInt(key string, def int) int {
	switch v := n.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// IsMolecular reports whether the node owns a sub-graph.
func (n *Node) IsMolecular() bool {
	return n.Kind == Molecular || n.SubGraph != nil
}

// Connection wires an output port to an input port.
type Connection struct {
	FromNode string `json:"fromNode" yaml:"fromNode"`
	FromPort string `json:"fromPort" yaml:"fromPort"`
	ToNode   string `json:"toNode" yaml:"toNode"`
	ToPort   string `json:"toPort" yaml:"toPort"`
}

// Graph is a set of nodes and the connections between them.
type Graph struct {
	Nodes       []*Node      `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Node returns the node with the given id by linear scan. Use a Lookup
// for repeated access.
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}
