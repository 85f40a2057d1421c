package graph

// PortRef addresses one port of one node.
type PortRef struct {
	Node string
	Port string
}

// Lookup indexes a graph for constant-time access during a pass.
type Lookup struct {
	graph    *Graph
	nodes    map[string]*Node
	inbound  map[PortRef]Connection
	outbound map[PortRef][]Connection
}

// NewLookup builds the index. Outbound connections keep their stored order.
// When a data input has several inbound connections the first one wins;
// Validate reports that case.
func NewLookup(g *Graph) *Lookup {
	l := &Lookup{
		graph:    g,
		nodes:    make(map[string]*Node, len(g.Nodes)),
		inbound:  make(map[PortRef]Connection),
		outbound: make(map[PortRef][]Connection),
	}
	for _, n := range g.Nodes {
		l.nodes[n.ID] = n
	}
	for _, c := range g.Connections {
		to := PortRef{Node: c.ToNode, Port: c.ToPort}
		if _, ok := l.inbound[to]; !ok {
			l.inbound[to] = c
		}
		from := PortRef{Node: c.FromNode, Port: c.FromPort}
		l.outbound[from] = append(l.outbound[from], c)
	}
	return l
}

// Graph returns the indexed graph.
func (l *Lookup) Graph() *Graph { return l.graph }

// Node returns a node by id.
func (l *Lookup) Node(id string) (*Node, bool) {
	n, ok := l.nodes[id]
	return n, ok
}

// Inbound returns the connection feeding an input port.
func (l *Lookup) Inbound(nodeID, portID string) (Connection, bool) {
	c, ok := l.inbound[PortRef{Node: nodeID, Port: portID}]
	return c, ok
}

// Outbound returns the connections leaving an output port in stored order.
func (l *Lookup) Outbound(nodeID, portID string) []Connection {
	return l.outbound[PortRef{Node: nodeID, Port: portID}]
}

// NodesOfType returns the nodes of a given type in graph order.
func (l *Lookup) NodesOfType(nodeType string) []*Node {
	var out []*Node
	for _, n := range l.graph.Nodes {
		if n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out
}
