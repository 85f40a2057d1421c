package engine

import (
	"github.com/kbukum/nodeflow/graph"
)

// ResolvedState is the memo of one pass over one scope: the value of
// every output produced so far, and which nodes have been evaluated.
type ResolvedState struct {
	values    map[graph.PortRef]any
	evaluated map[string]bool
}

func newResolvedState() *ResolvedState {
	return &ResolvedState{
		values:    make(map[graph.PortRef]any),
		evaluated: make(map[string]bool),
	}
}

// Get returns a memoized output value.
func (s *ResolvedState) Get(nodeID, portID string) (any, bool) {
	v, ok := s.values[graph.PortRef{Node: nodeID, Port: portID}]
	return v, ok
}

// Evaluated reports whether the node's outputs were computed in this pass.
func (s *ResolvedState) Evaluated(nodeID string) bool {
	return s.evaluated[nodeID]
}

// Len returns the number of memoized outputs.
func (s *ResolvedState) Len() int { return len(s.values) }

func (s *ResolvedState) put(nodeID string, outputs map[string]any) {
	s.evaluated[nodeID] = true
	for port, v := range outputs {
		s.values[graph.PortRef{Node: nodeID, Port: port}] = v
	}
}

func (s *ResolvedState) putPort(nodeID, portID string, v any) {
	s.values[graph.PortRef{Node: nodeID, Port: portID}] = v
}

// scope is one graph level during a run: the top-level graph, a container
// sub-graph or a loop body. Seeds are values injected by the engine
// (event payloads, marker inputs, loop items and loop results) and take
// precedence over evaluation.
type scope struct {
	lookup    *graph.Lookup
	parent    *scope
	owner     *graph.Node
	seeds     map[graph.PortRef]any
	iteration *IterationData
	// containerInputs holds the resolved inputs of the owning container.
	containerInputs map[string]any
}

func newScope(g *graph.Graph, parent *scope, owner *graph.Node) *scope {
	return &scope{
		lookup: graph.NewLookup(g),
		parent: parent,
		owner:  owner,
		seeds:  make(map[graph.PortRef]any),
	}
}

func (s *scope) seed(nodeID, portID string, v any) {
	s.seeds[graph.PortRef{Node: nodeID, Port: portID}] = v
}

func (s *scope) seeded(nodeID, portID string) (any, bool) {
	v, ok := s.seeds[graph.PortRef{Node: nodeID, Port: portID}]
	return v, ok
}

// iterationData returns the innermost loop iteration enclosing s.
func (s *scope) iterationData() *IterationData {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.iteration != nil {
			return sc.iteration
		}
	}
	return nil
}
