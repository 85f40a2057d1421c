package graph

import (
	"fmt"

	"github.com/kbukum/nodeflow/errors"
)

// Validate checks the structural invariants of g and every nested
// sub-graph. All violations are collected into one INVALID_GRAPH error.
func Validate(g *Graph) error {
	var problems []string
	validateInto(g, "", &problems)
	if len(problems) > 0 {
		return errors.InvalidGraph(problems)
	}
	return nil
}

func validateInto(g *Graph, prefix string, problems *[]string) {
	report := func(format string, args ...any) {
		*problems = append(*problems, prefix+fmt.Sprintf(format, args...))
	}

	nodes := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			report("node of type %q has no id", n.Type)
			continue
		}
		if _, dup := nodes[n.ID]; dup {
			report("duplicate node id %q", n.ID)
			continue
		}
		nodes[n.ID] = n
		for _, p := range append(append([]Port{}, n.Inputs...), n.Outputs...) {
			if !p.Category.Valid() {
				report("node %q port %q has unknown category %q", n.ID, p.ID, p.Category)
			}
		}
		if n.Kind == Molecular && n.SubGraph == nil {
			report("molecular node %q has no sub-graph", n.ID)
		}
		if n.Loop != nil && n.Loop.MaxIterations < 0 {
			report("node %q has negative maxIterations", n.ID)
		}
	}

	fanIn := make(map[PortRef]int)
	for i, c := range g.Connections {
		from, ok := nodes[c.FromNode]
		if !ok {
			report("connection %d: unknown source node %q", i, c.FromNode)
			continue
		}
		to, ok := nodes[c.ToNode]
		if !ok {
			report("connection %d: unknown target node %q", i, c.ToNode)
			continue
		}
		out, ok := from.Output(c.FromPort)
		if !ok {
			report("connection %d: node %q has no output %q", i, c.FromNode, c.FromPort)
			continue
		}
		in, ok := to.Input(c.ToPort)
		if !ok {
			report("connection %d: node %q has no input %q", i, c.ToNode, c.ToPort)
			continue
		}
		if out.Kind != in.Kind {
			report("connection %d: %s.%s (%s) cannot connect to %s.%s (%s)",
				i, c.FromNode, c.FromPort, out.Kind, c.ToNode, c.ToPort, in.Kind)
			continue
		}
		if in.Kind == Data {
			if !Compatible(out.Category, in.Category) {
				report("connection %d: category %s of %s.%s is incompatible with %s of %s.%s",
					i, out.Category.normalize(), c.FromNode, c.FromPort, in.Category.normalize(), c.ToNode, c.ToPort)
			}
			ref := PortRef{Node: c.ToNode, Port: c.ToPort}
			fanIn[ref]++
			if fanIn[ref] == 2 {
				report("data input %s.%s has more than one inbound connection", c.ToNode, c.ToPort)
			}
		}
	}

	for _, n := range g.Nodes {
		if n.SubGraph != nil {
			validateInto(n.SubGraph, prefix+n.ID+"/", problems)
		}
	}
}
