// Package graph holds the passive node, port and connection records that
// the engine evaluates.
//
// A Graph is a flat list of nodes and connections. Molecular nodes own a
// nested SubGraph with the same shape. Lookup indexes a graph for the
// resolver and stepper; Validate reports structural violations before a
// pass starts.
package graph
