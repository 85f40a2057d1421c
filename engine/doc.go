// Package engine evaluates node graphs in two modes.
//
// ResolveSingleOutput pulls the value of one data output by walking its
// upstream dependencies once per pass, memoizing as it goes, with a depth
// ceiling that turns data cycles into CYCLE_DETECTED errors.
//
// StartExecutionFlow drives execution connections as an imperative
// control-flow graph starting at the event-listener nodes that match an
// event. Hops are visited depth-first in the stored order of connections.
// A node that needs one of its own data inputs pulls it through a nested
// sub-pass that shares the store and depth budget with the flow.
//
// Molecular nodes are evaluated by the engine itself: containers resolve
// their output markers inside the sub-graph, and iterate nodes run their
// body once per collection item, bounded by the loop maximum and the step
// ceiling.
//
// A flow pauses before visiting a node in the breakpoint set. Resume
// continues with breakpoint checks, StepOver runs exactly one hop and
// pauses again, and Cancel stops the active pass at its next poll point.
//
// Node behaviour comes from a Registry of Definitions keyed by node type.
// The built-in catalog lives in package nodes.
package engine
