package engine

import (
	"context"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/store"
)

// Port ids and config keys the engine itself interprets.
const (
	PortValue           = "Value"
	PortCollection      = "Collection"
	PortStart           = "Start"
	PortDone            = "Done"
	PortResults         = "Results"
	PortCompletedStatus = "CompletedStatus"
	PortItem            = "Item"
	PortIndex           = "Index"

	// ConfigMarkerPort names the container port a marker node stands for.
	ConfigMarkerPort = "port"
	// ConfigMaxIterations is the per-node loop maximum.
	ConfigMaxIterations = "maxIterations"
)

// Capability is a bitset of optional node behaviours.
type Capability uint8

const (
	CapMultiInput Capability = 1 << iota
	CapControlFlow
	CapEventListener
	CapStateful
)

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool { return c&o == o }

// Role marks nodes the scope executor treats specially inside sub-graphs.
type Role int

const (
	RoleNone Role = iota
	RoleInputMarker
	RoleOutputMarker
	RoleLoopItem
	RoleIterationResult
)

// ScopeKind selects engine-owned evaluation for molecular nodes.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeContainer
	ScopeLoop
)

// PortFunc generates the ports of a node from its config.
type PortFunc func(nodeID string, config map[string]any) (inputs, outputs []graph.Port)

// ResolveFunc computes some or all of a node's data outputs. It must not
// write to the store.
type ResolveFunc func(ctx context.Context, call *ResolveCall) (map[string]any, error)

// StepFunc handles an execution pulse and names the exec outputs to fire.
type StepFunc func(ctx context.Context, call *StepCall) (StepResult, error)

// ListenFunc matches an event. Seeds become the node's output values for
// the pass and Fire names the exec outputs that start the flow.
type ListenFunc func(node *graph.Node, event string, payload any) (Trigger, bool)

// Trigger is the result of a matched event.
type Trigger struct {
	Seeds map[string]any
	Fire  []string
}

// StepResult lists the exec output ports chosen by a step.
type StepResult struct {
	Fire []string
}

// Definition is the dispatch entry for one node type.
type Definition struct {
	Type  string
	Kind  graph.NodeKind
	Caps  Capability
	Role  Role
	Scope ScopeKind
	// StepInputs are data inputs read only by Step through StepCall.Input.
	// The resolver does not pull them before Resolve.
	StepInputs []string

	Ports   PortFunc
	Resolve ResolveFunc
	Step    StepFunc
	Listen  ListenFunc
}

func (d *Definition) isStepInput(portID string) bool {
	for _, id := range d.StepInputs {
		if id == portID {
			return true
		}
	}
	return false
}

// IterationData describes the current loop iteration.
type IterationData struct {
	Index int `json:"index"`
	Item  any `json:"item"`
}

// ResolveCall is the argument of a ResolveFunc.
type ResolveCall struct {
	Node *graph.Node
	// Inputs holds every data input that had a connection, literal or
	// default. Absent inputs have no key.
	Inputs    map[string]any
	Meta      *MetaState
	Store     store.Store
	PassID    string
	Scope     *graph.Lookup
	Iteration *IterationData
}

// Input returns a resolved input.
func (c *ResolveCall) Input(portID string) (any, bool) {
	v, ok := c.Inputs[portID]
	return v, ok
}

// StepCall is the argument of a StepFunc.
type StepCall struct {
	Node      *graph.Node
	Triggered string
	Scope     *graph.Lookup
	// Resolved is the memo of this step's nested pulls.
	Resolved  *ResolvedState
	Meta      *MetaState
	Store     store.Store
	Iteration *IterationData

	run   *run
	scope *scope
	sub   *pass
}

// Input pulls one of the node's own data inputs. ok is false when the
// input has no connection, literal or default.
func (c *StepCall) Input(ctx context.Context, portID string) (v any, ok bool, err error) {
	port, found := c.Node.Input(portID)
	if !found || port.Kind != graph.Data {
		return nil, false, nil
	}
	defer c.run.meta.mergeErrors(c.sub.meta)
	return c.sub.input(ctx, c.scope, c.Node, port)
}

// RequireInput is Input with MISSING_INPUT for an absent value.
func (c *StepCall) RequireInput(ctx context.Context, portID string) (any, error) {
	v, ok, err := c.Input(ctx, portID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.MissingInput(c.Node.ID, portID)
	}
	return v, nil
}

// Resolve pulls any data output in the step's scope.
func (c *StepCall) Resolve(ctx context.Context, nodeID, portID string) (any, error) {
	defer c.run.meta.mergeErrors(c.sub.meta)
	return c.sub.resolve(ctx, c.scope, nodeID, portID)
}
