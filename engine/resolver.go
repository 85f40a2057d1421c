package engine

import (
	"context"
	"sync/atomic"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
)

// control carries the cooperative cancellation flag of a running pass.
type control struct {
	cancelled atomic.Bool
}

type childKey struct {
	parent *scope
	node   string
}

// pass is one lazy resolution over a set of scopes. Each scope gets its
// own memo so that sub-graph node ids never collide with the parent's.
type pass struct {
	engine   *Engine
	meta     *MetaState
	ctl      *control
	memo     map[*scope]*ResolvedState
	children map[childKey]*scope
	// inFlow is set for pulls made by an execution step. Iterate outputs
	// are then only available once the flow has run the loop.
	inFlow bool
}

func newPass(e *Engine, meta *MetaState, ctl *control, inFlow bool) *pass {
	return &pass{
		engine:   e,
		meta:     meta,
		ctl:      ctl,
		memo:     make(map[*scope]*ResolvedState),
		children: make(map[childKey]*scope),
		inFlow:   inFlow,
	}
}

func (p *pass) state(sc *scope) *ResolvedState {
	s, ok := p.memo[sc]
	if !ok {
		s = newResolvedState()
		p.memo[sc] = s
	}
	return s
}

func (p *pass) poll(ctx context.Context) error {
	if p.ctl != nil && p.ctl.cancelled.Load() {
		return errors.Cancelled()
	}
	if err := ctx.Err(); err != nil {
		return errors.Cancelled().WithCause(err)
	}
	return nil
}

// resolve returns the value of one data output in sc, evaluating the
// owning node at most once per pass.
func (p *pass) resolve(ctx context.Context, sc *scope, nodeID, portID string) (any, error) {
	if err := p.poll(ctx); err != nil {
		return nil, err
	}
	if v, ok := sc.seeded(nodeID, portID); ok {
		return v, nil
	}
	memo := p.state(sc)
	if v, ok := memo.Get(nodeID, portID); ok {
		return v, nil
	}
	if memo.Evaluated(nodeID) {
		return nil, nil
	}
	node, ok := sc.lookup.Node(nodeID)
	if !ok {
		return nil, errors.NotFound("node", nodeID)
	}
	def, ok := p.engine.registry.Get(node.Type)
	if !ok {
		return nil, nodeFailure(p.meta, node, errors.UnknownNodeType(node.ID, node.Type))
	}
	return p.evaluate(ctx, sc, node, def, portID)
}

func (p *pass) evaluate(ctx context.Context, sc *scope, node *graph.Node, def Definition, portID string) (v any, err error) {
	m := p.meta
	m.Depth++
	m.Trace = append(m.Trace, node.ID)
	defer func() {
		m.Depth--
		if err == nil {
			m.Trace = m.Trace[:len(m.Trace)-1]
		}
	}()
	if m.Depth > m.MaxDepth {
		trace := append([]string(nil), m.Trace...)
		return nil, nodeFailure(m, node, errors.CycleDetected(node.ID, m.MaxDepth, trace))
	}

	memo := p.state(sc)
	switch def.Scope {
	case ScopeContainer:
		v, err = p.resolveContainer(ctx, sc, node, def, portID)
		if err != nil {
			return nil, err
		}
		memo.putPort(node.ID, portID, v)
		return v, nil
	case ScopeLoop:
		var outputs map[string]any
		outputs, err = p.evaluateLoop(ctx, sc, node)
		if err != nil {
			return nil, nodeFailure(m, node, err)
		}
		memo.put(node.ID, outputs)
		return outputs[portID], nil
	}

	inputs, err := p.resolveInputs(ctx, sc, node, def)
	if err != nil {
		return nil, err
	}
	var outputs map[string]any
	if def.Resolve != nil {
		outputs, err = def.Resolve(ctx, &ResolveCall{
			Node:      node,
			Inputs:    inputs,
			Meta:      m,
			Store:     m.Store,
			PassID:    m.PassID,
			Scope:     sc.lookup,
			Iteration: sc.iterationData(),
		})
		if err != nil {
			return nil, nodeFailure(m, node, err)
		}
	}
	memo.put(node.ID, outputs)
	return outputs[portID], nil
}

// resolveInputs gathers every data input except the step-only ones.
func (p *pass) resolveInputs(ctx context.Context, sc *scope, node *graph.Node, def Definition) (map[string]any, error) {
	inputs := make(map[string]any, len(node.Inputs))
	for _, port := range node.Inputs {
		if port.Kind != graph.Data || def.isStepInput(port.ID) {
			continue
		}
		v, ok, err := p.input(ctx, sc, node, port)
		if err != nil {
			return nil, err
		}
		if ok {
			inputs[port.ID] = v
		}
	}
	return inputs, nil
}

// input resolves one data input: the connection, then the node literal,
// then the port default. ok is false when none exists.
func (p *pass) input(ctx context.Context, sc *scope, node *graph.Node, port graph.Port) (any, bool, error) {
	if c, ok := sc.lookup.Inbound(node.ID, port.ID); ok {
		v, err := p.resolve(ctx, sc, c.FromNode, c.FromPort)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	if v, ok := node.Literals[port.ID]; ok {
		return v, true, nil
	}
	if port.Default != nil {
		return port.Default, true, nil
	}
	return nil, false, nil
}

// resolveContainer pulls one output of a container through the matching
// output marker of its sub-graph.
func (p *pass) resolveContainer(ctx context.Context, sc *scope, node *graph.Node, def Definition, portID string) (any, error) {
	if node.SubGraph == nil {
		return nil, nodeFailure(p.meta, node, errors.InvalidGraph([]string{"container " + node.ID + " has no sub-graph"}))
	}
	child, err := p.containerScope(ctx, sc, node, def)
	if err != nil {
		return nil, err
	}
	marker := p.marker(child, RoleOutputMarker, portID)
	if marker == nil {
		return nil, nil
	}
	port, ok := marker.Input(PortValue)
	if !ok {
		port = graph.Port{ID: PortValue, Kind: graph.Data}
	}
	v, _, err := p.input(ctx, child, marker, port)
	if err != nil {
		return nil, p.wrapContainer(node, err)
	}
	return v, nil
}

// containerScope returns the child scope of a container, resolving the
// container inputs once per pass and seeding the input markers with them.
func (p *pass) containerScope(ctx context.Context, sc *scope, node *graph.Node, def Definition) (*scope, error) {
	key := childKey{parent: sc, node: node.ID}
	if child, ok := p.children[key]; ok {
		return child, nil
	}
	inputs, err := p.resolveInputs(ctx, sc, node, def)
	if err != nil {
		return nil, err
	}
	child := newScope(node.SubGraph, sc, node)
	child.containerInputs = inputs
	for _, n := range node.SubGraph.Nodes {
		d, ok := p.engine.registry.Get(n.Type)
		if !ok || d.Role != RoleInputMarker {
			continue
		}
		if v, ok := inputs[n.ConfigString(ConfigMarkerPort, n.ID)]; ok {
			child.seed(n.ID, PortValue, v)
		}
	}
	p.children[key] = child
	return child, nil
}

// marker finds the marker node of a role standing for a container port.
func (p *pass) marker(sc *scope, role Role, portID string) *graph.Node {
	for _, n := range sc.lookup.Graph().Nodes {
		d, ok := p.engine.registry.Get(n.Type)
		if ok && d.Role == role && n.ConfigString(ConfigMarkerPort, n.ID) == portID {
			return n
		}
	}
	return nil
}

func (p *pass) wrapContainer(node *graph.Node, err error) error {
	if errors.HasCode(err, errors.ErrCodeCancelled) {
		return err
	}
	inner, ok := errors.AsAppError(err)
	if !ok {
		return nodeFailure(p.meta, node, err)
	}
	wrapped := errors.InContainer(node.ID, inner)
	p.meta.logged[wrapped] = p.meta.logged[inner]
	return wrapped
}

// evaluateLoop runs an iterate node to completion for a data pull made
// outside an execution flow.
func (p *pass) evaluateLoop(ctx context.Context, sc *scope, node *graph.Node) (map[string]any, error) {
	if p.inFlow {
		return map[string]any{}, nil
	}
	r := p.engine.newRun(p.meta, p.ctl, ModeForce, sc)
	if err := r.startLoop(ctx, sc, node, true); err != nil {
		return nil, err
	}
	if _, err := r.drive(ctx); err != nil {
		return nil, err
	}
	results, _ := sc.seeded(node.ID, PortResults)
	completed, _ := sc.seeded(node.ID, PortCompletedStatus)
	return map[string]any{PortResults: results, PortCompletedStatus: completed}, nil
}

// nodeFailure converts err to an AppError attributed to node and logs it
// once. Cancellation passes through untouched.
func nodeFailure(m *MetaState, node *graph.Node, err error) error {
	if errors.HasCode(err, errors.ErrCodeCancelled) {
		return err
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.OperationFailed(node.ID, err)
	}
	m.logFailure(node.ID, appErr)
	return appErr
}
