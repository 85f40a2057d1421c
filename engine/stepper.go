package engine

import (
	"context"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
)

// Mode selects how a flow treats breakpoints.
type Mode string

const (
	// ModeContinue pauses at breakpoints.
	ModeContinue Mode = "continue"
	// ModeForce ignores breakpoints.
	ModeForce Mode = "force"
	// ModeStep pauses before every step.
	ModeStep Mode = "step"
)

type taskKind int

const (
	taskVisit taskKind = iota
	taskLoop
)

// task is one entry of the run stack: a hop to visit, or a loop waiting
// for its current iteration to drain.
type task struct {
	kind  taskKind
	scope *scope
	hop   Hop
	frame *loopFrame
}

// run is the state of an execution flow. Pending work lives on an
// explicit stack so that a paused run can be resumed later.
type run struct {
	engine *Engine
	meta   *MetaState
	ctl    *control
	mode   Mode
	root   *scope
	stack  []task
	// release lets the next visit through without pausing.
	release bool
}

func (e *Engine) newRun(meta *MetaState, ctl *control, mode Mode, root *scope) *run {
	return &run{engine: e, meta: meta, ctl: ctl, mode: mode, root: root}
}

func (r *run) subPass() *pass {
	return newPass(r.engine, r.meta.fork(), r.ctl, true)
}

func (r *run) poll(ctx context.Context) error {
	if r.ctl != nil && r.ctl.cancelled.Load() {
		return errors.Cancelled()
	}
	if err := ctx.Err(); err != nil {
		return errors.Cancelled().WithCause(err)
	}
	return nil
}

// hopsFrom lists the visits produced by firing ports of node, in port
// order then connection order.
func hopsFrom(sc *scope, node *graph.Node, ports []string) []task {
	var tasks []task
	for _, port := range ports {
		for _, c := range sc.lookup.Outbound(node.ID, port) {
			tasks = append(tasks, task{kind: taskVisit, scope: sc, hop: Hop{OutputPort: port, Connection: c}})
		}
	}
	return tasks
}

// pushTasks pushes tasks so that the first one runs next.
func (r *run) pushTasks(tasks []task) {
	for i := len(tasks) - 1; i >= 0; i-- {
		r.stack = append(r.stack, tasks[i])
	}
}

// drive runs tasks until the stack drains, the run pauses or a step fails.
// It leaves the terminal status to the caller.
func (r *run) drive(ctx context.Context) (paused bool, err error) {
	m := r.meta
	for len(r.stack) > 0 {
		if err := r.poll(ctx); err != nil {
			return false, err
		}
		t := r.stack[len(r.stack)-1]
		if t.kind == taskLoop {
			r.stack = r.stack[:len(r.stack)-1]
			if err := r.advanceLoop(t.frame); err != nil {
				return false, err
			}
			continue
		}
		// A loop at the step ceiling winds down before the hard limit applies.
		if m.Steps >= m.StepCeiling && r.unwindToLoop() {
			continue
		}
		if m.Steps >= r.engine.cfg.FlowStepLimit {
			return false, errors.StepLimitExceeded(r.engine.cfg.FlowStepLimit)
		}
		if r.shouldPause(t.hop.Connection.ToNode) {
			hop := t.hop
			m.Status = StatusPaused
			m.PausedNode = hop.Connection.ToNode
			m.PendingHop = &hop
			m.Infof(hop.Connection.ToNode, "paused before %s.%s", hop.Connection.ToNode, hop.Connection.ToPort)
			return true, nil
		}
		r.stack = r.stack[:len(r.stack)-1]
		m.PausedNode = ""
		m.PendingHop = nil
		if err := r.visit(ctx, t.scope, t.hop); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (r *run) shouldPause(nodeID string) bool {
	if r.release {
		r.release = false
		return false
	}
	switch r.mode {
	case ModeStep:
		return true
	case ModeForce:
		return false
	}
	return r.engine.hasBreakpoint(nodeID)
}

// visit executes the node at the end of hop.
func (r *run) visit(ctx context.Context, sc *scope, hop Hop) error {
	m := r.meta
	node, ok := sc.lookup.Node(hop.Connection.ToNode)
	if !ok {
		return errors.NotFound("node", hop.Connection.ToNode)
	}
	m.Path = append(m.Path, node.ID)
	m.Steps++

	def, ok := r.engine.registry.Get(node.Type)
	if !ok {
		return nodeFailure(m, node, errors.UnknownNodeType(node.ID, node.Type))
	}
	if def.Scope == ScopeLoop && hop.Connection.ToPort == PortStart {
		if err := r.startLoop(ctx, sc, node, false); err != nil {
			return nodeFailure(m, node, err)
		}
		return nil
	}
	if def.Step == nil {
		r.pushTasks(hopsFrom(sc, node, node.ExecOutputs()))
		return nil
	}

	sub := r.subPass()
	res, err := def.Step(ctx, &StepCall{
		Node:      node,
		Triggered: hop.Connection.ToPort,
		Scope:     sc.lookup,
		Resolved:  sub.state(sc),
		Meta:      m,
		Store:     m.Store,
		Iteration: sc.iterationData(),
		run:       r,
		scope:     sc,
		sub:       sub,
	})
	if err != nil {
		return nodeFailure(m, node, err)
	}
	r.pushTasks(hopsFrom(sc, node, res.Fire))
	return nil
}

// unwindToLoop drops pending work up to the innermost running loop and
// marks it halted. It reports false when no loop is on the stack.
func (r *run) unwindToLoop() bool {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i].kind != taskLoop {
			continue
		}
		f := r.stack[i].frame
		r.stack = r.stack[:i+1]
		f.halted = true
		f.active = false
		return true
	}
	return false
}
