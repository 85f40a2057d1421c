package engine

import (
	"context"
	"reflect"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
)

// loopFrame tracks one running iterate node.
type loopFrame struct {
	node  *graph.Node
	scope *scope
	body  *scope
	items []any
	// limit is the number of iterations that will run. cappedByCeiling is
	// set when the step ceiling, not the item count or maximum, set it.
	limit           int
	cappedByCeiling bool

	index   int
	results []any
	// active is set while an iteration's body is still draining.
	active bool
	halted bool
	// eager loops run inside a data pull and never fire Done.
	eager       bool
	savedOutput any
}

// loopMax returns the iteration maximum of an iterate node: the node's
// loop settings, then its config, then the engine default.
func (e *Engine) loopMax(node *graph.Node) int {
	if node.Loop != nil && node.Loop.MaxIterations > 0 {
		return node.Loop.MaxIterations
	}
	if n := node.ConfigInt(ConfigMaxIterations, 0); n > 0 {
		return n
	}
	return e.cfg.DefaultLoopMax
}

// startLoop pulls the collection of an iterate node and pushes its frame.
func (r *run) startLoop(ctx context.Context, sc *scope, node *graph.Node, eager bool) error {
	if node.SubGraph == nil {
		return errors.InvalidGraph([]string{"iterate " + node.ID + " has no body"})
	}
	port, ok := node.Input(PortCollection)
	if !ok {
		port = graph.Port{ID: PortCollection, Kind: graph.Data, Category: graph.Array}
	}
	sub := r.subPass()
	v, present, err := sub.input(ctx, sc, node, port)
	r.meta.mergeErrors(sub.meta)
	if err != nil {
		return err
	}
	if !present {
		return errors.MissingInput(node.ID, PortCollection)
	}
	items, ok := asSlice(v)
	if !ok {
		return errors.InvalidInputType(node.ID, PortCollection, string(graph.Array), v)
	}

	limit := len(items)
	if maxIter := r.engine.loopMax(node); maxIter < limit {
		limit = maxIter
	}
	capped := false
	if r.meta.StepCeiling < limit {
		limit = r.meta.StepCeiling
		capped = true
	}
	f := &loopFrame{
		node:            node,
		scope:           sc,
		body:            newScope(node.SubGraph, sc, node),
		items:           items,
		limit:           limit,
		cappedByCeiling: capped,
		eager:           eager,
		savedOutput:     r.meta.IterationOutput,
	}
	r.stack = append(r.stack, task{kind: taskLoop, frame: f})
	return nil
}

// advanceLoop collects the iteration that just drained and starts the
// next one, or finishes the loop.
func (r *run) advanceLoop(f *loopFrame) error {
	m := r.meta
	if f.active {
		f.results = append(f.results, m.IterationOutput)
		f.index++
		f.active = false
	}
	if !f.halted && f.index < f.limit && m.Steps >= m.StepCeiling {
		f.halted = true
	}
	if f.halted || f.index >= f.limit {
		if f.cappedByCeiling && f.index < len(f.items) {
			f.halted = true
		}
		r.finishLoop(f)
		return nil
	}

	item := f.items[f.index]
	f.body.seeds = make(map[graph.PortRef]any)
	f.body.iteration = &IterationData{Index: f.index, Item: item}
	m.IterationOutput = nil
	f.active = true
	r.stack = append(r.stack, task{kind: taskLoop, frame: f})

	var tasks []task
	for _, n := range f.body.lookup.Graph().Nodes {
		def, ok := r.engine.registry.Get(n.Type)
		if !ok || def.Role != RoleLoopItem {
			continue
		}
		f.body.seed(n.ID, PortItem, item)
		f.body.seed(n.ID, PortIndex, f.index)
		tasks = append(tasks, hopsFrom(f.body, n, n.ExecOutputs())...)
	}
	r.pushTasks(tasks)
	return nil
}

func (r *run) finishLoop(f *loopFrame) {
	m := r.meta
	results := f.results
	if results == nil {
		results = []any{}
	}
	f.scope.seed(f.node.ID, PortResults, results)
	f.scope.seed(f.node.ID, PortCompletedStatus, !f.halted)
	m.IterationOutput = f.savedOutput
	if f.halted {
		m.Warnf(f.node.ID, "loop halted at step ceiling %d after %d of %d iterations", m.StepCeiling, f.index, len(f.items))
	}
	if !f.eager {
		r.pushTasks(hopsFrom(f.scope, f.node, []string{PortDone}))
	}
}

// asSlice accepts any slice or array value.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
