package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/store"
	"github.com/kbukum/nodeflow/validation"
)

// Engine evaluates graphs against a registry of node definitions and a
// shared store. Passes run one at a time.
type Engine struct {
	cfg      Config
	registry *Registry
	store    store.Store
	log      *logger.Logger
	metrics  *observability.Metrics
	service  string

	// mu serializes passes.
	mu sync.Mutex

	// ctlMu guards the fields below, which Cancel and Active read while a
	// pass runs.
	ctlMu       sync.Mutex
	running     *control
	runningID   string
	paused      *run
	breakpoints map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine limits.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger that pass logs are mirrored to.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records pass metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithServiceName sets the service name attached to pass spans.
func WithServiceName(name string) Option {
	return func(e *Engine) { e.service = name }
}

// New creates an Engine. A nil store defaults to an in-memory store.
func New(reg *Registry, st store.Store, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, errors.InvalidInput("registry", "registry is required")
	}
	if st == nil {
		st = store.NewMemory()
	}
	e := &Engine{
		cfg:         DefaultConfig(),
		registry:    reg,
		store:       st,
		service:     "nodeflow",
		breakpoints: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get("engine")
	}
	e.cfg.ApplyDefaults()
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Store returns the global store.
func (e *Engine) Store() store.Store { return e.store }

// Registry returns the node definition registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Config returns the engine limits.
func (e *Engine) Config() Config { return e.cfg }

// FlowRequest starts an execution flow.
type FlowRequest struct {
	// Event is matched against event listener nodes.
	Event   string `json:"event" yaml:"event"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"`
	// ResumeAt starts stepping at a node's first exec input instead of
	// matching listeners.
	ResumeAt string `json:"resumeAt,omitempty" yaml:"resumeAt,omitempty"`
	Mode     Mode   `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=continue force step"`
}

func (e *Engine) newMeta() *MetaState {
	return newMeta(uuid.NewString(), e.cfg, e.store, e.log)
}

func (e *Engine) begin(ctl *control, passID string) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	e.running = ctl
	e.runningID = passID
}

// ResolveSingleOutput resolves one data output of g in a fresh pass. The
// returned error reports a bad request; evaluation failures are recorded
// in the meta-state and also returned.
func (e *Engine) ResolveSingleOutput(ctx context.Context, g *graph.Graph, nodeID, portID string) (any, *MetaState, error) {
	if err := graph.Validate(g); err != nil {
		return nil, nil, err
	}
	node, ok := g.Node(nodeID)
	if !ok {
		return nil, nil, errors.NotFound("node", nodeID)
	}
	if port, ok := node.Output(portID); !ok || port.Kind != graph.Data {
		return nil, nil, errors.NotFound("data output", nodeID+"."+portID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	meta := e.newMeta()
	ctx, pass := observability.BeginPass(ctx, e.service, "resolve", meta.PassID, observability.SpanResolve, e.metrics)
	observability.SetSpanAttribute(ctx, observability.AttrNodeID, nodeID)
	observability.SetSpanAttribute(ctx, observability.AttrPortID, portID)

	ctl := &control{}
	e.begin(ctl, meta.PassID)
	meta.Status = StatusRunning
	p := newPass(e, meta, ctl, false)
	v, err := p.resolve(ctx, newScope(g, nil, nil), nodeID, portID)
	e.settle(meta, err)
	e.ctlMu.Lock()
	e.running = nil
	e.ctlMu.Unlock()

	pass.End(ctx, string(meta.Status), err)
	if err != nil {
		return nil, meta.Clone(), err
	}
	return v, meta.Clone(), nil
}

// StartExecutionFlow runs the execution flow triggered by req. The
// returned error is only set when the request itself is invalid; the
// outcome of the flow is in the meta-state.
func (e *Engine) StartExecutionFlow(ctx context.Context, g *graph.Graph, req FlowRequest) (*MetaState, error) {
	if err := graph.Validate(g); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = ModeContinue
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	root := newScope(g, nil, nil)
	var start *graph.Node
	if req.ResumeAt != "" {
		node, ok := root.lookup.Node(req.ResumeAt)
		if !ok {
			return nil, errors.NotFound("node", req.ResumeAt)
		}
		if len(node.ExecInputs()) == 0 {
			return nil, errors.InvalidInput("resumeAt", "node "+node.ID+" has no execution input")
		}
		start = node
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.supersedePaused()

	r := e.newRun(e.newMeta(), &control{}, req.Mode, root)
	if start != nil {
		r.stack = append(r.stack, task{
			kind:  taskVisit,
			scope: root,
			hop:   Hop{Connection: graph.Connection{ToNode: start.ID, ToPort: start.ExecInputs()[0]}},
		})
		r.release = true
		r.meta.Infof(start.ID, "flow started at %s", start.ID)
	} else if r.trigger(req.Event, req.Payload) == 0 {
		r.meta.Warnf("", "no listener matched event %q", req.Event)
	}
	e.begin(r.ctl, r.meta.PassID)
	return e.runFlow(ctx, r, "flow")
}

// trigger seeds and fires every listener that matches the event, in
// graph order.
func (r *run) trigger(event string, payload any) int {
	matched := 0
	var tasks []task
	for _, node := range r.root.lookup.Graph().Nodes {
		def, ok := r.engine.registry.Get(node.Type)
		if !ok || !def.Caps.Has(CapEventListener) || def.Listen == nil {
			continue
		}
		trig, ok := def.Listen(node, event, payload)
		if !ok {
			continue
		}
		matched++
		for port, v := range trig.Seeds {
			r.root.seed(node.ID, port, v)
		}
		r.meta.Infof(node.ID, "event %q received", event)
		tasks = append(tasks, hopsFrom(r.root, node, trig.Fire)...)
	}
	r.pushTasks(tasks)
	return matched
}

// runFlow drives r and records its outcome. The caller holds e.mu and has
// registered r as running.
func (e *Engine) runFlow(ctx context.Context, r *run, op string) (*MetaState, error) {
	ctx, pass := observability.BeginPass(ctx, e.service, op, r.meta.PassID, observability.SpanFlow, e.metrics)

	r.meta.Status = StatusRunning
	paused, err := r.drive(ctx)
	if err != nil {
		e.settle(r.meta, err)
	}

	e.ctlMu.Lock()
	e.running = nil
	if paused {
		if r.ctl.cancelled.Load() {
			r.meta.cancel()
		} else {
			e.paused = r
		}
	}
	e.ctlMu.Unlock()

	if err == nil && !paused {
		r.meta.Status = StatusCompleted
		r.meta.log.Debug("flow completed", logger.Fields("steps", r.meta.Steps))
	}
	pass.End(ctx, string(r.meta.Status), err)
	return r.meta.Clone(), nil
}

// settle records a failed or cancelled pass.
func (e *Engine) settle(m *MetaState, err error) {
	switch {
	case err == nil:
		m.Status = StatusCompleted
	case errors.HasCode(err, errors.ErrCodeCancelled):
		m.cancel()
	default:
		m.fail(errors.Wrap(err))
	}
}
