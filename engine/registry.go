package engine

import (
	"sort"
	"sync"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
)

// Decorator wraps a Definition's callbacks.
type Decorator func(Definition) Definition

// Registry maps node types to Definitions.
type Registry struct {
	mu         sync.RWMutex
	defs       map[string]Definition
	decorators []Decorator
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Registering a type twice is a conflict.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return errors.InvalidInput("type", "definition type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.Type]; dup {
		return errors.Conflict("node type " + def.Type + " is already registered")
	}
	if def.Kind == "" {
		def.Kind = graph.Atomic
	}
	r.defs[def.Type] = def
	return nil
}

// Use appends decorators applied to every definition returned by Get.
func (r *Registry) Use(decorators ...Decorator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators = append(r.decorators, decorators...)
}

// Get returns the decorated definition for a node type.
func (r *Registry) Get(nodeType string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[nodeType]
	if !ok {
		return Definition{}, false
	}
	for _, d := range r.decorators {
		def = d(def)
	}
	return def, true
}

// List returns sorted names of all registered types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates a node of the given type with generated ports.
func (r *Registry) Instantiate(id, nodeType string, config map[string]any) (*graph.Node, error) {
	def, ok := r.Get(nodeType)
	if !ok {
		return nil, errors.UnknownNodeType(id, nodeType)
	}
	if config == nil {
		config = map[string]any{}
	}
	n := &graph.Node{ID: id, Type: nodeType, Kind: def.Kind, Config: config}
	if def.Ports != nil {
		n.Inputs, n.Outputs = def.Ports(id, config)
	}
	return n, nil
}
