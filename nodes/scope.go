package nodes

import (
	"context"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/graph"
)

// container evaluates its sub-graph. Its ports mirror the graph input and
// output markers inside; see ContainerPorts.
func container() engine.Definition {
	return engine.Definition{
		Type:  TypeContainer,
		Kind:  graph.Molecular,
		Scope: engine.ScopeContainer,
	}
}

// ContainerPorts derives the data ports of a container from the marker
// nodes of its sub-graph. Each marker stands for the port named by its
// "port" config, or its own id.
func ContainerPorts(sub *graph.Graph) (inputs, outputs []graph.Port) {
	if sub == nil {
		return nil, nil
	}
	for _, n := range sub.Nodes {
		port := dataPort(n.ConfigString(engine.ConfigMarkerPort, n.ID), configCategory(n.Config, graph.Any))
		switch n.Type {
		case TypeGraphInput:
			inputs = append(inputs, port)
		case TypeGraphOutput:
			outputs = append(outputs, port)
		}
	}
	return inputs, outputs
}

// NewContainer builds a container node around sub with derived ports.
func NewContainer(id string, sub *graph.Graph) *graph.Node {
	in, out := ContainerPorts(sub)
	return &graph.Node{ID: id, Type: TypeContainer, Kind: graph.Molecular, Inputs: in, Outputs: out, SubGraph: sub}
}

// graphInput exposes a container input inside the sub-graph. Without a
// connected container input it yields its "default" config value.
func graphInput() engine.Definition {
	return engine.Definition{
		Type: TypeGraphInput,
		Role: engine.RoleInputMarker,
		Ports: func(_ string, config map[string]any) ([]graph.Port, []graph.Port) {
			return nil, []graph.Port{dataPort(engine.PortValue, configCategory(config, graph.Any))}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			return map[string]any{engine.PortValue: call.Node.Config["default"]}, nil
		},
	}
}

func graphOutput() engine.Definition {
	return engine.Definition{
		Type: TypeGraphOutput,
		Role: engine.RoleOutputMarker,
		Ports: func(_ string, config map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{dataPort(engine.PortValue, configCategory(config, graph.Any))}, nil
		},
	}
}

// iterate runs its body once per collection item. The engine owns its
// evaluation.
func iterate() engine.Definition {
	return engine.Definition{
		Type:       TypeIterate,
		Kind:       graph.Molecular,
		Scope:      engine.ScopeLoop,
		StepInputs: []string{engine.PortCollection},
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{execPort(engine.PortStart), dataPort(engine.PortCollection, graph.Array)},
				[]graph.Port{
					execPort(engine.PortDone),
					dataPort(engine.PortResults, graph.Array),
					dataPort(engine.PortCompletedStatus, graph.Boolean),
				}
		},
	}
}

// NewIterate builds an iterate node around body. A zero maxIterations
// uses the engine default.
func NewIterate(id string, body *graph.Graph, maxIterations int) *graph.Node {
	in, out := iterate().Ports(id, nil)
	n := &graph.Node{ID: id, Type: TypeIterate, Kind: graph.Molecular, Inputs: in, Outputs: out, SubGraph: body}
	if maxIterations > 0 {
		n.Loop = &graph.LoopConfig{MaxIterations: maxIterations}
	}
	return n
}

// loopItem starts each iteration of the enclosing loop body.
func loopItem() engine.Definition {
	return engine.Definition{
		Type: TypeLoopItem,
		Role: engine.RoleLoopItem,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return nil, []graph.Port{
				execPort("Next"),
				dataPort(engine.PortItem, graph.Any),
				dataPort(engine.PortIndex, graph.Number),
			}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			if call.Iteration == nil {
				return map[string]any{}, nil
			}
			return map[string]any{
				engine.PortItem:  call.Iteration.Item,
				engine.PortIndex: call.Iteration.Index,
			}, nil
		},
	}
}

// iterationResult commits its Value input as the current iteration's
// result.
func iterationResult() engine.Definition {
	return engine.Definition{
		Type:       TypeIterationResult,
		Role:       engine.RoleIterationResult,
		StepInputs: []string{engine.PortValue},
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{execPort("Commit"), dataPort(engine.PortValue, graph.Any)},
				[]graph.Port{execPort("Next")}
		},
		Step: func(ctx context.Context, call *engine.StepCall) (engine.StepResult, error) {
			v, _, err := call.Input(ctx, engine.PortValue)
			if err != nil {
				return engine.StepResult{}, err
			}
			call.Meta.IterationOutput = v
			return engine.StepResult{Fire: []string{"Next"}}, nil
		},
	}
}
