package nodes

import (
	"context"
	"encoding/json"
	"math"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
)

// toNumber converts any numeric value to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func numberInput(call *engine.ResolveCall, portID string) (float64, bool, error) {
	v, ok := call.Input(portID)
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := toNumber(v)
	if !ok {
		return 0, false, errors.InvalidInputType(call.Node.ID, portID, string(graph.Number), v)
	}
	return f, true, nil
}

func valueProvider() engine.Definition {
	return engine.Definition{
		Type: TypeValueProvider,
		Ports: func(_ string, config map[string]any) ([]graph.Port, []graph.Port) {
			c := configCategory(config, graph.CategoryOf(config["value"]))
			return nil, []graph.Port{dataPort(engine.PortValue, c)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			return map[string]any{engine.PortValue: call.Node.Config["value"]}, nil
		},
	}
}

// fold builds a multi-input arithmetic node over Number1..NumberN.
// Absent inputs are skipped; with no inputs the result is zero.
func fold(nodeType, output string, op func(acc, x float64) float64) engine.Definition {
	return engine.Definition{
		Type: nodeType,
		Caps: engine.CapMultiInput,
		Ports: func(_ string, config map[string]any) ([]graph.Port, []graph.Port) {
			return numbered("Number", inputCount(config), graph.Number),
				[]graph.Port{dataPort(output, graph.Number)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			var acc float64
			seen := false
			for _, port := range call.Node.Inputs {
				if port.Kind != graph.Data {
					continue
				}
				x, ok, err := numberInput(call, port.ID)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				if !seen {
					acc, seen = x, true
					continue
				}
				acc = op(acc, x)
			}
			return map[string]any{output: acc}, nil
		},
	}
}

func addition() engine.Definition {
	return fold(TypeAddition, "Sum", func(acc, x float64) float64 { return acc + x })
}

func multiplication() engine.Definition {
	return fold(TypeMultiplication, "Product", func(acc, x float64) float64 { return acc * x })
}

func subtraction() engine.Definition {
	return engine.Definition{
		Type: TypeSubtraction,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			a, b := dataPort("A", graph.Number), dataPort("B", graph.Number)
			a.Default, b.Default = 0.0, 0.0
			return []graph.Port{a, b}, []graph.Port{dataPort("Difference", graph.Number)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			a, _, err := numberInput(call, "A")
			if err != nil {
				return nil, err
			}
			b, _, err := numberInput(call, "B")
			if err != nil {
				return nil, err
			}
			return map[string]any{"Difference": a - b}, nil
		},
	}
}

// division yields a signed infinity, or NaN for 0/0, when the divisor is
// zero. The fault is logged and the pass continues.
func division() engine.Definition {
	return engine.Definition{
		Type: TypeDivision,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			a, b := dataPort("Dividend", graph.Number), dataPort("Divisor", graph.Number)
			a.Default, b.Default = 0.0, 1.0
			return []graph.Port{a, b}, []graph.Port{dataPort("Quotient", graph.Number)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			a, _, err := numberInput(call, "Dividend")
			if err != nil {
				return nil, err
			}
			b, _, err := numberInput(call, "Divisor")
			if err != nil {
				return nil, err
			}
			if b == 0 {
				call.Meta.Errorf(call.Node.ID, "division by zero: %v / 0", a)
				switch {
				case a > 0:
					return map[string]any{"Quotient": math.Inf(1)}, nil
				case a < 0:
					return map[string]any{"Quotient": math.Inf(-1)}, nil
				}
				return map[string]any{"Quotient": math.NaN()}, nil
			}
			return map[string]any{"Quotient": a / b}, nil
		},
	}
}
