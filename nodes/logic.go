package nodes

import (
	"context"
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/validation"
)

var compareOperators = []string{"==", "!=", "<", "<=", ">", ">="}

func compare() engine.Definition {
	return engine.Definition{
		Type: TypeCompare,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{dataPort("A", graph.Any), dataPort("B", graph.Any)},
				[]graph.Port{dataPort("Result", graph.Boolean)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			op := call.Node.ConfigString("operator", "==")
			if err := validation.ForNode(call.Node.ID).OneOf("operator", op, compareOperators...).Err(); err != nil {
				return nil, err
			}
			a, _ := call.Input("A")
			b, _ := call.Input("B")
			ok, err := compareValues(op, a, b)
			if err != nil {
				return nil, errors.InvalidInputType(call.Node.ID, "B", fmt.Sprintf("a value comparable with %T", a), b)
			}
			return map[string]any{"Result": ok}, nil
		},
	}
}

// compareValues compares numbers numerically and strings lexically.
// Equality falls back to deep equality for other values.
func compareValues(op string, a, b any) (bool, error) {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return ordered(op, x, y), nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return ordered(op, x, y), nil
		}
	}
	switch op {
	case "==":
		return reflect.DeepEqual(a, b), nil
	case "!=":
		return !reflect.DeepEqual(a, b), nil
	}
	return false, fmt.Errorf("values %T and %T are not ordered", a, b)
}

func ordered[T float64 | string](op string, x, y T) bool {
	switch op {
	case "==":
		return x == y
	case "!=":
		return x != y
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	}
	return x >= y
}

// expression evaluates an expr-lang expression over named inputs. Inside a
// loop body the current item and index are also available as item and
// index unless an input shadows them.
func expression() engine.Definition {
	return engine.Definition{
		Type: TypeExpression,
		Ports: func(_ string, config map[string]any) ([]graph.Port, []graph.Port) {
			vars := stringList(config, "variables", []string{"a", "b"})
			inputs := make([]graph.Port, 0, len(vars))
			for _, v := range vars {
				inputs = append(inputs, dataPort(v, graph.Any))
			}
			return inputs, []graph.Port{dataPort("Result", configCategory(config, graph.Any))}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			src := call.Node.ConfigString("expression", "")
			if err := validation.ForNode(call.Node.ID).Required("expression", src).Err(); err != nil {
				return nil, err
			}
			env := make(map[string]any, len(call.Node.Inputs)+2)
			if it := call.Iteration; it != nil {
				env["item"] = it.Item
				env["index"] = it.Index
			}
			for _, port := range call.Node.Inputs {
				if port.Kind == graph.Data {
					v, _ := call.Input(port.ID)
					env[port.ID] = v
				}
			}
			program, err := expr.Compile(src, expr.Env(env))
			if err != nil {
				return nil, errors.OperationFailed(call.Node.ID, fmt.Errorf("compile expression %q: %w", src, err))
			}
			out, err := expr.Run(program, env)
			if err != nil {
				return nil, errors.OperationFailed(call.Node.ID, fmt.Errorf("eval expression %q: %w", src, err))
			}
			return map[string]any{"Result": normalize(out)}, nil
		},
	}
}

// normalize widens integer results so numeric outputs are always float64.
func normalize(v any) any {
	if _, isBool := v.(bool); isBool {
		return v
	}
	if f, ok := toNumber(v); ok {
		return f
	}
	return v
}

// conditional routes InputValue to TrueValue or FalseValue and fires the
// matching exec output. A non-boolean condition is an input type error.
func conditional() engine.Definition {
	return engine.Definition{
		Type: TypeConditional,
		Caps: engine.CapControlFlow,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{
					execPort("Exec"),
					dataPort("Condition", graph.Boolean),
					dataPort("InputValue", graph.Any),
				}, []graph.Port{
					execPort("True"),
					execPort("False"),
					dataPort("TrueValue", graph.Any),
					dataPort("FalseValue", graph.Any),
				}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			v, ok := call.Input("Condition")
			if !ok {
				return nil, errors.MissingInput(call.Node.ID, "Condition")
			}
			cond, ok := v.(bool)
			if !ok {
				return nil, errors.InvalidInputType(call.Node.ID, "Condition", string(graph.Boolean), v)
			}
			in, _ := call.Input("InputValue")
			if cond {
				return map[string]any{"TrueValue": in, "FalseValue": nil}, nil
			}
			return map[string]any{"TrueValue": nil, "FalseValue": in}, nil
		},
		Step: func(ctx context.Context, call *engine.StepCall) (engine.StepResult, error) {
			v, err := call.RequireInput(ctx, "Condition")
			if err != nil {
				return engine.StepResult{}, err
			}
			cond, ok := v.(bool)
			if !ok {
				return engine.StepResult{}, errors.InvalidInputType(call.Node.ID, "Condition", string(graph.Boolean), v)
			}
			if cond {
				return engine.StepResult{Fire: []string{"True"}}, nil
			}
			return engine.StepResult{Fire: []string{"False"}}, nil
		},
	}
}
