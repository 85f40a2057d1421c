package nodes

import (
	"context"
	"fmt"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/store"
	"github.com/kbukum/nodeflow/validation"
)

func logNode() engine.Definition {
	return engine.Definition{
		Type:       TypeLog,
		StepInputs: []string{"Message"},
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{execPort("Exec"), dataPort("Message", graph.Any)},
				[]graph.Port{execPort("Next")}
		},
		Step: func(ctx context.Context, call *engine.StepCall) (engine.StepResult, error) {
			sev := engine.Severity(call.Node.ConfigString("severity", string(engine.SeverityInfo)))
			if err := validation.ForNode(call.Node.ID).OneOf("severity", string(sev),
				string(engine.SeverityInfo), string(engine.SeverityWarn), string(engine.SeverityError),
			).Err(); err != nil {
				return engine.StepResult{}, err
			}
			msg, err := call.RequireInput(ctx, "Message")
			if err != nil {
				return engine.StepResult{}, err
			}
			call.Meta.Log(sev, call.Node.ID, fmt.Sprint(msg))
			return engine.StepResult{Fire: []string{"Next"}}, nil
		},
	}
}

// eventListener starts a flow when its configured event name is triggered.
// The payload becomes its Payload output for the rest of the pass.
func eventListener() engine.Definition {
	return engine.Definition{
		Type: TypeEventListener,
		Caps: engine.CapEventListener,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return nil, []graph.Port{execPort("Fired"), dataPort("Payload", graph.Any)}
		},
		Listen: func(node *graph.Node, event string, payload any) (engine.Trigger, bool) {
			name := node.ConfigString("eventName", "")
			if name == "" || name != event {
				return engine.Trigger{}, false
			}
			return engine.Trigger{
				Seeds: map[string]any{"Payload": payload},
				Fire:  []string{"Fired"},
			}, true
		},
	}
}

func stateKey(node *graph.Node) (string, error) {
	key := node.ConfigString("key", "")
	if err := validation.ForNode(node.ID).Required("key", key).Err(); err != nil {
		return "", err
	}
	return key, nil
}

// state reads and writes a named variable in the global store. Current is
// the stored value, or initialValue before the first write.
func state() engine.Definition {
	return engine.Definition{
		Type:       TypeState,
		Caps:       engine.CapStateful,
		StepInputs: []string{engine.PortValue},
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{execPort("Set"), dataPort(engine.PortValue, graph.Any)},
				[]graph.Port{execPort("Next"), dataPort("Current", graph.Any)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			key, err := stateKey(call.Node)
			if err != nil {
				return nil, err
			}
			v, ok := call.Store.Get(key)
			if !ok {
				v = call.Node.Config["initialValue"]
			}
			return map[string]any{"Current": v}, nil
		},
		Step: func(ctx context.Context, call *engine.StepCall) (engine.StepResult, error) {
			key, err := stateKey(call.Node)
			if err != nil {
				return engine.StepResult{}, err
			}
			v, err := call.RequireInput(ctx, engine.PortValue)
			if err != nil {
				return engine.StepResult{}, err
			}
			if err := call.Store.Set(key, v); err != nil {
				return engine.StepResult{}, err
			}
			call.Meta.Infof(call.Node.ID, "state %s set to %v", key, v)
			return engine.StepResult{Fire: []string{"Next"}}, nil
		},
	}
}

func channelName(node *graph.Node) (string, error) {
	name := node.ConfigString("channel", "")
	if err := validation.ForNode(node.ID).Required("channel", name).Err(); err != nil {
		return "", err
	}
	return store.ChannelKey(name), nil
}

func channelSend() engine.Definition {
	return engine.Definition{
		Type:       TypeChannelSend,
		Caps:       engine.CapStateful,
		StepInputs: []string{engine.PortValue},
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return []graph.Port{execPort("Send"), dataPort(engine.PortValue, graph.Any)},
				[]graph.Port{execPort("Next")}
		},
		Step: func(ctx context.Context, call *engine.StepCall) (engine.StepResult, error) {
			key, err := channelName(call.Node)
			if err != nil {
				return engine.StepResult{}, err
			}
			v, err := call.RequireInput(ctx, engine.PortValue)
			if err != nil {
				return engine.StepResult{}, err
			}
			if err := call.Store.Set(key, v); err != nil {
				return engine.StepResult{}, err
			}
			return engine.StepResult{Fire: []string{"Next"}}, nil
		},
	}
}

// channelReceive reads the last value sent on a channel.
func channelReceive() engine.Definition {
	return engine.Definition{
		Type: TypeChannelReceive,
		Caps: engine.CapStateful,
		Ports: func(string, map[string]any) ([]graph.Port, []graph.Port) {
			return nil, []graph.Port{dataPort(engine.PortValue, graph.Any), dataPort("HasValue", graph.Boolean)}
		},
		Resolve: func(_ context.Context, call *engine.ResolveCall) (map[string]any, error) {
			key, err := channelName(call.Node)
			if err != nil {
				return nil, err
			}
			v, ok := call.Store.Get(key)
			return map[string]any{engine.PortValue: v, "HasValue": ok}, nil
		},
	}
}
