package nodes

import (
	"fmt"

	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/graph"
)

// Built-in node types.
const (
	TypeValueProvider   = "VALUE_PROVIDER"
	TypeAddition        = "ADDITION"
	TypeSubtraction     = "SUBTRACTION"
	TypeMultiplication  = "MULTIPLICATION"
	TypeDivision        = "DIVISION"
	TypeCompare         = "COMPARE"
	TypeExpression      = "EXPRESSION"
	TypeConditional     = "CONDITIONAL"
	TypeLog             = "LOG"
	TypeEventListener   = "EVENT_LISTENER"
	TypeState           = "STATE"
	TypeChannelSend     = "CHANNEL_SEND"
	TypeChannelReceive  = "CHANNEL_RECEIVE"
	TypeContainer       = "CONTAINER"
	TypeGraphInput      = "GRAPH_INPUT"
	TypeGraphOutput     = "GRAPH_OUTPUT"
	TypeIterate         = "ITERATE"
	TypeLoopItem        = "LOOP_ITEM"
	TypeIterationResult = "ITERATION_RESULT"
)

// Definitions returns every built-in definition.
func Definitions() []engine.Definition {
	return []engine.Definition{
		valueProvider(),
		addition(),
		subtraction(),
		multiplication(),
		division(),
		compare(),
		expression(),
		conditional(),
		logNode(),
		eventListener(),
		state(),
		channelSend(),
		channelReceive(),
		container(),
		graphInput(),
		graphOutput(),
		iterate(),
		loopItem(),
		iterationResult(),
	}
}

// Register adds the built-in definitions to reg.
func Register(reg *engine.Registry) error {
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Type, err)
		}
	}
	return nil
}

// MustRegister is Register for registries known to be free of built-in
// types. It panics on a conflict.
func MustRegister(reg *engine.Registry) {
	if err := Register(reg); err != nil {
		panic(err)
	}
}

// NewRegistry returns a registry holding the built-in definitions.
func NewRegistry() *engine.Registry {
	reg := engine.NewRegistry()
	MustRegister(reg)
	return reg
}

func dataPort(id string, c graph.Category) graph.Port {
	return graph.Port{ID: id, Kind: graph.Data, Category: c}
}

func execPort(id string) graph.Port {
	return graph.Port{ID: id, Kind: graph.Execution}
}

// inputCount reads the number of numbered inputs of a multi-input node.
func inputCount(config map[string]any) int {
	n := (&graph.Node{Config: config}).ConfigInt("inputs", 2)
	if n < 2 {
		return 2
	}
	return n
}

// numbered returns ports prefix1..prefixN.
func numbered(prefix string, n int, c graph.Category) []graph.Port {
	ports := make([]graph.Port, n)
	for i := range ports {
		ports[i] = dataPort(fmt.Sprintf("%s%d", prefix, i+1), c)
	}
	return ports
}

// stringList reads a list of strings from config.
func stringList(config map[string]any, key string, def []string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return def
}

// configCategory reads a category from config, falling back to def.
func configCategory(config map[string]any, def graph.Category) graph.Category {
	if s, ok := config["category"].(string); ok && graph.Category(s).Valid() {
		return graph.Category(s)
	}
	return def
}
