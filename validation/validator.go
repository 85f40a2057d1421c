package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/nodeflow/errors"
)

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// NodeConfig collects problems with the config map of one node. Node
// definitions check their settings with it before evaluating:
//
//	err := validation.ForNode(node.ID).Required("key", key).Err()
type NodeConfig struct {
	node   string
	errors []FieldError
}

// ForNode starts a check of nodeID's config.
func ForNode(nodeID string) *NodeConfig {
	return &NodeConfig{node: nodeID}
}

// Add records a problem with field.
func (c *NodeConfig) Add(field, message string) *NodeConfig {
	c.errors = append(c.errors, FieldError{Field: "config." + field, Message: message})
	return c
}

// Check records message for field unless ok holds.
func (c *NodeConfig) Check(ok bool, field, message string) *NodeConfig {
	if !ok {
		c.Add(field, message)
	}
	return c
}

// Required rejects a blank value.
func (c *NodeConfig) Required(field, value string) *NodeConfig {
	return c.Check(strings.TrimSpace(value) != "", field, "is required")
}

// OneOf rejects a value outside allowed. An empty value is left to Required.
func (c *NodeConfig) OneOf(field, value string, allowed ...string) *NodeConfig {
	return c.Check(value == "" || slices.Contains(allowed, value), field,
		"must be one of: "+strings.Join(allowed, ", "))
}

// Errors returns the recorded problems.
func (c *NodeConfig) Errors() []FieldError {
	return c.errors
}

// Err returns an INVALID_INPUT error naming the node and every problem, or
// nil when the config is acceptable.
func (c *NodeConfig) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	msgs := make([]string, len(c.errors))
	for i, f := range c.errors {
		msgs[i] = f.String()
	}
	return errors.Validation(fmt.Sprintf("Node %s has invalid config: %s", c.node, strings.Join(msgs, "; "))).
		WithDetails(map[string]any{"node": c.node, "fields": c.errors})
}
