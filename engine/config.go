package engine

import (
	"fmt"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/validation"
)

// Config holds the engine limits.
type Config struct {
	// MaxDepth is the resolution depth ceiling for cycle detection.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth" validate:"gte=1"`
	// StepCeiling bounds loops: when a pass reaches it, running loops halt
	// with CompletedStatus false.
	StepCeiling int `yaml:"step_ceiling" mapstructure:"step_ceiling" validate:"gte=1"`
	// FlowStepLimit is the hard step limit of an execution flow. It must
	// exceed StepCeiling so a loop halted at the ceiling can still fire Done.
	FlowStepLimit int `yaml:"flow_step_limit" mapstructure:"flow_step_limit" validate:"gte=1"`
	// DefaultLoopMax applies to iterate nodes without their own maximum.
	DefaultLoopMax int `yaml:"default_loop_max" mapstructure:"default_loop_max" validate:"gte=1"`
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = 64
	}
	if c.StepCeiling == 0 {
		c.StepCeiling = 1000
	}
	if c.FlowStepLimit == 0 {
		c.FlowStepLimit = 10 * c.StepCeiling
	}
	if c.DefaultLoopMax == 0 {
		c.DefaultLoopMax = 100
	}
}

// Validate checks the limits.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.FlowStepLimit <= c.StepCeiling {
		return errors.InvalidInput("engine.flow_step_limit",
			fmt.Sprintf("engine.flow_step_limit (%d) must be above engine.step_ceiling (%d)", c.FlowStepLimit, c.StepCeiling))
	}
	return nil
}
