package main

import (
	"fmt"

	"github.com/kbukum/nodeflow/config"
	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/server"
	"github.com/kbukum/nodeflow/store/badgerstore"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// AppConfig is the nodeflow process configuration, read from
// nodeflow.yml / config.yml and NODEFLOW_* style environment variables.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine    engine.Config   `yaml:"engine" mapstructure:"engine"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    server.Config   `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`

	// IncludeDirs are searched for documents named by include.
	IncludeDirs []string `yaml:"include_dirs" mapstructure:"include_dirs"`
}

// StoreConfig selects the global store backend.
type StoreConfig struct {
	Backend string             `yaml:"backend" mapstructure:"backend"`
	Badger  badgerstore.Config `yaml:"badger" mapstructure:"badger"`
}

// Persistent reports whether the store outlives the process. Loading a
// document without a store section keeps a persistent store's entries.
func (c StoreConfig) Persistent() bool {
	return c.Backend == BackendBadger && !c.Badger.InMemory
}

// ApplyDefaults fills zero values of every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Server.ApplyDefaults()

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Backend == BackendBadger && c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
		c.Store.Badger = badgerstore.DefaultConfig(".nodeflow/store")
	}
	if c.Store.Badger.OpenAttempts == 0 {
		c.Store.Badger.OpenAttempts = 5
	}
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("store.backend must be one of [%s, %s] (got: %s)", BackendMemory, BackendBadger, c.Store.Backend)
	}
	return c.Telemetry.Validate()
}
