package logger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatPretty  = "pretty"
)

// Config contains logging configuration.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`

	// Components overrides Level for named loggers, e.g. {engine: debug}.
	Components map[string]string `yaml:"components" mapstructure:"components"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
	c.Timestamp = true
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	formats := []string{FormatJSON, FormatConsole, FormatPretty}
	if !slices.Contains(formats, strings.ToLower(c.Format)) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", formats, c.Format)
	}
	for name, level := range c.Components {
		if _, err := parseLevel(level); err != nil {
			return fmt.Errorf("logging.components.%s: %w", name, err)
		}
	}
	return nil
}

// levelFor returns the level for the named component.
func (c *Config) levelFor(component string) zerolog.Level {
	if lvl, ok := c.Components[component]; ok {
		if l, err := parseLevel(lvl); err == nil {
			return l
		}
	}
	l, err := parseLevel(c.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

var levels = []string{"trace", "debug", "info", "warn", "error", "fatal", "disabled"}

func parseLevel(s string) (zerolog.Level, error) {
	if !slices.Contains(levels, strings.ToLower(s)) {
		return zerolog.NoLevel, fmt.Errorf("level must be one of %v (got: %s)", levels, s)
	}
	return zerolog.ParseLevel(strings.ToLower(s))
}
