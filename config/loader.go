package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/nodeflow/logger"
)

// LoaderConfig holds the optional overrides for LoadConfig.
type LoaderConfig struct {
	ConfigFile string   // explicit config file; skips discovery
	EnvFile    string   // explicit .env file; skips discovery
	SearchDirs []string // directories searched when no file is given
	EnvPrefix  string   // defaults to the upper-cased service name
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithSearchDirs replaces the directories searched for config and .env files.
func WithSearchDirs(dirs ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.SearchDirs = dirs }
}

// WithEnvPrefix sets the environment variable prefix. An empty prefix binds
// bare keys such as ENGINE_MAX_DEPTH.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// DefaultSearchDirs returns the working directory, its .<service> directory
// and the user config directory for service.
func DefaultSearchDirs(service string) []string {
	dirs := []string{".", "." + service}
	if home, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, service))
	}
	return dirs
}

// ConfigCandidates lists the config file names tried in each search directory.
func ConfigCandidates(service string) []string {
	return []string{service + ".yml", service + ".yaml", "config.yml", "config.yaml"}
}

// EnvCandidates lists the .env file names tried in each search directory.
func EnvCandidates(service string) []string {
	return []string{".env." + service, ".env"}
}

// FindFile returns the first existing dir/name pair, directories outermost.
func FindFile(dirs, names []string) string {
	for _, dir := range dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// LoadConfig fills cfg, a pointer to a struct, for service. Values come from
// the config file, then the .env file, then the environment, each layer
// overriding the previous one. Environment variables are named after the
// mapstructure keys of cfg: engine.max_depth reads NODEFLOW_ENGINE_MAX_DEPTH.
// A missing config file is not an error; defaults fill the gaps later.
func LoadConfig(service string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{
		SearchDirs: DefaultSearchDirs(service),
		EnvPrefix:  strings.ToUpper(strings.ReplaceAll(service, "-", "_")),
	}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	v.SetEnvPrefix(lc.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := lc.ConfigFile
	if configFile == "" {
		configFile = FindFile(lc.SearchDirs, ConfigCandidates(service))
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", configFile, err)
			}
		} else {
			logger.Warn("Config file not found, using defaults", logger.Fields("path", configFile))
		}
	}

	envFile := lc.EnvFile
	if envFile == "" {
		envFile = FindFile(lc.SearchDirs, EnvCandidates(service))
	}
	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil {
			logger.Warn("Failed to load .env file", logger.Fields("path", envFile, logger.FieldError, err.Error()))
		}
	}

	t := reflect.TypeOf(cfg)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config for %s must be a pointer to a struct, got %T", service, cfg)
	}
	for _, key := range ConfigKeys(t.Elem()) {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config for %s: %w", service, err)
	}
	return nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// ConfigKeys returns the dotted leaf keys of t as viper decodes them.
// Squashed embedded structs share their parent's prefix. Slices and maps are
// leaves.
func ConfigKeys(t reflect.Type) []string {
	var keys []string
	collectKeys(t, "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, squash := mapstructureName(f)
		if name == "-" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		nested := ft.Kind() == reflect.Struct && ft != timeType && ft != durationType
		switch {
		case nested && squash:
			collectKeys(ft, prefix, keys)
		case nested:
			collectKeys(ft, prefix+name+".", keys)
		default:
			*keys = append(*keys, prefix+name)
		}
	}
}

func mapstructureName(f reflect.StructField) (name string, squash bool) {
	tag := f.Tag.Get("mapstructure")
	name, opts, _ := strings.Cut(tag, ",")
	squash = strings.Contains(opts, "squash")
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name, squash
}
