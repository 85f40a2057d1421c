package logger

import "sync"

var registry = struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Get returns the logger for a component such as "engine" or "store". It
// is tagged with the component name and uses the level from
// logging.components when one is configured. Loggers are cached until the
// next Init or SetGlobalLogger.
func Get(component string) *Logger {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if l, ok := registry.loggers[component]; ok {
		return l
	}

	base := globalLocked()
	if lvl, ok := globalConfig.Components[component]; ok {
		if level, err := parseLevel(lvl); err == nil {
			base = &Logger{zl: base.zl.Level(level)}
		}
	}
	l := base.WithComponent(component)
	registry.loggers[component] = l
	return l
}
