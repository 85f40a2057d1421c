package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with map-based structured fields.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger for service from cfg. The level applies to this
// logger only; the zerolog global level is left alone.
func New(cfg *Config, service string) *Logger {
	return newLogger(cfg, service, cfg.levelFor(""))
}

func newLogger(cfg *Config, service string, level zerolog.Level) *Logger {
	out := outputWriter(cfg.Output)
	var zl zerolog.Logger
	switch strings.ToLower(cfg.Format) {
	case FormatConsole, FormatPretty:
		zl = zerolog.New(consoleWriter(out, cfg.NoColor, service))
	default:
		zl = zerolog.New(out)
		if service != "" {
			zl = zl.With().Str("service", service).Logger()
		}
	}
	zc := zl.Level(level).With()
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	return &Logger{zl: zc.Logger()}
}

// NewWithWriter creates a JSON logger writing to w at the given level.
// Tests use it to capture output.
func NewWithWriter(w io.Writer, level, service string) *Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zc := zerolog.New(w).Level(lvl).With().Timestamp()
	if service != "" {
		zc = zc.Str("service", service)
	}
	return &Logger{zl: zc.Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

type passIDKey struct{}

// ContextWithPassID stores a pass id so WithContext can tag log lines with it.
func ContextWithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey{}, passID)
}

// PassIDFromContext returns the pass id stored by ContextWithPassID.
func PassIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(passIDKey{}).(string)
	return id, ok
}

// WithContext returns a logger tagged with the pass id carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id, ok := PassIDFromContext(ctx); ok {
		return &Logger{zl: l.zl.With().Str(FieldPassID, id).Logger()}
	}
	return l
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str(FieldComponent, name).Logger()}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// Level returns the minimum level this logger writes.
func (l *Logger) Level() zerolog.Level {
	return l.zl.GetLevel()
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	write(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	write(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	write(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	write(l.zl.Error(), msg, fields)
}

func write(e *zerolog.Event, msg string, fields []map[string]interface{}) {
	if e == nil {
		return
	}
	for _, f := range fields {
		e.Fields(f)
	}
	e.Msg(msg)
}

// --- global logger ---

var (
	globalLogger *Logger
	globalConfig = &Config{Level: "info", Format: FormatConsole, Output: "stderr", Timestamp: true}
)

// Init installs the global logger built from cfg and resets the component
// registry so Get honors the new component levels.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	registry.mu.Lock()
	globalConfig = cfg
	globalLogger = New(cfg, "")
	clear(registry.loggers)
	registry.mu.Unlock()
}

// SetGlobalLogger replaces the global logger. Component loggers created
// afterwards derive from l.
func SetGlobalLogger(l *Logger) {
	registry.mu.Lock()
	globalLogger = l
	clear(registry.loggers)
	registry.mu.Unlock()
}

// GetGlobalLogger returns the global logger, creating a default one if needed.
func GetGlobalLogger() *Logger {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return globalLocked()
}

func globalLocked() *Logger {
	if globalLogger == nil {
		globalLogger = New(globalConfig, "")
	}
	return globalLogger
}

func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }

func outputWriter(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

var levelTags = map[string]string{
	"trace": "TRC", "debug": "DBG", "info": "INF", "warn": "WRN", "error": "ERR", "fatal": "FTL",
}

var levelColors = map[string]string{
	"debug": "36", "info": "32", "warn": "33", "error": "31", "fatal": "35",
}

func consoleWriter(out io.Writer, noColor bool, service string) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			name, _ := i.(string)
			tag, ok := levelTags[name]
			if !ok {
				tag = strings.ToUpper(name)
			}
			tag = "[" + tag + "]"
			if color, ok := levelColors[name]; ok && !noColor {
				tag = "\033[" + color + "m" + tag + "\033[0m"
			}
			if service != "" {
				tag = "[" + service + "]" + tag
			}
			return tag
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
	}
}
