package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
)

// App owns the lifecycle of one nodeflow process. C is the typed config.
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger

	gracefulTimeout time.Duration
	checks          map[string]observability.HealthChecker

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
		checks:          make(map[string]observability.HealthChecker),
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// AddHealthCheck registers a checker consulted by ReadyCheck and exposed
// through HealthCheckers.
func (a *App[C]) AddHealthCheck(name string, c observability.HealthChecker) {
	a.checks[name] = c
}

// HealthCheckers returns the registered checkers in name order, each
// reporting under its registered name.
func (a *App[C]) HealthCheckers() []observability.HealthChecker {
	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]observability.HealthChecker, 0, len(names))
	for _, name := range names {
		out = append(out, observability.Named(name, a.checks[name]))
	}
	return out
}

// ReadyCheck reports an error naming every checker that is not up.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	report := observability.CheckAll(ctx, a.Name, a.Version, a.HealthCheckers()...)
	var unhealthy []string
	for _, h := range report.Unhealthy() {
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the application and blocks until SIGINT, SIGTERM or ctx
// cancellation, then runs the stop hooks.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.stop()
		return err
	}
	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the application, runs task and shuts down when the task
// returns. SIGINT and SIGTERM cancel the task's context. The task error
// takes precedence over a shutdown error.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		a.stop()
		return err
	}

	taskCtx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	start := time.Now()
	taskErr := task(taskCtx)
	interrupted := taskCtx.Err() != nil && ctx.Err() == nil
	stop()

	fields := logger.Fields("duration", time.Since(start).String(), "interrupted", interrupted)
	if taskErr != nil {
		a.Logger.Debug("Task failed", logger.MergeWithError(fields, taskErr))
	} else {
		a.Logger.Debug("Task finished", fields)
	}

	if err := a.stop(); err != nil && taskErr == nil {
		return err
	}
	return taskErr
}

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// WaitForSignal blocks until a shutdown signal arrives or ctx is done. It
// returns the signal, or nil when ctx ended the wait.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Shutdown signal received", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context done, shutting down")
		return nil
	}
}

// Shutdown runs the stop hooks for callers that drive the lifecycle
// themselves.
func (a *App[C]) Shutdown(context.Context) error {
	return a.stop()
}

// startup runs the start hooks, reports components that are not ready and
// runs the ready hooks. A failing ready check is logged, not fatal, so a
// degraded store still lets the debug API come up.
func (a *App[C]) startup(ctx context.Context) error {
	a.Logger.Debug("Starting", logger.Fields("name", a.Name, "version", a.Version))
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Not every component is ready", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}
	return nil
}

// stop runs the stop hooks under a fresh deadline so a cancelled run
// context still gets a graceful shutdown.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	start := time.Now()
	if err := runStopHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("Shutdown finished with errors", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	a.Logger.Debug("Shutdown complete", logger.Fields(logger.FieldDuration, time.Since(start).Milliseconds()))
	return nil
}
