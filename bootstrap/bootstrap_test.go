package bootstrap

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/nodeflow/config"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
)

type testConfig struct {
	config.ServiceConfig
}

type fakeChecker struct {
	status  observability.HealthStatus
	message string
}

func (f fakeChecker) CheckHealth(context.Context) observability.Health {
	return observability.Health{Name: "fake", Status: f.status, Message: f.message}
}

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "development",
		},
	}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(newTestConfig("test", "1.0"), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Logger == nil {
		t.Error("expected a logger initialized from config")
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := newTestConfig("test", "1.0")
	cfg.Environment = "moon"
	if _, err := NewApp(cfg); err == nil {
		t.Error("expected validation error for an unknown environment")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, err := NewApp(newTestConfig("test", "1.0"), WithGracefulTimeout(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if app.gracefulTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", app.gracefulTimeout)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		checks  map[string]observability.HealthChecker
		wantErr string
	}{
		{"empty", nil, ""},
		{"all up", map[string]observability.HealthChecker{
			"store": fakeChecker{status: observability.HealthStatusUp},
		}, ""},
		{"one down", map[string]observability.HealthChecker{
			"store":  fakeChecker{status: observability.HealthStatusDown, message: "closed"},
			"tracer": fakeChecker{status: observability.HealthStatusUp},
		}, "store=down(closed)"},
		{"degraded", map[string]observability.HealthChecker{
			"store": fakeChecker{status: observability.HealthStatusDegraded},
		}, "store=degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			for name, c := range tt.checks {
				app.AddHealthCheck(name, c)
			}
			err := app.ReadyCheck(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHealthCheckersOrdered(t *testing.T) {
	app := newTestApp(t)
	b := fakeChecker{status: observability.HealthStatusDown}
	a := fakeChecker{status: observability.HealthStatusUp}
	app.AddHealthCheck("b", b)
	app.AddHealthCheck("a", a)
	got := app.HealthCheckers()
	if len(got) != 2 {
		t.Fatalf("expected 2 checkers, got %d", len(got))
	}
	first, second := got[0].CheckHealth(context.Background()), got[1].CheckHealth(context.Background())
	if first.Name != "a" || first.Status != observability.HealthStatusUp || second.Name != "b" {
		t.Fatalf("expected checkers in name order, got %+v %+v", first, second)
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app := newTestApp(t)

	var order []string
	record := func(s string) Hook {
		return func(context.Context) error {
			order = append(order, s)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnReady(record("ready"))
	app.OnStop(record("stop-1"), record("stop-2"))

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	want := []string{"start", "ready", "task", "stop-2", "stop-1"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
}

func TestRunTaskErrors(t *testing.T) {
	taskErr := fmt.Errorf("task error")
	stopErr := fmt.Errorf("stop error")

	tests := []struct {
		name    string
		setup   func(app *App[*testConfig])
		task    error
		wantErr string
		ran     bool
	}{
		{"task error", nil, taskErr, "task error", true},
		{"stop error", func(app *App[*testConfig]) {
			app.OnStop(func(context.Context) error { return stopErr })
		}, nil, "stop error", true},
		{"task error wins over stop error", func(app *App[*testConfig]) {
			app.OnStop(func(context.Context) error { return stopErr })
		}, taskErr, "task error", true},
		{"start hook error", func(app *App[*testConfig]) {
			app.OnStart(func(context.Context) error { return fmt.Errorf("boom") })
		}, nil, "onStart hook failed", false},
		{"ready hook error", func(app *App[*testConfig]) {
			app.OnReady(func(context.Context) error { return fmt.Errorf("boom") })
		}, nil, "onReady hook failed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if tt.setup != nil {
				tt.setup(app)
			}
			ran := false
			err := app.RunTask(context.Background(), func(context.Context) error {
				ran = true
				return tt.task
			})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if ran != tt.ran {
				t.Fatalf("task ran = %v, want %v", ran, tt.ran)
			}
		})
	}
}

func TestRunTaskStopsAfterFailedStart(t *testing.T) {
	app := newTestApp(t)
	stopped := false
	app.OnStop(func(context.Context) error {
		stopped = true
		return nil
	})
	app.OnStart(func(context.Context) error { return fmt.Errorf("boom") })

	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected an error")
	}
	if !stopped {
		t.Fatal("expected stop hooks to run after a failed start")
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	stopped := make(chan struct{})
	app.OnStop(func(context.Context) error {
		close(stopped)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("expected stop hooks to run")
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sig := app.WaitForSignal(ctx); sig != nil {
		t.Fatalf("expected nil signal, got %v", sig)
	}
}
