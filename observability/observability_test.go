package observability

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
)

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", cfg, false},
		{"zero sample rate", Config{SampleRate: 0}, false},
		{"sample rate above one", Config{SampleRate: 1.5}, true},
		{"negative sample rate", Config{SampleRate: -0.1}, true},
		{"negative interval", Config{SampleRate: 1, Interval: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want it to contain %q", tt.rate, got, tt.want)
		}
	}
}

func TestSetup(t *testing.T) {
	prevT, prevM := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevT)
		otel.SetMeterProvider(prevM)
	}()

	cfg := Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true}
	cfg.ApplyDefaults()
	tel, err := Setup(context.Background(), cfg, Resource{Service: "nodeflow", Version: "v0", Environment: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel.Metrics == nil {
		t.Fatal("expected instruments")
	}
	// The collector is unreachable; only the second shutdown must succeed.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown should be a no-op, got %v", err)
	}
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordPass(ctx, "flow", "completed", 100*time.Millisecond)
	metrics.RecordNode(ctx, "ADDITION", "resolve")
	metrics.RecordNodeError(ctx, "DIVISION", "OPERATION_FAILED")
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "/v1/resolve", "200", 5*time.Millisecond)
}

func TestBeginPass(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	metrics, _ := NewMetrics(noop.NewMeterProvider().Meter("test"))
	ctx, pass := BeginPass(context.Background(), "nodeflow", "resolve", "pass-1", SpanResolve, metrics)
	if PassFromContext(ctx) != pass {
		t.Fatal("expected the pass in the returned ctx")
	}
	if id, ok := logger.PassIDFromContext(ctx); !ok || id != "pass-1" {
		t.Fatalf("expected the pass id for log correlation, got %q", id)
	}
	pass.End(ctx, "error", fmt.Errorf("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanResolve {
		t.Errorf("span name = %q", spans[0].Name)
	}
	found := false
	for _, kv := range spans[0].Attributes {
		if kv.Key == attribute.Key(AttrPassID) && kv.Value.AsString() == "pass-1" {
			found = true
		}
	}
	if !found {
		t.Error("expected pass id attribute on span")
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestPassFromContext_NotSet(t *testing.T) {
	if PassFromContext(context.Background()) != nil {
		t.Error("expected nil when no pass has begun")
	}
}

func TestPass_Elapsed(t *testing.T) {
	_, pass := BeginPass(context.Background(), "nodeflow", "flow", "p", SpanFlow, nil)
	pass.Started = time.Now().Add(-50 * time.Millisecond)

	if d := pass.Elapsed(); d < 45*time.Millisecond {
		t.Errorf("expected elapsed around 50ms, got %v", d)
	}
}

func TestPass_NilMetrics(t *testing.T) {
	ctx, pass := BeginPass(context.Background(), "nodeflow", "flow", "p", SpanFlow, nil)
	pass.End(ctx, "completed", nil)
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("nodeflow", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "engine", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy component, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "store", Status: HealthStatusDegraded, Message: "slow"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "badger", Status: HealthStatusDown})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "other", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}

func TestCheckAll(t *testing.T) {
	up := HealthFunc(func(context.Context) Health { return Health{Status: HealthStatusUp} })
	slow := HealthFunc(func(ctx context.Context) Health {
		time.Sleep(time.Second)
		return Health{Status: HealthStatusUp}
	})
	panics := HealthFunc(func(context.Context) Health { panic("boom") })
	blank := HealthFunc(func(context.Context) Health { return Health{} })

	tests := []struct {
		name       string
		checkers   []HealthChecker
		wantStatus HealthStatus
		wantMsgs   map[string]string
	}{
		{"no checkers", nil, HealthStatusUp, nil},
		{"all up", []HealthChecker{Named("store", up), Named("engine", up)}, HealthStatusUp, nil},
		{"timeout", []HealthChecker{Named("store", up), Named("slow", slow)}, HealthStatusDown,
			map[string]string{"slow": "check timed out"}},
		{"panic", []HealthChecker{Named("bad", panics)}, HealthStatusDown,
			map[string]string{"bad": "check panicked: boom"}},
		{"missing status", []HealthChecker{Named("blank", blank)}, HealthStatusDown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			report := CheckAll(ctx, "nodeflow", "v1", tt.checkers...)
			if report.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Components) != len(tt.checkers) {
				t.Fatalf("expected %d components, got %d", len(tt.checkers), len(report.Components))
			}
			for i := 1; i < len(report.Components); i++ {
				if report.Components[i-1].Name > report.Components[i].Name {
					t.Fatalf("components not ordered by name: %+v", report.Components)
				}
			}
			for _, h := range report.Unhealthy() {
				if want, ok := tt.wantMsgs[h.Name]; ok && h.Message != want {
					t.Errorf("%s message = %q, want %q", h.Name, h.Message, want)
				}
			}
		})
	}
}

func TestSetSpanAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, fmt.Errorf("test error"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := len(spans[0].Attributes); got != 6 {
		t.Errorf("expected 6 attributes, got %d", got)
	}
}

func TestSetSpanError_EngineCode(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), SpanNode)
	SetSpanError(ctx, fmt.Errorf("pass: %w", apperrors.MissingInput("log-1", "Message")))
	span.End()

	got := exporter.GetSpans()[0]
	if got.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", got.Status.Code)
	}
	var code string
	for _, kv := range got.Attributes {
		if string(kv.Key) == AttrErrorCode {
			code = kv.Value.AsString()
		}
	}
	if code != string(apperrors.ErrCodeMissingInput) {
		t.Errorf("expected the terminal reason on the span, got %q", code)
	}
}

func TestSpanHelpersWithoutRecordingSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil noop span")
	}
}

func TestNewResource(t *testing.T) {
	res, err := Resource{Service: "nodeflow", Version: "1.2.3", Environment: "test"}.build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "nodeflow" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}
