package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/nodeflow/engine"
	apperrors "github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/nodes"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/sse"
	"github.com/kbukum/nodeflow/store"
)

func newTestServer(t *testing.T) (http.Handler, *engine.Engine) {
	t.Helper()
	return newTestServerWithEvents(t, nil)
}

func newTestServerWithEvents(t *testing.T, hub *sse.Hub) (http.Handler, *engine.Engine) {
	t.Helper()
	st := store.NewMemory()
	e, err := engine.New(nodes.NewRegistry(), st, engine.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cfg := Config{}
	cfg.ApplyDefaults()
	s := New(cfg, logger.Nop())
	s.ApplyMiddleware(nil)
	s.RegisterDefaultEndpoints("nodeflow", "test", st)
	NewAPI(e, nil, logger.Nop()).WithEvents(hub).Register(s.GinEngine())
	return s.Handler(), e
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env.Data
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error %q: %v", rr.Body.String(), err)
	}
	return resp.Error.Code
}

var debugDocument = map[string]any{
	"name": "debug",
	"nodes": []map[string]any{
		{"id": "on", "type": nodes.TypeEventListener, "config": map[string]any{"eventName": "go"}},
		{"id": "a", "type": nodes.TypeLog, "literals": map[string]any{"Message": "first"}},
		{"id": "b", "type": nodes.TypeLog, "literals": map[string]any{"Message": "second"}},
		{"id": "div", "type": nodes.TypeDivision, "literals": map[string]any{"Dividend": 1, "Divisor": 0}},
	},
	"connections": []map[string]any{
		{"fromNode": "on", "fromPort": "Fired", "toNode": "a", "toPort": "Exec"},
		{"fromNode": "a", "fromPort": "Next", "toNode": "b", "toPort": "Exec"},
	},
	"store":       map[string]any{"greeting": "hello"},
	"breakpoints": []string{"a"},
}

func TestHealthAndVersion(t *testing.T) {
	h, _ := newTestServer(t)

	rr := do(t, h, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report observability.ServiceHealth
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != observability.HealthStatusUp || len(report.Components) != 1 {
		t.Fatalf("unexpected health report %+v", report)
	}

	if rr := do(t, h, "GET", "/version", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /version, got %d", rr.Code)
	}
}

func TestAPI_NoDocument(t *testing.T) {
	h, _ := newTestServer(t)
	rr := do(t, h, "POST", "/v1/resolve", ResolveRequest{NodeID: "a", PortID: "Value"})
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != apperrors.ErrCodeNotFound {
		t.Fatalf("expected 404 NOT_FOUND, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_PutGraph(t *testing.T) {
	h, e := newTestServer(t)

	if rr := do(t, h, "PUT", "/v1/graph", debugDocument); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d %s", rr.Code, rr.Body.String())
	}
	if got := e.Breakpoints(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected the document breakpoints, got %v", got)
	}
	if v, _ := e.Store().Get("greeting"); v != "hello" {
		t.Fatalf("expected the document store, got %v", v)
	}

	rr := do(t, h, "PUT", "/v1/graph", map[string]any{"nodes": []map[string]any{{"id": "x", "type": "NOPE"}}})
	if rr.Code != http.StatusUnprocessableEntity && rr.Code != http.StatusBadRequest {
		t.Fatalf("expected a rejected document, got %d", rr.Code)
	}
	if errorCode(t, rr) != apperrors.ErrCodeUnknownNodeType {
		t.Fatalf("expected UNKNOWN_NODE_TYPE, got %s", rr.Body.String())
	}
}

func TestAPI_Resolve(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, "PUT", "/v1/graph", debugDocument)

	tests := []struct {
		name     string
		req      ResolveRequest
		wantCode int
	}{
		{"non-finite value", ResolveRequest{NodeID: "div", PortID: "Quotient"}, http.StatusOK},
		{"missing port id", ResolveRequest{NodeID: "div"}, http.StatusBadRequest},
		{"unknown node", ResolveRequest{NodeID: "zzz", PortID: "Value"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, "POST", "/v1/resolve", tt.req)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[ResolveResponse](t, rr)
			if resp.Value != "+Inf" || resp.Meta.Status != engine.StatusCompleted {
				t.Fatalf("unexpected response %+v", resp)
			}
			if got := rr.Header().Get("X-Pass-Id"); got == "" || got != resp.Meta.PassID {
				t.Fatalf("expected pass id header %q, got %q", resp.Meta.PassID, got)
			}
		})
	}
}

func TestAPI_DebugSession(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, "PUT", "/v1/graph", debugDocument)

	rr := do(t, h, "POST", "/v1/flows", engine.FlowRequest{Event: "go"})
	meta := decode[engine.MetaState](t, rr)
	if meta.Status != engine.StatusPaused || meta.PausedNode != "a" {
		t.Fatalf("expected a pause before a, got %s %q", meta.Status, meta.PausedNode)
	}

	active := decode[engine.MetaState](t, do(t, h, "GET", "/v1/flows/active", nil))
	if active.PassID != meta.PassID {
		t.Fatalf("expected the paused pass to be active, got %q", active.PassID)
	}

	meta = decode[engine.MetaState](t, do(t, h, "POST", "/v1/flows/active/step-over", nil))
	if meta.Status != engine.StatusPaused || meta.PausedNode != "b" {
		t.Fatalf("expected a pause before b, got %s %q", meta.Status, meta.PausedNode)
	}

	meta = decode[engine.MetaState](t, do(t, h, "POST", "/v1/flows/active/resume", nil))
	if meta.Status != engine.StatusCompleted || !reflect.DeepEqual(meta.Path, []string{"a", "b"}) {
		t.Fatalf("expected completion through a and b, got %s %v", meta.Status, meta.Path)
	}

	if rr := do(t, h, "GET", "/v1/flows/active", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected no active flow, got %d", rr.Code)
	}
	if rr := do(t, h, "POST", "/v1/flows/active/resume", nil); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a paused flow, got %d", rr.Code)
	}
	if rr := do(t, h, "POST", "/v1/flows/active/cancel", nil); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without an active pass, got %d", rr.Code)
	}
}

func TestAPI_CancelPaused(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, "PUT", "/v1/graph", debugDocument)
	do(t, h, "POST", "/v1/flows", engine.FlowRequest{Event: "go"})

	rr := do(t, h, "POST", "/v1/flows/active/cancel", nil)
	meta := decode[engine.MetaState](t, rr)
	if rr.Code != http.StatusOK || meta.Reason != apperrors.ErrCodeCancelled {
		t.Fatalf("expected the cancelled pass, got %d %+v", rr.Code, meta)
	}
}

func TestAPI_Breakpoints(t *testing.T) {
	h, e := newTestServer(t)

	if rr := do(t, h, "PUT", "/v1/breakpoints/x", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	do(t, h, "PUT", "/v1/breakpoints/y", nil)
	if got := decode[[]string](t, do(t, h, "GET", "/v1/breakpoints", nil)); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("expected [x y], got %v", got)
	}
	if rr := do(t, h, "DELETE", "/v1/breakpoints/x", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, h, "DELETE", "/v1/breakpoints/x", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing breakpoint, got %d", rr.Code)
	}
	do(t, h, "DELETE", "/v1/breakpoints", nil)
	if len(e.Breakpoints()) != 0 {
		t.Fatalf("expected no breakpoints, got %v", e.Breakpoints())
	}
}

func TestAPI_Store(t *testing.T) {
	h, e := newTestServer(t)
	_ = e.Store().Set("a", 1.0)
	_ = e.Store().Set(store.ChannelKey("news"), "hi")

	got := decode[map[string]any](t, do(t, h, "GET", "/v1/store", nil))
	if len(got) != 2 || got["a"] != 1.0 {
		t.Fatalf("unexpected store %v", got)
	}
	if rr := do(t, h, "DELETE", "/v1/store/a", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, h, "DELETE", "/v1/store/a", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	do(t, h, "DELETE", "/v1/store", nil)
	if keys := e.Store().Keys(); len(keys) != 0 {
		t.Fatalf("expected an empty store, got %v", keys)
	}
}

func TestAPI_PutGraphResetsStore(t *testing.T) {
	h, e := newTestServer(t)
	_ = e.Store().Set("count", 7.0)

	doc := map[string]any{"name": "other", "nodes": []map[string]any{}}
	if rr := do(t, h, "PUT", "/v1/graph", doc); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d %s", rr.Code, rr.Body.String())
	}
	if keys := e.Store().Keys(); len(keys) != 0 {
		t.Fatalf("expected the previous document's entries to be cleared, got %v", keys)
	}
}

func TestJSONSafe(t *testing.T) {
	in := map[string]any{"list": []any{1.5, "x"}, "n": 2.0}
	if got := JSONSafe(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("finite values must pass through, got %v", got)
	}
}

func TestAPI_Events(t *testing.T) {
	h, _ := newTestServer(t)
	if rr := do(t, h, "GET", "/v1/events", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an event hub, got %d", rr.Code)
	}

	hub := sse.NewHub()
	go hub.Run()
	defer hub.Stop()
	h, _ = newTestServerWithEvents(t, hub)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events?types=pass,breakpoints", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	events := make(chan string, 16)
	go func() {
		lines := bufio.NewScanner(resp.Body)
		for lines.Scan() {
			if name, ok := strings.CutPrefix(lines.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()
	next := func() string {
		t.Helper()
		select {
		case name := <-events:
			return name
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
			return ""
		}
	}

	if got := next(); got != sse.EventConnected {
		t.Fatalf("expected the connected event, got %q", got)
	}
	for hub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	do(t, h, "PUT", "/v1/graph", debugDocument)
	if got := next(); got != sse.EventBreakpoints {
		t.Fatalf("expected the document breakpoints, got %q", got)
	}
	do(t, h, "POST", "/v1/flows", engine.FlowRequest{Event: "go"})
	if got := next(); got != sse.EventPass {
		t.Fatalf("expected the paused pass, got %q", got)
	}
	do(t, h, "DELETE", "/v1/store", nil)
	do(t, h, "DELETE", "/v1/breakpoints", nil)
	if got := next(); got != sse.EventBreakpoints {
		t.Fatalf("expected store events to be filtered out, got %q", got)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Host != "127.0.0.1" || cfg.Port != 7420 || cfg.WriteTimeout != time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.CORS.AllowsOrigin("http://localhost:5173") || cfg.CORS.AllowsOrigin("https://example.com") {
		t.Fatalf("unexpected default origins %v", cfg.CORS.AllowedOrigins)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"ephemeral port", func(c *Config) { c.Port = 0 }, ""},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "server.port"},
		{"negative timeout", func(c *Config) { c.IdleTimeout = -time.Second }, "server.idle_timeout"},
		{"bad body size", func(c *Config) { c.MaxBodySize = "huge" }, "server.max_body_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.mutate(&c)
			err := c.Validate()
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

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, logger.Nop())
	s.RegisterDefaultEndpoints("nodeflow", "test")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if strings.HasSuffix(s.Addr(), ":0") {
		t.Fatalf("expected the bound port, got %s", s.Addr())
	}
	resp, err := http.Get("http://" + s.Addr() + "/version")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
