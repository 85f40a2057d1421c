package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/nodeflow/logger"
)

// PassIDHeader names the evaluation pass a response reports on.
const PassIDHeader = "X-Pass-Id"

const slowRequest = 500 * time.Millisecond

// RequestLogger logs one line per request at a level picked from the status
// code. Probes are skipped. Event streams are logged when they open because
// they only complete when the client leaves.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case isProbe(r.URL.Path):
				next.ServeHTTP(w, r)
				return
			case isStream(r):
				log.Debug("Event stream opened", requestFields(r))
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			fields := requestFields(r)
			fields[logger.FieldStatus] = sw.status
			fields["bytes"] = sw.bytes
			fields[logger.FieldDuration] = elapsed.Milliseconds()
			if id := sw.Header().Get(PassIDHeader); id != "" {
				fields[logger.FieldPassID] = id
			}
			if elapsed > slowRequest {
				fields["slow"] = true
			}

			switch {
			case sw.status >= http.StatusInternalServerError:
				log.Error("Request failed", fields)
			case sw.status >= http.StatusBadRequest:
				log.Warn("Request rejected", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}

func requestFields(r *http.Request) map[string]interface{} {
	fields := logger.Fields("method", r.Method, "path", r.URL.Path)
	if id := r.Header.Get(RequestIDHeader); id != "" {
		fields[logger.FieldRequestID] = id
	}
	return fields
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/version"
}

func isStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
