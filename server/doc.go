// Package server provides the HTTP debug API of nodeflow, served by Gin
// over HTTP/1.1 and h2c on one port.
//
// An editor uploads a document, resolves outputs, starts flows and drives
// the debugger through /v1. Every request runs against the currently
// loaded document.
//
// # Middleware
//
// Built-in middleware (server/middleware), applied around every route:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin headers for browser editors
//   - BodySizeLimit: request body size limits
//   - RequestLogger: one line per request with status, duration and the X-Pass-Id of the pass it ran
//   - Metrics: per-route request metrics (Gin level)
//
// # Endpoints
//
//   - /healthz: service and store health
//   - /version: build version information
package server
