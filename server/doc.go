// Package server provides the HTTP server for asrgate: Gin routing behind a
// handler-level middleware chain, served over HTTP/1.1 and h2c.
//
// # Middleware
//
// Applied in order to every request (server/middleware):
//
//   - Recovery: panic recovery with a structured 500 body
//   - RequestID: request ID generation and propagation into the context
//   - CORS: cross-origin headers and preflight answers
//   - BodySizeLimit: upload size cap
//   - RequestLogger: access logging by status class
//
// APIKey is a Gin handler applied per route group.
//
// # Endpoints
//
// Operational endpoints (server/endpoint):
//
//   - Health: component aggregation with optional extra fields
//   - Liveness and Readiness: orchestrator probes
//   - Info: build version and uptime
//   - Metrics: Go runtime memory and goroutine counts
package server
