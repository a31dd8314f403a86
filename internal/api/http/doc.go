// Package http provides the gin handlers of the runner API.
//
// Routes:
//   - GET  /, /health, /renderers
//   - POST /render, /render/preview (?format=html returns markup)
//   - POST /sandboxes, GET /sandboxes, GET|DELETE /sandboxes/:id
//   - GET  /sandboxes/:id/document
//   - POST /sandboxes/:id/events injects one event without a websocket host
//   - GET  /metrics, /metrics/json
//
// Domain errors map to status codes in one place (statusFor). An unknown
// language is 404 with {"error": "no renderer registered", "language": ...}.
package http
