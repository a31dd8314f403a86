// Package main is the entry point for the runner service.
//
// The service renders editor content into standalone HTML documents and
// runs sandboxed programs that drive robot hosts over a command bridge.
//
//	Editor → POST /render           → HTML document
//	Editor → POST /sandboxes        → goja sandbox → commands
//	Host   ↔ /sandboxes/:id/runner  (websocket: commands out, events in)
//	Host   ↔ Redis pub/sub          (optional relay)
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags override the environment
//
// Usage:
//
//	./server -port 8000 -manifest frameworks.yaml
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
