// Package server wires the runner service together.
//
// New builds every component from configuration:
//   - Renderer registry with the built-in languages
//   - Framework catalog loaded from the manifest, when one is configured
//   - Optional Redis relay attached to every sandbox bridge
//   - Sandbox manager
//   - Gin router with recovery, request IDs, metrics, CORS and rate limiting
//   - REST routes, the metrics endpoints and the websocket runner route
//
// Responses are gzip-compressed except websocket upgrades.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
