// Package monitoring provides Prometheus metrics for the runner service.
//
// Metrics Categories:
//   - HTTP: request counts, latency, response size (per route template)
//   - Render: renders per language and outcome, render latency
//   - Bridge: commands per allowed name (others share "other"), dropped
//     commands per transport, events
//   - Sandbox: live and total instances, script failures, execution time
//   - WebSocket: attached hosts, messages per direction
//
// Each Metrics value owns its own registry; expose it with Handler.
//
// Example Usage:
//
//	metrics := monitoring.NewMetrics()
//	metrics.AllowCommands(sphero.Commands...)
//	router.Use(monitoring.Middleware(metrics))
//	router.GET("/metrics", gin.WrapH(metrics.Handler()))
package monitoring
