// Package ws attaches device hosts to sandbox bridges over WebSocket.
//
// GET /sandboxes/:id/runner upgrades to a websocket. Each host gets a
// host_<uuid> id for logging.
//
// Frames (server → host): command messages, {"command": ..., "value": {...}}.
// Commands queued before the first host attached are flushed in order.
//
// Frames (host → server): event payloads (any JSON), delivered to every
// listener the sandbox registered. Malformed frames are logged and skipped.
//
// One write pump per connection owns the socket's write side and pings the
// host; a slow host drops commands rather than stall the bridge.
//
// Example Usage:
//
//	handler := ws.NewHandler(sandboxes, metrics, logger)
//	router.GET("/sandboxes/:id/runner", handler.HandleConnection)
package ws
