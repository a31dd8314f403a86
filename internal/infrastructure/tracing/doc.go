/*
Package tracing correlates log lines with HTTP requests.

Every request gets an ID: the client's X-Request-ID when it is printable
ASCII of sane length, otherwise a fresh req_<ulid>. The ID is echoed in the
response header and carried in the request context, so components that log
while serving the request (sandbox creation, rendering) can attach it.

# Usage

	router.Use(tracing.HTTPMiddleware(logger))

	logger.Info("Sandbox created", tracing.Fields(ctx)...)
*/
package tracing
