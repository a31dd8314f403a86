// Package middleware provides the HTTP middleware of the runner API.
//
//   - CORS: cross-origin access for browser editors (gin-contrib/cors)
//     under an OriginPolicy parsed from CORS_ORIGINS; the same policy
//     guards websocket upgrades
//   - RateLimit: per-IP token buckets (golang.org/x/time/rate); idle
//     clients are swept
//
// Example Usage:
//
//	origins, err := middleware.ParseOrigins(cfg.Server.CORSOrigins)
//	router.Use(middleware.CORS(origins))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
