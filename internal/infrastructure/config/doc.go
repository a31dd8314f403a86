// Package config provides 12-factor configuration management for the runner service.
//
// Configuration is loaded from environment variables with defaults and
// validated before use.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, document title)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox: Script execution timeout, instance limit (0 is unlimited) and command queue size
//   - Redis: Optional relay of runner bridges onto Redis Pub/Sub
//   - Frameworks: Path of the framework catalog manifest
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, DOCUMENT_TITLE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SANDBOX_TIMEOUT, SANDBOX_MAX_INSTANCES, SANDBOX_QUEUE_SIZE
//   - REDIS_ENABLED, REDIS_ADDR, REDIS_CHANNEL_PREFIX
//   - FRAMEWORKS_MANIFEST
package config
