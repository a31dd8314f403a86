// Package logging builds the service's zap logger.
//
// Production mode writes one JSON object per entry with ISO8601
// timestamps. Development mode writes colored console lines at debug
// level. Subsystems log through named children:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	registry := renderer.NewRegistry(assembler, logger.Component("renderer"))
package logging
