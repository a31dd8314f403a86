package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every entry written by loggers from FromSettings
const ServiceName = "runner"

// Logger is the root logger. Subsystems take named children via Component.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"; empty picks the mode default
	Development bool
	Service     string
	Output      zapcore.WriteSyncer // stdout when nil
}

// New builds a logger. Development mode writes colored console lines at
// debug level with stack traces on warnings; production writes JSON.
func New(cfg Config) (*Logger, error) {
	level, err := resolveLevel(cfg.Level, cfg.Development)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(newEncoder(cfg.Development), out, zap.NewAtomicLevelAt(level))

	opts := []zap.Option{
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	logger := zap.New(core, opts...)
	if cfg.Service != "" {
		logger = logger.With(zap.String("service", cfg.Service))
	}
	return &Logger{Logger: logger}, nil
}

// FromSettings builds the service logger from configuration values. An
// invalid level falls back to the mode default instead of failing startup.
func FromSettings(level string, development bool) *Logger {
	cfg := Config{Level: level, Development: development, Service: ServiceName}
	logger, err := New(cfg)
	if err == nil {
		return logger
	}

	cfg.Level = ""
	logger, err = New(cfg)
	if err != nil {
		return NewNop()
	}
	logger.Warn("Invalid log level, using default", zap.String("level", level))
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component returns a child logger named after a subsystem.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}

func resolveLevel(level string, development bool) (zapcore.Level, error) {
	if level == "" {
		if development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(level)
}

func newEncoder(development bool) zapcore.Encoder {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(cfg)
}
