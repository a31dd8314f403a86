package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
)

var (
	ErrNotFound      = errors.New("sandbox not found")
	ErrClosed        = errors.New("sandbox is closed")
	ErrLimitReached  = errors.New("sandbox limit reached")
	ErrTimeout       = errors.New("execution timeout exceeded")
	ErrInvalidScript = errors.New("invalid script call")
)

// Config defines sandbox limits
type Config struct {
	Timeout          time.Duration // Per execution and per listener callback
	MaxInstances     int           // Zero means unlimited
	QueueSize        int           // Bridge queue bound per direction
	MaxCallStackSize int           // goja call stack limit
	MaxConsole       int           // Console entries kept per instance
	EnableConsole    bool          // Expose console.*
	IdleTimeout      time.Duration // Unused instances are destroyed after this; zero keeps them
}

// DefaultConfig returns the default limits
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxInstances:     64,
		QueueSize:        bridge.DefaultQueueSize,
		MaxCallStackSize: 1024,
		MaxConsole:       1000,
		EnableConsole:    true,
	}
}

// Status of one script region
type Status string

const (
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// ScriptResult reports what happened to one script region
type ScriptResult struct {
	Index    int           `json:"index"`
	Type     string        `json:"type,omitempty"`
	Src      string        `json:"src,omitempty"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result holds the outcome of executing a document
type Result struct {
	Scripts  []ScriptResult `json:"scripts"`
	Console  []LogEntry     `json:"console"`
	Duration time.Duration  `json:"duration_ns"`
	Error    string         `json:"error,omitempty"`
}

// Failed counts script regions that threw
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Scripts {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// HostAttacher connects an extra host to every new sandbox bridge
type HostAttacher interface {
	Attach(ctx context.Context, sandboxID string, host bridge.Host) (detach func(), err error)
}
