package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/resilience"
)

// MetricsAggregator serves runner metrics alongside the state of the
// circuit breakers guarding external transports
type MetricsAggregator struct {
	metrics  *monitoring.Metrics
	breakers []*resilience.Breaker
}

// NewMetricsAggregator creates a metrics aggregator
func NewMetricsAggregator(metrics *monitoring.Metrics, breakers ...*resilience.Breaker) *MetricsAggregator {
	return &MetricsAggregator{
		metrics:  metrics,
		breakers: breakers,
	}
}

// MetricsSnapshot represents a snapshot of all runner metrics
type MetricsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Runner    monitoring.Snapshot `json:"runner"`
	Breakers  []BreakerStatus     `json:"breakers,omitempty"`
	Summary   MetricsSummary      `json:"summary"`
}

// BreakerStatus reports one circuit breaker
type BreakerStatus struct {
	Name   string            `json:"name"`
	State  string            `json:"state"`
	Counts resilience.Counts `json:"counts"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	ErrorRate         float64 `json:"error_rate"`
	RenderFailureRate float64 `json:"render_failure_rate"`
	DropRate          float64 `json:"drop_rate"`
	ActiveSandboxes   int64   `json:"active_sandboxes"`
	ActiveHosts       int64   `json:"active_hosts"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Register mounts /metrics and /metrics/json
func (ma *MetricsAggregator) Register(r gin.IRoutes) {
	r.GET("/metrics", ma.Prometheus)
	r.GET("/metrics/json", ma.GetAggregatedMetrics)
}

// Prometheus serves the text exposition format
func (ma *MetricsAggregator) Prometheus(c *gin.Context) {
	ma.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// GetAggregatedMetrics returns the JSON snapshot
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ma.Snapshot())
}

// Snapshot collects the current metrics
func (ma *MetricsAggregator) Snapshot() MetricsSnapshot {
	snap := ma.metrics.Snapshot()

	out := MetricsSnapshot{
		Timestamp: time.Now(),
		Runner:    snap,
		Summary: MetricsSummary{
			ErrorRate:         ratio(snap.TotalErrors, snap.TotalRequests),
			RenderFailureRate: ratio(snap.FailedRenders, snap.TotalRenders),
			DropRate:          ratio(snap.DroppedCommands, snap.TotalCommands),
			ActiveSandboxes:   snap.ActiveSandboxes,
			ActiveHosts:       snap.ActiveHosts,
			UptimeSeconds:     snap.UptimeSeconds,
		},
	}
	for _, b := range ma.breakers {
		out.Breakers = append(out.Breakers, BreakerStatus{
			Name:   b.Name(),
			State:  b.State().String(),
			Counts: b.Counts(),
		})
	}
	return out
}

func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
