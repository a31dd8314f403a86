package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OtherCommand labels every command outside the allowed set
const OtherCommand = "other"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Render metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec

	// Bridge metrics
	CommandsTotal   *prometheus.CounterVec
	CommandsDropped *prometheus.CounterVec
	EventsTotal     prometheus.Counter

	// Sandbox metrics
	SandboxesActive prometheus.Gauge
	SandboxesTotal  prometheus.Counter
	ScriptErrors    prometheus.Counter
	ScriptDuration  prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
	commands  map[string]struct{}
	snapshot  Snapshot
	mu        sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	TotalRenders    int64   `json:"total_renders"`
	FailedRenders   int64   `json:"failed_renders"`
	TotalCommands   int64   `json:"total_commands"`
	DroppedCommands int64   `json:"dropped_commands"`
	TotalEvents     int64   `json:"total_events"`
	ActiveSandboxes int64   `json:"active_sandboxes"`
	ActiveHosts     int64   `json:"active_hosts"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with its own registry, so several
// collectors can coexist in one process
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		commands:  make(map[string]struct{}),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runner_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runner_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runner_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runner_renders_total",
				Help: "Total number of document renders",
			},
			[]string{"language", "status"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runner_render_duration_seconds",
				Help:    "Document render duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"language"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runner_commands_total",
				Help: "Total number of device commands sent over runner bridges",
			},
			[]string{"command"},
		),
		CommandsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runner_commands_dropped_total",
				Help: "Device commands a transport could not deliver",
			},
			[]string{"transport"},
		),
		EventsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runner_events_total",
				Help: "Total number of events delivered into sandboxes",
			},
		),

		SandboxesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runner_sandboxes_active",
				Help: "Number of live sandbox instances",
			},
		),
		SandboxesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runner_sandboxes_total",
				Help: "Total number of sandbox instances created",
			},
		),
		ScriptErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runner_script_errors_total",
				Help: "Script regions that failed inside a sandbox",
			},
		),
		ScriptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "runner_script_duration_seconds",
				Help:    "Sandbox document execution time in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runner_ws_connections",
				Help: "Number of attached websocket hosts",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runner_ws_messages_total",
				Help: "Total number of websocket messages",
			},
			[]string{"direction"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "runner_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler exposes the collector in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRender records a render attempt
func (m *Metrics) RecordRender(language, status string, duration time.Duration) {
	m.RendersTotal.WithLabelValues(language, status).Inc()
	m.RenderDuration.WithLabelValues(language).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRenders++
	if status != "ok" {
		m.snapshot.FailedRenders++
	}
	m.mu.Unlock()
}

// AllowCommands adds names that get their own command label. Scripts
// choose command names freely, so anything else is counted as OtherCommand.
func (m *Metrics) AllowCommands(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		m.commands[name] = struct{}{}
	}
}

// RecordCommand records a command leaving a sandbox
func (m *Metrics) RecordCommand(command string) {
	m.mu.Lock()
	if _, ok := m.commands[command]; !ok {
		command = OtherCommand
	}
	m.snapshot.TotalCommands++
	m.mu.Unlock()

	m.CommandsTotal.WithLabelValues(command).Inc()
}

// RecordDroppedCommand records a command a transport failed to deliver
func (m *Metrics) RecordDroppedCommand(transport string) {
	m.CommandsDropped.WithLabelValues(transport).Inc()
	m.mu.Lock()
	m.snapshot.DroppedCommands++
	m.mu.Unlock()
}

// RecordEvent records an event delivered into a sandbox
func (m *Metrics) RecordEvent() {
	m.EventsTotal.Inc()
	m.mu.Lock()
	m.snapshot.TotalEvents++
	m.mu.Unlock()
}

// RecordExecution records one sandbox document execution
func (m *Metrics) RecordExecution(duration time.Duration, failedScripts int) {
	m.ScriptDuration.Observe(duration.Seconds())
	if failedScripts > 0 {
		m.ScriptErrors.Add(float64(failedScripts))
	}
}

// SandboxCreated increments the live and total sandbox counts
func (m *Metrics) SandboxCreated() {
	m.SandboxesActive.Inc()
	m.SandboxesTotal.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSandboxes++
	m.mu.Unlock()
}

// SandboxDestroyed decrements the live sandbox count
func (m *Metrics) SandboxDestroyed() {
	m.SandboxesActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSandboxes--
	m.mu.Unlock()
}

// RecordWSMessage records a websocket message
func (m *Metrics) RecordWSMessage(direction string) {
	m.WSMessages.WithLabelValues(direction).Inc()
}

// IncWSConnections increments attached websocket hosts
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveHosts++
	m.mu.Unlock()
}

// DecWSConnections decrements attached websocket hosts
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveHosts--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
