package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/id"
)

// Request describes a sandbox to create
type Request struct {
	Language   renderer.Language
	Content    resource.EditorContent
	Libraries  resource.Collection
	Frameworks resource.Collection
	// Catalog framework names resolved ahead of Frameworks
	CatalogFrameworks []string
}

// Instance is a live sandbox: one document, one bridge, one runtime
type Instance struct {
	ID        id.SandboxID
	Language  renderer.Language
	Document  renderer.Document
	Result    *Result
	CreatedAt time.Time

	channel  *bridge.Channel
	runtime  *Runtime
	detach   []func()
	lastUsed atomic.Int64
	holds    atomic.Int32
}

// Info is the serializable view of an instance
type Info struct {
	ID        id.SandboxID      `json:"id"`
	Language  renderer.Language `json:"language"`
	CreatedAt time.Time         `json:"created_at"`
	LastUsed  time.Time         `json:"last_used"`
	Pending   int               `json:"pending_commands"`
	Result    *Result           `json:"result"`
	Console   []LogEntry        `json:"console"`
}

// Host returns the host side of the instance's bridge
func (i *Instance) Host() bridge.Host {
	return i.channel
}

// Console returns everything the instance logged so far
func (i *Instance) Console() []LogEntry {
	return i.runtime.Console()
}

// Info snapshots the instance
func (i *Instance) Info() Info {
	return Info{
		ID:        i.ID,
		Language:  i.Language,
		CreatedAt: i.CreatedAt,
		LastUsed:  time.Unix(0, i.lastUsed.Load()),
		Pending:   i.channel.Pending(),
		Result:    i.Result,
		Console:   i.Console(),
	}
}

// Hold keeps the instance from idling out until release is called. Hosts
// hold their sandbox for as long as they stay connected.
func (i *Instance) Hold() (release func()) {
	i.holds.Add(1)
	i.touch(time.Now())

	var once sync.Once
	return func() {
		once.Do(func() {
			i.touch(time.Now())
			i.holds.Add(-1)
		})
	}
}

func (i *Instance) touch(now time.Time) {
	i.lastUsed.Store(now.UnixNano())
}

func (i *Instance) idle(now time.Time, timeout time.Duration) bool {
	if i.holds.Load() > 0 {
		return false
	}
	return now.Sub(time.Unix(0, i.lastUsed.Load())) >= timeout
}

func (i *Instance) close() {
	for _, detach := range i.detach {
		detach()
	}
	// Interrupt running listeners before waiting on the bridge dispatchers
	i.runtime.Close()
	i.channel.Close()
}

// Manager creates and tracks sandbox instances
type Manager struct {
	registry  *renderer.Registry
	catalog   *resource.Catalog
	config    Config
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	attachers []HostAttacher

	mu        sync.RWMutex
	instances map[id.SandboxID]*Instance
	reserved  int
	closed    bool

	stop    chan struct{}
	janitor sync.WaitGroup
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the manager logger
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records sandbox and bridge metrics
func WithMetrics(metrics *monitoring.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithCatalog enables framework lookup by name
func WithCatalog(catalog *resource.Catalog) ManagerOption {
	return func(m *Manager) {
		m.catalog = catalog
	}
}

// WithAttacher connects a host to every new bridge
func WithAttacher(a HostAttacher) ManagerOption {
	return func(m *Manager) {
		if a != nil {
			m.attachers = append(m.attachers, a)
		}
	}
}

// NewManager creates a sandbox manager rendering through registry
func NewManager(registry *renderer.Registry, config Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:  registry,
		config:    config,
		logger:    zap.NewNop(),
		instances: make(map[id.SandboxID]*Instance),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if config.IdleTimeout > 0 {
		m.janitor.Add(1)
		go m.expireLoop(janitorInterval(config.IdleTimeout))
	}
	return m
}

// janitorInterval checks about four times per timeout, at most once a
// minute
func janitorInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

// Create renders the request, starts a sandbox for the document and runs
// its scripts. A script timeout is reported in the instance's Result; the
// instance stays alive so hosts can still attach.
func (m *Manager) Create(ctx context.Context, req Request) (*Instance, error) {
	if err := req.Content.Validate(); err != nil {
		return nil, err
	}
	if err := req.Frameworks.Validate(); err != nil {
		return nil, err
	}
	if err := req.Libraries.Validate(); err != nil {
		return nil, err
	}
	if err := m.reserve(); err != nil {
		return nil, err
	}
	defer m.release()

	frameworks, libraries, err := resource.Merge(m.catalog, req.CatalogFrameworks, req.Frameworks, req.Libraries)
	if err != nil {
		return nil, err
	}

	doc, err := m.registry.Render(req.Language, renderer.Input{
		Content:    req.Content,
		Libraries:  libraries,
		Frameworks: frameworks,
	})
	if err != nil {
		return nil, err
	}

	sid := id.NewSandboxID()
	logger := m.logger.With(append(tracing.Fields(ctx), zap.String("sandbox_id", string(sid)))...)

	channel := bridge.NewChannel(string(sid),
		bridge.WithLogger(logger),
		bridge.WithMetrics(m.metrics),
		bridge.WithQueueSize(m.config.QueueSize),
	)

	runtime, err := NewRuntime(m.config, channel, logger)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	inst := &Instance{
		ID:        sid,
		Language:  req.Language,
		Document:  doc,
		CreatedAt: time.Now(),
		channel:   channel,
		runtime:   runtime,
	}

	for _, a := range m.attachers {
		detach, err := a.Attach(ctx, string(sid), channel)
		if err != nil {
			logger.Warn("Failed to attach host", zap.Error(err))
			continue
		}
		inst.detach = append(inst.detach, detach)
	}

	result, err := runtime.Execute(ctx, doc)
	if err != nil && ctx.Err() != nil {
		inst.close()
		return nil, err
	}
	if err != nil {
		logger.Warn("Sandbox execution aborted", zap.Error(err))
	}
	inst.Result = result

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		inst.close()
		return nil, ErrClosed
	}
	inst.touch(time.Now())
	m.instances[sid] = inst
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SandboxCreated()
		if result != nil {
			m.metrics.RecordExecution(result.Duration, result.Failed())
		}
	}

	logger.Info("Sandbox created",
		zap.String("language", string(req.Language)),
		zap.Int("document_bytes", len(doc)),
	)
	return inst, nil
}

// Get returns a live instance and counts as a use of it
func (m *Manager) Get(sid id.SandboxID) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	inst.touch(time.Now())
	return inst, nil
}

// List returns live instances, oldest first
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	list := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		list = append(list, inst)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Len returns the number of live instances
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Destroy tears down an instance and its bridge
func (m *Manager) Destroy(sid id.SandboxID) error {
	m.mu.Lock()
	inst, ok := m.instances[sid]
	if ok {
		delete(m.instances, sid)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}

	inst.close()
	if m.metrics != nil {
		m.metrics.SandboxDestroyed()
	}
	m.logger.Info("Sandbox destroyed", zap.String("sandbox_id", string(sid)))
	return nil
}

// Close destroys every instance and rejects new ones
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	instances := m.instances
	m.instances = make(map[id.SandboxID]*Instance)
	m.mu.Unlock()

	close(m.stop)
	m.janitor.Wait()

	for _, inst := range instances {
		inst.close()
		if m.metrics != nil {
			m.metrics.SandboxDestroyed()
		}
	}
	return nil
}

func (m *Manager) expireLoop(interval time.Duration) {
	defer m.janitor.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.expireIdle(now)
		}
	}
}

// expireIdle destroys every instance unused for IdleTimeout as of now
func (m *Manager) expireIdle(now time.Time) []id.SandboxID {
	m.mu.Lock()
	var expired []*Instance
	for sid, inst := range m.instances {
		if inst.idle(now, m.config.IdleTimeout) {
			delete(m.instances, sid)
			expired = append(expired, inst)
		}
	}
	m.mu.Unlock()

	ids := make([]id.SandboxID, 0, len(expired))
	for _, inst := range expired {
		inst.close()
		if m.metrics != nil {
			m.metrics.SandboxDestroyed()
		}
		m.logger.Info("Sandbox expired",
			zap.String("sandbox_id", string(inst.ID)),
			zap.Duration("idle_timeout", m.config.IdleTimeout),
		)
		ids = append(ids, inst.ID)
	}
	return ids
}

// Catalog returns the framework catalog, if any
func (m *Manager) Catalog() *resource.Catalog {
	return m.catalog
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if limit := m.config.MaxInstances; limit > 0 && len(m.instances)+m.reserved >= limit {
		return fmt.Errorf("%w: %d", ErrLimitReached, limit)
	}
	m.reserved++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}
