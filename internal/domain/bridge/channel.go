package bridge

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
)

// DefaultQueueSize bounds each direction of a Channel
const DefaultQueueSize = 1024

// Channel is the in-process runner bridge for one sandbox instance
type Channel struct {
	id      string
	logger  *zap.Logger
	metrics *monitoring.Metrics

	commands *mailbox[CommandMessage]
	events   *mailbox[Event]

	mu        sync.RWMutex
	listeners []func(Event)
	hosts     []hostEntry
	nextHost  uint64
	hostCount atomic.Int32

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type hostEntry struct {
	id      uint64
	handler func(CommandMessage)
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records commands and events
func WithMetrics(metrics *monitoring.Metrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = metrics
	}
}

// WithQueueSize bounds each direction; zero or less means DefaultQueueSize
func WithQueueSize(size int) ChannelOption {
	return func(c *Channel) {
		if size > 0 {
			c.commands = newMailbox[CommandMessage](size)
			c.events = newMailbox[Event](size)
		}
	}
}

// NewChannel creates a bridge and starts its two dispatchers
func NewChannel(id string, opts ...ChannelOption) *Channel {
	c := &Channel{
		id:       id,
		logger:   zap.NewNop(),
		commands: newMailbox[CommandMessage](DefaultQueueSize),
		events:   newMailbox[Event](DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("bridge", id))

	c.wg.Add(2)
	go c.dispatchCommands()
	go c.dispatchEvents()

	return c
}

// ID returns the bridge identifier
func (c *Channel) ID() string {
	return c.id
}

// Send queues msg for the host. It never blocks and never fails.
func (c *Channel) Send(msg CommandMessage) {
	if c.closed.Load() {
		c.logger.Warn("Dropping command on closed bridge", zap.String("command", msg.Command))
		return
	}
	if !c.commands.push(msg) {
		c.logger.Warn("Command queue full, dropping command", zap.String("command", msg.Command))
		if c.metrics != nil {
			c.metrics.RecordDroppedCommand("channel")
		}
		return
	}
	if c.metrics != nil {
		c.metrics.RecordCommand(msg.Command)
	}
}

// Listen registers callback for every subsequent event
func (c *Channel) Listen(callback func(Event)) {
	if callback == nil {
		return
	}

	c.mu.Lock()
	listeners := make([]func(Event), len(c.listeners), len(c.listeners)+1)
	copy(listeners, c.listeners)
	c.listeners = append(listeners, callback)
	c.mu.Unlock()
}

// Deliver queues an inbound event
func (c *Channel) Deliver(ev Event) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.events.push(ev) {
		if c.closed.Load() {
			return ErrClosed
		}
		c.logger.Warn("Event queue full, dropping event")
		return nil
	}
	if c.metrics != nil {
		c.metrics.RecordEvent()
	}
	return nil
}

// Subscribe registers a host handler. Queued commands flush to the first
// subscriber; afterwards every command reaches every subscriber in order.
func (c *Channel) Subscribe(handler func(CommandMessage)) func() {
	if handler == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextHost++
	hid := c.nextHost
	c.hosts = append(c.hosts, hostEntry{id: hid, handler: handler})
	c.hostCount.Add(1)
	c.mu.Unlock()

	c.commands.wake()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, h := range c.hosts {
				if h.id == hid {
					c.hosts = append(c.hosts[:i:i], c.hosts[i+1:]...)
					c.hostCount.Add(-1)
					return
				}
			}
		})
	}
}

// Pending returns the number of commands waiting for a host
func (c *Channel) Pending() int {
	return c.commands.len()
}

// Closed reports whether Close has been called
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// Close tears the bridge down. Queued messages are discarded.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		droppedCommands := c.commands.close()
		droppedEvents := c.events.close()
		c.wg.Wait()

		if droppedCommands > 0 || droppedEvents > 0 {
			c.logger.Debug("Bridge closed with queued messages",
				zap.Int("commands", droppedCommands),
				zap.Int("events", droppedEvents),
			)
		}
	})
	return nil
}

func (c *Channel) hasHosts() bool {
	return c.hostCount.Load() > 0
}

func (c *Channel) dispatchCommands() {
	defer c.wg.Done()

	for {
		msg, ok := c.commands.pop(c.hasHosts)
		if !ok {
			return
		}

		c.mu.RLock()
		hosts := make([]hostEntry, len(c.hosts))
		copy(hosts, c.hosts)
		c.mu.RUnlock()

		for _, h := range hosts {
			c.safeCall(func() { h.handler(msg) }, "host handler")
		}
	}
}

func (c *Channel) dispatchEvents() {
	defer c.wg.Done()

	for {
		ev, ok := c.events.pop(always)
		if !ok {
			return
		}

		c.mu.RLock()
		listeners := c.listeners
		c.mu.RUnlock()

		for _, listener := range listeners {
			c.safeCall(func() { listener(ev) }, "listener")
		}
	}
}

func (c *Channel) safeCall(fn func(), what string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Bridge callback panicked",
				zap.String("callback", what),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

var (
	_ Bridge = (*Channel)(nil)
	_ Host   = (*Channel)(nil)
)
