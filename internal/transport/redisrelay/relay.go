package redisrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/resilience"
)

const (
	// DefaultPublishTimeout bounds a single publish
	DefaultPublishTimeout = 2 * time.Second
	// PublishBuffer is how many commands wait per attachment while the
	// broker is slow; further commands are dropped
	PublishBuffer = 256
)

// Relay attaches sandbox bridges to a Pub/Sub broker
type Relay struct {
	broker  Broker
	prefix  string
	timeout time.Duration
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the relay logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics counts dropped commands
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Relay) {
		r.metrics = metrics
	}
}

// WithPublishTimeout bounds each publish
func WithPublishTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

// New creates a relay publishing under prefix
func New(broker Broker, prefix string, opts ...Option) *Relay {
	r := &Relay{
		broker:  broker,
		prefix:  prefix,
		timeout: DefaultPublishTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "redis-relay"))

	if r.breaker == nil {
		r.breaker = resilience.New("redis-relay", resilience.Settings{
			Cooldown:   10 * time.Second,
			ShouldTrip: resilience.ConsecutiveFailures(3),
			OnStateChange: func(name string, from, to resilience.State) {
				r.logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	return r
}

// CommandChannel returns the channel commands for sandboxID are published to
func (r *Relay) CommandChannel(sandboxID string) string {
	return fmt.Sprintf("%s:%s:commands", r.prefix, sandboxID)
}

// EventChannel returns the channel events for sandboxID are read from
func (r *Relay) EventChannel(sandboxID string) string {
	return fmt.Sprintf("%s:%s:events", r.prefix, sandboxID)
}

// Breaker exposes the publish circuit breaker
func (r *Relay) Breaker() *resilience.Breaker {
	return r.breaker
}

// Attach subscribes to the sandbox's event channel and starts publishing
// its commands. ctx bounds only the subscription handshake; the returned
// function detaches the relay. Publishing runs on its own goroutine so a
// slow broker never holds up the bridge's other hosts.
func (r *Relay) Attach(ctx context.Context, sandboxID string, host bridge.Host) (func(), error) {
	sub, err := r.broker.Subscribe(ctx, r.EventChannel(sandboxID))
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("sandbox_id", sandboxID))
	commands := r.CommandChannel(sandboxID)

	attached, cancel := context.WithCancel(context.Background())
	pending := make(chan bridge.CommandMessage, PublishBuffer)

	unsubscribe := host.Subscribe(func(msg bridge.CommandMessage) {
		if attached.Err() != nil {
			return
		}
		select {
		case pending <- msg:
		default:
			r.drop(logger, msg, "publish buffer full")
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.publishLoop(attached, logger, commands, pending)
	}()
	go func() {
		defer wg.Done()
		r.forwardEvents(logger, sub, host)
	}()

	logger.Debug("Relay attached", zap.String("commands", commands))

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
			if err := sub.Close(); err != nil {
				logger.Debug("Failed to close subscription", zap.Error(err))
			}
			wg.Wait()
			logger.Debug("Relay detached")
		})
	}, nil
}

// publishLoop publishes queued commands in order until ctx ends. Commands
// still queued at detach are discarded.
func (r *Relay) publishLoop(ctx context.Context, logger *zap.Logger, channel string, pending <-chan bridge.CommandMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-pending:
			r.publish(ctx, logger, channel, msg)
		}
	}
}

func (r *Relay) publish(ctx context.Context, logger *zap.Logger, channel string, msg bridge.CommandMessage) {
	payload, err := bridge.EncodeCommand(msg)
	if err != nil {
		logger.Warn("Failed to encode command", zap.String("command", msg.Command), zap.Error(err))
		return
	}

	done, err := r.breaker.Allow()
	if err != nil {
		r.drop(logger, msg, "circuit open")
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err = r.broker.Publish(publishCtx, channel, payload)
	cancel()

	// A publish abandoned by detach is not held against the broker
	done(err == nil || ctx.Err() != nil)
	if err == nil || ctx.Err() != nil {
		return
	}
	logger.Warn("Failed to publish command", zap.String("command", msg.Command), zap.Error(err))
	r.drop(logger, msg, "publish failed")
}

func (r *Relay) drop(logger *zap.Logger, msg bridge.CommandMessage, reason string) {
	logger.Debug("Dropping command", zap.String("command", msg.Command), zap.String("reason", reason))
	if r.metrics != nil {
		r.metrics.RecordDroppedCommand("redis")
	}
}

// forwardEvents drains sub until it closes
func (r *Relay) forwardEvents(logger *zap.Logger, sub Subscription, host bridge.Host) {
	for payload := range sub.Messages() {
		ev, err := bridge.DecodeEvent(payload)
		if err != nil {
			logger.Warn("Ignoring malformed event", zap.Int("bytes", len(payload)))
			continue
		}
		if err := host.Deliver(ev); err != nil && !errors.Is(err, bridge.ErrClosed) {
			logger.Warn("Failed to deliver event", zap.Error(err))
		}
	}
}
