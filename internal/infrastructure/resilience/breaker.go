package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many trial requests")
)

// State is the breaker's admission state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{"closed", "half-open", "open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings configures a Breaker. Zero values take the defaults noted.
type Settings struct {
	// TrialRequests are admitted while half-open; as many consecutive
	// successes close the breaker. Default 1.
	TrialRequests uint32
	// Window resets the closed-state counts periodically. Zero keeps them.
	Window time.Duration
	// Cooldown is how long the breaker stays open. Default 30s.
	Cooldown time.Duration
	// ShouldTrip is consulted after each failure while closed. Default
	// ConsecutiveFailures(5).
	ShouldTrip func(Counts) bool
	// OnStateChange runs under the breaker lock.
	OnStateChange func(name string, from, to State)
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

// Counts are the outcomes recorded since the last state change or window
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// ConsecutiveFailures trips after n failures in a row
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool {
		return c.ConsecutiveFailures >= n
	}
}

// Breaker sheds calls to a dependency that keeps failing
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	epoch  uint64
	since  time.Time
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	if settings.TrialRequests == 0 {
		settings.TrialRequests = 1
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.ShouldTrip == nil {
		settings.ShouldTrip = ConsecutiveFailures(5)
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		since:    settings.Now(),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any elapsed cooldown
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	return b.state
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Allow admits one call or rejects it with ErrCircuitOpen or
// ErrTooManyRequests. The caller reports the outcome through done; only
// the first report counts, and reports from before a state change are
// ignored.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	switch b.state {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.settings.TrialRequests {
			return nil, ErrTooManyRequests
		}
	}

	b.counts.Requests++
	epoch := b.epoch

	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.record(epoch, success) })
	}, nil
}

// Do runs fn when the breaker admits it. A panic in fn counts as a failure.
func (b *Breaker) Do(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}

	success := false
	defer func() { done(success) }()

	err = fn()
	success = err == nil
	return err
}

func (b *Breaker) record(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	b.advance(now)
	if epoch != b.epoch {
		return
	}

	if success {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.TrialRequests {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.failure()
	if b.state == StateHalfOpen || b.settings.ShouldTrip(b.counts) {
		b.transition(StateOpen, now)
	}
}

// advance applies the transitions that only depend on time
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateOpen:
		if now.Sub(b.since) >= b.settings.Cooldown {
			b.transition(StateHalfOpen, now)
		}
	case StateClosed:
		if b.settings.Window > 0 && now.Sub(b.since) >= b.settings.Window {
			b.reset(now)
		}
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to
	b.reset(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) reset(now time.Time) {
	b.epoch++
	b.counts = Counts{}
	b.since = now
}
