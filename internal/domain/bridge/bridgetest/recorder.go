// Package bridgetest provides a synchronous runner bridge for tests.
package bridgetest

import (
	"sync"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
)

// Recorder records every sent command and delivers emitted events to its
// listeners synchronously, in registration order
type Recorder struct {
	mu        sync.Mutex
	sent      []bridge.CommandMessage
	listeners []func(bridge.Event)
}

// New creates an empty recorder
func New() *Recorder {
	return &Recorder{}
}

// Send records msg
func (r *Recorder) Send(msg bridge.CommandMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

// Listen registers callback
func (r *Recorder) Listen(callback func(bridge.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, callback)
}

// Emit delivers ev to every listener on the calling goroutine
func (r *Recorder) Emit(ev bridge.Event) {
	r.mu.Lock()
	listeners := append([]func(bridge.Event){}, r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Sent returns a copy of the recorded commands
func (r *Recorder) Sent() []bridge.CommandMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bridge.CommandMessage(nil), r.sent...)
}

// Last returns the most recent command
func (r *Recorder) Last() (bridge.CommandMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return bridge.CommandMessage{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Listeners returns how many callbacks are registered
func (r *Recorder) Listeners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

var _ bridge.Bridge = (*Recorder)(nil)
