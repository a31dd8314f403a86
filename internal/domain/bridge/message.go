package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

var (
	ErrClosed         = errors.New("runner bridge is closed")
	ErrInvalidCommand = errors.New("invalid command message")
	ErrInvalidEvent   = errors.New("invalid event payload")
)

// Values holds command-specific parameters
type Values map[string]interface{}

// CommandMessage is one command sent from a sandbox to its host
type CommandMessage struct {
	Command string `json:"command"`
	Value   Values `json:"value"`
}

// NewCommand creates a command with an empty value object
func NewCommand(command string) CommandMessage {
	return CommandMessage{Command: command, Value: Values{}}
}

// With sets a required parameter
func (m CommandMessage) With(key string, value interface{}) CommandMessage {
	m.Value[key] = value
	return m
}

// SetOpt sets key only when o holds a value
func SetOpt[T any](v Values, key string, o opt.Value[T]) {
	if x, ok := o.Get(); ok {
		v[key] = x
	}
}

// Event is an inbound message from the host. Its payload is opaque to the
// bridge; device frameworks decode it.
type Event struct {
	Payload json.RawMessage
}

// NewEvent wraps a raw JSON payload
func NewEvent(payload []byte) Event {
	return Event{Payload: append(json.RawMessage(nil), payload...)}
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidEvent)
	}
	return sonic.Unmarshal(e.Payload, v)
}

// MarshalJSON emits the payload verbatim
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Payload) == 0 {
		return []byte("null"), nil
	}
	return e.Payload, nil
}

// EncodeCommand renders the wire form of msg. Keys are sorted so equal
// messages encode identically.
func EncodeCommand(msg CommandMessage) ([]byte, error) {
	if msg.Command == "" {
		return nil, fmt.Errorf("%w: missing command", ErrInvalidCommand)
	}
	if msg.Value == nil {
		msg.Value = Values{}
	}
	return sonic.ConfigStd.Marshal(msg)
}

// DecodeCommand parses a wire command
func DecodeCommand(data []byte) (CommandMessage, error) {
	var msg CommandMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if msg.Command == "" {
		return CommandMessage{}, fmt.Errorf("%w: missing command", ErrInvalidCommand)
	}
	if msg.Value == nil {
		msg.Value = Values{}
	}
	return msg, nil
}

// DecodeEvent validates a wire event
func DecodeEvent(data []byte) (Event, error) {
	if len(data) == 0 || !sonic.Valid(data) {
		return Event{}, ErrInvalidEvent
	}
	return NewEvent(data), nil
}
