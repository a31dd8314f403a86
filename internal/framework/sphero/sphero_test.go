package sphero

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge/bridgetest"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

func TestOperationsSendOneCommand(t *testing.T) {
	tests := []struct {
		name    string
		call    func(s *Sphero)
		command string
		value   bridge.Values
	}{
		{
			name:    "setRGB all fields",
			call:    func(s *Sphero) { s.SetRGB(255, 0, 10, opt.Some(true), opt.Some(100)) },
			command: "setRGB",
			value:   bridge.Values{"red": 255, "green": 0, "blue": 10, "persistant": true, "delay": 100},
		},
		{
			name:    "setRGB without options",
			call:    func(s *Sphero) { s.SetRGB(1, 2, 3, opt.None[bool](), opt.None[int]()) },
			command: "setRGB",
			value:   bridge.Values{"red": 1, "green": 2, "blue": 3},
		},
		{
			name:    "setBackLed",
			call:    func(s *Sphero) { s.SetBackLed(50, opt.None[int]()) },
			command: "setBackLed",
			value:   bridge.Values{"brightness": 50},
		},
		{
			name:    "move",
			call:    func(s *Sphero) { s.Move(100, opt.Some(90), opt.Some(true), opt.Some(50)) },
			command: "move",
			value:   bridge.Values{"speed": 100, "heading": 90, "state": true, "delay": 50},
		},
		{
			name:    "move speed only",
			call:    func(s *Sphero) { s.Move(20, opt.None[int](), opt.None[bool](), opt.None[int]()) },
			command: "move",
			value:   bridge.Values{"speed": 20},
		},
		{
			name:    "move explicit false state",
			call:    func(s *Sphero) { s.Move(0, opt.Some(0), opt.Some(false), opt.None[int]()) },
			command: "move",
			value:   bridge.Values{"speed": 0, "heading": 0, "state": false},
		},
		{
			name:    "boost",
			call:    func(s *Sphero) { s.Boost(opt.Some(2), opt.Some(180), opt.None[int]()) },
			command: "boost",
			value:   bridge.Values{"time": 2, "heading": 180},
		},
		{
			name:    "boost without options",
			call:    func(s *Sphero) { s.Boost(opt.None[int](), opt.None[int](), opt.None[int]()) },
			command: "boost",
			value:   bridge.Values{},
		},
		{
			name:    "stop",
			call:    func(s *Sphero) { s.Stop(opt.None[int]()) },
			command: "stop",
			value:   bridge.Values{},
		},
		{
			name:    "stop delayed",
			call:    func(s *Sphero) { s.Stop(opt.Some(500)) },
			command: "stop",
			value:   bridge.Values{"delay": 500},
		},
		{
			name:    "calibrate",
			call:    func(s *Sphero) { s.Calibrate(45) },
			command: "calibrate",
			value:   bridge.Values{"heading": 45},
		},
		{
			name:    "sleep",
			call:    func(s *Sphero) { s.Sleep() },
			command: "sleep",
			value:   bridge.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := bridgetest.New()
			tt.call(New(rec, zap.NewNop()))

			sent := rec.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.command, sent[0].Command)
			assert.Equal(t, tt.value, sent[0].Value)
		})
	}
}

func TestMoveWireFormat(t *testing.T) {
	rec := bridgetest.New()
	New(rec, nil).Move(100, opt.Some(90), opt.Some(true), opt.Some(50))

	msg, ok := rec.Last()
	require.True(t, ok)

	data, err := bridge.EncodeCommand(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"command":"move","value":{"delay":50,"heading":90,"speed":100,"state":true}}`, string(data))
}

func TestStopWireFormat(t *testing.T) {
	rec := bridgetest.New()
	New(rec, nil).Stop(opt.None[int]())

	msg, ok := rec.Last()
	require.True(t, ok)

	data, err := bridge.EncodeCommand(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"command":"stop","value":{}}`, string(data))
}

func TestCommandsCoverEveryOperation(t *testing.T) {
	rec := bridgetest.New()
	s := New(rec, nil)

	s.SetRGB(0, 0, 0, opt.None[bool](), opt.None[int]())
	s.SetBackLed(0, opt.None[int]())
	s.Move(0, opt.None[int](), opt.None[bool](), opt.None[int]())
	s.Boost(opt.None[int](), opt.None[int](), opt.None[int]())
	s.Stop(opt.None[int]())
	s.Calibrate(0)
	s.Sleep()

	var names []string
	for _, msg := range rec.Sent() {
		names = append(names, msg.Command)
	}
	assert.Equal(t, Commands, names)
}

func TestListenPassesFramework(t *testing.T) {
	rec := bridgetest.New()
	s := New(rec, nil)

	var order []int
	var handles []*Sphero
	s.Listen(func(got *Sphero, ev bridge.Event) {
		handles = append(handles, got)
		order = append(order, 1)
	})
	s.Listen(func(got *Sphero, ev bridge.Event) {
		order = append(order, 2)
		got.Stop(opt.None[int]())
	})

	rec.Emit(bridge.NewEvent([]byte(`{"type":"collision"}`)))

	assert.Equal(t, []int{1, 2}, order)
	require.Len(t, handles, 1)
	assert.Same(t, s, handles[0])
	assert.Len(t, rec.Sent(), 1)
}

func TestMissingRunnerIsReportedAndNoOp(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	var s *Sphero
	require.NotPanics(t, func() {
		s = New(nil, zap.New(core))
		s.SetRGB(1, 2, 3, opt.None[bool](), opt.None[int]())
		s.Move(1, opt.None[int](), opt.None[bool](), opt.None[int]())
		s.Stop(opt.None[int]())
		s.Sleep()
		s.Listen(func(*Sphero, bridge.Event) {})
	})

	assert.False(t, s.Connected())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 4, logs.FilterMessage("Dropping command without runner").Len())
}

func TestSharedBridge(t *testing.T) {
	rec := bridgetest.New()
	a := New(rec, nil)
	b := New(rec, nil)

	a.Sleep()
	b.Calibrate(10)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "sleep", sent[0].Command)
	assert.Equal(t, "calibrate", sent[1].Command)
}
