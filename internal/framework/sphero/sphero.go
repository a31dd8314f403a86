package sphero

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

// Name identifies the framework in diagnostics
const Name = "Sphero Framework"

// Command names on the wire
const (
	CommandSetRGB     = "setRGB"
	CommandSetBackLed = "setBackLed"
	CommandMove       = "move"
	CommandBoost      = "boost"
	CommandStop       = "stop"
	CommandCalibrate  = "calibrate"
	CommandSleep      = "sleep"
)

// Commands lists every command the framework can emit
var Commands = []string{
	CommandSetRGB,
	CommandSetBackLed,
	CommandMove,
	CommandBoost,
	CommandStop,
	CommandCalibrate,
	CommandSleep,
}

// Sphero sends device commands over a runner bridge. It holds no device
// state; several instances may share one bridge.
type Sphero struct {
	runner bridge.Bridge
	logger *zap.Logger
}

// New binds the framework to runner. A nil runner is reported and turns
// every operation into a no-op.
func New(runner bridge.Bridge, logger *zap.Logger) *Sphero {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("framework", Name))

	if runner == nil {
		logger.Error("Was unable to get runner, device commands are disabled")
	}

	return &Sphero{runner: runner, logger: logger}
}

// Connected reports whether the framework has a bridge
func (s *Sphero) Connected() bool {
	return s.runner != nil
}

// Listen calls callback with this framework for every inbound event
func (s *Sphero) Listen(callback func(s *Sphero, ev bridge.Event)) {
	if s.runner == nil || callback == nil {
		return
	}
	s.runner.Listen(func(ev bridge.Event) {
		callback(s, ev)
	})
}

// SetRGB sets the main LED colour. The persistent flag is sent under the
// key the device firmware bridge expects ("persistant").
func (s *Sphero) SetRGB(red, green, blue int, persistent opt.Value[bool], delay opt.Value[int]) {
	msg := bridge.NewCommand(CommandSetRGB).
		With("red", red).
		With("green", green).
		With("blue", blue)
	bridge.SetOpt(msg.Value, "persistant", persistent)
	bridge.SetOpt(msg.Value, "delay", delay)
	s.send(msg)
}

// SetBackLed sets the tail light brightness
func (s *Sphero) SetBackLed(brightness int, delay opt.Value[int]) {
	msg := bridge.NewCommand(CommandSetBackLed).With("brightness", brightness)
	bridge.SetOpt(msg.Value, "delay", delay)
	s.send(msg)
}

// Move rolls at speed toward heading
func (s *Sphero) Move(speed int, heading opt.Value[int], state opt.Value[bool], delay opt.Value[int]) {
	msg := bridge.NewCommand(CommandMove).With("speed", speed)
	bridge.SetOpt(msg.Value, "heading", heading)
	bridge.SetOpt(msg.Value, "state", state)
	bridge.SetOpt(msg.Value, "delay", delay)
	s.send(msg)
}

// Boost accelerates for seconds toward heading
func (s *Sphero) Boost(seconds opt.Value[int], heading opt.Value[int], delay opt.Value[int]) {
	msg := bridge.NewCommand(CommandBoost)
	bridge.SetOpt(msg.Value, "time", seconds)
	bridge.SetOpt(msg.Value, "heading", heading)
	bridge.SetOpt(msg.Value, "delay", delay)
	s.send(msg)
}

// Stop halts the robot
func (s *Sphero) Stop(delay opt.Value[int]) {
	msg := bridge.NewCommand(CommandStop)
	bridge.SetOpt(msg.Value, "delay", delay)
	s.send(msg)
}

// Calibrate sets the current orientation as heading
func (s *Sphero) Calibrate(heading int) {
	s.send(bridge.NewCommand(CommandCalibrate).With("heading", heading))
}

// Sleep puts the robot into low power mode
func (s *Sphero) Sleep() {
	s.send(bridge.NewCommand(CommandSleep))
}

func (s *Sphero) send(msg bridge.CommandMessage) {
	if s.runner == nil {
		s.logger.Debug("Dropping command without runner", zap.String("command", msg.Command))
		return
	}
	s.runner.Send(msg)
}
