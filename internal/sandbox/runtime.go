package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/framework/sphero"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

// Runtime wraps a goja VM bound to one runner bridge
type Runtime struct {
	vm     *goja.Runtime
	config Config
	runner bridge.Bridge
	logger *zap.Logger

	// Guards vm; held for top-level execution and every callback
	mu     sync.Mutex
	closed atomic.Bool

	console   []LogEntry
	consoleMu sync.Mutex
}

// NewRuntime creates a runtime whose runner global sends through runner.
// A nil runner leaves device frameworks disconnected.
func NewRuntime(config Config, runner bridge.Bridge, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	r := &Runtime{
		vm:     goja.New(),
		config: config,
		runner: runner,
		logger: logger,
	}

	if config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs the document's JavaScript script regions in order
func (r *Runtime) Execute(ctx context.Context, doc renderer.Document) (*Result, error) {
	scripts, err := doc.Scripts()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	result := &Result{Scripts: make([]ScriptResult, 0, len(scripts))}

	stop := r.watch(ctx)
	var runErr error
	for i, s := range scripts {
		sr := ScriptResult{Index: i, Type: s.Type, Src: s.Src}

		switch {
		case runErr != nil:
			sr.Status, sr.Reason = StatusSkipped, "execution aborted"
		case !s.IsJavaScript():
			sr.Status, sr.Reason = StatusSkipped, "unsupported script type"
		case s.Src != "":
			sr.Status, sr.Reason = StatusSkipped, "external script"
		default:
			began := time.Now()
			_, err := r.vm.RunScript(fmt.Sprintf("script-%d.js", i), s.Text)
			sr.Duration = time.Since(began)
			sr.Status = StatusExecuted
			if err != nil {
				sr.Status, sr.Error = StatusFailed, err.Error()
				runErr = interruptCause(err)
				r.logger.Debug("Script region failed", zap.Int("index", i), zap.Error(err))
			}
		}

		result.Scripts = append(result.Scripts, sr)
	}
	stop()

	result.Duration = time.Since(start)
	result.Console = r.Console()
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result, runErr
}

// Eval runs a single script and returns its exported completion value
func (r *Runtime) Eval(ctx context.Context, script string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}

	stop := r.watch(ctx)
	val, err := r.vm.RunString(script)
	stop()

	if err != nil {
		if cause := interruptCause(err); cause != nil {
			return nil, cause
		}
		return nil, err
	}
	return exportValue(val), nil
}

// Console returns a copy of the captured console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// Close stops any running script and rejects further work
func (r *Runtime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.vm.Interrupt(ErrClosed)
	return nil
}

// watch interrupts the VM on timeout or cancellation until the returned
// function is called
func (r *Runtime) watch(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	timer := time.NewTimer(r.config.Timeout)

	go func() {
		defer close(exited)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		if !r.closed.Load() {
			r.vm.ClearInterrupt()
		}
	}
}

// interruptCause maps a goja interrupt to the error that caused it
func interruptCause(err error) error {
	var interrupted *goja.InterruptedError
	if !errors.As(err, &interrupted) {
		return nil
	}
	if cause, ok := interrupted.Value().(error); ok {
		return cause
	}
	return ErrTimeout
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers are not available inside the sandbox
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	runner := r.vm.NewObject()
	if err := runner.Set("send", r.runnerSend); err != nil {
		return err
	}
	if err := runner.Set("listen", r.runnerListen); err != nil {
		return err
	}
	if err := r.vm.Set("runner", runner); err != nil {
		return err
	}

	return r.vm.Set("Sphero", r.newSphero)
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
		if limit := r.config.MaxConsole; limit > 0 && len(r.console) > limit {
			r.console = append([]LogEntry(nil), r.console[len(r.console)-limit:]...)
		}
		r.consoleMu.Unlock()

		r.logger.Debug("console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// runnerSend implements runner.send({command, value})
func (r *Runtime) runnerSend(call goja.FunctionCall) goja.Value {
	msg, err := r.toCommand(call.Argument(0))
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}
	if r.runner == nil {
		r.logger.Warn("Dropping command without runner", zap.String("command", msg.Command))
		return goja.Undefined()
	}
	r.runner.Send(msg)
	return goja.Undefined()
}

// runnerListen implements runner.listen(fn)
func (r *Runtime) runnerListen(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("runner.listen expects a function"))
	}
	if r.runner == nil {
		return goja.Undefined()
	}
	r.runner.Listen(func(ev bridge.Event) {
		r.invoke(fn, goja.Undefined(), ev, false)
	})
	return goja.Undefined()
}

// toCommand converts a JS {command, value} object. Undefined and null
// fields are omitted from value.
func (r *Runtime) toCommand(v goja.Value) (bridge.CommandMessage, error) {
	if absent(v) {
		return bridge.CommandMessage{}, fmt.Errorf("%w: runner.send expects an object", ErrInvalidScript)
	}
	obj := v.ToObject(r.vm)

	command := obj.Get("command")
	if absent(command) || command.String() == "" {
		return bridge.CommandMessage{}, fmt.Errorf("%w: missing command", ErrInvalidScript)
	}

	msg := bridge.NewCommand(command.String())
	if value := obj.Get("value"); !absent(value) {
		fields := value.ToObject(r.vm)
		for _, key := range fields.Keys() {
			field := fields.Get(key)
			if absent(field) {
				continue
			}
			msg.Value[key] = field.Export()
		}
	}
	return msg, nil
}

// newSphero implements `new Sphero(runner)`. Any runner argument binds the
// sandbox's own bridge; a missing one yields a disconnected framework.
func (r *Runtime) newSphero(call goja.ConstructorCall) *goja.Object {
	var runner bridge.Bridge
	if !absent(call.Argument(0)) {
		runner = r.runner
	}
	dev := sphero.New(runner, r.logger)
	obj := call.This

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"setRGB": func(c goja.FunctionCall) goja.Value {
			dev.SetRGB(intArg(c, 0), intArg(c, 1), intArg(c, 2), optBool(c.Argument(3)), optInt(c.Argument(4)))
			return goja.Undefined()
		},
		"setBackLed": func(c goja.FunctionCall) goja.Value {
			dev.SetBackLed(intArg(c, 0), optInt(c.Argument(1)))
			return goja.Undefined()
		},
		"move": func(c goja.FunctionCall) goja.Value {
			dev.Move(intArg(c, 0), optInt(c.Argument(1)), optBool(c.Argument(2)), optInt(c.Argument(3)))
			return goja.Undefined()
		},
		"boost": func(c goja.FunctionCall) goja.Value {
			dev.Boost(optInt(c.Argument(0)), optInt(c.Argument(1)), optInt(c.Argument(2)))
			return goja.Undefined()
		},
		"stop": func(c goja.FunctionCall) goja.Value {
			dev.Stop(optInt(c.Argument(0)))
			return goja.Undefined()
		},
		"calibrate": func(c goja.FunctionCall) goja.Value {
			dev.Calibrate(intArg(c, 0))
			return goja.Undefined()
		},
		"sleep": func(c goja.FunctionCall) goja.Value {
			dev.Sleep()
			return goja.Undefined()
		},
		"listen": func(c goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(c.Argument(0))
			if !ok {
				panic(r.vm.NewTypeError("Sphero.listen expects a function"))
			}
			dev.Listen(func(_ *sphero.Sphero, ev bridge.Event) {
				r.invoke(fn, obj, ev, true)
			})
			return goja.Undefined()
		},
	}

	if err := obj.Set("name", sphero.Name); err != nil {
		panic(r.vm.NewGoError(err))
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			panic(r.vm.NewGoError(err))
		}
	}
	return nil
}

// invoke runs a listener callback under the runtime lock. With withHandle
// the callback receives this as its first argument, followed by the event.
func (r *Runtime) invoke(fn goja.Callable, this goja.Value, ev bridge.Event, withHandle bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return
	}

	payload := r.eventValue(ev)
	args := []goja.Value{payload}
	if withHandle {
		args = []goja.Value{this, payload}
	}

	stop := r.watch(context.Background())
	_, err := fn(this, args...)
	stop()

	if err != nil {
		r.logger.Warn("Listener callback failed", zap.Error(err))
		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{Level: "error", Message: err.Error(), Time: time.Now()})
		r.consoleMu.Unlock()
	}
}

func (r *Runtime) eventValue(ev bridge.Event) goja.Value {
	var payload interface{}
	if err := ev.Decode(&payload); err != nil {
		return goja.Undefined()
	}
	return r.vm.ToValue(payload)
}

func absent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func intArg(call goja.FunctionCall, i int) int {
	return int(call.Argument(i).ToInteger())
}

func optInt(v goja.Value) opt.Value[int] {
	if absent(v) {
		return opt.None[int]()
	}
	return opt.Some(int(v.ToInteger()))
}

func optBool(v goja.Value) opt.Value[bool] {
	if absent(v) {
		return opt.None[bool]()
	}
	return opt.Some(v.ToBoolean())
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if absent(val) {
		return nil
	}
	return val.Export()
}
