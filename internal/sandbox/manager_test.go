package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/id"
)

func newTestManager(t *testing.T, config Config, opts ...ManagerOption) *Manager {
	t.Helper()
	registry := renderer.NewRegistry(renderer.NewAssembler(""), zap.NewNop())
	require.NoError(t, renderer.RegisterBuiltins(registry))

	m := NewManager(registry, config, opts...)
	t.Cleanup(func() { m.Close() })
	return m
}

func javascript(src string) Request {
	return Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: src},
	}
}

type hostRecorder struct {
	mu   sync.Mutex
	msgs []bridge.CommandMessage
}

func (h *hostRecorder) handle(msg bridge.CommandMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *hostRecorder) commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.msgs))
	for i, msg := range h.msgs {
		out[i] = msg.Command
	}
	return out
}

func TestCreateQueuesCommandsForHost(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	inst, err := m.Create(context.Background(), javascript(`
		var sphero = new Sphero(runner);
		sphero.setRGB(0, 255, 0);
		sphero.move(50, 0);
	`))
	require.NoError(t, err)
	assert.True(t, id.IsSandboxID(string(inst.ID)))
	assert.Zero(t, inst.Result.Failed())
	assert.Equal(t, 2, inst.Info().Pending)

	host := &hostRecorder{}
	unsubscribe := inst.Host().Subscribe(host.handle)
	defer unsubscribe()

	require.Eventually(t, func() bool { return len(host.commands()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"setRGB", "move"}, host.commands())
}

func TestEventsReachSandboxListeners(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	inst, err := m.Create(context.Background(), javascript(`
		var sphero = new Sphero(runner);
		sphero.listen(function(dev, ev) {
			if (ev.type === "collision") dev.stop();
		});
	`))
	require.NoError(t, err)

	host := &hostRecorder{}
	defer inst.Host().Subscribe(host.handle)()

	require.NoError(t, inst.Host().Deliver(bridge.NewEvent([]byte(`{"type":"collision"}`))))
	require.NoError(t, inst.Host().Deliver(bridge.NewEvent([]byte(`{"type":"ping"}`))))
	require.NoError(t, inst.Host().Deliver(bridge.NewEvent([]byte(`{"type":"collision"}`))))

	require.Eventually(t, func() bool { return len(host.commands()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"stop", "stop"}, host.commands())
}

func TestCreateLogsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := newTestManager(t, DefaultConfig(), WithLogger(zap.New(core)))

	ctx := tracing.WithRequestID(context.Background(), "req_test")
	inst, err := m.Create(ctx, javascript("1"))
	require.NoError(t, err)

	entries := logs.FilterMessage("Sandbox created").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req_test", fields["request_id"])
	assert.Equal(t, string(inst.ID), fields["sandbox_id"])
}

func TestCreateUnknownLanguage(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_, err := m.Create(context.Background(), Request{
		Language: "brainfuck",
		Content:  resource.EditorContent{resource.SlotDefault: "+"},
	})
	assert.ErrorIs(t, err, renderer.ErrNoRenderer)
	assert.Zero(t, m.Len())
}

func TestCreateRejectsUnknownSlot(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_, err := m.Create(context.Background(), Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{"scss": "body {}"},
	})
	assert.ErrorIs(t, err, resource.ErrUnknownSlot)
}

func TestCreateRejectsInvalidDescriptors(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	req := javascript("1")
	req.Libraries = resource.NewCollection(resource.Descriptor{Kind: resource.KindLibrary, Name: "empty"})

	_, err := m.Create(context.Background(), req)
	assert.ErrorIs(t, err, resource.ErrEmptyResource)
	assert.Zero(t, m.Len())
}

func TestCreateUnknownCatalogFramework(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	req := javascript("1")
	req.CatalogFrameworks = []string{"missing"}

	_, err := m.Create(context.Background(), req)
	assert.ErrorIs(t, err, resource.ErrUnknownFramework)
}

func TestCreateSkipsOtherLanguages(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	inst, err := m.Create(context.Background(), Request{
		Language: renderer.Python,
		Content:  resource.EditorContent{resource.SlotDefault: "print('hi')"},
	})
	require.NoError(t, err)

	require.Len(t, inst.Result.Scripts, 1)
	assert.Equal(t, StatusSkipped, inst.Result.Scripts[0].Status)
	assert.Equal(t, "text/python", inst.Result.Scripts[0].Type)
}

func TestCreateKeepsInstanceOnTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 50 * time.Millisecond
	m := newTestManager(t, config)

	inst, err := m.Create(context.Background(), javascript("while (true) {}"))
	require.NoError(t, err)
	assert.Equal(t, ErrTimeout.Error(), inst.Result.Error)

	_, err = m.Get(inst.ID)
	assert.NoError(t, err)
}

func TestCreateCancelled(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.Create(ctx, javascript("while (true) {}"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, m.Len())
}

func TestInstanceLimit(t *testing.T) {
	config := DefaultConfig()
	config.MaxInstances = 2
	m := newTestManager(t, config)

	first, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)
	_, err = m.Create(context.Background(), javascript("2"))
	require.NoError(t, err)

	_, err = m.Create(context.Background(), javascript("3"))
	assert.ErrorIs(t, err, ErrLimitReached)

	require.NoError(t, m.Destroy(first.ID))
	_, err = m.Create(context.Background(), javascript("4"))
	assert.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	inst, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, inst.ID, list[0].ID)

	require.NoError(t, m.Destroy(inst.ID))
	assert.ErrorIs(t, m.Destroy(inst.ID), ErrNotFound)

	_, err = m.Get(inst.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, inst.Host().Deliver(bridge.NewEvent([]byte(`{}`))), bridge.ErrClosed)
}

func TestListOrdersByCreation(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	var ids []id.SandboxID
	for i := 0; i < 3; i++ {
		inst, err := m.Create(context.Background(), javascript("1"))
		require.NoError(t, err)
		ids = append(ids, inst.ID)
		time.Sleep(2 * time.Millisecond)
	}

	var listed []id.SandboxID
	for _, inst := range m.List() {
		listed = append(listed, inst.ID)
	}
	assert.Equal(t, ids, listed)
}

type fakeAttacher struct {
	mu       sync.Mutex
	attached []string
	detached []string
	err      error
}

func (f *fakeAttacher) Attach(_ context.Context, sandboxID string, host bridge.Host) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.attached = append(f.attached, sandboxID)
	f.mu.Unlock()

	unsubscribe := host.Subscribe(func(bridge.CommandMessage) {})
	return func() {
		unsubscribe()
		f.mu.Lock()
		f.detached = append(f.detached, sandboxID)
		f.mu.Unlock()
	}, nil
}

func TestAttachers(t *testing.T) {
	ok := &fakeAttacher{}
	failing := &fakeAttacher{err: errors.New("redis down")}
	m := newTestManager(t, DefaultConfig(), WithAttacher(ok), WithAttacher(failing))

	inst, err := m.Create(context.Background(), javascript("runner.send({command: 'sleep'})"))
	require.NoError(t, err)

	// The attached host drains the queue
	require.Eventually(t, func() bool { return inst.Info().Pending == 0 }, 2*time.Second, time.Millisecond)

	require.NoError(t, m.Destroy(inst.ID))

	ok.mu.Lock()
	defer ok.mu.Unlock()
	assert.Equal(t, []string{string(inst.ID)}, ok.attached)
	assert.Equal(t, []string{string(inst.ID)}, ok.detached)
}

func TestManagerMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	m := newTestManager(t, DefaultConfig(), WithMetrics(metrics))

	inst, err := m.Create(context.Background(), javascript("runner.send({command: 'sleep'})"))
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.ActiveSandboxes)
	assert.Equal(t, int64(1), snap.TotalCommands)

	require.NoError(t, m.Destroy(inst.ID))
	assert.Equal(t, int64(0), metrics.Snapshot().ActiveSandboxes)
}

func TestClosedManager(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	inst, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Create(context.Background(), javascript("1"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, inst.channel.Closed())
}

func TestExpireIdleInstances(t *testing.T) {
	metrics := monitoring.NewMetrics()
	config := DefaultConfig()
	config.IdleTimeout = time.Hour
	m := newTestManager(t, config, WithMetrics(metrics))

	stale, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)
	used, err := m.Create(context.Background(), javascript("2"))
	require.NoError(t, err)
	held, err := m.Create(context.Background(), javascript("3"))
	require.NoError(t, err)

	release := held.Hold()
	later := time.Now().Add(45 * time.Minute)
	used.touch(later)

	assert.Empty(t, m.expireIdle(later))

	expired := m.expireIdle(later.Add(30 * time.Minute))
	assert.Equal(t, []id.SandboxID{stale.ID}, expired)
	assert.True(t, stale.channel.Closed())
	_, err = m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(2), metrics.Snapshot().ActiveSandboxes)

	release()
	release()
	expired = m.expireIdle(time.Now().Add(2 * time.Hour))
	assert.ElementsMatch(t, []id.SandboxID{used.ID, held.ID}, expired)
	assert.Zero(t, m.Len())
}

func TestGetKeepsInstanceAlive(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = time.Hour
	m := newTestManager(t, config)

	inst, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)

	before := inst.Info().LastUsed
	time.Sleep(2 * time.Millisecond)
	_, err = m.Get(inst.ID)
	require.NoError(t, err)
	assert.True(t, inst.Info().LastUsed.After(before))
}

func TestJanitorExpiresIdleInstances(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = 50 * time.Millisecond
	m := newTestManager(t, config)

	idle, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)
	held, err := m.Create(context.Background(), javascript("2"))
	require.NoError(t, err)
	defer held.Hold()()

	require.Eventually(t, func() bool { return m.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err = m.Get(held.ID)
	assert.NoError(t, err)
	assert.True(t, idle.channel.Closed())
}

func TestNoExpiryWithoutIdleTimeout(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_, err := m.Create(context.Background(), javascript("1"))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, m.Len())
}
