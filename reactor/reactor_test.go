package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

func TestQueueMessagesArriveInOrder(t *testing.T) {
	r := newTestReactor(t, nil)
	rec := newRecorder(nil)
	q := selector.NewMessageQueue()
	h, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	for _, m := range []string{"a", "b", "c"} {
		require.True(t, q.Put(m))
	}
	for _, want := range []string{"a", "b", "c"} {
		got := rec.next(t)
		assert.Equal(t, h, got.h)
		assert.Equal(t, api.OpQRead, got.ops)
		assert.Equal(t, want, got.info)
	}
	assert.Equal(t, api.OpQRead, interestOf(t, r, h))
}

func TestInterestCommandAppliedAfterReturn(t *testing.T) {
	r := newTestReactor(t, nil)
	rec := newRecorder(func(c api.Commander, h *api.Handle, _ api.EventMask, _ any) error {
		c.Command(api.SetInterestOps(h, api.OpNoop))
		return nil
	})
	q := selector.NewMessageQueue()
	h, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	q.Put(1)
	q.Put(2)
	assert.Equal(t, 1, rec.next(t).info)
	rec.none(t, 50*time.Millisecond)
	assert.Equal(t, api.OpNoop, interestOf(t, r, h))

	require.NoError(t, r.SetInterestOps(h, api.OpQRead))
	assert.Equal(t, 2, rec.next(t).info)
}

func TestHandlerErrorBecomesErrorEvent(t *testing.T) {
	boom := errors.New("boom")
	r := newTestReactor(t, nil)
	rec := newRecorder(func(_ api.Commander, _ *api.Handle, ops api.EventMask, _ any) error {
		if ops == api.OpQRead {
			return boom
		}
		return nil
	})
	q := selector.NewMessageQueue()
	h, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	q.Put("x")
	assert.Equal(t, api.OpQRead, rec.next(t).ops)
	got := rec.next(t)
	require.Equal(t, api.OpError, got.ops)
	assert.NotEqual(t, h, got.h)
	info, ok := got.info.(api.ErrorInfo)
	require.True(t, ok)
	assert.ErrorIs(t, info.Err, boom)
	assert.Equal(t, h, info.Origin)

	require.NoError(t, r.Deregister(h))
	assert.False(t, registered(t, r, got.h), "error handle goes with the last handle")
	assert.Zero(t, r.Stats().Handles)
}

func TestFailingErrorHandlerIsCritical(t *testing.T) {
	critical := make(chan error, 4)
	r := newTestReactor(t, func(c *Config) {
		c.OnCriticalError = func(err error) { critical <- err }
	})
	boom := errors.New("boom")
	rec := newRecorder(func(api.Commander, *api.Handle, api.EventMask, any) error { return boom })
	q := selector.NewMessageQueue()
	_, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	q.Put("x")
	rec.next(t)
	assert.Equal(t, api.OpError, rec.next(t).ops)
	select {
	case err := <-critical:
		assert.ErrorIs(t, err, boom)
	case <-time.After(3 * time.Second):
		t.Fatal("no critical error")
	}
}

func TestFailedCommandIsReported(t *testing.T) {
	r := newTestReactor(t, nil)
	var once sync.Once
	rec := newRecorder(func(c api.Commander, _ *api.Handle, ops api.EventMask, _ any) error {
		if ops == api.OpQRead {
			once.Do(func() { c.Command(api.Unlock()) })
		}
		return nil
	})
	q := selector.NewMessageQueue()
	_, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	q.Put("x")
	rec.next(t)
	got := rec.next(t)
	require.Equal(t, api.OpError, got.ops)
	info := got.info.(api.ErrorInfo)
	assert.ErrorIs(t, info.Err, api.ErrNotFound)
	assert.IsType(t, api.UnlockCommand{}, info.Failed)
}

func TestInterestOutsideSelectorScopeRejected(t *testing.T) {
	r := newTestReactor(t, nil)
	var once sync.Once
	rec := newRecorder(func(c api.Commander, h *api.Handle, ops api.EventMask, _ any) error {
		if ops == api.OpQRead {
			once.Do(func() { c.Command(api.OrInterestOps(h, api.OpTimer)) })
		}
		return nil
	})
	q := selector.NewMessageQueue()
	h, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetInterestOps(h, api.OpTimer), api.ErrInvalidMask)
	assert.Equal(t, api.OpQRead, interestOf(t, r, h))
	require.NoError(t, r.SetInterestOps(h, api.OpNoop))
	require.NoError(t, r.SetInterestOps(h, api.OpQRead))

	q.Put("x")
	rec.next(t)
	got := rec.next(t)
	require.Equal(t, api.OpError, got.ops)
	info := got.info.(api.ErrorInfo)
	assert.ErrorIs(t, info.Err, api.ErrInvalidMask)
	assert.IsType(t, api.InterestOpsCommand{}, info.Failed)
	assert.Equal(t, api.OpQRead, interestOf(t, r, h))
}

func TestLockSerializesMembers(t *testing.T) {
	r := newTestReactor(t, func(c *Config) { c.Dispatch = DispatchWorkers })
	locked := make(chan struct{})
	release := make(chan struct{})
	var inLock atomic.Bool
	a := api.NewHandlerFunc(func(c api.Commander, _ *api.Handle, ops api.EventMask, _ any) error {
		switch ops {
		case api.OpQRead:
			c.Command(api.Lock())
		case api.OpLock:
			inLock.Store(true)
			close(locked)
			<-release
			inLock.Store(false)
			c.Command(api.Unlock())
		}
		return nil
	})
	bCalls := make(chan bool, 4)
	b := api.NewHandlerFunc(func(_ api.Commander, _ *api.Handle, _ api.EventMask, _ any) error {
		bCalls <- inLock.Load()
		return nil
	})

	qa, qb := selector.NewMessageQueue(), selector.NewMessageQueue()
	_, err := r.Register(qa, a, api.OpQRead)
	require.NoError(t, err)
	_, err = r.Register(qb, b, api.OpQRead)
	require.NoError(t, err)
	group, handles, err := r.NewLock(a, b)
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, 2, group.Len())

	qa.Put("go")
	select {
	case <-locked:
	case <-time.After(3 * time.Second):
		t.Fatal("lock not granted")
	}
	qb.Put("wait")
	select {
	case <-bCalls:
		t.Fatal("member ran while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, r.Stats().Locks.Rounds)

	close(release)
	select {
	case during := <-bCalls:
		assert.False(t, during)
	case <-time.After(3 * time.Second):
		t.Fatal("held event not replayed")
	}
	assert.Zero(t, r.Stats().Locks.Rounds)
}

func TestCanceledTimerStaysCanceled(t *testing.T) {
	r := newTestReactor(t, nil)
	var n atomic.Int32
	rec := newRecorder(func(c api.Commander, h *api.Handle, _ api.EventMask, _ any) error {
		n.Add(1)
		c.Command(api.Deregister(h))
		return nil
	})
	h, err := r.Register(selector.TimerSpec{Delay: time.Millisecond, Period: time.Millisecond}, rec, api.OpTimer)
	require.NoError(t, err)

	got := rec.next(t)
	assert.IsType(t, selector.TimerEvent{}, got.info)
	rec.none(t, 50*time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
	assert.False(t, registered(t, r, h))
	assert.Equal(t, api.OpUnknown, interestOf(t, r, h))
}

func TestBlockingSetDeliversOnce(t *testing.T) {
	r := newTestReactor(t, nil)
	rec := newRecorder(nil)
	set := selector.NewBlockingTaskSet(
		func(context.Context) (any, error) { return "a", nil },
		func(context.Context) (any, error) { time.Sleep(5 * time.Millisecond); return "b", nil },
	)
	h, err := r.Register(set, rec, api.OpBlocking)
	require.NoError(t, err)

	got := rec.next(t)
	assert.Equal(t, api.OpBlocking, got.ops)
	results := got.info.([]selector.BlockingResult)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Value)
	assert.Equal(t, "b", results[1].Value)
	rec.none(t, 50*time.Millisecond)
	assert.Eventually(t, func() bool { ok, _ := r.IsRegistered(h); return !ok }, time.Second, 5*time.Millisecond)
}

type mapHandler map[string]int

func (mapHandler) HandleEvent(api.Commander, *api.Handle, api.EventMask, any) error { return nil }

func TestRegisterValidation(t *testing.T) {
	r := newTestReactor(t, nil)
	q := selector.NewMessageQueue()

	_, err := r.Register(q, mapHandler{}, api.OpQRead)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = r.Register(struct{}{}, newRecorder(nil), api.OpQRead)
	assert.ErrorIs(t, err, api.ErrNotSupported)
	_, err = r.Register(q, newRecorder(nil), api.EventMask(1<<12))
	assert.ErrorIs(t, err, api.ErrInvalidMask)
	_, err = r.Register(q, newRecorder(nil), api.OpTimer)
	assert.ErrorIs(t, err, api.ErrInvalidMask)
	assert.ErrorIs(t, r.SetInterestOps(api.NewHandle(), api.OpQRead), api.ErrNotFound)
	assert.ErrorIs(t, r.AddSelector(selector.NewQueueSelector(r, logr.Discard())), api.ErrAlreadyExists)
	assert.Zero(t, r.Stats().Handles)
}

type dropCounter struct {
	nopObserver
	mu      sync.Mutex
	dropped map[string]int
}

func (d *dropCounter) EventDropped(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped[reason]++
}

func (d *dropCounter) count(reason string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped[reason]
}

func TestShutdownPhases(t *testing.T) {
	obs := &dropCounter{dropped: make(map[string]int)}
	r := newTestReactor(t, func(c *Config) { c.Observer = obs })
	rec := newRecorder(nil)
	q := selector.NewMessageQueue()
	h, err := r.Register(q, rec, api.OpQRead)
	require.NoError(t, err)

	require.NoError(t, r.Initiate())
	assert.Equal(t, StateShuttingDown, r.State())
	_, err = r.Register(selector.NewMessageQueue(), rec, api.OpQRead)
	assert.ErrorIs(t, err, api.ErrShuttingDown)
	q.Put("late")
	rec.none(t, 30*time.Millisecond)
	assert.Equal(t, 1, obs.count("shutting_down"))

	require.NoError(t, r.Finalize())
	assert.Equal(t, StateTerminated, r.State())
	_, err = r.Register(q, rec, api.OpQRead)
	assert.ErrorIs(t, err, api.ErrTerminated)
	assert.ErrorIs(t, r.Initiate(), api.ErrTerminated)
	assert.ErrorIs(t, r.Finalize(), api.ErrTerminated)

	ops, err := r.InterestOps(h)
	assert.ErrorIs(t, err, api.ErrTerminated)
	assert.Equal(t, api.OpUnknown, ops)
	_, err = r.IsRegistered(h)
	assert.ErrorIs(t, err, api.ErrTerminated)
	assert.Equal(t, StateTerminated, r.Stats().State)
}

func TestForcedShutdownReportsCritical(t *testing.T) {
	critical := make(chan error, 4)
	cfg := DefaultConfig()
	cfg.Dispatch = DispatchWorkers
	cfg.ShutdownFirstTimeout = 20 * time.Millisecond
	cfg.ShutdownLastTimeout = 20 * time.Millisecond
	cfg.OnCriticalError = func(err error) { critical <- err }
	r := New(cfg)
	require.NoError(t, r.AddSelector(selector.NewQueueSelector(r, cfg.Logger)))

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	stuck := api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error {
		close(started)
		<-release
		return nil
	})
	q := selector.NewMessageQueue()
	_, err := r.Register(q, stuck, api.OpQRead)
	require.NoError(t, err)
	q.Put("x")
	<-started

	err = r.Shutdown(context.Background())
	assert.ErrorIs(t, err, api.ErrOperationTimeout)
	assert.Equal(t, StateTerminated, r.State())
	select {
	case err := <-critical:
		assert.ErrorIs(t, err, api.ErrOperationTimeout)
	default:
		t.Fatal("forced termination not reported")
	}
}

func TestForcedShutdownWithStuckInlineHandler(t *testing.T) {
	critical := make(chan error, 4)
	cfg := DefaultConfig()
	cfg.Logger = logr.Discard()
	cfg.Dispatch = DispatchInline
	cfg.ShutdownFirstTimeout = 20 * time.Millisecond
	cfg.ShutdownLastTimeout = 20 * time.Millisecond
	cfg.OnCriticalError = func(err error) { critical <- err }
	r := New(cfg)
	require.NoError(t, r.AddSelector(selector.NewQueueSelector(r, cfg.Logger)))

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	stuck := api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error {
		close(started)
		<-release
		return nil
	})
	q := selector.NewMessageQueue()
	_, err := r.Register(q, stuck, api.OpQRead)
	require.NoError(t, err)
	q.Put("x")
	<-started

	done := make(chan error, 1)
	go func() { done <- r.Finalize() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, api.ErrOperationTimeout)
	case <-time.After(2 * time.Second):
		t.Fatalf("finalize blocked behind the dispatch goroutine, state=%s", r.State())
	}
	assert.Equal(t, StateTerminated, r.State())
	select {
	case err := <-critical:
		assert.ErrorIs(t, err, api.ErrOperationTimeout)
	default:
		t.Fatal("forced termination not reported")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newTestReactor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateTerminated, r.State())
}

func TestDispatchPolicyParse(t *testing.T) {
	for in, want := range map[string]DispatchPolicy{"auto": DispatchAuto, "inline": DispatchInline, "workers": DispatchWorkers} {
		got, err := ParseDispatchPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, in, got.String())
	}
	_, err := ParseDispatchPolicy("threads")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
