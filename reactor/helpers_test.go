package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

func testLogger(t *testing.T) logr.Logger {
	return testr.NewWithOptions(t, testr.Options{Verbosity: 1})
}

// newTestReactor returns a reactor with queue, timer and blocking
// selectors that is shut down when the test ends.
func newTestReactor(t *testing.T, mutate func(*Config)) *Reactor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = testLogger(t)
	cfg.ShutdownFirstTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	r := New(cfg)
	require.NoError(t, r.AddSelector(selector.NewQueueSelector(r, cfg.Logger)))
	require.NoError(t, r.AddSelector(selector.NewTimerSelector(r, cfg.Logger)))
	require.NoError(t, r.AddSelector(selector.NewBlockingSelector(r, r.BlockingPool(), cfg.Logger)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

// recorder is a handler that forwards every invocation to a channel and
// runs an optional body first.
type recorder struct {
	calls chan call
	body  func(c api.Commander, h *api.Handle, ops api.EventMask, info any) error
	long  bool
}

type call struct {
	h    *api.Handle
	ops  api.EventMask
	info any
}

func newRecorder(body func(api.Commander, *api.Handle, api.EventMask, any) error) *recorder {
	return &recorder{calls: make(chan call, 256), body: body}
}

func (r *recorder) HandleEvent(c api.Commander, h *api.Handle, ops api.EventMask, info any) error {
	var err error
	if r.body != nil {
		err = r.body(c, h, ops, info)
	}
	r.calls <- call{h: h, ops: ops, info: info}
	return err
}

func (r *recorder) LongRunning() bool { return r.long }

func (r *recorder) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("handler not invoked")
		return call{}
	}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("unexpected invocation on %s with %s", c.h, c.ops)
	case <-time.After(d):
	}
}

func interestOf(t *testing.T, r *Reactor, h *api.Handle) api.EventMask {
	t.Helper()
	ops, err := r.InterestOps(h)
	require.NoError(t, err)
	return ops
}

func registered(t *testing.T, r *Reactor, h *api.Handle) bool {
	t.Helper()
	ok, err := r.IsRegistered(h)
	require.NoError(t, err)
	return ok
}
