package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
	"github.com/momentics/hioload-reactor/internal/concurrency"
)

func newBlockingFixture(t *testing.T) (*BlockingSelector, *fake.Composite) {
	c := fake.NewComposite()
	pool := concurrency.NewExecutor("test-blocking", 4, logr.Discard())
	t.Cleanup(func() {
		pool.Shutdown()
		pool.AwaitTermination(time.Second)
	})
	s := NewBlockingSelector(c, pool, testr.New(t))
	c.Selector = s
	return s, c
}

func TestBlockingSingleTask(t *testing.T) {
	s, c := newBlockingFixture(t)
	h := api.NewHandle()
	task := func(context.Context) (any, error) { return "done", nil }
	require.NoError(t, s.Register(h, task, testHandler(), api.OpBlocking))

	require.True(t, c.RunPostedUntil(func() bool { return len(c.Events()) == 1 }, 2*time.Second))
	res, ok := c.Events()[0].Info().(BlockingResult)
	require.True(t, ok)
	assert.Equal(t, "done", res.Value)
	assert.NoError(t, res.Err)

	s.ResumeSelection(h)
	assert.False(t, s.IsRegistered(h))
	assert.Equal(t, []*api.Handle{h}, c.Deregistered())
}

func TestBlockingSetFiresOnce(t *testing.T) {
	s, c := newBlockingFixture(t)
	boom := errors.New("boom")
	set := NewBlockingTaskSet(
		func(context.Context) (any, error) { time.Sleep(5 * time.Millisecond); return 1, nil },
		func(context.Context) (any, error) { return nil, boom },
		func(context.Context) (any, error) { panic("bad task") },
	)
	h := api.NewHandle()
	require.NoError(t, s.Register(h, set, testHandler(), api.OpBlocking))
	assert.ErrorIs(t, s.Register(api.NewHandle(), set, testHandler(), api.OpBlocking), api.ErrAlreadyExists)

	require.True(t, c.RunPostedUntil(func() bool { return len(c.Events()) > 0 }, 2*time.Second))
	c.RunPosted(20 * time.Millisecond)
	evs := c.Events()
	require.Len(t, evs, 1)
	results := evs[0].Info().([]BlockingResult)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.ErrorContains(t, results[2].Err, "panicked")
}

func TestBlockingDeregisterCancels(t *testing.T) {
	s, c := newBlockingFixture(t)
	started := make(chan struct{})
	canceled := make(chan struct{})
	task := BlockingTask(func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		close(canceled)
		return nil, ctx.Err()
	})
	h := api.NewHandle()
	require.NoError(t, s.Register(h, task, testHandler(), api.OpBlocking))
	<-started
	s.Deregister(h)

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context not canceled")
	}
	c.RunPosted(50 * time.Millisecond)
	assert.Empty(t, c.Events())
}

func TestBlockingHeldUntilInterested(t *testing.T) {
	s, c := newBlockingFixture(t)
	h := api.NewHandle()
	require.NoError(t, s.Register(h, BlockingTask(func(context.Context) (any, error) { return 7, nil }), testHandler(), api.OpNoop))
	require.True(t, c.RunPostedUntil(func() bool { st, _ := s.gen.State(h); return st == Holding && s.gen.entries[h].event != nil }, 2*time.Second))
	assert.Empty(t, c.Events())

	s.InterestOps(h, api.OpBlocking)
	require.Len(t, c.Events(), 1)
}
