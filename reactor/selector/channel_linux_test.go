package selector

import (
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
)

func TestChannelSelectorReadiness(t *testing.T) {
	c := fake.NewComposite()
	s, err := NewChannelSelector(c, testr.New(t))
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	c.Selector = s

	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})

	h := api.NewHandle()
	require.NoError(t, s.Register(h, Channel{FD: p[0]}, testHandler(), api.OpCRead))
	assert.ErrorIs(t, s.Register(api.NewHandle(), Channel{FD: p[0]}, testHandler(), api.OpCRead), api.ErrAlreadyExists)
	assert.ErrorIs(t, s.Register(api.NewHandle(), Channel{FD: p[1]}, testHandler(), api.OpTimer), api.ErrInvalidMask)

	_, err = unix.Write(p[1], []byte("x"))
	require.NoError(t, err)
	require.True(t, c.RunPostedUntil(func() bool { return len(c.Events()) == 1 }, 2*time.Second))
	ev := c.TakeEvents()[0]
	assert.Equal(t, api.OpCRead, ev.ReadyOps())
	assert.Equal(t, Channel{FD: p[0]}, ev.Info())

	buf := make([]byte, 8)
	_, err = unix.Read(p[0], buf)
	require.NoError(t, err)
	s.ResumeSelection(h)

	_, err = unix.Write(p[1], []byte("y"))
	require.NoError(t, err)
	require.True(t, c.RunPostedUntil(func() bool { return len(c.Events()) == 1 }, 2*time.Second))

	s.Deregister(h)
	assert.False(t, s.IsSourceRegistered(Channel{FD: p[0]}))
}

func TestReadyOpsFollowsInterest(t *testing.T) {
	assert.Equal(t, api.OpCRead, readyOps(unix.EPOLLIN|unix.EPOLLOUT, api.OpCRead))
	assert.Equal(t, api.OpCRead|api.OpCWrite, readyOps(unix.EPOLLHUP, api.OpCRead|api.OpCWrite))
	assert.Equal(t, api.OpNoop, readyOps(unix.EPOLLOUT, api.OpAccept))
}
