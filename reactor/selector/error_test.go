package selector

import (
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
)

func testHandler() api.Handler {
	return api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error { return nil })
}

func TestErrorSelectorDeliversOneAtATime(t *testing.T) {
	c := fake.NewComposite()
	s := NewErrorSelector(c, testr.New(t))
	h, handler := api.NewHandle(), testHandler()
	require.NoError(t, s.Register(h, ErrorSource{}, handler, api.OpError))

	errA, errB := errors.New("a"), errors.New("b")
	assert.True(t, s.Report(h, api.ErrorInfo{Err: errA}))
	assert.True(t, s.Report(h, api.ErrorInfo{Err: errB}))
	assert.False(t, s.Report(api.NewHandle(), api.ErrorInfo{Err: errA}))

	evs := c.TakeEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, api.OpError, evs[0].ReadyOps())
	assert.ErrorIs(t, evs[0].Info().(api.ErrorInfo).Err, errA)
	assert.Equal(t, 1, s.Pending(h))

	s.ResumeSelection(h)
	evs = c.TakeEvents()
	require.Len(t, evs, 1)
	assert.ErrorIs(t, evs[0].Info().(api.ErrorInfo).Err, errB)
	assert.Zero(t, s.Pending(h))
}

func TestErrorSelectorRegisterRules(t *testing.T) {
	s := NewErrorSelector(fake.NewComposite(), testr.New(t))
	handler := testHandler()
	assert.ErrorIs(t, s.Register(api.NewHandle(), ErrorSource{}, handler, api.OpTimer), api.ErrInvalidMask)
	h := api.NewHandle()
	require.NoError(t, s.Register(h, ErrorSource{}, handler, api.OpError))
	assert.ErrorIs(t, s.Register(api.NewHandle(), ErrorSource{}, handler, api.OpError), api.ErrAlreadyExists)

	got, ok := s.HandleOf(handler)
	assert.True(t, ok)
	assert.Equal(t, h, got)
	assert.True(t, s.IsSourceRegistered(ErrorSource{}))

	s.Deregister(h)
	_, ok = s.HandleOf(handler)
	assert.False(t, ok)
	assert.False(t, s.IsRegistered(h))
}

func TestErrorSelectorInterestGatesDelivery(t *testing.T) {
	c := fake.NewComposite()
	s := NewErrorSelector(c, testr.New(t))
	h := api.NewHandle()
	require.NoError(t, s.Register(h, ErrorSource{}, testHandler(), api.OpNoop))

	s.Report(h, api.ErrorInfo{Err: errors.New("late")})
	assert.Empty(t, c.Events())
	s.InterestOps(h, api.OpError)
	assert.Len(t, c.Events(), 1)
}

func TestErrorSelectorCheckinGoesFirst(t *testing.T) {
	c := fake.NewComposite()
	s := NewErrorSelector(c, testr.New(t))
	h := api.NewHandle()
	require.NoError(t, s.Register(h, ErrorSource{}, testHandler(), api.OpError))
	s.Report(h, api.ErrorInfo{Err: errors.New("first")})
	s.Report(h, api.ErrorInfo{Err: errors.New("second")})
	c.TakeEvents()

	urgent := errors.New("urgent")
	s.Checkin(h, api.NewEvent(h, api.OpError, api.ErrorInfo{Err: urgent}))
	s.ResumeSelection(h)
	evs := c.TakeEvents()
	require.Len(t, evs, 1)
	assert.ErrorIs(t, evs[0].Info().(api.ErrorInfo).Err, urgent)
}
