package reactor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

func nopHandler() api.Handler {
	return api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error { return nil })
}

func TestRegistrarRemoveHandle(t *testing.T) {
	r := NewRegistrar()
	sel := selector.NewQueueSelector(nil, testLogger(t))
	handler := nopHandler()
	h := api.NewHandle()
	require.NoError(t, r.Add(h, handler, sel, api.OpQRead))
	require.True(t, r.Contains(h))

	assert.True(t, r.Remove(h), "handler had one handle")
	assert.False(t, r.Contains(h))
	assert.Nil(t, r.Handler(h))
	assert.Nil(t, r.Selector(h))
	ops, ok := r.InterestOps(h)
	assert.False(t, ok)
	assert.Equal(t, api.OpUnknown, ops)
	assert.False(t, r.ContainsHandler(handler))
	assert.False(t, r.Remove(h), "absent handle")
}

func TestRegistrarRemoveHandler(t *testing.T) {
	r := NewRegistrar()
	handler := nopHandler()
	hs := []*api.Handle{api.NewHandle(), api.NewHandle(), api.NewHandle()}
	for _, h := range hs {
		require.NoError(t, r.Add(h, handler, nil, api.OpQRead))
	}
	r.RemoveHandler(handler)
	for _, h := range hs {
		assert.False(t, r.Contains(h))
	}
	assert.False(t, r.ContainsHandler(handler))
	assert.Zero(t, r.NumHandles(handler))
	r.RemoveHandler(handler)
}

func TestRegistrarLastHandleReportsHandlerGone(t *testing.T) {
	r := NewRegistrar()
	h2 := nopHandler()
	h21, h22, h23 := api.NewHandle(), api.NewHandle(), api.NewHandle()
	for _, h := range []*api.Handle{h21, h22, h23} {
		require.NoError(t, r.Add(h, h2, nil, api.OpTimer))
	}
	if diff := cmp.Diff([]*api.Handle{h21, h22, h23}, r.Handles(h2)); diff != "" {
		t.Errorf("Handles() mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, r.Remove(h21))
	assert.False(t, r.Remove(h22))
	assert.Equal(t, 1, r.NumHandles(h2))
	assert.True(t, r.Remove(h23))
}

func TestRegistrarAddRejectsDuplicates(t *testing.T) {
	r := NewRegistrar()
	h := api.NewHandle()
	require.NoError(t, r.Add(h, nopHandler(), nil, api.OpNoop))
	assert.ErrorIs(t, r.Add(h, nopHandler(), nil, api.OpNoop), api.ErrAlreadyExists)
	assert.ErrorIs(t, r.Add(api.NewHandle(), nil, nil, api.OpNoop), api.ErrInvalidArgument)
}

func TestRegistrarInterestOps(t *testing.T) {
	r := NewRegistrar()
	h := api.NewHandle()
	require.NoError(t, r.Add(h, nopHandler(), nil, api.OpTimer))
	r.SetInterestOps(h, api.OpNoop)
	ops, ok := r.InterestOps(h)
	assert.True(t, ok)
	assert.Equal(t, api.OpNoop, ops)

	r.SetInterestOps(api.NewHandle(), api.OpTimer)
	assert.Equal(t, 1, r.Len())
}
