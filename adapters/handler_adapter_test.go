package adapters_test

import (
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/adapters"
	"github.com/momentics/hioload-reactor/api"
)

func tag(name string, trace *[]string) adapters.Middleware {
	return func(next api.Handler) api.Handler {
		return api.NewHandlerFunc(func(c api.Commander, h *api.Handle, ops api.EventMask, info any) error {
			*trace = append(*trace, name)
			return next.HandleEvent(c, h, ops, info)
		})
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var trace []string
	base := api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error {
		trace = append(trace, "base")
		return nil
	})
	m := adapters.NewMiddlewareHandler(base).Use(tag("outer", &trace)).Use(tag("inner", &trace))
	require.NoError(t, m.HandleEvent(nil, api.NewHandle(), api.OpQRead, nil))
	assert.Equal(t, []string{"outer", "inner", "base"}, trace)
}

func TestRecoveryMiddleware(t *testing.T) {
	base := api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error { panic("kaboom") })
	m := adapters.NewMiddlewareHandler(base).Use(adapters.RecoveryMiddleware())
	var err error
	assert.NotPanics(t, func() { err = m.HandleEvent(nil, api.NewHandle(), api.OpTimer, nil) })
	assert.ErrorContains(t, err, "kaboom")
}

func TestLoggingMiddlewarePassesErrors(t *testing.T) {
	boom := errors.New("boom")
	base := api.NewHandlerFunc(func(api.Commander, *api.Handle, api.EventMask, any) error { return boom })
	m := adapters.NewMiddlewareHandler(base).Use(adapters.LoggingMiddleware(testr.New(t)))
	assert.ErrorIs(t, m.HandleEvent(nil, api.NewHandle(), api.OpQRead, "x"), boom)
}

type longHandler struct{}

func (longHandler) HandleEvent(api.Commander, *api.Handle, api.EventMask, any) error { return nil }
func (longHandler) LongRunning() bool                                                { return true }

func TestMiddlewareLongRunning(t *testing.T) {
	assert.True(t, adapters.NewMiddlewareHandler(longHandler{}).LongRunning())
	m := adapters.NewMiddlewareHandler(api.NewHandlerFunc(nil))
	assert.False(t, m.LongRunning())
	assert.True(t, m.SetLongRunning(true).LongRunning())
}
