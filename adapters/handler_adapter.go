// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Handler middleware: a chain of decorators around an api.Handler.

package adapters

import (
	"fmt"
	"runtime/debug"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// Middleware decorates a handler.
type Middleware func(next api.Handler) api.Handler

// MiddlewareHandler wraps a base Handler and applies middleware in chain.
// It is a pointer type so the reactor can use it as a handler identity.
type MiddlewareHandler struct {
	handler     api.Handler
	middleware  []Middleware
	chain       api.Handler
	longRunning bool
}

var (
	_ api.Handler     = (*MiddlewareHandler)(nil)
	_ api.LongRunning = (*MiddlewareHandler)(nil)
)

// NewMiddlewareHandler creates a new MiddlewareHandler for the given base handler.
func NewMiddlewareHandler(handler api.Handler) *MiddlewareHandler {
	m := &MiddlewareHandler{handler: handler, chain: handler}
	if lr, ok := handler.(api.LongRunning); ok {
		m.longRunning = lr.LongRunning()
	}
	return m
}

// Use appends a middleware to the chain. Middleware added first runs
// outermost.
func (m *MiddlewareHandler) Use(mw Middleware) *MiddlewareHandler {
	m.middleware = append(m.middleware, mw)
	m.chain = m.handler
	for i := len(m.middleware) - 1; i >= 0; i-- {
		m.chain = m.middleware[i](m.chain)
	}
	return m
}

// SetLongRunning marks the handler for the worker pool under auto dispatch.
func (m *MiddlewareHandler) SetLongRunning(v bool) *MiddlewareHandler {
	m.longRunning = v
	return m
}

// LongRunning implements api.LongRunning.
func (m *MiddlewareHandler) LongRunning() bool { return m.longRunning }

// HandleEvent runs the chain.
func (m *MiddlewareHandler) HandleEvent(c api.Commander, h *api.Handle, readyOps api.EventMask, info any) error {
	return m.chain.HandleEvent(c, h, readyOps, info)
}

// LoggingMiddleware logs every invocation at V(1) and failures at error
// level.
func LoggingMiddleware(log logr.Logger) Middleware {
	return func(next api.Handler) api.Handler {
		return api.NewHandlerFunc(func(c api.Commander, h *api.Handle, readyOps api.EventMask, info any) error {
			log.V(1).Info("handling event", "handle", h, "ops", readyOps)
			err := next.HandleEvent(c, h, readyOps, info)
			if err != nil {
				log.Error(err, "handler failed", "handle", h, "ops", readyOps)
			}
			return err
		})
	}
}

// RecoveryMiddleware turns a panic into a returned error carrying the
// stack, so the reactor reports it like any other handler failure.
func RecoveryMiddleware() Middleware {
	return func(next api.Handler) api.Handler {
		return api.NewHandlerFunc(func(c api.Commander, h *api.Handle, readyOps api.EventMask, info any) (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
				}
			}()
			return next.HandleEvent(c, h, readyOps, info)
		})
	}
}
