// File: api/handler.go
// Package api defines the Handler contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler processes events for the handles it registered.
//
// HandleEvent may run on the dispatch goroutine or on a worker. It must not
// touch reactor tables directly: every change (interest ops, registration,
// deregistration, lock requests) is proposed through c and applied by the
// dispatch goroutine after HandleEvent returns. A returned error is
// delivered back to the handler as an OpError event.
//
// Handlers are table keys, so the dynamic type must be comparable; use
// pointer receivers or NewHandlerFunc.
type Handler interface {
	HandleEvent(c Commander, h *Handle, readyOps EventMask, info any) error
}

// LongRunning marks handlers that should run on the worker pool when the
// reactor dispatches in auto mode.
type LongRunning interface {
	LongRunning() bool
}

// Commander buffers deferred commands for the invocation in progress.
type Commander interface {
	// Command queues cmd. Commands are applied in the order they were issued.
	Command(cmd Command)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(c Commander, h *Handle, readyOps EventMask, info any) error

type funcHandler struct {
	fn HandlerFunc
}

// NewHandlerFunc wraps fn in a handler with its own identity. Calling it
// twice with the same fn yields two distinct handlers.
func NewHandlerFunc(fn HandlerFunc) Handler {
	return &funcHandler{fn: fn}
}

func (f *funcHandler) HandleEvent(c Commander, h *Handle, readyOps EventMask, info any) error {
	return f.fn(c, h, readyOps, info)
}
