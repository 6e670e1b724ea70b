// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-reactor.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrInvalidMask      = fmt.Errorf("invalid event mask")
	ErrNotSupported     = fmt.Errorf("operation not supported")
	ErrAlreadyExists    = fmt.Errorf("resource already exists")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrShuttingDown     = fmt.Errorf("reactor is shutting down")
	ErrTerminated       = fmt.Errorf("reactor is terminated")
	ErrLockState        = fmt.Errorf("lock state does not allow the request")
	ErrExecutorClosed   = fmt.Errorf("executor is closed")
	ErrOperationTimeout = fmt.Errorf("operation timeout")
)

// HandlerError wraps a failure raised while a handler processed an event.
type HandlerError struct {
	Handle *Handle
	Ops    EventMask
	Panic  any // recovered panic value, nil for returned errors
	Err    error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler panic on %s (%s): %v", e.Handle, e.Ops, e.Panic)
	}
	return fmt.Sprintf("handler failed on %s (%s): %v", e.Handle, e.Ops, e.Err)
}

// Unwrap exposes the returned error.
func (e *HandlerError) Unwrap() error { return e.Err }
