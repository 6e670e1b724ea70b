// File: api/selector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contracts between the composite dispatch loop and the event sources
// plugged into it.

package api

// SpecificSelector is one event source (channel, timer, queue, signal,
// error, blocking, lock). Every method except those documented otherwise is
// called on the dispatch goroutine only.
type SpecificSelector interface {
	// Name identifies the selector in logs and metrics.
	Name() string
	// Accepts reports whether source is a registration source this selector serves.
	Accepts(source any) bool
	// Register binds source to h. h is minted by the caller.
	Register(h *Handle, source any, handler Handler, interestOps EventMask) error
	IsRegistered(h *Handle) bool
	IsSourceRegistered(source any) bool
	// InterestOps replaces the interest of h; no-op if h is unknown.
	InterestOps(h *Handle, ops EventMask)
	// Deregister releases h. Idempotent.
	Deregister(h *Handle)
	// Checkin clears the anticipation of firing for h and records ev as
	// the event to deliver next.
	Checkin(h *Handle, ev Event)
	// ResumeSelection re-arms or retires h after its handler finished.
	ResumeSelection(h *Handle)
	// Shutdown releases source-specific resources.
	Shutdown()
}

// OpsScoped is implemented by selectors that serve a fixed set of
// operations. Interest outside that set is rejected.
type OpsScoped interface {
	SupportedOps() EventMask
}

// Composite is the aggregation point selectors report to.
type Composite interface {
	ProcessRegister(h *Handle, source any, handler Handler, ops EventMask) error
	ProcessInterestOps(h *Handle, ops EventMask)
	ProcessDeregister(h *Handle)
	ProcessDeregisterHandler(handler Handler)
	// AddReadyEvent queues ev for dispatch. Safe for concurrent use.
	AddReadyEvent(ev Event)
	// Handler returns the owner of h or nil.
	Handler(h *Handle) Handler
	// Post runs fn on the dispatch goroutine. Safe for concurrent use;
	// returns false once the reactor stopped accepting work.
	Post(fn func()) bool
	ErrorReporter
}

// ErrorReporter is the error-reporting boundary.
type ErrorReporter interface {
	ReportError(errHandle *Handle, err error, failed Command)
	ReportCriticalError(err error)
}

// ErrorInfo is the payload of OpError events.
type ErrorInfo struct {
	Err    error
	Origin *Handle // handle whose processing failed, may be nil
	Failed Command // command that could not be applied, may be nil
}
