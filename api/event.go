// File: api/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event is the unit a selector hands to the dispatch loop.

package api

import "fmt"

// Event is an immutable readiness notification for one handle.
type Event struct {
	handle   *Handle
	readyOps EventMask
	info     any
}

// NewEvent builds an event. info is opaque to the reactor.
func NewEvent(h *Handle, readyOps EventMask, info any) Event {
	return Event{handle: h, readyOps: readyOps, info: info}
}

// Handle returns the handle the event was raised for.
func (e Event) Handle() *Handle { return e.handle }

// ReadyOps returns the operations that are ready.
func (e Event) ReadyOps() EventMask { return e.readyOps }

// Info returns the payload, e.g. a queued message or a timer expiry.
func (e Event) Info() any { return e.info }

func (e Event) String() string {
	return fmt.Sprintf("event{%s %s}", e.handle, e.readyOps)
}
