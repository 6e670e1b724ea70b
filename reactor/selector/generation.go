// File: reactor/selector/generation.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventGeneration is the per-handle HOLDING/FIRED latch for one-shot
// sources. At most one event of a handle is outstanding; the latch closes
// (FIRED) in ResumeSelection and the resume after that retires the handle.

package selector

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

// GenerationState is the latch value of one handle.
type GenerationState int

const (
	Holding GenerationState = iota
	Fired
)

func (s GenerationState) String() string {
	switch s {
	case Holding:
		return "HOLDING"
	case Fired:
		return "FIRED"
	}
	return fmt.Sprintf("GenerationState(%d)", int(s))
}

type generation struct {
	state  GenerationState
	ops    api.EventMask
	event  *api.Event
	queued bool // an event sits in the ready queue, the latch is still open
}

// EventGeneration tracks the latch of every handle of one selector.
// Not safe for concurrent use.
type EventGeneration struct {
	composite api.Composite
	entries   map[*api.Handle]*generation
}

// NewEventGeneration returns an empty table reporting to c.
func NewEventGeneration(c api.Composite) *EventGeneration {
	return &EventGeneration{composite: c, entries: make(map[*api.Handle]*generation)}
}

// Add starts tracking h in HOLDING.
func (g *EventGeneration) Add(h *api.Handle, ops api.EventMask) {
	g.entries[h] = &generation{state: Holding, ops: ops}
}

// Remove stops tracking h and drops any retained event.
func (g *EventGeneration) Remove(h *api.Handle) { delete(g.entries, h) }

// Contains reports whether h is tracked.
func (g *EventGeneration) Contains(h *api.Handle) bool {
	_, ok := g.entries[h]
	return ok
}

// Len returns the number of tracked handles.
func (g *EventGeneration) Len() int { return len(g.entries) }

// State returns the latch of h.
func (g *EventGeneration) State(h *api.Handle) (GenerationState, bool) {
	e, ok := g.entries[h]
	if !ok {
		return Holding, false
	}
	return e.state, true
}

// Checkin moves h to HOLDING and makes ev the event to deliver next,
// replacing any event retained before.
func (g *EventGeneration) Checkin(h *api.Handle, ev api.Event) {
	e, ok := g.entries[h]
	if !ok {
		return
	}
	e.state = Holding
	e.event = &ev
}

// TriggerReadyEvent enqueues the retained event of h without closing the
// latch; the next ResumeSelection closes it. Nothing is enqueued while the
// interest of h is NOOP or an event of h is already outstanding.
func (g *EventGeneration) TriggerReadyEvent(h *api.Handle) {
	e, ok := g.entries[h]
	if !ok || e.ops == api.OpNoop || e.state == Fired || e.queued {
		return
	}
	g.composite.AddReadyEvent(g.take(h, e))
	e.queued = true
}

// ResumeSelection retires a FIRED handle through the composite. A HOLDING
// handle with non-NOOP interest becomes FIRED: an event enqueued by
// TriggerReadyEvent is adopted, otherwise one is enqueued now.
func (g *EventGeneration) ResumeSelection(h *api.Handle) {
	e, ok := g.entries[h]
	if !ok {
		return
	}
	switch {
	case e.state == Fired:
		delete(g.entries, h)
		g.composite.ProcessDeregister(h)
	case e.ops == api.OpNoop:
	case e.queued:
		e.queued = false
		e.state = Fired
	default:
		g.fire(h, e)
	}
}

// InterestOps updates the interest of h. Returning from NOOP fires a
// retained event.
func (g *EventGeneration) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := g.entries[h]
	if !ok {
		return
	}
	was := e.ops
	e.ops = ops
	if was == api.OpNoop && ops != api.OpNoop && e.state == Holding && !e.queued && e.event != nil {
		g.fire(h, e)
	}
}

func (g *EventGeneration) fire(h *api.Handle, e *generation) {
	ev := g.take(h, e)
	e.state = Fired
	e.queued = false
	g.composite.AddReadyEvent(ev)
}

// take hands out the retained event of h, or a bare one built from its
// interest.
func (g *EventGeneration) take(h *api.Handle, e *generation) api.Event {
	if e.event == nil {
		return api.NewEvent(h, e.ops, nil)
	}
	ev := *e.event
	e.event = nil
	return ev
}
