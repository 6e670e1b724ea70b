// File: reactor/lock/pending_group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package lock

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-reactor/api"
)

// PendingGroup holds, per handler, a FIFO of events awaiting processing.
// Handlers are kept in the order they first had an event queued.
type PendingGroup struct {
	queues map[api.Handler]*queue.Queue
	order  []api.Handler
	owner  map[*api.Handle]api.Handler
}

// NewPendingGroup returns an empty multimap.
func NewPendingGroup() *PendingGroup {
	return &PendingGroup{
		queues: make(map[api.Handler]*queue.Queue),
		owner:  make(map[*api.Handle]api.Handler),
	}
}

// Add appends ev to the queue of handler.
func (g *PendingGroup) Add(handler api.Handler, ev api.Event) {
	q, ok := g.queues[handler]
	if !ok {
		q = queue.New()
		g.queues[handler] = q
		g.order = append(g.order, handler)
	}
	q.Add(ev)
	g.owner[ev.Handle()] = handler
}

// Peek returns the oldest queued event of handler.
func (g *PendingGroup) Peek(handler api.Handler) (api.Event, bool) {
	q, ok := g.queues[handler]
	if !ok {
		return api.Event{}, false
	}
	return q.Peek().(api.Event), true
}

// Pop removes and returns the oldest queued event of handler. The handler
// leaves the group with its last event.
func (g *PendingGroup) Pop(handler api.Handler) (api.Event, bool) {
	q, ok := g.queues[handler]
	if !ok {
		return api.Event{}, false
	}
	ev := q.Remove().(api.Event)
	if q.Length() == 0 {
		g.dropHandler(handler)
		delete(g.owner, ev.Handle())
		return ev, true
	}
	for i := 0; i < q.Length(); i++ {
		if q.Get(i).(api.Event).Handle() == ev.Handle() {
			return ev, true
		}
	}
	delete(g.owner, ev.Handle())
	return ev, true
}

// RemoveHandle drops every queued event raised for h.
func (g *PendingGroup) RemoveHandle(h *api.Handle) {
	handler, ok := g.owner[h]
	if !ok {
		return
	}
	delete(g.owner, h)
	q := g.queues[handler]
	kept := queue.New()
	for q.Length() > 0 {
		ev := q.Remove().(api.Event)
		if ev.Handle() != h {
			kept.Add(ev)
		}
	}
	if kept.Length() == 0 {
		g.dropHandler(handler)
		return
	}
	g.queues[handler] = kept
}

// RemoveHandler drops the queue of handler and returns its events in order.
func (g *PendingGroup) RemoveHandler(handler api.Handler) []api.Event {
	q, ok := g.queues[handler]
	if !ok {
		return nil
	}
	out := make([]api.Event, 0, q.Length())
	for q.Length() > 0 {
		ev := q.Remove().(api.Event)
		delete(g.owner, ev.Handle())
		out = append(out, ev)
	}
	g.dropHandler(handler)
	return out
}

// Contains reports whether handler has queued events.
func (g *PendingGroup) Contains(handler api.Handler) bool {
	_, ok := g.queues[handler]
	return ok
}

// Len returns the queue length of handler.
func (g *PendingGroup) Len(handler api.Handler) int {
	if q, ok := g.queues[handler]; ok {
		return q.Length()
	}
	return 0
}

// Handlers returns the handlers with queued events, oldest first.
func (g *PendingGroup) Handlers() []api.Handler {
	out := make([]api.Handler, len(g.order))
	copy(out, g.order)
	return out
}

func (g *PendingGroup) dropHandler(handler api.Handler) {
	delete(g.queues, handler)
	for i, o := range g.order {
		if o == handler {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}
