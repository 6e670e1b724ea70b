// File: reactor/lock/handler_group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LockHandlerGroup is the consensus unit: per-member lock state plus a
// group-wide latch for one notify round.

package lock

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

// MemberState is the lock state of one member.
type MemberState int

const (
	Open MemberState = iota
	Pending
	Locked
)

func (s MemberState) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Pending:
		return "PENDING"
	case Locked:
		return "LOCKED"
	}
	return fmt.Sprintf("MemberState(%d)", int(s))
}

// EventLatch tracks one round of the group.
//
//	NONE  no round in progress
//	HOLD  round started, grant recorded but not yet eligible
//	FIRED grant delivered to the exclusive holder
//	DONE  holder released, round about to reset
type EventLatch int

const (
	LatchNone EventLatch = iota
	LatchFired
	LatchHold
	LatchDone
)

func (l EventLatch) String() string {
	switch l {
	case LatchNone:
		return "NONE"
	case LatchFired:
		return "FIRED"
	case LatchHold:
		return "HOLD"
	case LatchDone:
		return "DONE"
	}
	return fmt.Sprintf("EventLatch(%d)", int(l))
}

// LockHandlerGroup holds the members of one lock.
type LockHandlerGroup struct {
	states  map[api.Handler]MemberState
	members []api.Handler // join order
	pending []api.Handler // request order
	latch   EventLatch
}

// NewLockHandlerGroup returns a group without members.
func NewLockHandlerGroup() *LockHandlerGroup {
	return &LockHandlerGroup{states: make(map[api.Handler]MemberState)}
}

// AddMember adds handler as OPEN. Adding an existing member is a no-op.
func (g *LockHandlerGroup) AddMember(handler api.Handler) {
	if _, ok := g.states[handler]; ok {
		return
	}
	g.states[handler] = Open
	g.members = append(g.members, handler)
}

// RemoveMember drops handler whatever its state.
func (g *LockHandlerGroup) RemoveMember(handler api.Handler) {
	if _, ok := g.states[handler]; !ok {
		return
	}
	delete(g.states, handler)
	g.members = without(g.members, handler)
	g.pending = without(g.pending, handler)
}

// HasMember reports membership.
func (g *LockHandlerGroup) HasMember(handler api.Handler) bool {
	_, ok := g.states[handler]
	return ok
}

// Members returns the members in join order.
func (g *LockHandlerGroup) Members() []api.Handler {
	out := make([]api.Handler, len(g.members))
	copy(out, g.members)
	return out
}

// Len returns the member count.
func (g *LockHandlerGroup) Len() int { return len(g.members) }

// State returns the state of handler and whether it is a member.
func (g *LockHandlerGroup) State(handler api.Handler) (MemberState, bool) {
	s, ok := g.states[handler]
	return s, ok
}

// SetOpen moves a member to OPEN.
func (g *LockHandlerGroup) SetOpen(handler api.Handler) { g.set(handler, Open) }

// SetPending moves a member to PENDING.
func (g *LockHandlerGroup) SetPending(handler api.Handler) { g.set(handler, Pending) }

// SetLocked moves a member to LOCKED.
func (g *LockHandlerGroup) SetLocked(handler api.Handler) { g.set(handler, Locked) }

func (g *LockHandlerGroup) set(handler api.Handler, s MemberState) {
	prev, ok := g.states[handler]
	if !ok {
		return
	}
	g.states[handler] = s
	switch {
	case s == Pending && prev != Pending:
		g.pending = append(g.pending, handler)
	case s != Pending && prev == Pending:
		g.pending = without(g.pending, handler)
	}
}

// IsOpen reports whether every member is OPEN.
func (g *LockHandlerGroup) IsOpen() bool {
	for _, s := range g.states {
		if s != Open {
			return false
		}
	}
	return true
}

// IsPending reports whether at least one member is PENDING.
func (g *LockHandlerGroup) IsPending() bool { return len(g.pending) > 0 }

// IsLocked reports whether every member is LOCKED. A group without members
// is never locked.
func (g *LockHandlerGroup) IsLocked() bool {
	if len(g.states) == 0 {
		return false
	}
	for _, s := range g.states {
		if s != Locked {
			return false
		}
	}
	return true
}

// PendingHandlers returns the pending members in request order.
func (g *LockHandlerGroup) PendingHandlers() []api.Handler {
	out := make([]api.Handler, len(g.pending))
	copy(out, g.pending)
	return out
}

// Latch returns the round latch.
func (g *LockHandlerGroup) Latch() EventLatch { return g.latch }

// Hold starts a round step: NONE or DONE -> HOLD.
func (g *LockHandlerGroup) Hold() bool {
	if g.latch != LatchNone && g.latch != LatchDone {
		return false
	}
	g.latch = LatchHold
	return true
}

// Fire marks the grant delivered: HOLD -> FIRED.
func (g *LockHandlerGroup) Fire() bool {
	if g.latch != LatchHold {
		return false
	}
	g.latch = LatchFired
	return true
}

// Done marks the holder finished: FIRED -> DONE.
func (g *LockHandlerGroup) Done() bool {
	if g.latch != LatchFired {
		return false
	}
	g.latch = LatchDone
	return true
}

// Reset ends the round.
func (g *LockHandlerGroup) Reset() { g.latch = LatchNone }

func without(list []api.Handler, handler api.Handler) []api.Handler {
	for i, h := range list {
		if h == handler {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
