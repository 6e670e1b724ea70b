// File: reactor/lock/selector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Selector runs the lock protocol. A member asks for the lock; every other
// participant is quiesced (events held, nothing in flight); the first idle
// pending member then receives an OpLock event and runs exclusively until
// it unlocks. Held events are replayed once the group opens again.

package lock

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// BusyFunc reports whether handler has an invocation in flight.
type BusyFunc func(handler api.Handler) bool

type round struct {
	participants map[api.Handler]struct{}
	holder       api.Handler
}

// Selector is the LOCK event source.
type Selector struct {
	composite api.Composite
	busy      BusyFunc
	log       logr.Logger

	members  *LockGroup
	groups   map[*api.Handle]*LockHandlerGroup
	interest map[*api.Handle]api.EventMask
	open     *OpenGroup
	held     *PendingGroup
	rounds   map[*LockHandlerGroup]*round
}

var _ api.SpecificSelector = (*Selector)(nil)

// NewSelector returns a lock selector reporting to c.
func NewSelector(c api.Composite, busy BusyFunc, log logr.Logger) *Selector {
	return &Selector{
		composite: c,
		busy:      busy,
		log:       log.WithName("lock"),
		members:   NewLockGroup(),
		groups:    make(map[*api.Handle]*LockHandlerGroup),
		interest:  make(map[*api.Handle]api.EventMask),
		open:      NewOpenGroup(),
		held:      NewPendingGroup(),
		rounds:    make(map[*LockHandlerGroup]*round),
	}
}

func (s *Selector) Name() string { return "lock" }

func (s *Selector) SupportedOps() api.EventMask { return api.OpLock }

func (s *Selector) Accepts(source any) bool {
	_, ok := source.(*LockHandlerGroup)
	return ok
}

// Register makes handler a member of the group passed as source.
func (s *Selector) Register(h *api.Handle, source any, handler api.Handler, ops api.EventMask) error {
	group, ok := source.(*LockHandlerGroup)
	if !ok || group == nil {
		return fmt.Errorf("lock source %T: %w", source, api.ErrInvalidArgument)
	}
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("lock ops %s: %w", ops, api.ErrInvalidMask)
	}
	if err := s.members.Add(handler, h); err != nil {
		return err
	}
	group.AddMember(handler)
	s.groups[h] = group
	s.interest[h] = ops
	if group.Latch() == LatchNone {
		s.open.Add(h)
	}
	return nil
}

func (s *Selector) IsRegistered(h *api.Handle) bool {
	_, ok := s.groups[h]
	return ok
}

func (s *Selector) IsSourceRegistered(source any) bool {
	group, ok := source.(*LockHandlerGroup)
	if !ok {
		return false
	}
	for _, g := range s.groups {
		if g == group {
			return true
		}
	}
	return false
}

// InterestOps updates the interest of a member handle. Enabling OpLock
// delivers a grant that was withheld.
func (s *Selector) InterestOps(h *api.Handle, ops api.EventMask) {
	if _, ok := s.groups[h]; !ok {
		return
	}
	s.interest[h] = ops
	group := s.groups[h]
	rd := s.rounds[group]
	handler, _ := s.members.HandlerOf(h)
	if rd != nil && rd.holder == handler && group.Latch() == LatchHold && ops.Has(api.OpLock) {
		s.fire(group, h)
	}
}

// Deregister drops a member. Its held events are released and the group is
// re-evaluated so the remaining members never wait on it.
func (s *Selector) Deregister(h *api.Handle) {
	group, ok := s.groups[h]
	if !ok {
		return
	}
	handler, _ := s.members.HandlerOf(h)
	delete(s.groups, h)
	delete(s.interest, h)
	s.members.RemoveHandle(h)
	s.open.Remove(h)
	group.RemoveMember(handler)
	for _, ev := range s.held.RemoveHandler(handler) {
		s.composite.AddReadyEvent(ev)
	}

	rd := s.rounds[group]
	if rd == nil {
		return
	}
	delete(rd.participants, handler)
	if rd.holder == handler {
		rd.holder = nil
		group.Done()
		s.advance(group, rd)
		return
	}
	s.evaluate(group, rd)
}

// Checkin is a no-op: grants are not anticipated per handle.
func (s *Selector) Checkin(*api.Handle, api.Event) {}

// ResumeSelection is a no-op: the holder keeps the lock until it unlocks.
func (s *Selector) ResumeSelection(*api.Handle) {}

// Shutdown forgets every group. Held events are discarded.
func (s *Selector) Shutdown() {
	s.members = NewLockGroup()
	s.groups = make(map[*api.Handle]*LockHandlerGroup)
	s.interest = make(map[*api.Handle]api.EventMask)
	s.open = NewOpenGroup()
	s.held = NewPendingGroup()
	s.rounds = make(map[*LockHandlerGroup]*round)
}

// Group returns the group h is a member handle of.
func (s *Selector) Group(h *api.Handle) (*LockHandlerGroup, bool) {
	g, ok := s.groups[h]
	return g, ok
}

// Held returns the number of events held for handler.
func (s *Selector) Held(handler api.Handler) int { return s.held.Len(handler) }

// Forget drops events held for h once h is deregistered from any selector.
func (s *Selector) Forget(h *api.Handle) { s.held.RemoveHandle(h) }

// Stats counts lock members, OPEN member handles and running rounds.
type Stats struct {
	Members int
	Open    int
	Rounds  int
}

// Stats returns the current counts.
func (s *Selector) Stats() Stats {
	return Stats{Members: s.members.Len(), Open: s.open.Len(), Rounds: len(s.rounds)}
}

// Admit decides whether ev for handler may be dispatched now. Events of
// round participants are held, except those of the current holder.
func (s *Selector) Admit(handler api.Handler, ev api.Event) bool {
	h, ok := s.members.HandleOf(handler)
	if !ok || s.open.Contains(h) {
		return true
	}
	rd := s.rounds[s.groups[h]]
	if rd == nil || rd.holder == handler {
		return true
	}
	if _, ok := rd.participants[handler]; !ok {
		return true
	}
	s.held.Add(handler, ev)
	return false
}

// RequestLock moves handler to PENDING and starts a round if none is running.
func (s *Selector) RequestLock(handler api.Handler) error {
	h, ok := s.members.HandleOf(handler)
	if !ok {
		return fmt.Errorf("lock request: handler is not a lock member: %w", api.ErrNotFound)
	}
	group := s.groups[h]
	if st, _ := group.State(handler); st == Pending {
		return fmt.Errorf("lock request: already pending: %w", api.ErrLockState)
	}
	rd := s.rounds[group]
	if rd != nil && rd.holder == handler {
		return fmt.Errorf("lock request: already held: %w", api.ErrLockState)
	}
	if rd == nil {
		rd = s.startRound(group)
	}
	rd.participants[handler] = struct{}{}
	group.SetPending(handler)
	s.log.V(1).Info("lock requested", "handle", h, "pending", len(group.PendingHandlers()))
	s.quiesce(group, rd)
	s.evaluate(group, rd)
	return nil
}

// Unlock releases the lock held by handler.
func (s *Selector) Unlock(handler api.Handler) error {
	h, ok := s.members.HandleOf(handler)
	if !ok {
		return fmt.Errorf("unlock: handler is not a lock member: %w", api.ErrNotFound)
	}
	group := s.groups[h]
	rd := s.rounds[group]
	if rd == nil || rd.holder != handler {
		return fmt.Errorf("unlock: lock not held: %w", api.ErrLockState)
	}
	rd.holder = nil
	group.Done()
	group.SetOpen(handler)
	s.log.V(1).Info("lock released", "handle", h)
	s.advance(group, rd)
	return nil
}

// Quiesced is called after every handler invocation completes.
func (s *Selector) Quiesced(handler api.Handler) {
	h, ok := s.members.HandleOf(handler)
	if !ok {
		return
	}
	group := s.groups[h]
	rd := s.rounds[group]
	if rd == nil {
		return
	}
	if _, ok := rd.participants[handler]; !ok {
		return
	}
	if st, _ := group.State(handler); st == Open && !s.busy(handler) {
		group.SetLocked(handler)
	}
	s.evaluate(group, rd)
}

func (s *Selector) startRound(group *LockHandlerGroup) *round {
	group.Hold()
	rd := &round{participants: make(map[api.Handler]struct{}, group.Len())}
	for _, m := range group.Members() {
		rd.participants[m] = struct{}{}
		if h, ok := s.members.HandleOf(m); ok {
			s.open.Remove(h)
		}
	}
	s.rounds[group] = rd
	return rd
}

// quiesce locks every idle OPEN participant.
func (s *Selector) quiesce(group *LockHandlerGroup, rd *round) {
	for m := range rd.participants {
		if st, _ := group.State(m); st == Open && !s.busy(m) {
			group.SetLocked(m)
		}
	}
}

// evaluate grants the lock once no participant is OPEN.
func (s *Selector) evaluate(group *LockHandlerGroup, rd *round) {
	if rd.holder != nil {
		return
	}
	for m := range rd.participants {
		if st, _ := group.State(m); st == Open {
			return
		}
	}
	for _, m := range group.PendingHandlers() {
		if !s.busy(m) {
			s.grant(group, rd, m)
			return
		}
	}
	if !group.IsPending() {
		s.release(group)
	}
}

func (s *Selector) grant(group *LockHandlerGroup, rd *round, holder api.Handler) {
	group.SetLocked(holder)
	rd.holder = holder
	h, _ := s.members.HandleOf(holder)
	if s.interest[h].Has(api.OpLock) {
		s.fire(group, h)
	}
}

func (s *Selector) fire(group *LockHandlerGroup, h *api.Handle) {
	group.Fire()
	s.log.V(1).Info("lock granted", "handle", h)
	s.composite.AddReadyEvent(api.NewEvent(h, api.OpLock, group))
}

// advance starts the next step of the round or ends it.
func (s *Selector) advance(group *LockHandlerGroup, rd *round) {
	if group.IsPending() {
		group.Hold()
		s.quiesce(group, rd)
		s.evaluate(group, rd)
		return
	}
	s.release(group)
}

// release opens every member and replays held events.
func (s *Selector) release(group *LockHandlerGroup) {
	delete(s.rounds, group)
	group.Reset()
	for _, m := range group.Members() {
		group.SetOpen(m)
		if h, ok := s.members.HandleOf(m); ok {
			s.open.Add(h)
		}
	}
	for _, handler := range s.held.Handlers() {
		if !group.HasMember(handler) {
			continue
		}
		for ev, ok := s.held.Pop(handler); ok; ev, ok = s.held.Pop(handler) {
			s.composite.AddReadyEvent(ev)
		}
	}
}
