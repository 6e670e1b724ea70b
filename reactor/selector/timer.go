// File: reactor/selector/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TimerSelector delivers OpTimer events for one-shot and periodic timers.
// Expirations fire on runtime timer goroutines and are posted to the
// dispatch goroutine; a canceled timer stays in the table until every
// posted expiration has drained so none of them can resurrect it.

package selector

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// TimerSpec is the registration source of a timer. Period zero makes a
// one-shot timer that retires after its event was handled.
type TimerSpec struct {
	Delay  time.Duration
	Period time.Duration
}

// TimerEvent is the payload of OpTimer events. Missed counts expirations
// folded into this one because the handle was busy or not interested.
type TimerEvent struct {
	At     time.Time
	Missed int
}

type timerEntry struct {
	spec     TimerSpec
	ops      api.EventMask
	timer    *time.Timer
	pending  atomic.Int32
	canceled atomic.Bool
	fired    bool
	expired  bool
	missed   int
	last     time.Time
}

// TimerSelector serves TimerSpec sources.
type TimerSelector struct {
	composite api.Composite
	log       logr.Logger
	entries   map[*api.Handle]*timerEntry
}

var _ api.SpecificSelector = (*TimerSelector)(nil)

func NewTimerSelector(c api.Composite, log logr.Logger) *TimerSelector {
	return &TimerSelector{composite: c, log: log.WithName("timer"), entries: make(map[*api.Handle]*timerEntry)}
}

func (s *TimerSelector) Name() string { return "timer" }

func (s *TimerSelector) SupportedOps() api.EventMask { return api.OpTimer }

func (s *TimerSelector) Accepts(source any) bool {
	_, ok := source.(TimerSpec)
	return ok
}

func (s *TimerSelector) Register(h *api.Handle, source any, _ api.Handler, ops api.EventMask) error {
	spec, ok := source.(TimerSpec)
	if !ok || spec.Delay < 0 || spec.Period < 0 {
		return fmt.Errorf("timer source %v: %w", source, api.ErrInvalidArgument)
	}
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("timer ops %s: %w", ops, api.ErrInvalidMask)
	}
	e := &timerEntry{spec: spec, ops: ops}
	s.entries[h] = e
	// Armed after assignment so the callback always sees e.timer.
	e.timer = time.AfterFunc(math.MaxInt64, func() { s.onExpire(h, e) })
	e.timer.Reset(spec.Delay)
	return nil
}

// onExpire runs on a runtime timer goroutine.
func (s *TimerSelector) onExpire(h *api.Handle, e *timerEntry) {
	if e.canceled.Load() {
		return
	}
	now := time.Now()
	e.pending.Add(1)
	if !s.composite.Post(func() { s.expire(h, e, now) }) {
		e.pending.Add(-1)
		return
	}
	if e.spec.Period > 0 && !e.canceled.Load() {
		e.timer.Reset(e.spec.Period)
	}
}

func (s *TimerSelector) expire(h *api.Handle, e *timerEntry, at time.Time) {
	left := e.pending.Add(-1)
	if e.canceled.Load() {
		if left == 0 && s.entries[h] == e {
			delete(s.entries, h)
		}
		return
	}
	e.expired = true
	e.last = at
	if e.fired || !e.ops.Has(api.OpTimer) {
		e.missed++
		return
	}
	s.fire(h, e, e.missed)
}

func (s *TimerSelector) fire(h *api.Handle, e *timerEntry, missed int) {
	e.fired = true
	e.missed = 0
	s.composite.AddReadyEvent(api.NewEvent(h, api.OpTimer, TimerEvent{At: e.last, Missed: missed}))
}

func (s *TimerSelector) IsRegistered(h *api.Handle) bool {
	e, ok := s.entries[h]
	return ok && !e.canceled.Load()
}

// IsSourceRegistered reports whether a live timer uses an equal spec.
func (s *TimerSelector) IsSourceRegistered(source any) bool {
	spec, ok := source.(TimerSpec)
	if !ok {
		return false
	}
	for _, e := range s.entries {
		if e.spec == spec && !e.canceled.Load() {
			return true
		}
	}
	return false
}

// InterestOps updates the interest of h. Re-enabling OpTimer delivers
// expirations missed meanwhile.
func (s *TimerSelector) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := s.entries[h]
	if !ok || e.canceled.Load() {
		return
	}
	e.ops = ops
	if !e.fired && e.missed > 0 && ops.Has(api.OpTimer) {
		s.fire(h, e, e.missed-1)
	}
}

// Deregister stops the timer. The entry is dropped once no expiration is
// in flight.
func (s *TimerSelector) Deregister(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok || e.canceled.Load() {
		return
	}
	e.canceled.Store(true)
	e.timer.Stop()
	if e.pending.Load() == 0 {
		delete(s.entries, h)
	}
}

// Checkin clears the fired flag so the next expiration is delivered.
func (s *TimerSelector) Checkin(h *api.Handle, _ api.Event) {
	if e, ok := s.entries[h]; ok {
		e.fired = false
	}
}

// ResumeSelection retires an expired one-shot timer and otherwise waits for
// the next expiration.
func (s *TimerSelector) ResumeSelection(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok || e.canceled.Load() {
		return
	}
	e.fired = false
	if e.spec.Period == 0 && e.expired && e.missed == 0 {
		s.composite.ProcessDeregister(h)
	}
}

func (s *TimerSelector) Shutdown() {
	for _, e := range s.entries {
		e.canceled.Store(true)
		e.timer.Stop()
	}
	s.entries = make(map[*api.Handle]*timerEntry)
}

// Len returns the number of table entries, including canceled timers
// with expirations still in flight.
func (s *TimerSelector) Len() int { return len(s.entries) }
