// File: reactor/selector/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SignalSelector delivers OS signals as OpSignal events carrying the
// os.Signal. Signals arriving while the handle is busy are buffered.

package selector

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
)

const signalBuffer = 16

// SignalSpec is the registration source of a signal handle.
type SignalSpec struct {
	Signals []os.Signal
}

// NewSignalSpec builds a spec from signal names such as "SIGHUP" or "INT".
func NewSignalSpec(names ...string) (*SignalSpec, error) {
	spec := &SignalSpec{}
	for _, n := range names {
		sig, err := ParseSignal(n)
		if err != nil {
			return nil, err
		}
		spec.Signals = append(spec.Signals, sig)
	}
	return spec, nil
}

type signalEntry struct {
	spec    *SignalSpec
	ops     api.EventMask
	ch      chan os.Signal
	stop    chan struct{}
	ring    *concurrency.Ring[os.Signal]
	dropped atomic.Int64
	fired   bool
}

// SignalSelector serves *SignalSpec sources.
type SignalSelector struct {
	composite api.Composite
	log       logr.Logger
	entries   map[*api.Handle]*signalEntry
}

var _ api.SpecificSelector = (*SignalSelector)(nil)

func NewSignalSelector(c api.Composite, log logr.Logger) *SignalSelector {
	return &SignalSelector{composite: c, log: log.WithName("signal"), entries: make(map[*api.Handle]*signalEntry)}
}

func (s *SignalSelector) Name() string { return "signal" }

func (s *SignalSelector) SupportedOps() api.EventMask { return api.OpSignal }

func (s *SignalSelector) Accepts(source any) bool {
	_, ok := source.(*SignalSpec)
	return ok
}

func (s *SignalSelector) Register(h *api.Handle, source any, _ api.Handler, ops api.EventMask) error {
	spec, ok := source.(*SignalSpec)
	if !ok || spec == nil || len(spec.Signals) == 0 {
		return fmt.Errorf("signal source %v: %w", source, api.ErrInvalidArgument)
	}
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("signal ops %s: %w", ops, api.ErrInvalidMask)
	}
	e := &signalEntry{
		spec: spec,
		ops:  ops,
		ch:   make(chan os.Signal, signalBuffer),
		stop: make(chan struct{}),
		ring: concurrency.NewRing[os.Signal](signalBuffer),
	}
	s.entries[h] = e
	signal.Notify(e.ch, spec.Signals...)
	go s.forward(h, e)
	return nil
}

// forward is the only producer of e.ring.
func (s *SignalSelector) forward(h *api.Handle, e *signalEntry) {
	for {
		select {
		case sig := <-e.ch:
			if !e.ring.Push(sig) {
				e.dropped.Add(1)
				continue
			}
			s.composite.Post(func() { s.poll(h) })
		case <-e.stop:
			return
		}
	}
}

func (s *SignalSelector) poll(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok || e.fired || !e.ops.Has(api.OpSignal) {
		return
	}
	sig, ok := e.ring.Pop()
	if !ok {
		return
	}
	if n := e.dropped.Swap(0); n > 0 {
		s.log.Info("signals dropped", "handle", h, "count", n)
	}
	e.fired = true
	s.composite.AddReadyEvent(api.NewEvent(h, api.OpSignal, sig))
}

func (s *SignalSelector) IsRegistered(h *api.Handle) bool {
	_, ok := s.entries[h]
	return ok
}

func (s *SignalSelector) IsSourceRegistered(source any) bool {
	spec, ok := source.(*SignalSpec)
	if !ok {
		return false
	}
	for _, e := range s.entries {
		if e.spec == spec {
			return true
		}
	}
	return false
}

func (s *SignalSelector) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.ops = ops
	s.poll(h)
}

func (s *SignalSelector) Deregister(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	signal.Stop(e.ch)
	close(e.stop)
	delete(s.entries, h)
}

func (s *SignalSelector) Checkin(h *api.Handle, _ api.Event) {
	if e, ok := s.entries[h]; ok {
		e.fired = false
	}
}

func (s *SignalSelector) ResumeSelection(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.fired = false
	s.poll(h)
}

func (s *SignalSelector) Shutdown() {
	for h := range s.entries {
		s.Deregister(h)
	}
}
