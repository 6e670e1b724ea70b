// File: reactor/selector/error.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ErrorSelector turns reported failures into OpError events. Each handler
// owns at most one error handle; reports are queued FIFO and delivered one
// at a time.

package selector

import (
	"fmt"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// ErrorSource is the registration source of error handles.
type ErrorSource struct{}

type errorEntry struct {
	handler api.Handler
	ops     api.EventMask
	pending *queue.Queue // of api.ErrorInfo
	fired   bool
}

// ErrorSelector routes ErrorInfo values to their handlers.
type ErrorSelector struct {
	composite api.Composite
	log       logr.Logger
	entries   map[*api.Handle]*errorEntry
	byHandler map[api.Handler]*api.Handle
}

var _ api.SpecificSelector = (*ErrorSelector)(nil)

func NewErrorSelector(c api.Composite, log logr.Logger) *ErrorSelector {
	return &ErrorSelector{
		composite: c,
		log:       log.WithName("error"),
		entries:   make(map[*api.Handle]*errorEntry),
		byHandler: make(map[api.Handler]*api.Handle),
	}
}

func (s *ErrorSelector) Name() string { return "error" }

func (s *ErrorSelector) SupportedOps() api.EventMask { return api.OpError }

func (s *ErrorSelector) Accepts(source any) bool {
	_, ok := source.(ErrorSource)
	return ok
}

func (s *ErrorSelector) Register(h *api.Handle, source any, handler api.Handler, ops api.EventMask) error {
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("error ops %s: %w", ops, api.ErrInvalidMask)
	}
	if _, ok := s.byHandler[handler]; ok {
		return fmt.Errorf("error handle for handler: %w", api.ErrAlreadyExists)
	}
	s.entries[h] = &errorEntry{handler: handler, ops: ops, pending: queue.New()}
	s.byHandler[handler] = h
	return nil
}

func (s *ErrorSelector) IsRegistered(h *api.Handle) bool {
	_, ok := s.entries[h]
	return ok
}

// IsSourceRegistered reports whether any error handle exists.
func (s *ErrorSelector) IsSourceRegistered(source any) bool {
	return s.Accepts(source) && len(s.entries) > 0
}

// HandleOf returns the error handle of handler.
func (s *ErrorSelector) HandleOf(handler api.Handler) (*api.Handle, bool) {
	h, ok := s.byHandler[handler]
	return h, ok
}

// Pending returns the number of undelivered reports for h.
func (s *ErrorSelector) Pending(h *api.Handle) int {
	if e, ok := s.entries[h]; ok {
		return e.pending.Length()
	}
	return 0
}

// Report queues info on h and delivers it when h is idle and interested.
// It returns false when h is not an error handle.
func (s *ErrorSelector) Report(h *api.Handle, info api.ErrorInfo) bool {
	e, ok := s.entries[h]
	if !ok {
		return false
	}
	e.pending.Add(info)
	s.log.V(1).Info("error reported", "handle", h, "origin", info.Origin, "error", info.Err.Error())
	s.next(h, e)
	return true
}

func (s *ErrorSelector) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.ops = ops
	s.next(h, e)
}

// Deregister drops h with its undelivered reports.
func (s *ErrorSelector) Deregister(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	if n := e.pending.Length(); n > 0 {
		s.log.Info("dropping undelivered errors", "handle", h, "count", n)
	}
	delete(s.entries, h)
	if s.byHandler[e.handler] == h {
		delete(s.byHandler, e.handler)
	}
}

// Checkin puts an OpError event carrying ErrorInfo at the head of the
// queue.
func (s *ErrorSelector) Checkin(h *api.Handle, ev api.Event) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.fired = false
	if info, ok := ev.Info().(api.ErrorInfo); ok {
		e.pending.Add(info)
		for i := 1; i < e.pending.Length(); i++ {
			e.pending.Add(e.pending.Remove())
		}
	}
}

func (s *ErrorSelector) ResumeSelection(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.fired = false
	s.next(h, e)
}

func (s *ErrorSelector) Shutdown() {
	s.entries = make(map[*api.Handle]*errorEntry)
	s.byHandler = make(map[api.Handler]*api.Handle)
}

func (s *ErrorSelector) next(h *api.Handle, e *errorEntry) {
	if e.fired || !e.ops.Has(api.OpError) || e.pending.Length() == 0 {
		return
	}
	e.fired = true
	info := e.pending.Remove().(api.ErrorInfo)
	s.composite.AddReadyEvent(api.NewEvent(h, api.OpError, info))
}
