// File: reactor/registrar.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registrar is the handle -> (handler, selector, interest ops) table with
// the reverse handler -> handles index. It is owned by the dispatch
// goroutine and does no locking.

package reactor

import (
	"fmt"
	"sort"

	"github.com/momentics/hioload-reactor/api"
)

type registration struct {
	handler  api.Handler
	selector api.SpecificSelector
	ops      api.EventMask
	seq      uint64 // insertion order within the handler's set
}

// Registrar keeps the forward and reverse registration indices in step:
// a handle is in entries iff it is in exactly one handler's set.
type Registrar struct {
	entries  map[*api.Handle]*registration
	handlers map[api.Handler]map[*api.Handle]struct{}
	seq      uint64
}

// NewRegistrar returns an empty table.
func NewRegistrar() *Registrar {
	return &Registrar{
		entries:  make(map[*api.Handle]*registration),
		handlers: make(map[api.Handler]map[*api.Handle]struct{}),
	}
}

// Add binds h. Re-adding a known handle is rejected.
func (r *Registrar) Add(h *api.Handle, handler api.Handler, sel api.SpecificSelector, ops api.EventMask) error {
	if h == nil || handler == nil {
		return fmt.Errorf("registrar add: %w", api.ErrInvalidArgument)
	}
	if _, ok := r.entries[h]; ok {
		return fmt.Errorf("registrar add %s: %w", h, api.ErrAlreadyExists)
	}
	r.seq++
	r.entries[h] = &registration{handler: handler, selector: sel, ops: ops, seq: r.seq}
	set, ok := r.handlers[handler]
	if !ok {
		set = make(map[*api.Handle]struct{})
		r.handlers[handler] = set
	}
	set[h] = struct{}{}
	return nil
}

// Remove drops h and reports whether its handler has no handles left.
// Unknown handles return false.
func (r *Registrar) Remove(h *api.Handle) bool {
	reg, ok := r.entries[h]
	if !ok {
		return false
	}
	delete(r.entries, h)
	set := r.handlers[reg.handler]
	delete(set, h)
	if len(set) == 0 {
		delete(r.handlers, reg.handler)
		return true
	}
	return false
}

// RemoveHandler drops every handle owned by handler.
func (r *Registrar) RemoveHandler(handler api.Handler) {
	for h := range r.handlers[handler] {
		delete(r.entries, h)
	}
	delete(r.handlers, handler)
}

// Contains reports whether h is registered.
func (r *Registrar) Contains(h *api.Handle) bool {
	_, ok := r.entries[h]
	return ok
}

// ContainsHandler reports whether handler owns at least one handle.
func (r *Registrar) ContainsHandler(handler api.Handler) bool {
	_, ok := r.handlers[handler]
	return ok
}

// Handler returns the owner of h, or nil.
func (r *Registrar) Handler(h *api.Handle) api.Handler {
	if reg, ok := r.entries[h]; ok {
		return reg.handler
	}
	return nil
}

// Selector returns the selector h was registered with, or nil.
func (r *Registrar) Selector(h *api.Handle) api.SpecificSelector {
	if reg, ok := r.entries[h]; ok {
		return reg.selector
	}
	return nil
}

// Lookup resolves handler and selector in one probe.
func (r *Registrar) Lookup(h *api.Handle) (api.Handler, api.SpecificSelector, bool) {
	reg, ok := r.entries[h]
	if !ok {
		return nil, nil, false
	}
	return reg.handler, reg.selector, true
}

// Handles returns the handles of handler in insertion order.
func (r *Registrar) Handles(handler api.Handler) []*api.Handle {
	set := r.handlers[handler]
	if len(set) == 0 {
		return nil
	}
	out := make([]*api.Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.entries[out[i]].seq < r.entries[out[j]].seq
	})
	return out
}

// NumHandles returns how many handles handler owns.
func (r *Registrar) NumHandles(handler api.Handler) int {
	return len(r.handlers[handler])
}

// InterestOps returns the interest of h; api.OpUnknown and false if absent.
func (r *Registrar) InterestOps(h *api.Handle) (api.EventMask, bool) {
	if reg, ok := r.entries[h]; ok {
		return reg.ops, true
	}
	return api.OpUnknown, false
}

// SetInterestOps updates the interest of h; no-op if absent.
func (r *Registrar) SetInterestOps(h *api.Handle, ops api.EventMask) {
	if reg, ok := r.entries[h]; ok {
		reg.ops = ops
	}
}

// Len returns the number of registered handles.
func (r *Registrar) Len() int { return len(r.entries) }

// NumHandlers returns the number of distinct handlers.
func (r *Registrar) NumHandlers() int { return len(r.handlers) }
