// File: reactor/lock/lock_group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package lock

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

// LockGroup maps each handler to the one handle representing its lock
// membership, and back.
type LockGroup struct {
	byHandler map[api.Handler]*api.Handle
	byHandle  map[*api.Handle]api.Handler
}

// NewLockGroup returns an empty map.
func NewLockGroup() *LockGroup {
	return &LockGroup{
		byHandler: make(map[api.Handler]*api.Handle),
		byHandle:  make(map[*api.Handle]api.Handler),
	}
}

// Add binds handler to h. Either side already bound is an error.
func (g *LockGroup) Add(handler api.Handler, h *api.Handle) error {
	if _, ok := g.byHandler[handler]; ok {
		return fmt.Errorf("lock membership for handler: %w", api.ErrAlreadyExists)
	}
	if _, ok := g.byHandle[h]; ok {
		return fmt.Errorf("lock membership %s: %w", h, api.ErrAlreadyExists)
	}
	g.byHandler[handler] = h
	g.byHandle[h] = handler
	return nil
}

// HandleOf returns the membership handle of handler.
func (g *LockGroup) HandleOf(handler api.Handler) (*api.Handle, bool) {
	h, ok := g.byHandler[handler]
	return h, ok
}

// HandlerOf returns the handler bound to h.
func (g *LockGroup) HandlerOf(h *api.Handle) (api.Handler, bool) {
	handler, ok := g.byHandle[h]
	return handler, ok
}

// RemoveHandle unbinds h and its handler.
func (g *LockGroup) RemoveHandle(h *api.Handle) {
	if handler, ok := g.byHandle[h]; ok {
		delete(g.byHandler, handler)
		delete(g.byHandle, h)
	}
}

// Len returns the number of bindings.
func (g *LockGroup) Len() int { return len(g.byHandler) }
