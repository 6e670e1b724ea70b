// File: reactor/lock/open_group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package lock

import "github.com/momentics/hioload-reactor/api"

// OpenGroup is the set of member lock handles whose group is fully released.
type OpenGroup struct {
	handles map[*api.Handle]struct{}
}

// NewOpenGroup returns an empty set.
func NewOpenGroup() *OpenGroup {
	return &OpenGroup{handles: make(map[*api.Handle]struct{})}
}

// Add inserts h.
func (g *OpenGroup) Add(h *api.Handle) { g.handles[h] = struct{}{} }

// Remove deletes h.
func (g *OpenGroup) Remove(h *api.Handle) { delete(g.handles, h) }

// Contains reports membership of h.
func (g *OpenGroup) Contains(h *api.Handle) bool {
	_, ok := g.handles[h]
	return ok
}

// Len returns the set size.
func (g *OpenGroup) Len() int { return len(g.handles) }
