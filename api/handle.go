// File: api/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle is the registration identity every table in the reactor is keyed by.

package api

import "github.com/google/uuid"

// Handle is an opaque registration token. Handles are compared by pointer
// identity; two handles are equal only if they are the same *Handle.
type Handle struct {
	id uuid.UUID
}

// NewHandle mints a fresh handle. Safe for concurrent use.
func NewHandle() *Handle {
	return &Handle{id: uuid.New()}
}

// String returns a short id for logs.
func (h *Handle) String() string {
	if h == nil {
		return "handle(nil)"
	}
	return "handle(" + h.id.String()[:8] + ")"
}
