// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides test doubles for selector and lock tests.
package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Composite is a recording api.Composite. Posted functions are queued
// until the test runs them with RunPosted, standing in for the dispatch
// goroutine.
type Composite struct {
	// Selector receives forwarded registrations and deregistrations.
	Selector api.SpecificSelector

	mu           sync.Mutex
	events       []api.Event
	deregistered []*api.Handle
	errs         []api.ErrorInfo
	critical     []error
	handlers     map[*api.Handle]api.Handler
	closed       bool

	posted chan func()
}

var _ api.Composite = (*Composite)(nil)

// NewComposite returns an empty recorder.
func NewComposite() *Composite {
	return &Composite{handlers: make(map[*api.Handle]api.Handler), posted: make(chan func(), 1024)}
}

func (c *Composite) ProcessRegister(h *api.Handle, source any, handler api.Handler, ops api.EventMask) error {
	c.mu.Lock()
	c.handlers[h] = handler
	c.mu.Unlock()
	if c.Selector == nil {
		return nil
	}
	return c.Selector.Register(h, source, handler, ops)
}

func (c *Composite) ProcessInterestOps(h *api.Handle, ops api.EventMask) {
	if c.Selector != nil {
		c.Selector.InterestOps(h, ops)
	}
}

func (c *Composite) ProcessDeregister(h *api.Handle) {
	c.mu.Lock()
	c.deregistered = append(c.deregistered, h)
	delete(c.handlers, h)
	c.mu.Unlock()
	if c.Selector != nil {
		c.Selector.Deregister(h)
	}
}

func (c *Composite) ProcessDeregisterHandler(handler api.Handler) {
	c.mu.Lock()
	var hs []*api.Handle
	for h, hd := range c.handlers {
		if hd == handler {
			hs = append(hs, h)
		}
	}
	c.mu.Unlock()
	for _, h := range hs {
		c.ProcessDeregister(h)
	}
}

func (c *Composite) AddReadyEvent(ev api.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *Composite) Handler(h *api.Handle) api.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[h]
}

func (c *Composite) Post(fn func()) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	c.posted <- fn
	return true
}

func (c *Composite) ReportError(_ *api.Handle, err error, failed api.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, api.ErrorInfo{Err: err, Failed: failed})
}

func (c *Composite) ReportCriticalError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.critical = append(c.critical, err)
}

// Close makes further Post calls fail.
func (c *Composite) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// RunPosted waits up to timeout for a posted function, then runs every
// queued one. It returns how many ran.
func (c *Composite) RunPosted(timeout time.Duration) int {
	n := 0
	select {
	case fn := <-c.posted:
		fn()
		n++
	case <-time.After(timeout):
		return 0
	}
	for {
		select {
		case fn := <-c.posted:
			fn()
			n++
		default:
			return n
		}
	}
}

// RunPostedUntil runs posted functions until cond holds or timeout expires.
func (c *Composite) RunPostedUntil(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		left := time.Until(deadline)
		if left <= 0 {
			return false
		}
		c.RunPosted(left)
	}
	return true
}

// Events returns the ready events queued so far.
func (c *Composite) Events() []api.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Event(nil), c.events...)
}

// TakeEvents returns and clears the ready events.
func (c *Composite) TakeEvents() []api.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	evs := c.events
	c.events = nil
	return evs
}

// Deregistered returns the handles passed to ProcessDeregister.
func (c *Composite) Deregistered() []*api.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*api.Handle(nil), c.deregistered...)
}

// Critical returns the critical errors reported.
func (c *Composite) Critical() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.critical...)
}
