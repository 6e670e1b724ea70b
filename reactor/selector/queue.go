// File: reactor/selector/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// QueueSelector delivers messages of in-process queues as OpQRead events,
// one message per event.

package selector

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// MessageQueue is an unbounded FIFO producers put into from any goroutine.
type MessageQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify func()
	closed bool
}

func NewMessageQueue() *MessageQueue {
	return &MessageQueue{items: queue.New()}
}

// Put appends msg. It returns false once the queue is closed.
func (q *MessageQueue) Put(msg any) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Add(msg)
	notify := q.notify
	q.mu.Unlock()
	if notify != nil {
		notify()
	}
	return true
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close rejects further puts. Queued messages are still delivered.
func (q *MessageQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *MessageQueue) take() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return nil, false
	}
	return q.items.Remove(), true
}

func (q *MessageQueue) attach(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.notify != nil {
		return false
	}
	q.notify = fn
	return true
}

func (q *MessageQueue) detach() {
	q.mu.Lock()
	q.notify = nil
	q.mu.Unlock()
}

type queueEntry struct {
	q     *MessageQueue
	ops   api.EventMask
	fired bool
}

// QueueSelector serves *MessageQueue sources. A queue has one consumer
// handle at a time.
type QueueSelector struct {
	composite api.Composite
	log       logr.Logger
	entries   map[*api.Handle]*queueEntry
}

var _ api.SpecificSelector = (*QueueSelector)(nil)

func NewQueueSelector(c api.Composite, log logr.Logger) *QueueSelector {
	return &QueueSelector{composite: c, log: log.WithName("queue"), entries: make(map[*api.Handle]*queueEntry)}
}

func (s *QueueSelector) Name() string { return "queue" }

func (s *QueueSelector) SupportedOps() api.EventMask { return api.OpQRead }

func (s *QueueSelector) Accepts(source any) bool {
	_, ok := source.(*MessageQueue)
	return ok
}

func (s *QueueSelector) Register(h *api.Handle, source any, _ api.Handler, ops api.EventMask) error {
	q, ok := source.(*MessageQueue)
	if !ok || q == nil {
		return fmt.Errorf("queue source %T: %w", source, api.ErrInvalidArgument)
	}
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("queue ops %s: %w", ops, api.ErrInvalidMask)
	}
	if !q.attach(func() { s.composite.Post(func() { s.poll(h) }) }) {
		return fmt.Errorf("queue already has a consumer: %w", api.ErrAlreadyExists)
	}
	s.entries[h] = &queueEntry{q: q, ops: ops}
	s.poll(h)
	return nil
}

// poll delivers the next message when h is idle and interested.
func (s *QueueSelector) poll(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok || e.fired || !e.ops.Has(api.OpQRead) {
		return
	}
	msg, ok := e.q.take()
	if !ok {
		return
	}
	e.fired = true
	s.composite.AddReadyEvent(api.NewEvent(h, api.OpQRead, msg))
}

func (s *QueueSelector) IsRegistered(h *api.Handle) bool {
	_, ok := s.entries[h]
	return ok
}

func (s *QueueSelector) IsSourceRegistered(source any) bool {
	q, ok := source.(*MessageQueue)
	if !ok {
		return false
	}
	for _, e := range s.entries {
		if e.q == q {
			return true
		}
	}
	return false
}

func (s *QueueSelector) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.ops = ops
	s.poll(h)
}

// Deregister detaches the consumer. Queued messages stay in the queue.
func (s *QueueSelector) Deregister(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.q.detach()
	delete(s.entries, h)
}

func (s *QueueSelector) Checkin(h *api.Handle, _ api.Event) {
	if e, ok := s.entries[h]; ok {
		e.fired = false
	}
}

// ResumeSelection re-arms h while messages remain.
func (s *QueueSelector) ResumeSelection(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.fired = false
	s.poll(h)
}

func (s *QueueSelector) Shutdown() {
	for _, e := range s.entries {
		e.q.detach()
	}
	s.entries = make(map[*api.Handle]*queueEntry)
}
