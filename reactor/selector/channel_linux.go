//go:build linux

// File: reactor/selector/channel_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) channel selector. Descriptors are armed EPOLLONESHOT so a
// handle fires at most once until ResumeSelection re-arms it.

package selector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

const maxEpollEvents = 128

type channelEntry struct {
	ch    Channel
	ops   api.EventMask
	fired bool
}

// ChannelSelector serves Channel sources.
type ChannelSelector struct {
	composite api.Composite
	log       logr.Logger
	epfd      int
	wakefd    int
	done      chan struct{}
	closeOnce sync.Once

	entries map[*api.Handle]*channelEntry // dispatch goroutine only

	mu   sync.RWMutex
	byFD map[int]*api.Handle
}

var _ api.SpecificSelector = (*ChannelSelector)(nil)

// NewChannelSelector creates the epoll instance and starts its poller.
func NewChannelSelector(c api.Composite, log logr.Logger) (*ChannelSelector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake: %w", err)
	}
	s := &ChannelSelector{
		composite: c,
		log:       log.WithName("channel"),
		epfd:      epfd,
		wakefd:    wakefd,
		done:      make(chan struct{}),
		entries:   make(map[*api.Handle]*channelEntry),
		byFD:      make(map[int]*api.Handle),
	}
	go s.poll()
	return s, nil
}

func (s *ChannelSelector) Name() string { return "channel" }

func (s *ChannelSelector) SupportedOps() api.EventMask { return api.OpChannelOps }

func (s *ChannelSelector) Accepts(source any) bool {
	_, ok := source.(Channel)
	return ok
}

func (s *ChannelSelector) Register(h *api.Handle, source any, _ api.Handler, ops api.EventMask) error {
	ch, ok := source.(Channel)
	if !ok || ch.FD < 0 {
		return fmt.Errorf("channel source %v: %w", source, api.ErrInvalidArgument)
	}
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("channel ops %s: %w", ops, api.ErrInvalidMask)
	}
	s.mu.Lock()
	if _, dup := s.byFD[ch.FD]; dup {
		s.mu.Unlock()
		return fmt.Errorf("channel fd %d: %w", ch.FD, api.ErrAlreadyExists)
	}
	s.byFD[ch.FD] = h
	s.mu.Unlock()

	ev := unix.EpollEvent{Events: epollMask(ops), Fd: int32(ch.FD)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, ch.FD, &ev); err != nil {
		s.mu.Lock()
		delete(s.byFD, ch.FD)
		s.mu.Unlock()
		return fmt.Errorf("epoll ctl add %d: %w", ch.FD, err)
	}
	s.entries[h] = &channelEntry{ch: ch, ops: ops}
	return nil
}

func epollMask(ops api.EventMask) uint32 {
	m := uint32(unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if ops&(api.OpCRead|api.OpAccept) != 0 {
		m |= unix.EPOLLIN
	}
	if ops&(api.OpCWrite|api.OpConnect) != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

// readyOps maps raw epoll bits onto the interest of the handle. Errors and
// hang-ups wake every interested op so the handler observes them on I/O.
func readyOps(raw uint32, interest api.EventMask) api.EventMask {
	var ops api.EventMask
	if raw&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ops |= interest & (api.OpCRead | api.OpAccept)
	}
	if raw&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ops |= interest & (api.OpCWrite | api.OpConnect)
	}
	return ops
}

func (s *ChannelSelector) poll() {
	defer close(s.done)
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.composite.ReportCriticalError(fmt.Errorf("epoll wait: %w", err))
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.wakefd {
				return
			}
			s.mu.RLock()
			h, ok := s.byFD[fd]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			raw := events[i].Events
			s.composite.Post(func() { s.ready(h, raw) })
		}
	}
}

func (s *ChannelSelector) ready(h *api.Handle, raw uint32) {
	e, ok := s.entries[h]
	if !ok || e.fired {
		return
	}
	ops := readyOps(raw, e.ops)
	if ops == api.OpNoop {
		s.arm(h, e)
		return
	}
	e.fired = true
	s.composite.AddReadyEvent(api.NewEvent(h, ops, e.ch))
}

func (s *ChannelSelector) arm(h *api.Handle, e *channelEntry) {
	if e.ops == api.OpNoop {
		return
	}
	ev := unix.EpollEvent{Events: epollMask(e.ops), Fd: int32(e.ch.FD)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, e.ch.FD, &ev); err != nil {
		s.composite.ReportCriticalError(fmt.Errorf("epoll re-arm %s fd %d: %w", h, e.ch.FD, err))
	}
}

func (s *ChannelSelector) IsRegistered(h *api.Handle) bool {
	_, ok := s.entries[h]
	return ok
}

func (s *ChannelSelector) IsSourceRegistered(source any) bool {
	ch, ok := source.(Channel)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok = s.byFD[ch.FD]
	return ok
}

func (s *ChannelSelector) InterestOps(h *api.Handle, ops api.EventMask) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.ops = ops
	if !e.fired {
		s.arm(h, e)
	}
}

func (s *ChannelSelector) Deregister(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	delete(s.entries, h)
	s.mu.Lock()
	delete(s.byFD, e.ch.FD)
	s.mu.Unlock()
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, e.ch.FD, nil); err != nil {
		s.log.V(1).Info("epoll ctl del failed", "fd", e.ch.FD, "error", err.Error())
	}
}

func (s *ChannelSelector) Checkin(h *api.Handle, _ api.Event) {
	if e, ok := s.entries[h]; ok {
		e.fired = false
	}
}

// ResumeSelection re-arms the descriptor of h.
func (s *ChannelSelector) ResumeSelection(h *api.Handle) {
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.fired = false
	s.arm(h, e)
}

// Shutdown stops the poller and closes the epoll instance. Registered
// descriptors are left open.
func (s *ChannelSelector) Shutdown() {
	s.closeOnce.Do(func() {
		var one [8]byte
		one[0] = 1
		if _, err := unix.Write(s.wakefd, one[:]); err != nil {
			s.log.Error(err, "wake poller")
		}
		<-s.done
		unix.Close(s.wakefd)
		unix.Close(s.epfd)
		s.entries = make(map[*api.Handle]*channelEntry)
		s.mu.Lock()
		s.byFD = make(map[int]*api.Handle)
		s.mu.Unlock()
	})
}
