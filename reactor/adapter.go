// File: reactor/adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HandlerAdapter is one schedulable handler invocation. It buffers the
// commands the handler issues and hands them back to the dispatch
// goroutine when the handler returns.

package reactor

import (
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

// resumer receives finished adapters. Implemented by Reactor.
type resumer interface {
	resumeSelection(a *HandlerAdapter)
}

// HandlerAdapter binds a handler to one ready event.
type HandlerAdapter struct {
	owner    resumer
	handler  api.Handler
	handle   *api.Handle
	readyOps api.EventMask
	info     any
	onWorker bool

	mu       sync.Mutex
	commands []api.Command
	done     bool

	// noted is touched by the dispatch goroutine only.
	noted map[*api.Handle]struct{}
}

var _ api.Commander = (*HandlerAdapter)(nil)

func newHandlerAdapter(owner resumer, handler api.Handler, ev api.Event, onWorker bool) *HandlerAdapter {
	return &HandlerAdapter{
		owner:    owner,
		handler:  handler,
		handle:   ev.Handle(),
		readyOps: ev.ReadyOps(),
		info:     ev.Info(),
		onWorker: onWorker,
	}
}

// Handler returns the handler being invoked.
func (a *HandlerAdapter) Handler() api.Handler { return a.handler }

// Handle returns the handle the event was raised for.
func (a *HandlerAdapter) Handle() *api.Handle { return a.handle }

// ReadyOps returns the ready operations of the event.
func (a *HandlerAdapter) ReadyOps() api.EventMask { return a.readyOps }

// Run invokes the handler and then returns the adapter to its owner. A
// returned error or panic is queued as a report-error command.
func (a *HandlerAdapter) Run() {
	a.invoke()
	a.mu.Lock()
	a.done = true
	a.mu.Unlock()
	if a.owner != nil {
		a.owner.resumeSelection(a)
	}
}

func (a *HandlerAdapter) invoke() {
	defer func() {
		if r := recover(); r != nil {
			a.Command(api.ReportErrorCommand{
				Handle: a.handle,
				Err:    &api.HandlerError{Handle: a.handle, Ops: a.readyOps, Panic: r},
			})
		}
	}()
	if err := a.handler.HandleEvent(a, a.handle, a.readyOps, a.info); err != nil {
		a.Command(api.ReportErrorCommand{
			Handle: a.handle,
			Err:    &api.HandlerError{Handle: a.handle, Ops: a.readyOps, Err: err},
		})
	}
}

// Command buffers cmd. Commands issued after the handler returned are dropped.
func (a *HandlerAdapter) Command(cmd api.Command) {
	if cmd == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.commands = append(a.commands, cmd)
}

// takeCommands transfers the buffer to the caller.
func (a *HandlerAdapter) takeCommands() []api.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	cmds := a.commands
	a.commands = nil
	return cmds
}

// EventHandleNoted returns false the first time it sees h and true after.
func (a *HandlerAdapter) EventHandleNoted(h *api.Handle) bool {
	if a.noted == nil {
		a.noted = make(map[*api.Handle]struct{})
	}
	if _, ok := a.noted[h]; ok {
		return true
	}
	a.noted[h] = struct{}{}
	return false
}
