// File: reactor/commands.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Replay of deferred commands on the dispatch goroutine.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

func (r *Reactor) apply(a *HandlerAdapter, cmd api.Command) {
	var err error
	switch c := cmd.(type) {
	case api.InterestOpsCommand:
		err = r.applyInterestOps(c)
	case api.DeregisterCommand:
		if c.Handle != nil {
			a.EventHandleNoted(c.Handle)
			r.ProcessDeregister(c.Handle)
		}
	case api.DeregisterHandlerCommand:
		handler := c.Handler
		if handler == nil {
			handler = a.handler
		}
		for _, h := range r.registrar.Handles(handler) {
			a.EventHandleNoted(h)
		}
		r.ProcessDeregisterHandler(handler)
	case api.RegisterCommand:
		handler := c.Handler
		if handler == nil {
			handler = a.handler
		}
		err = r.ProcessRegister(c.Handle, c.Source, handler, c.Ops)
	case api.LockCommand:
		err = r.locks.RequestLock(a.handler)
	case api.UnlockCommand:
		err = r.locks.Unlock(a.handler)
	case api.ReportErrorCommand:
		origin := c.Handle
		if origin == nil {
			origin = a.handle
		}
		r.reportHandlerError(a.handler, a.readyOps, origin, c.Err, c.Failed)
	default:
		err = fmt.Errorf("command %T: %w", cmd, api.ErrNotSupported)
	}
	r.obs.CommandApplied(cmd.Kind(), err)
	if err != nil {
		r.log.V(1).Info("command failed", "kind", cmd.Kind(), "handle", a.handle, "error", err.Error())
		r.reportHandlerError(a.handler, a.readyOps, a.handle, err, cmd)
	}
}

// applyInterestOps validates the resulting mask before it reaches any
// table. Unknown handles are a routing miss and ignored.
func (r *Reactor) applyInterestOps(c api.InterestOpsCommand) error {
	if !c.Ops.IsValid() {
		return fmt.Errorf("interest ops %d: %w", int32(c.Ops), api.ErrInvalidMask)
	}
	current, ok := r.registrar.InterestOps(c.Handle)
	if !ok {
		return nil
	}
	ops := c.Ops
	switch c.Mode {
	case api.OpsOr:
		ops = current.Or(c.Ops)
	case api.OpsAnd:
		ops = current.And(c.Ops)
	}
	if err := r.checkScope(c.Handle, ops); err != nil {
		return err
	}
	r.ProcessInterestOps(c.Handle, ops)
	return nil
}

// checkScope rejects interest the selector of h cannot serve.
func (r *Reactor) checkScope(h *api.Handle, ops api.EventMask) error {
	sel := r.registrar.Selector(h)
	scoped, ok := sel.(api.OpsScoped)
	if !ok || ops&^scoped.SupportedOps() == 0 {
		return nil
	}
	return fmt.Errorf("interest ops %s on %s selector: %w", ops, sel.Name(), api.ErrInvalidMask)
}
