// File: api/command.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deferred commands proposed by handlers and replayed by the dispatch goroutine.

package api

// Command is a sealed set of deferred engine mutations.
type Command interface {
	Kind() string
	isCommand()
}

// OpsMode selects how InterestOpsCommand combines with current interest.
type OpsMode int

const (
	OpsSet OpsMode = iota
	OpsOr
	OpsAnd
)

// InterestOpsCommand changes the interest ops of a handle.
type InterestOpsCommand struct {
	Handle *Handle
	Ops    EventMask
	Mode   OpsMode
}

// DeregisterCommand removes one handle.
type DeregisterCommand struct {
	Handle *Handle
}

// DeregisterHandlerCommand removes every handle of Handler. A nil Handler
// means the handler that issued the command.
type DeregisterHandlerCommand struct {
	Handler Handler
}

// RegisterCommand binds a new source. Handle is minted by the issuer so the
// handler can keep it; a nil Handler means the issuing handler.
type RegisterCommand struct {
	Handle  *Handle
	Source  any
	Handler Handler
	Ops     EventMask
}

// LockCommand asks for exclusive access within the issuer's lock group.
type LockCommand struct{}

// UnlockCommand releases exclusive access held by the issuer.
type UnlockCommand struct{}

// ReportErrorCommand routes Err to the error selector. Handle is the
// originating handle, Failed the command that could not be applied.
type ReportErrorCommand struct {
	Handle *Handle
	Err    error
	Failed Command
}

func (InterestOpsCommand) Kind() string       { return "interest_ops" }
func (DeregisterCommand) Kind() string        { return "deregister" }
func (DeregisterHandlerCommand) Kind() string { return "deregister_handler" }
func (RegisterCommand) Kind() string          { return "register" }
func (LockCommand) Kind() string              { return "lock" }
func (UnlockCommand) Kind() string            { return "unlock" }
func (ReportErrorCommand) Kind() string       { return "report_error" }

func (InterestOpsCommand) isCommand()       {}
func (DeregisterCommand) isCommand()        {}
func (DeregisterHandlerCommand) isCommand() {}
func (RegisterCommand) isCommand()          {}
func (LockCommand) isCommand()              {}
func (UnlockCommand) isCommand()            {}
func (ReportErrorCommand) isCommand()       {}

// SetInterestOps replaces the interest ops of h.
func SetInterestOps(h *Handle, ops EventMask) Command {
	return InterestOpsCommand{Handle: h, Ops: ops, Mode: OpsSet}
}

// OrInterestOps adds ops to the interest of h.
func OrInterestOps(h *Handle, ops EventMask) Command {
	return InterestOpsCommand{Handle: h, Ops: ops, Mode: OpsOr}
}

// AndInterestOps masks the interest of h with ops.
func AndInterestOps(h *Handle, ops EventMask) Command {
	return InterestOpsCommand{Handle: h, Ops: ops, Mode: OpsAnd}
}

// Deregister removes h.
func Deregister(h *Handle) Command { return DeregisterCommand{Handle: h} }

// DeregisterHandler removes every handle of handler (nil: the issuer).
func DeregisterHandler(handler Handler) Command {
	return DeregisterHandlerCommand{Handler: handler}
}

// Register mints a handle for source and returns it with the command that
// binds it. handler may be nil to bind to the issuer.
func Register(source any, handler Handler, ops EventMask) (*Handle, Command) {
	h := NewHandle()
	return h, RegisterCommand{Handle: h, Source: source, Handler: handler, Ops: ops}
}

// Lock requests exclusivity in the issuer's lock group.
func Lock() Command { return LockCommand{} }

// Unlock releases exclusivity.
func Unlock() Command { return UnlockCommand{} }

// ReportError surfaces err as an OpError event for the issuer.
func ReportError(h *Handle, err error) Command {
	return ReportErrorCommand{Handle: h, Err: err}
}
