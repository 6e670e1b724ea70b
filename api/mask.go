// File: api/mask.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventMask bit layout shared by registrations (interest ops) and
// delivered events (ready ops).

package api

import "strings"

// EventMask is a bit-set of operation categories.
type EventMask int32

const (
	OpNoop     EventMask = 0
	OpQRead    EventMask = 1 << 0 // in-process queue has a message
	OpCRead    EventMask = 1 << 1 // channel readable
	OpCWrite   EventMask = 1 << 2 // channel writable
	OpConnect  EventMask = 1 << 3 // outbound connect completed
	OpAccept   EventMask = 1 << 4 // listener has a pending connection
	OpTimer    EventMask = 1 << 5
	OpLock     EventMask = 1 << 6
	OpSignal   EventMask = 1 << 7
	OpError    EventMask = 1 << 8
	OpBlocking EventMask = 1 << 9

	// OpChannelOps groups every channel readiness flag into one category.
	OpChannelOps = OpCRead | OpCWrite | OpConnect | OpAccept

	// OpValidOps is the union of every individually valid flag.
	OpValidOps = OpQRead | OpChannelOps | OpTimer | OpLock | OpSignal | OpError | OpBlocking

	// OpUnknown is reported for interest ops of handles that are not registered.
	OpUnknown EventMask = -1
)

var opNames = []struct {
	op   EventMask
	name string
}{
	{OpQRead, "QREAD"},
	{OpCRead, "CREAD"},
	{OpCWrite, "CWRITE"},
	{OpConnect, "CONNECT"},
	{OpAccept, "ACCEPT"},
	{OpTimer, "TIMER"},
	{OpLock, "LOCK"},
	{OpSignal, "SIGNAL"},
	{OpError, "ERROR"},
	{OpBlocking, "BLOCKING"},
}

// category returns the mask of the category op belongs to.
func category(op EventMask) EventMask {
	if op&OpChannelOps != 0 && op&^OpChannelOps == 0 {
		return OpChannelOps
	}
	return op
}

// Has reports whether every bit of op is set in m, ignoring other bits.
func (m EventMask) Has(op EventMask) bool {
	return op != OpNoop && m&op == op
}

// Only reports whether op is set in m and no bit outside op's category is set.
// The channel flags share one category, so CREAD|CWRITE is Only(OpCRead).
func (m EventMask) Only(op EventMask) bool {
	return m.Has(op) && m&^category(op) == 0
}

// IsChannel reports whether any channel flag is set.
func (m EventMask) IsChannel() bool { return m&OpChannelOps != 0 }

// And returns the bitwise intersection.
func (m EventMask) And(o EventMask) EventMask { return m & o }

// Or returns the bitwise union.
func (m EventMask) Or(o EventMask) EventMask { return m | o }

// Xor returns the bitwise symmetric difference.
func (m EventMask) Xor(o EventMask) EventMask { return m ^ o }

// Equals reports bit-for-bit equality.
func (m EventMask) Equals(o EventMask) bool { return m == o }

// IsValid reports whether m has no bits outside OpValidOps.
func (m EventMask) IsValid() bool { return m >= 0 && m&^OpValidOps == 0 }

// Contains reports whether actual carries every bit of required.
func Contains(required, actual EventMask) bool {
	return actual&required == required
}

func (m EventMask) String() string {
	if m == OpNoop {
		return "NOOP"
	}
	if !m.IsValid() {
		return "INVALID"
	}
	var parts []string
	for _, n := range opNames {
		if m&n.op != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
