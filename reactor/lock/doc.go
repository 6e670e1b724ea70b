// Package lock serializes a group of handlers against an exclusive section
// without blocking the dispatch goroutine.
//
// OpenGroup, PendingGroup and LockGroup are plain bookkeeping structures.
// LockHandlerGroup holds per-member state and the round latch; Selector
// drives the protocol and plugs into the reactor as the LOCK event source.
// Nothing in this package is safe for concurrent use: the reactor calls it
// from its dispatch goroutine only.
package lock
