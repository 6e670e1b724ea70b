// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives of the reactor: the worker Executor handlers and
// blocking tasks run on, a single-producer/single-consumer Ring for source
// goroutines feeding the dispatch goroutine, and OS thread pinning for the
// dispatch goroutine.
package concurrency
