// File: reactor/selector/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package selector provides the event sources plugged into the reactor:
// blocking tasks, timers, in-process message queues, OS signals, error
// routing and (on Linux) epoll channels. Every selector satisfies
// api.SpecificSelector; all methods except the documented source-side
// entry points run on the reactor's dispatch goroutine.
package selector
