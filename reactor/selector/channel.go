// File: reactor/selector/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package selector

// Channel is the registration source of a file descriptor. The descriptor
// should be non-blocking; the selector never reads or writes it.
type Channel struct {
	FD int
}
