//go:build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>

package concurrency

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

// PinCurrentThread is not available on this platform.
func PinCurrentThread(cpuID int) error {
	return fmt.Errorf("pin cpu %d: %w", cpuID, api.ErrNotSupported)
}

// UnpinCurrentThread is a no-op on this platform.
func UnpinCurrentThread() {}
