//go:build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
//
// Pins the calling goroutine's OS thread to one CPU via sched_setaffinity.

package concurrency

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the goroutine to its OS thread and restricts that
// thread to cpuID. The lock is kept until UnpinCurrentThread.
func PinCurrentThread(cpuID int) error {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return fmt.Errorf("pin cpu %d: out of range", cpuID)
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

// UnpinCurrentThread releases the OS thread. Affinity is left as is; the
// runtime retires locked threads that exit their goroutine.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
