//go:build unix

// File: reactor/selector/signal_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package selector

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// ParseSignal resolves a signal name with or without the SIG prefix.
func ParseSignal(name string) (os.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return nil, fmt.Errorf("signal %q: %w", name, api.ErrInvalidArgument)
	}
	return sig, nil
}
