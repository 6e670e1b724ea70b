//go:build !unix

// File: reactor/selector/signal_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package selector

import (
	"fmt"
	"os"
	"strings"

	"github.com/momentics/hioload-reactor/api"
)

// ParseSignal only knows the interrupt signal outside unix.
func ParseSignal(name string) (os.Signal, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SIGINT", "INT", "INTERRUPT":
		return os.Interrupt, nil
	}
	return nil, fmt.Errorf("signal %q: %w", name, api.ErrNotSupported)
}
