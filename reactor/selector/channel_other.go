//go:build !linux

// File: reactor/selector/channel_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package selector

import (
	"fmt"
	"runtime"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// ChannelSelector is only implemented on Linux.
type ChannelSelector struct{ api.SpecificSelector }

// NewChannelSelector reports api.ErrNotSupported.
func NewChannelSelector(api.Composite, logr.Logger) (*ChannelSelector, error) {
	return nil, fmt.Errorf("channel selector on %s: %w", runtime.GOOS, api.ErrNotSupported)
}
