// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control manages dynamic config and runtime debug state of a reactor.
type Control interface {
	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	// Stats merges config values with the output of every debug probe,
	// the latter prefixed with "debug.".
	Stats() map[string]any
	OnReload(fn func(snapshot map[string]any))
	RegisterDebugProbe(name string, fn func() any)
}
