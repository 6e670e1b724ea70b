// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
)

// ControlAdapter joins a config store and a probe registry.
type ControlAdapter struct {
	config *control.ConfigStore
	debug  *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter returns an adapter with platform probes registered.
func NewControlAdapter() *ControlAdapter {
	adapter := &ControlAdapter{
		config: control.NewConfigStore(),
		debug:  control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

// Store returns the underlying config store.
func (c *ControlAdapter) Store() *control.ConfigStore { return c.config }

// Probes returns the underlying probe registry.
func (c *ControlAdapter) Probes() *control.DebugProbes { return c.debug }

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	c.config.SetConfig(cfg)
	return nil
}

func (c *ControlAdapter) Stats() map[string]any {
	combined := c.config.GetSnapshot()
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func(snapshot map[string]any)) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
