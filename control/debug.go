// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"runtime"
	"sync"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Debug = (*DebugProbes)(nil)

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes. Probes run without the registry
// lock held.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	probes := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		probes[k] = fn
	}
	dp.mu.RUnlock()
	out := make(map[string]any, len(probes))
	for k, fn := range probes {
		out[k] = fn()
	}
	return out
}

// RegisterReactorProbes exposes the reactor snapshot, lifecycle state and
// dispatch policy.
func RegisterReactorProbes(dp *DebugProbes, r *reactor.Reactor) {
	dp.RegisterProbe("reactor.stats", func() any { return r.Stats() })
	dp.RegisterProbe("reactor.state", func() any { return r.State().String() })
	dp.RegisterProbe("reactor.dispatch", func() any { return r.DispatchPolicy().String() })
	dp.RegisterProbe("runtime.goroutines", func() any { return runtime.NumGoroutine() })
}
