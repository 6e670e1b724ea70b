// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload propagation.

package control

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/reactor"
)

// KeyDispatchPolicy holds a reactor.DispatchPolicy or its name.
const KeyDispatchPolicy = "reactor.dispatch"

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func(snapshot map[string]any)
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{config: make(map[string]any)}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.snapshotLocked()
}

func (cs *ConfigStore) snapshotLocked() map[string]any {
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Get returns one value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig merges new values and notifies listeners with the merged
// snapshot. Listeners run on the caller's goroutine, in registration order.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	snap := cs.snapshotLocked()
	listeners := append(([]func(map[string]any))(nil), cs.listeners...)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(snapshot map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// PolicyTarget is what BindDispatchPolicy drives; *reactor.Reactor
// satisfies it.
type PolicyTarget interface {
	SetDispatchPolicy(p reactor.DispatchPolicy)
	DispatchPolicy() reactor.DispatchPolicy
}

// BindDispatchPolicy publishes the current policy of target under
// KeyDispatchPolicy and applies every later change to it. Invalid values are
// logged and ignored.
func BindDispatchPolicy(cs *ConfigStore, target PolicyTarget, log logr.Logger) {
	log = log.WithName("control")
	cs.OnReload(func(snap map[string]any) {
		v, ok := snap[KeyDispatchPolicy]
		if !ok {
			return
		}
		p, err := toPolicy(v)
		if err != nil {
			log.Error(err, "ignoring dispatch policy")
			return
		}
		if p != target.DispatchPolicy() {
			target.SetDispatchPolicy(p)
		}
	})
	cs.SetConfig(map[string]any{KeyDispatchPolicy: target.DispatchPolicy().String()})
}

func toPolicy(v any) (reactor.DispatchPolicy, error) {
	switch x := v.(type) {
	case reactor.DispatchPolicy:
		return x, nil
	case string:
		return reactor.ParseDispatchPolicy(x)
	case fmt.Stringer:
		return reactor.ParseDispatchPolicy(x.String())
	}
	return reactor.DispatchAuto, fmt.Errorf("dispatch policy of type %T", v)
}
