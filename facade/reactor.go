// File: facade/reactor.go
// Unified facade layer for hioload-reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine assembles a reactor with every built-in selector, prometheus
// metrics and the control surface behind one constructor.

package facade

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-reactor/adapters"
	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/reactor"
	"github.com/momentics/hioload-reactor/reactor/lock"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

// Config holds parameters immutable per run. Only the dispatch policy can be
// changed afterwards, through the Control interface.
type Config struct {
	Reactor          reactor.Config
	EnableMetrics    bool                  // Feed prometheus collectors from the dispatch loop
	MetricsNamespace string                // Prefix of every metric name
	Registerer       prometheus.Registerer // Nil registers on a private registry
	EnableDebug      bool                  // Register reactor debug probes
	EnableChannels   bool                  // Start the epoll channel selector where supported
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Reactor:          reactor.DefaultConfig(),
		EnableMetrics:    true,
		MetricsNamespace: "hioload",
		EnableDebug:      true,
		EnableChannels:   true,
	}
}

// Engine is the main facade type.
type Engine struct {
	cfg      *Config
	r        *reactor.Reactor
	pool     *adapters.ExecutorAdapter
	control  *adapters.ControlAdapter
	metrics  *control.Metrics
	registry *prometheus.Registry

	blocking *selector.BlockingSelector
	timers   *selector.TimerSelector
	queues   *selector.QueueSelector
	signals  *selector.SignalSelector
	channels *selector.ChannelSelector
}

// New constructs and starts an Engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{cfg: cfg}
	rcfg := cfg.Reactor
	log := rcfg.Logger.WithName("facade")

	if cfg.EnableMetrics {
		e.metrics = control.NewMetrics(cfg.MetricsNamespace)
		reg := cfg.Registerer
		if reg == nil {
			e.registry = prometheus.NewRegistry()
			reg = e.registry
		}
		if err := e.metrics.Register(reg); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		rcfg.Observer = e.metrics
	}

	e.r = reactor.New(rcfg)
	e.pool = adapters.NewExecutorAdapter(e.r.BlockingPool(), rcfg.Logger)
	e.blocking = selector.NewBlockingSelector(e.r, e.pool, rcfg.Logger)
	e.timers = selector.NewTimerSelector(e.r, rcfg.Logger)
	e.queues = selector.NewQueueSelector(e.r, rcfg.Logger)
	e.signals = selector.NewSignalSelector(e.r, rcfg.Logger)
	sels := []api.SpecificSelector{e.blocking, e.timers, e.queues, e.signals}

	if cfg.EnableChannels {
		ch, err := selector.NewChannelSelector(e.r, rcfg.Logger)
		switch {
		case err == nil:
			e.channels = ch
			sels = append(sels, ch)
		case errors.Is(err, api.ErrNotSupported):
			log.Info("channel selector unavailable", "reason", err.Error())
		default:
			_ = e.r.Finalize()
			return nil, err
		}
	}
	for _, sel := range sels {
		if err := e.r.AddSelector(sel); err != nil {
			_ = e.r.Finalize()
			return nil, err
		}
	}

	e.control = adapters.NewControlAdapter()
	control.BindDispatchPolicy(e.control.Store(), e.r, rcfg.Logger)
	if cfg.EnableDebug {
		control.RegisterReactorProbes(e.control.Probes(), e.r)
		e.control.RegisterDebugProbe("blocking.executor", func() any { return e.pool.Stats() })
	}
	log.Info("engine started", "workers", rcfg.Workers, "blockingWorkers", rcfg.BlockingWorkers,
		"dispatch", e.r.DispatchPolicy(), "channels", e.channels != nil)
	return e, nil
}

// Reactor returns the underlying reactor.
func (e *Engine) Reactor() *reactor.Reactor { return e.r }

// Control returns the config and debug surface.
func (e *Engine) Control() api.Control { return e.control }

// Gatherer returns the private metrics registry, nil when metrics are
// disabled or registered elsewhere.
func (e *Engine) Gatherer() prometheus.Gatherer {
	if e.registry == nil {
		return nil
	}
	return e.registry
}

// ChannelsSupported reports whether the channel selector is running.
func (e *Engine) ChannelsSupported() bool { return e.channels != nil }

// Register binds a source to handler; see reactor.Reactor.Register.
func (e *Engine) Register(source any, handler api.Handler, ops api.EventMask) (*api.Handle, error) {
	return e.r.Register(source, handler, ops)
}

// NewLock creates a lock group over members.
func (e *Engine) NewLock(members ...api.Handler) (*lock.LockHandlerGroup, []*api.Handle, error) {
	return e.r.NewLock(members...)
}

// BlockingStats returns the blocking pool counters.
func (e *Engine) BlockingStats() adapters.ExecutorStats { return e.pool.Stats() }

// Shutdown stops the reactor.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.r.Shutdown(ctx)
}

// Run blocks until ctx is canceled, then shuts down.
func (e *Engine) Run(ctx context.Context) error {
	return e.r.Run(ctx)
}
