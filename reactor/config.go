// File: reactor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor configuration and the dispatch policy knob.

package reactor

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// DispatchPolicy decides where handler invocations run.
type DispatchPolicy int32

const (
	// DispatchAuto runs handlers implementing api.LongRunning on the
	// worker pool and everything else inline.
	DispatchAuto DispatchPolicy = iota
	// DispatchInline runs every handler on the dispatch goroutine.
	DispatchInline
	// DispatchWorkers runs every handler on the worker pool.
	DispatchWorkers
)

func (p DispatchPolicy) String() string {
	switch p {
	case DispatchAuto:
		return "auto"
	case DispatchInline:
		return "inline"
	case DispatchWorkers:
		return "workers"
	default:
		return fmt.Sprintf("DispatchPolicy(%d)", int32(p))
	}
}

// ParseDispatchPolicy accepts auto, inline or workers.
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return DispatchAuto, nil
	case "inline":
		return DispatchInline, nil
	case "workers":
		return DispatchWorkers, nil
	}
	return DispatchAuto, fmt.Errorf("dispatch policy %q: %w", s, api.ErrInvalidArgument)
}

// Config holds parameters fixed for the lifetime of a Reactor, except the
// dispatch policy which can be swapped with SetDispatchPolicy.
type Config struct {
	Workers              int            // Handler worker goroutines
	BlockingWorkers      int            // Blocking task worker goroutines
	Dispatch             DispatchPolicy // Where handlers run
	DispatchCPU          int            // CPU to pin the dispatch goroutine to, -1 disables
	ShutdownFirstTimeout time.Duration  // Graceful drain bound
	ShutdownLastTimeout  time.Duration  // Extra bound before forcing termination
	Logger               logr.Logger    // Defaults to logr.Discard()
	Observer             Observer       // Metrics sink, nil disables
	OnCriticalError      func(error)    // Called for every critical error
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Workers:              4,               // Four handler workers
		BlockingWorkers:      8,               // Blocking tasks mostly wait
		Dispatch:             DispatchAuto,    // Long-running handlers go to workers
		DispatchCPU:          -1,              // No pinning
		ShutdownFirstTimeout: 5 * time.Second, // Graceful phase
		ShutdownLastTimeout:  time.Second,     // Forced phase
		Logger:               logr.Discard(),  // Silent unless configured
	}
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BlockingWorkers <= 0 {
		c.BlockingWorkers = 1
	}
	if c.ShutdownFirstTimeout <= 0 {
		c.ShutdownFirstTimeout = time.Second
	}
	if c.ShutdownLastTimeout < 0 {
		c.ShutdownLastTimeout = 0
	}
	if c.Logger.GetSink() == nil {
		c.Logger = logr.Discard()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
}

// Observer receives dispatch-loop telemetry. Implementations must be safe
// for concurrent use.
type Observer interface {
	EventDispatched(ops api.EventMask)
	EventDropped(reason string)
	EventHeld()
	CommandApplied(kind string, err error)
	HandlerFailed()
	CriticalError()
	InFlight(delta int)
	ReadyQueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) EventDispatched(api.EventMask) {}
func (nopObserver) EventDropped(string)           {}
func (nopObserver) EventHeld()                    {}
func (nopObserver) CommandApplied(string, error)  {}
func (nopObserver) HandlerFailed()                {}
func (nopObserver) CriticalError()                {}
func (nopObserver) InFlight(int)                  {}
func (nopObserver) ReadyQueueDepth(int)           {}
