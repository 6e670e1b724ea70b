// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors fed by the reactor dispatch loop.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor"
)

const subsystem = "reactor"

// Metrics implements reactor.Observer on prometheus collectors.
type Metrics struct {
	dispatched     *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	held           prometheus.Counter
	commands       *prometheus.CounterVec
	handlerErrors  prometheus.Counter
	criticalErrors prometheus.Counter
	inflight       prometheus.Gauge
	readyDepth     prometheus.Gauge
}

var _ reactor.Observer = (*Metrics)(nil)

// NewMetrics builds unregistered collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_dispatched_total",
			Help: "Events handed to a handler, by ready ops.",
		}, []string{"ops"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_dropped_total",
			Help: "Events discarded before dispatch, by reason.",
		}, []string{"reason"}),
		held: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_held_total",
			Help: "Events parked while a lock round was in progress.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "commands_total",
			Help: "Deferred commands applied, by kind and result.",
		}, []string{"kind", "result"}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_errors_total",
			Help: "Handler failures routed to error handles.",
		}),
		criticalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "critical_errors_total",
			Help: "Errors that could not be routed to a handler.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handlers_in_flight",
			Help: "Handler invocations currently running.",
		}),
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "ready_queue_depth",
			Help: "Items waiting in the ready queue.",
		}),
	}
}

// Collectors returns every collector of m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.dispatched, m.dropped, m.held, m.commands,
		m.handlerErrors, m.criticalErrors, m.inflight, m.readyDepth,
	}
}

// Register adds every collector to reg. On failure the collectors added
// so far are unregistered again.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var done []prometheus.Collector
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			for _, d := range done {
				reg.Unregister(d)
			}
			return err
		}
		done = append(done, c)
	}
	return nil
}

func (m *Metrics) EventDispatched(ops api.EventMask) { m.dispatched.WithLabelValues(ops.String()).Inc() }

func (m *Metrics) EventDropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }

func (m *Metrics) EventHeld() { m.held.Inc() }

func (m *Metrics) CommandApplied(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) HandlerFailed() { m.handlerErrors.Inc() }

func (m *Metrics) CriticalError() { m.criticalErrors.Inc() }

func (m *Metrics) InFlight(delta int) { m.inflight.Add(float64(delta)) }

func (m *Metrics) ReadyQueueDepth(n int) { m.readyDepth.Set(float64(n)) }
