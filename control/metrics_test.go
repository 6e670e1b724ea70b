package control

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test")
	require.NoError(t, m.Register(reg))

	m.EventDispatched(api.OpQRead)
	m.EventDispatched(api.OpQRead)
	m.EventDropped("unregistered")
	m.EventHeld()
	m.CommandApplied("lock", nil)
	m.CommandApplied("unlock", errors.New("not held"))
	m.HandlerFailed()
	m.CriticalError()
	m.InFlight(1)
	m.InFlight(1)
	m.InFlight(-1)
	m.ReadyQueueDepth(7)

	mfs := gather(t, reg)
	dispatched := mfs["test_reactor_events_dispatched_total"]
	require.NotNil(t, dispatched)
	require.Len(t, dispatched.GetMetric(), 1)
	assert.Equal(t, 2.0, dispatched.GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, api.OpQRead.String(), dispatched.GetMetric()[0].GetLabel()[0].GetValue())

	commands := mfs["test_reactor_commands_total"]
	require.NotNil(t, commands)
	assert.Len(t, commands.GetMetric(), 2)

	assert.Equal(t, 1.0, mfs["test_reactor_events_held_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, mfs["test_reactor_critical_errors_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, mfs["test_reactor_handlers_in_flight"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 7.0, mfs["test_reactor_ready_queue_depth"].GetMetric()[0].GetGauge().GetValue())
}

func TestMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("dup")
	require.NoError(t, m.Register(reg))
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, m.Register(reg), &are)
}

func TestMetricsRegisterRollsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	clash := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "part", Subsystem: subsystem, Name: "ready_queue_depth", Help: "taken",
	})
	require.NoError(t, reg.Register(clash))

	m := NewMetrics("part")
	require.Error(t, m.Register(reg))

	require.True(t, reg.Unregister(clash))
	assert.NoError(t, m.Register(reg), "collectors of the failed attempt must be gone")
}
