package metric_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/metric"
)

func gatheredNames(t *testing.T, r *metric.MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestCoreMetricsRegistered(t *testing.T) {
	r := metric.NewMetricsRegistry()
	core := r.CoreMetrics()

	core.RecordNodeOpened("timer")
	core.RecordPacketSent("boolean")
	core.RecordPacketDelivered("boolean")
	core.RecordErrorPacket("n1")
	core.RecordDispatchDuration("boolean", 5*time.Millisecond)
	core.RecordConnection("static-flow", true)
	core.TimersActive.Inc()

	names := gatheredNames(t, r)
	assert.True(t, names["flowkit_nodes_open"])
	assert.True(t, names["flowkit_packets_sent_total"])
	assert.True(t, names["flowkit_packets_delivered_total"])
	assert.True(t, names["flowkit_packets_errors_total"])
	assert.True(t, names["flowkit_dispatch_duration_seconds"])
	assert.True(t, names["flowkit_connections_active"])
	assert.True(t, names["flowkit_mainloop_timers_active"])
	assert.True(t, names["go_goroutines"], "Go collector present")
}

func TestNodeGaugeTracksOpenAndClose(t *testing.T) {
	r := metric.NewMetricsRegistry()
	core := r.CoreMetrics()

	core.RecordNodeOpened("gate")
	core.RecordNodeOpened("gate")
	core.RecordNodeClosed("gate")

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "flowkit_nodes_open" {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, 1.0, f.GetMetric()[0].GetGauge().GetValue())
		return
	}
	t.Fatal("flowkit_nodes_open not gathered")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := metric.NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_events_total",
		Help: "test counter",
	})
	require.NoError(t, r.RegisterCounter("custom", "events", counter))

	other := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_other_total",
		Help: "test counter",
	})
	err := r.RegisterCounter("custom", "events", other)
	assert.True(t, pkgerrors.IsAlreadyExists(err))
}

func TestUnregister(t *testing.T) {
	r := metric.NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "custom_level",
		Help: "test gauge",
	})
	require.NoError(t, r.RegisterGauge("custom", "level", gauge))

	assert.True(t, r.Unregister("custom", "level"))
	assert.False(t, r.Unregister("custom", "level"))

	// Re-registration succeeds after removal.
	require.NoError(t, r.RegisterGauge("custom", "level", gauge))
}
