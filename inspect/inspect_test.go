package inspect_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/inspect"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/packet"
)

type plainType struct {
	flow.TypeBase
}

func newNode(t *testing.T, id string) *flow.Node {
	t.Helper()
	node, err := flow.NewNode(nil, id, &plainType{}, nil)
	require.NoError(t, err)
	t.Cleanup(node.Del)
	return node
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestTracerLogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	tracer := inspect.NewTracer(debugLogger(&buf), 0, 0)

	node := newNode(t, "n1")
	tracer.DidOpenNode(node, nil)
	tracer.WillCloseNode(node)

	out := buf.String()
	assert.Contains(t, out, "node opened")
	assert.Contains(t, out, "node closing")
	assert.Contains(t, out, "n1")
}

func TestTracerRateLimitsPacketEvents(t *testing.T) {
	var buf bytes.Buffer
	tracer := inspect.NewTracer(debugLogger(&buf), 1, 1)

	node := newNode(t, "n1")
	pkt := packet.NewBoolean(true)
	defer pkt.Del()

	tracer.WillSendPacket(node, 0, pkt)
	tracer.WillSendPacket(node, 0, pkt)
	tracer.WillSendPacket(node, 0, pkt)

	assert.Equal(t, 1, strings.Count(buf.String(), "packet send"))

	// Lifecycle events are never limited.
	tracer.DidOpenNode(node, nil)
	assert.Contains(t, buf.String(), "node opened")
}

func TestMetricsInspectorRecords(t *testing.T) {
	m := metric.NewMetrics()
	mi := inspect.NewMetricsInspector(m)

	src := newNode(t, "src")
	dst := newNode(t, "dst")
	pkt := packet.NewBoolean(true)
	defer pkt.Del()

	mi.DidOpenNode(src, nil)
	mi.DidConnectPort(src, 0, 0, dst, 0, 0)
	mi.WillSendPacket(src, 0, pkt)
	mi.WillSendPacket(src, flow.PortError, pkt)
	mi.WillDeliverPacket(dst, 0, 0, pkt)
	mi.WillDisconnectPort(src, 0, 0, dst, 0, 0)
	mi.WillCloseNode(src)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsSent.WithLabelValues("boolean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsDelivered.WithLabelValues("boolean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorPackets.WithLabelValues("src")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionsActive.WithLabelValues("*inspect_test.plainType")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NodesOpen.WithLabelValues("*inspect_test.plainType")))
}

func TestMultiFansOut(t *testing.T) {
	m := metric.NewMetrics()
	var buf bytes.Buffer
	combined := inspect.Multi(
		inspect.NewTracer(debugLogger(&buf), 0, 0),
		inspect.NewMetricsInspector(m),
	)

	node := newNode(t, "n1")
	combined.DidOpenNode(node, nil)

	assert.Contains(t, buf.String(), "node opened")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesOpen.WithLabelValues("*inspect_test.plainType")))
}

func TestInstallAsProcessInspector(t *testing.T) {
	m := metric.NewMetrics()
	flow.SetInspector(inspect.NewMetricsInspector(m))
	defer flow.SetInspector(nil)

	node, err := flow.NewNode(nil, "observed", &plainType{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesOpened.WithLabelValues("*inspect_test.plainType")))

	node.Del()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesClosed.WithLabelValues("*inspect_test.plainType")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NodesOpen.WithLabelValues("*inspect_test.plainType")))
}
