// Package inspect provides ready-made flow inspectors: a rate-limited
// slog tracer for debugging and a Prometheus recorder feeding the metric
// registry. Install one with flow.SetInspector; combine several with
// Multi.
package inspect

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
)

func typeName(n *flow.Node) string {
	if n == nil || n.Type() == nil {
		return "unknown"
	}
	if d := n.Type().Description(); d != nil && d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("%T", n.Type())
}

// Tracer logs every runtime event through slog at debug level. Packet
// traffic dwarfs lifecycle events, so traffic hooks go through a rate
// limiter; lifecycle and connection events always log.
type Tracer struct {
	log     *slog.Logger
	limiter *rate.Limiter
}

var _ flow.Inspector = (*Tracer)(nil)

// NewTracer creates a tracer logging through log, limited to limit packet
// events per second with the given burst. A nil logger uses the process
// default; a zero limit disables packet-event limiting.
func NewTracer(log *slog.Logger, limit rate.Limit, burst int) *Tracer {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracer{log: log.With("component", "FlowTracer")}
	if limit > 0 {
		t.limiter = rate.NewLimiter(limit, burst)
	}
	return t
}

// DidOpenNode implements flow.Inspector.
func (t *Tracer) DidOpenNode(node *flow.Node, opts options.Options) {
	t.log.Debug("node opened", "node", node.ID(), "type", typeName(node))
}

// WillCloseNode implements flow.Inspector.
func (t *Tracer) WillCloseNode(node *flow.Node) {
	t.log.Debug("node closing", "node", node.ID(), "type", typeName(node))
}

// DidConnectPort implements flow.Inspector.
func (t *Tracer) DidConnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	t.log.Debug("ports connected",
		"src", src.ID(), "src_port", srcPort, "src_conn_id", srcConnID,
		"dst", dst.ID(), "dst_port", dstPort, "dst_conn_id", dstConnID)
}

// WillDisconnectPort implements flow.Inspector.
func (t *Tracer) WillDisconnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	t.log.Debug("ports disconnecting",
		"src", src.ID(), "src_port", srcPort, "src_conn_id", srcConnID,
		"dst", dst.ID(), "dst_port", dstPort, "dst_conn_id", dstConnID)
}

// WillSendPacket implements flow.Inspector.
func (t *Tracer) WillSendPacket(src *flow.Node, srcPort uint16, pkt *packet.Packet) {
	if t.limiter != nil && !t.limiter.Allow() {
		return
	}
	t.log.Debug("packet send",
		"src", src.ID(), "port", srcPort, "packet_type", pkt.Type().Name())
}

// WillDeliverPacket implements flow.Inspector.
func (t *Tracer) WillDeliverPacket(dst *flow.Node, dstPort, connID uint16, pkt *packet.Packet) {
	if t.limiter != nil && !t.limiter.Allow() {
		return
	}
	t.log.Debug("packet delivery",
		"dst", dst.ID(), "port", dstPort, "conn_id", connID,
		"packet_type", pkt.Type().Name())
}

// MetricsInspector records runtime events into a metric set.
type MetricsInspector struct {
	m *metric.Metrics
}

var _ flow.Inspector = (*MetricsInspector)(nil)

// NewMetricsInspector creates an inspector recording into m.
func NewMetricsInspector(m *metric.Metrics) *MetricsInspector {
	return &MetricsInspector{m: m}
}

// DidOpenNode implements flow.Inspector.
func (mi *MetricsInspector) DidOpenNode(node *flow.Node, opts options.Options) {
	mi.m.RecordNodeOpened(typeName(node))
}

// WillCloseNode implements flow.Inspector.
func (mi *MetricsInspector) WillCloseNode(node *flow.Node) {
	mi.m.RecordNodeClosed(typeName(node))
}

// DidConnectPort implements flow.Inspector.
func (mi *MetricsInspector) DidConnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	mi.m.RecordConnection(typeName(src), true)
}

// WillDisconnectPort implements flow.Inspector.
func (mi *MetricsInspector) WillDisconnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	mi.m.RecordConnection(typeName(src), false)
}

// WillSendPacket implements flow.Inspector.
func (mi *MetricsInspector) WillSendPacket(src *flow.Node, srcPort uint16, pkt *packet.Packet) {
	mi.m.RecordPacketSent(pkt.Type().Name())
	if srcPort == flow.PortError {
		mi.m.RecordErrorPacket(src.ID())
	}
}

// WillDeliverPacket implements flow.Inspector.
func (mi *MetricsInspector) WillDeliverPacket(dst *flow.Node, dstPort, connID uint16, pkt *packet.Packet) {
	mi.m.RecordPacketDelivered(pkt.Type().Name())
}

// Multi fans every event out to several inspectors in order.
func Multi(inspectors ...flow.Inspector) flow.Inspector {
	return multi(inspectors)
}

type multi []flow.Inspector

func (m multi) DidOpenNode(node *flow.Node, opts options.Options) {
	for _, i := range m {
		i.DidOpenNode(node, opts)
	}
}

func (m multi) WillCloseNode(node *flow.Node) {
	for _, i := range m {
		i.WillCloseNode(node)
	}
}

func (m multi) DidConnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	for _, i := range m {
		i.DidConnectPort(src, srcPort, srcConnID, dst, dstPort, dstConnID)
	}
}

func (m multi) WillDisconnectPort(src *flow.Node, srcPort, srcConnID uint16, dst *flow.Node, dstPort, dstConnID uint16) {
	for _, i := range m {
		i.WillDisconnectPort(src, srcPort, srcConnID, dst, dstPort, dstConnID)
	}
}

func (m multi) WillSendPacket(src *flow.Node, srcPort uint16, pkt *packet.Packet) {
	for _, i := range m {
		i.WillSendPacket(src, srcPort, pkt)
	}
}

func (m multi) WillDeliverPacket(dst *flow.Node, dstPort, connID uint16, pkt *packet.Packet) {
	for _, i := range m {
		i.WillDeliverPacket(dst, dstPort, connID, pkt)
	}
}
