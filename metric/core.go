package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the runtime-level metrics shared by every flow in the
// process. Node-type packages register their own metrics through the
// MetricsRegistrar interface instead of extending this set.
type Metrics struct {
	// Node lifecycle
	NodesOpen   *prometheus.GaugeVec
	NodesOpened *prometheus.CounterVec
	NodesClosed *prometheus.CounterVec

	// Packet traffic
	PacketsSent      *prometheus.CounterVec
	PacketsDelivered *prometheus.CounterVec
	ErrorPackets     *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Topology
	ConnectionsActive *prometheus.GaugeVec

	// Main loop
	TimersActive  prometheus.Gauge
	IdlersActive  prometheus.Gauge
	WorkersActive prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every runtime metric.
func NewMetrics() *Metrics {
	return &Metrics{
		NodesOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "nodes",
				Name:      "open",
				Help:      "Number of currently open nodes",
			},
			[]string{"type"},
		),

		NodesOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "nodes",
				Name:      "opened_total",
				Help:      "Total number of nodes opened",
			},
			[]string{"type"},
		),

		NodesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "nodes",
				Name:      "closed_total",
				Help:      "Total number of nodes closed",
			},
			[]string{"type"},
		),

		PacketsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "packets",
				Name:      "sent_total",
				Help:      "Total number of packets emitted from output ports",
			},
			[]string{"packet_type"},
		),

		PacketsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "packets",
				Name:      "delivered_total",
				Help:      "Total number of packet deliveries to input ports",
			},
			[]string{"packet_type"},
		),

		ErrorPackets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "packets",
				Name:      "errors_total",
				Help:      "Total number of error packets emitted",
			},
			[]string{"node"},
		),

		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowkit",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time spent delivering one packet to all destinations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"packet_type"},
		),

		ConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "connections",
				Name:      "active",
				Help:      "Number of connected port pairs",
			},
			[]string{"type"},
		),

		TimersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "mainloop",
				Name:      "timers_active",
				Help:      "Number of armed main-loop timers",
			},
		),

		IdlersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "mainloop",
				Name:      "idlers_active",
				Help:      "Number of pending main-loop idle tasks",
			},
		),

		WorkersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "mainloop",
				Name:      "workers_active",
				Help:      "Number of running cooperative workers",
			},
		),
	}
}

// RecordNodeOpened tracks a successful node open.
func (c *Metrics) RecordNodeOpened(typeName string) {
	c.NodesOpened.WithLabelValues(typeName).Inc()
	c.NodesOpen.WithLabelValues(typeName).Inc()
}

// RecordNodeClosed tracks a node finalization.
func (c *Metrics) RecordNodeClosed(typeName string) {
	c.NodesClosed.WithLabelValues(typeName).Inc()
	c.NodesOpen.WithLabelValues(typeName).Dec()
}

// RecordPacketSent increments the emission counter for a packet type.
func (c *Metrics) RecordPacketSent(packetType string) {
	c.PacketsSent.WithLabelValues(packetType).Inc()
}

// RecordPacketDelivered increments the delivery counter for a packet type.
func (c *Metrics) RecordPacketDelivered(packetType string) {
	c.PacketsDelivered.WithLabelValues(packetType).Inc()
}

// RecordErrorPacket increments the error packet counter for a node.
func (c *Metrics) RecordErrorPacket(nodeID string) {
	c.ErrorPackets.WithLabelValues(nodeID).Inc()
}

// RecordDispatchDuration records the time one send took to fan out.
func (c *Metrics) RecordDispatchDuration(packetType string, duration time.Duration) {
	c.DispatchDuration.WithLabelValues(packetType).Observe(duration.Seconds())
}

// RecordConnection tracks one port pair connecting or disconnecting.
func (c *Metrics) RecordConnection(typeName string, connected bool) {
	g := c.ConnectionsActive.WithLabelValues(typeName)
	if connected {
		g.Inc()
	} else {
		g.Dec()
	}
}
