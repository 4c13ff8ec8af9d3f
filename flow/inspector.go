package flow

import (
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
)

// Inspector observes runtime events across every flow in the process: node
// lifecycle, connection lifecycle, and packet traffic. Hooks run inline on
// the main-loop thread and must not mutate the flow or retain the packet
// beyond the call.
type Inspector interface {
	DidOpenNode(node *Node, opts options.Options)
	WillCloseNode(node *Node)

	DidConnectPort(src *Node, srcPort, srcConnID uint16, dst *Node, dstPort, dstConnID uint16)
	WillDisconnectPort(src *Node, srcPort, srcConnID uint16, dst *Node, dstPort, dstConnID uint16)

	WillSendPacket(src *Node, srcPort uint16, pkt *packet.Packet)
	WillDeliverPacket(dst *Node, dstPort, connID uint16, pkt *packet.Packet)
}

// inspector is the process-wide observer. Written from the main-loop thread
// only.
var inspector Inspector

// SetInspector installs the process-wide inspector, replacing any previous
// one. Pass nil to disable inspection.
func SetInspector(i Inspector) {
	inspector = i
}

// InspectConnection reports an established connection to the inspector.
// Containers call it once per connection after both port Connect hooks ran.
func InspectConnection(src *Node, srcPort, srcConnID uint16, dst *Node, dstPort, dstConnID uint16) {
	if inspector != nil {
		inspector.DidConnectPort(src, srcPort, srcConnID, dst, dstPort, dstConnID)
	}
}

// InspectDisconnection reports a connection about to be torn down.
func InspectDisconnection(src *Node, srcPort, srcConnID uint16, dst *Node, dstPort, dstConnID uint16) {
	if inspector != nil {
		inspector.WillDisconnectPort(src, srcPort, srcConnID, dst, dstPort, dstConnID)
	}
}

func inspectDidOpenNode(node *Node, opts options.Options) {
	if inspector != nil {
		inspector.DidOpenNode(node, opts)
	}
}

func inspectWillCloseNode(node *Node) {
	if inspector != nil {
		inspector.WillCloseNode(node)
	}
}

func inspectWillSendPacket(src *Node, srcPort uint16, pkt *packet.Packet) {
	if inspector != nil {
		inspector.WillSendPacket(src, srcPort, pkt)
	}
}

func inspectWillDeliverPacket(dst *Node, dstPort, connID uint16, pkt *packet.Packet) {
	if inspector != nil {
		inspector.WillDeliverPacket(dst, dstPort, connID, pkt)
	}
}
