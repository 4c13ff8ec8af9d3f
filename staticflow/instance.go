package staticflow

import (
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
)

// flowData is the per-instance state of a static flow: its children indexed
// by spec position and the packets emitted before the topology finished
// wiring.
type flowData struct {
	nodes []*flow.Node
	added uint16

	// running is set once all children opened and all connections were
	// established. Packets sent earlier (typically from child Open
	// hooks) are held back and flushed right after.
	running bool
	pending []pendingPacket
}

type pendingPacket struct {
	srcIdx  uint16
	srcPort uint16
	pkt     *packet.Packet
}

// Open implements flow.NodeType: children are instantiated in spec order,
// then every connection is established. A failure rolls everything back in
// reverse and the instance never comes alive.
func (t *Type) Open(node *flow.Node, opts options.Options) (flow.NodeData, error) {
	fd := &flowData{nodes: make([]*flow.Node, len(t.nodeSpecs))}
	t.instances[node] = fd

	for i := range t.nodeSpecs {
		spec := &t.nodeSpecs[i]
		childOpts := spec.Opts
		if t.childOptsSet != nil {
			derived, err := t.childOptsSet(uint16(i), opts, childOpts)
			if err != nil {
				t.abortOpen(node, fd, i)
				return nil, errors.Wrapf(err, "StaticFlow", "Open", "child %q options", spec.Name)
			}
			childOpts = derived
		}

		child, err := flow.NewNode(node, spec.Name, spec.Type, childOpts)
		if err != nil {
			t.abortOpen(node, fd, i)
			return nil, errors.Wrapf(err, "StaticFlow", "Open", "child %q open", spec.Name)
		}
		fd.nodes[i] = child
	}

	if err := t.connectNodes(fd); err != nil {
		t.abortOpen(node, fd, len(t.nodeSpecs))
		return nil, err
	}

	fd.running = true
	t.flushPending(node, fd)
	return fd, nil
}

func (t *Type) abortOpen(node *flow.Node, fd *flowData, created int) {
	for i := created - 1; i >= 0; i-- {
		if fd.nodes[i] != nil {
			fd.nodes[i].Del()
		}
	}
	t.dropPending(fd)
	delete(t.instances, node)
}

// Close implements flow.NodeType: connections are torn down first, then
// children are finalized in reverse creation order.
func (t *Type) Close(node *flow.Node, data flow.NodeData) {
	fd, ok := data.(*flowData)
	if !ok {
		return
	}

	fd.running = false
	t.dropPending(fd)
	t.teardownConnections(fd)

	for i := len(fd.nodes) - 1; i >= 0; i-- {
		if fd.nodes[i] != nil {
			fd.nodes[i].Del()
		}
	}

	t.dropPending(fd)
	delete(t.instances, node)

	if t.ownedByNode {
		t.DestroyType()
	}
}

// Add implements flow.ContainerType. The static topology is closed: only
// the children created by Open itself may register, and they receive their
// spec index as parent data.
func (t *Type) Add(parent, child *flow.Node) error {
	fd := t.instances[parent]
	if fd == nil {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Add",
			"node is not a live instance of this flow")
	}
	if fd.running || int(fd.added) >= len(fd.nodes) {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Add",
			"static flow does not accept extra children")
	}

	child.SetParentData(fd.added)
	fd.added++
	return nil
}

// Remove implements flow.ContainerType.
func (t *Type) Remove(parent, child *flow.Node) {
	fd := t.instances[parent]
	if fd == nil {
		return
	}
	if idx, ok := child.ParentData().(uint16); ok && int(idx) < len(fd.nodes) {
		fd.nodes[idx] = nil
	}
}

// Send implements flow.ContainerType. Dispatch is synchronous: every
// destination Process handler has run by the time Send returns. Packets
// emitted before the flow finished wiring are queued and flushed once it
// does.
func (t *Type) Send(parent, src *flow.Node, srcPort uint16, pkt *packet.Packet) error {
	fd := t.instances[parent]
	if fd == nil {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Send",
			"node is not a live instance of this flow")
	}

	idx, ok := src.ParentData().(uint16)
	if !ok || int(idx) >= len(fd.nodes) {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Send",
			"source is not a child of this flow")
	}
	if srcPort != flow.PortError && srcPort >= t.nodeInfos[idx].portsOut {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "Send",
			"source port index")
	}

	if !fd.running {
		fd.pending = append(fd.pending, pendingPacket{srcIdx: idx, srcPort: srcPort, pkt: pkt})
		return nil
	}

	t.dispatch(parent, fd, idx, srcPort, pkt)
	return nil
}

// dispatch fans one packet out over the connection table. The sorted table
// lets it start at the source's first connection and stop at the first
// entry for another source. Each delivery leg gets its own reference; the
// caller's reference is either passed upward through an exported port or
// released here.
func (t *Type) dispatch(flowNode *flow.Node, fd *flowData, srcIdx, srcPort uint16, pkt *packet.Packet) {
	dispatched := false

	for i := int(t.nodeInfos[srcIdx].firstConnIdx); i < len(t.connSpecs); i++ {
		spec := &t.connSpecs[i]
		if spec.Src != srcIdx {
			break
		}
		if spec.SrcPort != srcPort {
			continue
		}

		dst := fd.nodes[spec.Dst]
		if dst == nil {
			continue
		}
		if err := flow.DeliverPacket(dst, spec.DstPort, t.connInfos[i].inConnID, pkt.Ref()); err != nil {
			t.log.Warn("packet processing failed",
				"flow", flowNode.ID(), "dst", dst.ID(), "port", spec.DstPort, "error", err)
		}
		dispatched = true
	}

	for u := range t.exportedOut {
		pspec := &t.exportedOut[u]
		if pspec.Node == srcIdx && pspec.Port == srcPort {
			// Ownership passes upward; a delivery failure surfaces on
			// the enclosing flow's send path.
			_ = flowNode.SendPacket(uint16(u), pkt)
			return
		}
	}

	if !dispatched && pkt.Type() == packet.TypeError {
		if code, msg, err := pkt.GetError(); err == nil {
			t.log.Warn("unhandled error packet",
				"flow", flowNode.ID(), "code", code, "message", msg)
		}
	}
	pkt.Del()
}

func (t *Type) flushPending(node *flow.Node, fd *flowData) {
	// Dispatch may queue more packets while the flow was still marked
	// not running; loop until drained.
	for len(fd.pending) > 0 {
		batch := fd.pending
		fd.pending = nil
		for _, dp := range batch {
			t.dispatch(node, fd, dp.srcIdx, dp.srcPort, dp.pkt)
		}
	}
}

func (t *Type) dropPending(fd *flowData) {
	for _, dp := range fd.pending {
		dp.pkt.Del()
	}
	fd.pending = nil
}

func (t *Type) connectNodes(fd *flowData) error {
	for i := range t.connSpecs {
		spec := &t.connSpecs[i]
		ci := &t.connInfos[i]
		src := fd.nodes[spec.Src]
		dst := fd.nodes[spec.Dst]

		srcPort := flow.TypePortOut(src.Type(), spec.SrcPort)
		dstPort := dst.Type().PortIn(spec.DstPort)

		if srcPort.PacketType == nil || dstPort.PacketType == nil {
			return t.unwindConnections(fd, i-1,
				errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Open",
					"connection port without packet type"))
		}
		if !packet.Match(srcPort.PacketType, dstPort.PacketType) {
			t.log.Warn("connection packet types do not match",
				"src", src.ID(), "src_type", srcPort.PacketType.Name(),
				"dst", dst.ID(), "dst_type", dstPort.PacketType.Name())
			return t.unwindConnections(fd, i-1,
				errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Open",
					"connection packet type match"))
		}

		if err := connectOut(src, srcPort, spec.SrcPort, ci.outConnID); err != nil {
			return t.unwindConnections(fd, i-1,
				errors.Wrap(err, "StaticFlow", "Open", "source port connect"))
		}
		if err := connectIn(dst, dstPort, spec.DstPort, ci.inConnID); err != nil {
			disconnectOut(src, srcPort, spec.SrcPort, ci.outConnID)
			return t.unwindConnections(fd, i-1,
				errors.Wrap(err, "StaticFlow", "Open", "destination port connect"))
		}

		flow.InspectConnection(src, spec.SrcPort, ci.outConnID, dst, spec.DstPort, ci.inConnID)
	}
	return nil
}

// unwindConnections disconnects every connection established before index
// last, in reverse order, and returns the error that triggered the unwind.
func (t *Type) unwindConnections(fd *flowData, last int, err error) error {
	for i := last; i >= 0; i-- {
		spec := &t.connSpecs[i]
		ci := &t.connInfos[i]
		src := fd.nodes[spec.Src]
		dst := fd.nodes[spec.Dst]

		disconnectIn(dst, dst.Type().PortIn(spec.DstPort), spec.DstPort, ci.inConnID)
		disconnectOut(src, flow.TypePortOut(src.Type(), spec.SrcPort), spec.SrcPort, ci.outConnID)
	}
	return err
}

func (t *Type) teardownConnections(fd *flowData) {
	for i := len(t.connSpecs) - 1; i >= 0; i-- {
		spec := &t.connSpecs[i]
		ci := &t.connInfos[i]
		src := fd.nodes[spec.Src]
		dst := fd.nodes[spec.Dst]
		if src == nil || dst == nil {
			continue
		}

		flow.InspectDisconnection(src, spec.SrcPort, ci.outConnID, dst, spec.DstPort, ci.inConnID)

		disconnectOut(src, flow.TypePortOut(src.Type(), spec.SrcPort), spec.SrcPort, ci.outConnID)
		disconnectIn(dst, dst.Type().PortIn(spec.DstPort), spec.DstPort, ci.inConnID)
	}
}

func connectIn(n *flow.Node, pt *flow.PortIn, port, connID uint16) error {
	if pt == nil || pt.Connect == nil {
		return nil
	}
	return pt.Connect(n, n.Data(), port, connID)
}

func connectOut(n *flow.Node, pt *flow.PortOut, port, connID uint16) error {
	if pt == nil || pt.Connect == nil {
		return nil
	}
	return pt.Connect(n, n.Data(), port, connID)
}

func disconnectIn(n *flow.Node, pt *flow.PortIn, port, connID uint16) {
	if pt == nil || pt.Disconnect == nil {
		return
	}
	_ = pt.Disconnect(n, n.Data(), port, connID)
}

func disconnectOut(n *flow.Node, pt *flow.PortOut, port, connID uint16) {
	if pt == nil || pt.Disconnect == nil {
		return
	}
	_ = pt.Disconnect(n, n.Data(), port, connID)
}

// exportedProcess forwards a packet arriving on one of the flow's own input
// ports to the promoted child port, with the connection identifier offset
// past the identifiers internal connections already claimed.
func (t *Type) exportedProcess(node *flow.Node, data flow.NodeData, port, connID uint16, pkt *packet.Packet) error {
	fd, ok := data.(*flowData)
	if !ok {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Process",
			"flow instance state missing")
	}

	spec := t.exportedIn[port]
	return flow.DeliverPacket(fd.nodes[spec.Node], spec.Port,
		t.portsInBaseConnID[port]+connID, pkt)
}

func (t *Type) exportedInConnect(node *flow.Node, data flow.NodeData, port, connID uint16) error {
	fd, ok := data.(*flowData)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Connect",
			"flow instance state missing")
	}

	spec := t.exportedIn[port]
	child := fd.nodes[spec.Node]
	return connectIn(child, child.Type().PortIn(spec.Port), spec.Port,
		t.portsInBaseConnID[port]+connID)
}

func (t *Type) exportedInDisconnect(node *flow.Node, data flow.NodeData, port, connID uint16) error {
	fd, ok := data.(*flowData)
	if !ok {
		return nil
	}

	spec := t.exportedIn[port]
	child := fd.nodes[spec.Node]
	disconnectIn(child, child.Type().PortIn(spec.Port), spec.Port,
		t.portsInBaseConnID[port]+connID)
	return nil
}

func (t *Type) exportedOutConnect(node *flow.Node, data flow.NodeData, port, connID uint16) error {
	fd, ok := data.(*flowData)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "Connect",
			"flow instance state missing")
	}

	spec := t.exportedOut[port]
	child := fd.nodes[spec.Node]
	return connectOut(child, flow.TypePortOut(child.Type(), spec.Port), spec.Port,
		t.portsOutBaseConnID[port]+connID)
}

func (t *Type) exportedOutDisconnect(node *flow.Node, data flow.NodeData, port, connID uint16) error {
	fd, ok := data.(*flowData)
	if !ok {
		return nil
	}

	spec := t.exportedOut[port]
	child := fd.nodes[spec.Node]
	disconnectOut(child, flow.TypePortOut(child.Type(), spec.Port), spec.Port,
		t.portsOutBaseConnID[port]+connID)
	return nil
}
