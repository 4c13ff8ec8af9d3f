package flow

import (
	"time"

	"github.com/c360/flowkit/blob"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
	"github.com/c360/flowkit/types"
)

// Node is a live instance of a NodeType. Nodes are created with NewNode and
// finalized with Del; between the two, the instance may emit packets through
// SendPacket and its typed shorthands.
type Node struct {
	typ    NodeType
	parent *Node
	id     string

	// data is the instance state returned by the type's Open hook.
	data NodeData

	// parentData is the bookkeeping slot owned by the parent container,
	// written during ContainerType.Add.
	parentData any
}

// NewNode creates and opens a node of the given type. A non-nil parent must
// be an instance of a ContainerType; the child is registered with it before
// Open runs and deregistered again if Open fails. Nil options fall back to
// the type's defaults, then to the empty options.
func NewNode(parent *Node, id string, typ NodeType, opts options.Options) (*Node, error) {
	if err := CheckTypeAPI(typ); err != nil {
		return nil, err
	}
	if err := options.CheckAPI(opts); err != nil {
		return nil, err
	}
	if err := initTypeOnce(typ); err != nil {
		return nil, err
	}

	node := &Node{
		typ: typ,
		id:  id,
	}

	var container ContainerType
	if parent != nil {
		ct, ok := parent.typ.(ContainerType)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "NewNode",
				"parent is not a container node")
		}
		container = ct
		node.parent = parent
		if err := ct.Add(parent, node); err != nil {
			return nil, errors.Wrap(err, "Flow", "NewNode", "container add")
		}
	}

	if opts == nil {
		opts = typ.DefaultOptions()
		if opts == nil {
			opts = options.Empty
		}
	}

	data, err := typ.Open(node, opts)
	if err != nil {
		if container != nil {
			container.Remove(parent, node)
		}
		return nil, errors.Wrap(err, "Flow", "NewNode", "node open")
	}
	node.data = data

	inspectDidOpenNode(node, opts)
	return node, nil
}

// Del finalizes the node: the type's Close hook runs, then the node is
// removed from its parent container. Safe to call on an already finalized
// node.
func (n *Node) Del() {
	if n == nil || n.typ == nil {
		return
	}
	inspectWillCloseNode(n)

	n.typ.Close(n, n.data)
	if n.parent != nil {
		if ct, ok := n.parent.typ.(ContainerType); ok {
			ct.Remove(n.parent, n)
		}
	}

	n.typ = nil
	n.data = nil
	n.parent = nil
}

// ID returns the identifier the node was created with. May be empty.
func (n *Node) ID() string { return n.id }

// Type returns the node's type, or nil after Del.
func (n *Node) Type() NodeType { return n.typ }

// Parent returns the owning container node, or nil for a root node.
func (n *Node) Parent() *Node { return n.parent }

// Data returns the instance state created by the type's Open hook.
func (n *Node) Data() NodeData { return n.data }

// ParentData returns the bookkeeping slot owned by the parent container.
func (n *Node) ParentData() any { return n.parentData }

// SetParentData stores per-child bookkeeping. Only the parent container
// writes this slot, from its Add hook.
func (n *Node) SetParentData(data any) { n.parentData = data }

// SendPacket emits a packet from one of the node's output ports. Ownership
// of the packet transfers to the call: delivery to every connected
// destination completes before it returns, and the packet reference is
// released on every path, success or failure. A root node has no parent to
// route through, so the packet is dropped and the send reports success.
func (n *Node) SendPacket(srcPort uint16, pkt *packet.Packet) error {
	if pkt == nil || pkt.Type() == nil {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "SendPacket", "nil packet")
	}
	if n == nil || n.typ == nil {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "SendPacket",
			"send from finalized node")
	}

	port := TypePortOut(n.typ, srcPort)
	if port == nil {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrOutOfRange, "Flow", "SendPacket",
			"source port index")
	}
	if !packet.Match(port.PacketType, pkt.Type()) {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "SendPacket",
			"packet type does not match port type")
	}

	inspectWillSendPacket(n, srcPort, pkt)

	if n.parent == nil {
		pkt.Del()
		return nil
	}

	ct, ok := n.parent.typ.(ContainerType)
	if !ok {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "SendPacket",
			"parent is not a container node")
	}
	if err := ct.Send(n.parent, n, srcPort, pkt); err != nil {
		pkt.Del()
		return errors.Wrap(err, "Flow", "SendPacket", "container send")
	}
	return nil
}

// DeliverPacket hands one packet reference to a destination input port,
// firing the will-deliver hook and running the port's Process handler.
// Containers use it for each fan-out leg; the handler (or the drop on a
// handler-less port) consumes the reference.
func DeliverPacket(dst *Node, port, connID uint16, pkt *packet.Packet) error {
	if dst == nil || dst.typ == nil {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "DeliverPacket",
			"deliver to finalized node")
	}

	pin := dst.typ.PortIn(port)
	if pin == nil {
		pkt.Del()
		return errors.WrapInvalid(errors.ErrOutOfRange, "Flow", "DeliverPacket",
			"destination port index")
	}

	inspectWillDeliverPacket(dst, port, connID, pkt)

	if pin.Process == nil {
		pkt.Del()
		return nil
	}
	return pin.Process(dst, dst.data, port, connID, pkt)
}

// SendEmpty emits an empty packet.
func (n *Node) SendEmpty(port uint16) error {
	return n.SendPacket(port, packet.NewEmpty())
}

// SendBoolean emits a boolean packet.
func (n *Node) SendBoolean(port uint16, value bool) error {
	return n.SendPacket(port, packet.NewBoolean(value))
}

// SendByte emits a byte packet.
func (n *Node) SendByte(port uint16, value byte) error {
	return n.SendPacket(port, packet.NewByte(value))
}

// SendIRange emits an integer-range packet, validating the range first.
func (n *Node) SendIRange(port uint16, value types.IntRange) error {
	pkt, err := packet.NewIRange(value)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendIRangeValue emits an integer-range packet with open bounds.
func (n *Node) SendIRangeValue(port uint16, value int32) error {
	return n.SendPacket(port, packet.NewIRangeValue(value))
}

// SendDRange emits a float-range packet, validating the range first.
func (n *Node) SendDRange(port uint16, value types.FloatRange) error {
	pkt, err := packet.NewDRange(value)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendDRangeValue emits a float-range packet with open bounds.
func (n *Node) SendDRangeValue(port uint16, value float64) error {
	return n.SendPacket(port, packet.NewDRangeValue(value))
}

// SendString emits a string packet.
func (n *Node) SendString(port uint16, value string) error {
	return n.SendPacket(port, packet.NewString(value))
}

// SendTimestamp emits a timestamp packet.
func (n *Node) SendTimestamp(port uint16, value time.Time) error {
	return n.SendPacket(port, packet.NewTimestamp(value))
}

// SendRGB emits an RGB packet, validating the channels first.
func (n *Node) SendRGB(port uint16, value types.RGB) error {
	pkt, err := packet.NewRGB(value)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendDirectionVector emits a direction-vector packet, validating the axes
// first.
func (n *Node) SendDirectionVector(port uint16, value types.DirectionVector) error {
	pkt, err := packet.NewDirectionVector(value)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendLocation emits a location packet.
func (n *Node) SendLocation(port uint16, value types.Location) error {
	pkt, err := packet.NewLocation(value)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendBlob emits a blob packet holding a new reference to the blob.
func (n *Node) SendBlob(port uint16, b *blob.Blob) error {
	pkt, err := packet.NewBlob(b)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendJSONObject emits a JSON-object packet holding a new blob reference.
func (n *Node) SendJSONObject(port uint16, b *blob.Blob) error {
	pkt, err := packet.NewJSONObject(b)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendJSONArray emits a JSON-array packet holding a new blob reference.
func (n *Node) SendJSONArray(port uint16, b *blob.Blob) error {
	pkt, err := packet.NewJSONArray(b)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendComposed emits a composed packet, taking ownership of the members.
func (n *Node) SendComposed(port uint16, typ *packet.Type, members ...*packet.Packet) error {
	pkt, err := packet.NewComposed(typ, members...)
	if err != nil {
		return err
	}
	return n.SendPacket(port, pkt)
}

// SendError emits an error packet on the implicit error port.
func (n *Node) SendError(code int, msg string) error {
	return n.SendPacket(PortError, packet.NewError(code, msg))
}

// SendErrorf emits a formatted error packet on the implicit error port.
func (n *Node) SendErrorf(code int, format string, args ...any) error {
	return n.SendPacket(PortError, packet.NewErrorf(code, format, args...))
}
