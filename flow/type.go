// Package flow defines the node-type ABI of the FlowKit runtime: the
// contract every node type satisfies, the port descriptors packets are
// delivered through, the node instance with its send path into the parent
// container, and the introspection hooks.
//
// The runtime is single-threaded and cooperative: every entry point (node
// lifecycle, packet send and process, connect/disconnect callbacks,
// inspector hooks) runs on the main-loop thread. Dispatch is synchronous;
// a Process handler may recursively send from its own node and the runtime
// handles the recursion on the stack.
package flow

import (
	"math"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
)

// TypeAPIVersion is the node-type ABI tag. Every NodeType crossing a
// runtime boundary must report it.
const TypeAPIVersion uint16 = 1

// PortAPIVersion is the ABI tag carried by port descriptors.
const PortAPIVersion uint16 = 1

// PortError is the reserved index of the implicit error out-port every node
// exposes. It is not counted in PortsOutCount.
const PortError uint16 = math.MaxUint16

// PortErrorName is the reserved description name of the implicit error
// port. Regular output ports may not use it.
const PortErrorName = "ERROR"

// NodeData is the per-instance state a type's Open hook returns. The
// runtime stores it on the node and hands it back to every port callback
// and to Close.
type NodeData = any

// PortIn describes one input port of a node type. Process is invoked for
// every packet delivered to the port; it consumes the packet reference it
// receives regardless of the returned status.
type PortIn struct {
	APIVersion uint16
	PacketType *packet.Type

	Process    func(node *Node, data NodeData, port, connID uint16, pkt *packet.Packet) error
	Connect    func(node *Node, data NodeData, port, connID uint16) error
	Disconnect func(node *Node, data NodeData, port, connID uint16) error
}

// PortOut describes one output port of a node type.
type PortOut struct {
	APIVersion uint16
	PacketType *packet.Type

	Connect    func(node *Node, data NodeData, port, connID uint16) error
	Disconnect func(node *Node, data NodeData, port, connID uint16) error
}

// errorPortOut is the built-in descriptor returned for PortError.
var errorPortOut = &PortOut{
	APIVersion: PortAPIVersion,
	PacketType: packet.TypeError,
}

// NodeType is the immutable descriptor every node type satisfies. A type is
// never mutated after publication; instances do not alter it.
type NodeType interface {
	// APIVersion must return TypeAPIVersion.
	APIVersion() uint16

	// Description returns optional human-readable metadata: names,
	// category, per-port names and packet types, option members. May be
	// nil for types not meant to be resolved by name.
	Description() *Description

	// DefaultOptions returns the options used when a node is created
	// with nil options, or nil to fall back to the empty options.
	DefaultOptions() options.Options

	// PortsInCount and PortsOutCount report the number of regular ports.
	// The implicit error out-port is not included.
	PortsInCount() uint16
	PortsOutCount() uint16

	// PortIn returns the descriptor for an input port, or nil when the
	// index is out of range.
	PortIn(port uint16) *PortIn

	// PortOut returns the descriptor for an output port, or nil when the
	// index is out of range. Implementations need not handle PortError;
	// use TypePortOut for lookups that must see the error port.
	PortOut(port uint16) *PortOut

	// Open constructs the per-instance state. It may fail; on failure
	// the node is never published.
	Open(node *Node, opts options.Options) (NodeData, error)

	// Close destroys the per-instance state created by Open.
	Close(node *Node, data NodeData)
}

// ContainerType marks node types that own child nodes and route packets
// among them. Container-ness is a type-level distinction: the runtime
// type-asserts against this interface, never against nullable hooks.
type ContainerType interface {
	NodeType

	// Add is invoked while a child initializes, before its Open runs.
	// The container records per-child bookkeeping in the child's
	// parent-data slot.
	Add(parent, child *Node) error

	// Remove is invoked as the child finalizes (or when its Open fails).
	Remove(parent, child *Node)

	// Send routes a packet emitted by a direct child. It consumes the
	// packet on success; on error the caller releases it. Dispatch
	// completes before Send returns.
	Send(parent, src *Node, srcPort uint16, pkt *packet.Packet) error
}

// TypeInitializer is the optional one-time setup hook. InitType runs at
// most once per type, lazily before the first instantiation.
type TypeInitializer interface {
	InitType() error
}

// TypeDestroyer is the optional hook for types that own resources beyond
// their instances, such as the spec arrays of a built static-flow type.
// DestroyType does not release referenced child types.
type TypeDestroyer interface {
	DestroyType()
}

// initializedTypes tracks which types already ran InitType. Mutated from
// the main-loop thread only.
var initializedTypes = map[NodeType]struct{}{}

func initTypeOnce(typ NodeType) error {
	ti, ok := typ.(TypeInitializer)
	if !ok {
		return nil
	}
	if _, done := initializedTypes[typ]; done {
		return nil
	}
	if err := ti.InitType(); err != nil {
		return errors.Wrap(err, "Flow", "NewNode", "type initialization")
	}
	initializedTypes[typ] = struct{}{}
	return nil
}

// CheckTypeAPI validates a node type's ABI tag.
func CheckTypeAPI(typ NodeType) error {
	if typ == nil {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Flow", "CheckTypeAPI", "nil type")
	}
	if typ.APIVersion() != TypeAPIVersion {
		return errors.WrapInvalid(errors.ErrInvalidAPIVersion, "Flow", "CheckTypeAPI",
			"node type api version tag")
	}
	return nil
}

// TypePortOut looks up an out-port descriptor, resolving PortError to the
// built-in error port shared by all types.
func TypePortOut(typ NodeType, port uint16) *PortOut {
	if port == PortError {
		return errorPortOut
	}
	return typ.PortOut(port)
}

// TypePortIn looks up an in-port descriptor.
func TypePortIn(typ NodeType, port uint16) *PortIn {
	return typ.PortIn(port)
}

// TypeBase supplies the boilerplate half of NodeType. Concrete types embed
// it and implement the port and lifecycle methods:
//
//	type timerType struct {
//	    flow.TypeBase
//	}
type TypeBase struct {
	Desc     *Description
	Defaults options.Options
}

// APIVersion implements NodeType.
func (t *TypeBase) APIVersion() uint16 { return TypeAPIVersion }

// Description implements NodeType.
func (t *TypeBase) Description() *Description { return t.Desc }

// DefaultOptions implements NodeType.
func (t *TypeBase) DefaultOptions() options.Options { return t.Defaults }

// PortsInCount implements NodeType with no input ports.
func (t *TypeBase) PortsInCount() uint16 { return 0 }

// PortsOutCount implements NodeType with no output ports.
func (t *TypeBase) PortsOutCount() uint16 { return 0 }

// PortIn implements NodeType with no input ports.
func (t *TypeBase) PortIn(uint16) *PortIn { return nil }

// PortOut implements NodeType with no output ports.
func (t *TypeBase) PortOut(uint16) *PortOut { return nil }

// Open implements NodeType with no per-instance state.
func (t *TypeBase) Open(*Node, options.Options) (NodeData, error) { return nil, nil }

// Close implements NodeType with no per-instance state.
func (t *TypeBase) Close(*Node, NodeData) {}
