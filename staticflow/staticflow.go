// Package staticflow implements the static-flow container: a node type whose
// children and connections are fixed at construction. The whole topology is
// validated once, connection identifiers are precomputed, and dispatch walks
// a connection table sorted by source.
package staticflow

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
)

// NodeSpec declares one child of a static flow: its name, type and the
// options every instance of the flow opens it with.
type NodeSpec struct {
	Name string
	Type flow.NodeType
	Opts options.Options
}

// ConnSpec declares one connection between two children, all ends given by
// index. The slice handed to NewType must be sorted by (Src, SrcPort).
type ConnSpec struct {
	Src     uint16
	SrcPort uint16
	Dst     uint16
	DstPort uint16
}

// PortSpec promotes one child port to a port of the flow itself. Exported
// port slices must be sorted by (Node, Port) with no duplicates; their
// positions define the flow's own port indexes.
type PortSpec struct {
	Node uint16
	Port uint16
}

// ChildOptsSetFunc lets a flow type derive child options from the options
// its own instance was opened with. It returns the options for the child;
// returning childOpts unchanged keeps the spec's options. An error aborts
// the whole flow Open, rolling back children already opened.
type ChildOptsSetFunc func(childIndex uint16, opts, childOpts options.Options) (options.Options, error)

// Spec is the full static description handed to NewType.
type Spec struct {
	Nodes        []NodeSpec
	Conns        []ConnSpec
	ExportedIn   []PortSpec
	ExportedOut  []PortSpec
	ChildOptsSet ChildOptsSetFunc
	Logger       *slog.Logger
}

type nodeInfo struct {
	firstConnIdx uint16
	portsIn      uint16
	portsOut     uint16
}

type connInfo struct {
	inConnID  uint16
	outConnID uint16
}

// Type is a built static-flow node type. It satisfies flow.ContainerType
// and may be instantiated any number of times; each instance owns its own
// children.
type Type struct {
	nodeSpecs []NodeSpec
	connSpecs []ConnSpec

	nodeInfos []nodeInfo
	connInfos []connInfo

	exportedIn  []PortSpec
	exportedOut []PortSpec

	portsIn            []*flow.PortIn
	portsOut           []*flow.PortOut
	portsInBaseConnID  []uint16
	portsOutBaseConnID []uint16

	childOptsSet ChildOptsSetFunc

	desc     *flow.Description
	defaults options.Options

	// instances maps each live flow node to its state. Add and Remove
	// run while the instance data is not yet (or no longer) published on
	// the node, so they cannot use Node.Data.
	instances map[*flow.Node]*flowData

	// ownedByNode marks anonymous types created by New; they are
	// destroyed when their single node closes.
	ownedByNode bool

	log *slog.Logger
}

var _ flow.ContainerType = (*Type)(nil)
var _ flow.TypeDestroyer = (*Type)(nil)

// NewType validates a static description and builds the node type for it.
// Children and connections are checked for bounds and packet-type
// compatibility hints here; per-connection identifiers and the dispatch
// index are precomputed so instantiation only runs lifecycle hooks.
func NewType(spec Spec) (*Type, error) {
	log := spec.Logger
	if log == nil {
		log = slog.Default()
	}

	t := &Type{
		nodeSpecs:    spec.Nodes,
		connSpecs:    spec.Conns,
		exportedIn:   spec.ExportedIn,
		exportedOut:  spec.ExportedOut,
		childOptsSet: spec.ChildOptsSet,
		instances:    map[*flow.Node]*flowData{},
		log:          log.With("component", "StaticFlow"),
	}

	if err := t.setupNodeSpecs(); err != nil {
		return nil, err
	}
	if err := t.setupConnSpecs(); err != nil {
		return nil, err
	}
	if err := t.setupExportedPorts(); err != nil {
		return nil, err
	}
	t.setupConnIDs()
	return t, nil
}

func (t *Type) setupNodeSpecs() error {
	if len(t.nodeSpecs) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "NewType",
			"flow needs at least one node")
	}
	if len(t.nodeSpecs) >= math.MaxUint16 {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
			"too many nodes")
	}

	t.nodeInfos = make([]nodeInfo, len(t.nodeSpecs))
	for i, spec := range t.nodeSpecs {
		if err := flow.CheckTypeAPI(spec.Type); err != nil {
			return errors.Wrapf(err, "StaticFlow", "NewType", "node #%d type check", i)
		}
		t.nodeInfos[i] = nodeInfo{
			portsIn:  spec.Type.PortsInCount(),
			portsOut: spec.Type.PortsOutCount(),
		}
	}
	return nil
}

func (t *Type) validConnSpec(spec *ConnSpec) error {
	if int(spec.Src) >= len(t.nodeSpecs) || int(spec.Dst) >= len(t.nodeSpecs) {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
			"connection node index")
	}
	if spec.SrcPort != flow.PortError && spec.SrcPort >= t.nodeInfos[spec.Src].portsOut {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
			"connection source port index")
	}
	if spec.DstPort >= t.nodeInfos[spec.Dst].portsIn {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
			"connection destination port index")
	}
	return nil
}

func (t *Type) setupConnSpecs() error {
	if len(t.connSpecs) >= math.MaxUint16 {
		return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
			"too many connections")
	}

	var prev *ConnSpec
	for i := range t.connSpecs {
		spec := &t.connSpecs[i]
		if err := t.validConnSpec(spec); err != nil {
			return err
		}

		if prev == nil || spec.Src != prev.Src {
			t.nodeInfos[spec.Src].firstConnIdx = uint16(i)
		}
		if prev != nil && (spec.Src < prev.Src ||
			(spec.Src == prev.Src && spec.SrcPort < prev.SrcPort)) {
			return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "NewType",
				"connections not sorted by source node and port")
		}
		prev = spec
	}

	t.connInfos = make([]connInfo, len(t.connSpecs))
	return nil
}

// setupConnIDs numbers connections per destination in-port and per source
// out-port, in declaration order. Exported ports record how many internal
// connections already claimed identifiers on the child port, so external
// identifiers stack on top.
func (t *Type) setupConnIDs() {
	inCount := map[PortSpec]uint16{}
	outCount := map[PortSpec]uint16{}

	for i, spec := range t.connSpecs {
		in := PortSpec{Node: spec.Dst, Port: spec.DstPort}
		out := PortSpec{Node: spec.Src, Port: spec.SrcPort}
		t.connInfos[i].inConnID = inCount[in]
		t.connInfos[i].outConnID = outCount[out]
		inCount[in]++
		outCount[out]++
	}

	for u, pspec := range t.exportedIn {
		t.portsInBaseConnID[u] = inCount[pspec]
	}
	for u, pspec := range t.exportedOut {
		t.portsOutBaseConnID[u] = outCount[pspec]
	}
}

func (t *Type) validPortSpecs(specs []PortSpec, out bool) error {
	var prev *PortSpec
	for i := range specs {
		spec := &specs[i]
		if int(spec.Node) >= len(t.nodeSpecs) {
			return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
				"exported port node index")
		}
		limit := t.nodeInfos[spec.Node].portsIn
		if out {
			limit = t.nodeInfos[spec.Node].portsOut
		}
		if !(out && spec.Port == flow.PortError) && spec.Port >= limit {
			return errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "NewType",
				"exported port index")
		}
		if prev != nil && (spec.Node < prev.Node ||
			(spec.Node == prev.Node && spec.Port <= prev.Port)) {
			return errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "NewType",
				"exported ports not sorted")
		}
		prev = spec
	}
	return nil
}

func (t *Type) setupExportedPorts() error {
	if err := t.validPortSpecs(t.exportedIn, false); err != nil {
		return err
	}
	if err := t.validPortSpecs(t.exportedOut, true); err != nil {
		return err
	}

	t.portsIn = make([]*flow.PortIn, len(t.exportedIn))
	t.portsInBaseConnID = make([]uint16, len(t.exportedIn))
	for u, pspec := range t.exportedIn {
		child := t.nodeSpecs[pspec.Node].Type.PortIn(pspec.Port)
		t.portsIn[u] = &flow.PortIn{
			APIVersion: flow.PortAPIVersion,
			PacketType: child.PacketType,
			Process:    t.exportedProcess,
			Connect:    t.exportedInConnect,
			Disconnect: t.exportedInDisconnect,
		}
	}

	t.portsOut = make([]*flow.PortOut, len(t.exportedOut))
	t.portsOutBaseConnID = make([]uint16, len(t.exportedOut))
	for u, pspec := range t.exportedOut {
		child := flow.TypePortOut(t.nodeSpecs[pspec.Node].Type, pspec.Port)
		t.portsOut[u] = &flow.PortOut{
			APIVersion: flow.PortAPIVersion,
			PacketType: child.PacketType,
			Connect:    t.exportedOutConnect,
			Disconnect: t.exportedOutDisconnect,
		}
	}
	return nil
}

// APIVersion implements flow.NodeType.
func (t *Type) APIVersion() uint16 { return flow.TypeAPIVersion }

// Description implements flow.NodeType. The builder attaches one; types
// built directly from specs have none.
func (t *Type) Description() *flow.Description { return t.desc }

// SetDescription attaches human-readable metadata to the type.
func (t *Type) SetDescription(d *flow.Description) { t.desc = d }

// DefaultOptions implements flow.NodeType.
func (t *Type) DefaultOptions() options.Options { return t.defaults }

// SetDefaultOptions sets the options used when the flow is instantiated
// with nil options.
func (t *Type) SetDefaultOptions(o options.Options) { t.defaults = o }

// PortsInCount implements flow.NodeType: one port per exported input.
func (t *Type) PortsInCount() uint16 { return uint16(len(t.portsIn)) }

// PortsOutCount implements flow.NodeType: one port per exported output.
func (t *Type) PortsOutCount() uint16 { return uint16(len(t.portsOut)) }

// PortIn implements flow.NodeType.
func (t *Type) PortIn(port uint16) *flow.PortIn {
	if int(port) >= len(t.portsIn) {
		return nil
	}
	return t.portsIn[port]
}

// PortOut implements flow.NodeType.
func (t *Type) PortOut(port uint16) *flow.PortOut {
	if int(port) >= len(t.portsOut) {
		return nil
	}
	return t.portsOut[port]
}

// DestroyType implements flow.TypeDestroyer. Live instances must be
// finalized first; child types referenced by the specs are not touched.
func (t *Type) DestroyType() {
	t.nodeSpecs = nil
	t.connSpecs = nil
	t.nodeInfos = nil
	t.connInfos = nil
	t.portsIn = nil
	t.portsOut = nil
	t.instances = nil
}

// New builds an anonymous single-use flow from nodes and connections and
// instantiates it immediately. The type is owned by the returned node and
// destroyed when the node is finalized.
func New(parent *flow.Node, nodes []NodeSpec, conns []ConnSpec) (*flow.Node, error) {
	typ, err := NewType(Spec{Nodes: nodes, Conns: conns})
	if err != nil {
		return nil, err
	}
	typ.ownedByNode = true

	node, err := flow.NewNode(parent, uuid.NewString(), typ, nil)
	if err != nil {
		typ.DestroyType()
		return nil, err
	}
	return node, nil
}

// GetNode returns a child of a live flow instance by its spec index.
func (t *Type) GetNode(flowNode *flow.Node, index uint16) (*flow.Node, error) {
	fd := t.instances[flowNode]
	if fd == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "StaticFlow", "GetNode",
			"node is not a live instance of this flow")
	}
	if int(index) >= len(fd.nodes) {
		return nil, errors.WrapInvalid(errors.ErrOutOfRange, "StaticFlow", "GetNode",
			"child index")
	}
	return fd.nodes[index], nil
}
