// Package builder assembles static-flow types incrementally. Nodes are
// added by value or resolved by identifier, connections and exported
// ports are declared by name, and GetNodeType turns the accumulated
// declarations into a staticflow.Type with a full description attached.
package builder

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/resolver"
	"github.com/c360/flowkit/staticflow"
)

// exportedOption records one promoted child option: which child it
// belongs to, the child's member name, and the name it is exported under.
type exportedOption struct {
	node         uint16
	childName    string
	exportedName string
}

// Builder accumulates a static-flow declaration. It is single-use: after
// GetNodeType builds the type, every mutator reports already-exists and
// GetNodeType keeps returning the same type.
type Builder struct {
	res resolver.Resolver

	nodes []staticflow.NodeSpec
	conns []staticflow.ConnSpec

	exportedIn  []staticflow.PortSpec
	exportedOut []staticflow.PortSpec

	portsInDesc  []*flow.PortDescription
	portsOutDesc []*flow.PortDescription

	optMembers []options.MemberDescription
	optExports []exportedOption

	desc flow.Description

	typ *staticflow.Type
	log *slog.Logger
}

// New creates an empty builder using the process-wide default resolver.
func New() *Builder {
	return &Builder{
		res: resolver.Default(),
		log: slog.Default().With("component", "FlowBuilder"),
	}
}

// SetResolver replaces the resolver AddNodeByID consults. Passing nil
// restores the process-wide default.
func (b *Builder) SetResolver(r resolver.Resolver) {
	if r == nil {
		r = resolver.Default()
	}
	b.res = r
}

func (b *Builder) built(method string) error {
	if b.typ == nil {
		return nil
	}
	return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", method,
		"node type already built")
}

// SetTypeDescription sets the metadata of the type being built. The name
// must not contain whitespace so it stays usable as a type identifier.
func (b *Builder) SetTypeDescription(name, category, description, author, url, license, version string) error {
	if err := b.built("SetTypeDescription"); err != nil {
		return err
	}
	if strings.ContainsAny(name, " \t\n") {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "FlowBuilder", "SetTypeDescription",
			fmt.Sprintf("type name %q contains whitespace", name))
	}
	b.desc.Name = name
	b.desc.Category = category
	b.desc.Description = description
	b.desc.Author = author
	b.desc.URL = url
	b.desc.License = license
	b.desc.Version = version
	return nil
}

func (b *Builder) nodeIndex(method, name string) (uint16, *staticflow.NodeSpec, error) {
	for i := range b.nodes {
		if b.nodes[i].Name == name {
			return uint16(i), &b.nodes[i], nil
		}
	}
	return 0, nil, errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", method,
		fmt.Sprintf("node %q", name))
}

// checkPortNames rejects types whose description declares two ports with
// the same name, or a regular out-port squatting on the reserved error
// port name. Such a type could never be addressed by name reliably.
func checkPortNames(desc *flow.Description) error {
	seen := func(ports []*flow.PortDescription, reserved bool) error {
		names := make(map[string]struct{}, len(ports))
		for _, p := range ports {
			if reserved && p.Name == flow.PortErrorName {
				return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", "AddNode",
					fmt.Sprintf("out-port uses reserved name %q", flow.PortErrorName))
			}
			if _, dup := names[p.Name]; dup {
				return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", "AddNode",
					fmt.Sprintf("duplicated port name %q", p.Name))
			}
			names[p.Name] = struct{}{}
		}
		return nil
	}
	if err := seen(desc.PortsIn, false); err != nil {
		return err
	}
	return seen(desc.PortsOut, true)
}

// AddNode declares a child with an explicit type and options. Node names
// are unique within the flow; by-name operations use them.
func (b *Builder) AddNode(name string, typ flow.NodeType, opts options.Options) error {
	if err := b.built("AddNode"); err != nil {
		return err
	}
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "FlowBuilder", "AddNode",
			"empty node name")
	}
	if err := flow.CheckTypeAPI(typ); err != nil {
		return errors.Wrapf(err, "FlowBuilder", "AddNode", "node %q type check", name)
	}
	for i := range b.nodes {
		if b.nodes[i].Name == name {
			return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", "AddNode",
				fmt.Sprintf("node %q declared twice", name))
		}
	}
	if desc := typ.Description(); desc != nil {
		if err := checkPortNames(desc); err != nil {
			return err
		}
	}

	b.nodes = append(b.nodes, staticflow.NodeSpec{Name: name, Type: typ, Opts: opts})
	return nil
}

// AddNodeByID resolves a type identifier and adds a node of the resolved
// type. Option entries in extraOpts ("name=value") are applied on top of
// whatever option vector the resolution produced. Resolution and option
// errors are reported to the caller, never swallowed.
func (b *Builder) AddNodeByID(name, id string, extraOpts []string) error {
	if err := b.built("AddNodeByID"); err != nil {
		return err
	}

	typ, strv, err := b.resolve(id)
	if err != nil {
		return errors.Wrapf(err, "FlowBuilder", "AddNodeByID", "node %q type %q", name, id)
	}
	strv = append(strv, extraOpts...)

	var opts options.Options
	desc := typ.Description()
	switch {
	case desc != nil && desc.Options != nil:
		bag, err := options.NewFromStrv(desc.Options, strv)
		if err != nil {
			return errors.Wrapf(err, "FlowBuilder", "AddNodeByID", "node %q options", name)
		}
		opts = bag
	case len(strv) > 0:
		return errors.WrapInvalid(errors.ErrInvalidOption, "FlowBuilder", "AddNodeByID",
			fmt.Sprintf("type %q takes no options", id))
	}

	return b.AddNode(name, typ, opts)
}

// resolve consults the built-in catalog first so conffile aliases cannot
// shadow core type identifiers, then the configured resolver.
func (b *Builder) resolve(id string) (flow.NodeType, []string, error) {
	builtins := resolver.Builtins()
	if typ, strv, err := builtins.Resolve(id); err == nil {
		return typ, strv, nil
	} else if !errors.IsNotFound(err) {
		return nil, nil, err
	}
	return b.res.Resolve(id)
}

// findPortIn resolves an input port name against a node's description.
func findPortIn(desc *flow.Description, name string) *flow.PortDescription {
	if desc == nil {
		return nil
	}
	return desc.FindPortIn(name)
}

// findPortOut resolves an output port name, mapping the reserved error
// port name to the implicit error port.
func findPortOut(desc *flow.Description, name string) *flow.PortDescription {
	if name == flow.PortErrorName {
		return &flow.PortDescription{
			Name:        flow.PortErrorName,
			DataType:    "error",
			BasePortIdx: flow.PortError,
		}
	}
	if desc == nil {
		return nil
	}
	return desc.FindPortOut(name)
}

// portIndex applies the array-port addressing rules: scalar ports take no
// index, array ports require one within the declared size.
func portIndex(method string, p *flow.PortDescription, idx int) (uint16, error) {
	if p.ArraySize == 0 {
		if idx != -1 {
			return 0, errors.WrapInvalid(errors.ErrInvalidArgument, "FlowBuilder", method,
				fmt.Sprintf("port %q is not an array port", p.Name))
		}
		return p.BasePortIdx, nil
	}
	if idx == -1 {
		return 0, errors.WrapInvalid(errors.ErrInvalidArgument, "FlowBuilder", method,
			fmt.Sprintf("array port %q needs an index", p.Name))
	}
	if idx < 0 || idx >= int(p.ArraySize) {
		return 0, errors.WrapInvalid(errors.ErrOutOfRange, "FlowBuilder", method,
			fmt.Sprintf("port %q index %d, array size %d", p.Name, idx, p.ArraySize))
	}
	return p.BasePortIdx + uint16(idx), nil
}

// Connect declares a connection between two named nodes using port names
// from their type descriptions. Array ports are addressed by index; the
// reserved error port name connects from the implicit error port.
func (b *Builder) Connect(srcName, srcPortName string, srcPortIdx int, dstName, dstPortName string, dstPortIdx int) error {
	if err := b.built("Connect"); err != nil {
		return err
	}

	src, srcSpec, err := b.nodeIndex("Connect", srcName)
	if err != nil {
		return err
	}
	dst, dstSpec, err := b.nodeIndex("Connect", dstName)
	if err != nil {
		return err
	}

	srcDesc := findPortOut(srcSpec.Type.Description(), srcPortName)
	if srcDesc == nil {
		return errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", "Connect",
			fmt.Sprintf("node %q has no out-port %q", srcName, srcPortName))
	}
	dstDesc := findPortIn(dstSpec.Type.Description(), dstPortName)
	if dstDesc == nil {
		return errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", "Connect",
			fmt.Sprintf("node %q has no in-port %q", dstName, dstPortName))
	}

	srcPort, err := portIndex("Connect", srcDesc, srcPortIdx)
	if err != nil {
		return err
	}
	dstPort, err := portIndex("Connect", dstDesc, dstPortIdx)
	if err != nil {
		return err
	}

	b.conns = append(b.conns, staticflow.ConnSpec{
		Src: src, SrcPort: srcPort,
		Dst: dst, DstPort: dstPort,
	})
	return nil
}

// ConnectByIndex declares a connection using raw port indexes. The source
// port may be the implicit error port.
func (b *Builder) ConnectByIndex(srcName string, srcPort uint16, dstName string, dstPort uint16) error {
	if err := b.built("ConnectByIndex"); err != nil {
		return err
	}

	src, srcSpec, err := b.nodeIndex("ConnectByIndex", srcName)
	if err != nil {
		return err
	}
	dst, dstSpec, err := b.nodeIndex("ConnectByIndex", dstName)
	if err != nil {
		return err
	}

	if srcPort != flow.PortError && srcPort >= srcSpec.Type.PortsOutCount() {
		return errors.WrapInvalid(errors.ErrOutOfRange, "FlowBuilder", "ConnectByIndex",
			fmt.Sprintf("node %q out-port %d", srcName, srcPort))
	}
	if dstPort >= dstSpec.Type.PortsInCount() {
		return errors.WrapInvalid(errors.ErrOutOfRange, "FlowBuilder", "ConnectByIndex",
			fmt.Sprintf("node %q in-port %d", dstName, dstPort))
	}

	b.conns = append(b.conns, staticflow.ConnSpec{
		Src: src, SrcPort: srcPort,
		Dst: dst, DstPort: dstPort,
	})
	return nil
}

func findExported(descs []*flow.PortDescription, name string) bool {
	for _, d := range descs {
		if d.Name == name {
			return true
		}
	}
	return false
}

// nextBasePortIdx continues the flow's own port numbering: each exported
// description claims one index, or ArraySize of them for array exports.
func nextBasePortIdx(descs []*flow.PortDescription) uint16 {
	if len(descs) == 0 {
		return 0
	}
	last := descs[len(descs)-1]
	width := last.ArraySize
	if width == 0 {
		width = 1
	}
	return last.BasePortIdx + width
}

// ExportInPort promotes a child's input port to a port of the flow. An
// index of -1 on an array port exports the whole array at once.
func (b *Builder) ExportInPort(nodeName, portName string, portIdx int, exportedName string) error {
	if err := b.built("ExportInPort"); err != nil {
		return err
	}
	node, spec, err := b.nodeIndex("ExportInPort", nodeName)
	if err != nil {
		return err
	}
	p := findPortIn(spec.Type.Description(), portName)
	if p == nil {
		return errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", "ExportInPort",
			fmt.Sprintf("node %q has no in-port %q", nodeName, portName))
	}
	return b.exportPort("ExportInPort", node, p, portIdx, exportedName,
		&b.portsInDesc, &b.exportedIn)
}

// ExportOutPort promotes a child's output port, including the implicit
// error port under its reserved name.
func (b *Builder) ExportOutPort(nodeName, portName string, portIdx int, exportedName string) error {
	if err := b.built("ExportOutPort"); err != nil {
		return err
	}
	node, spec, err := b.nodeIndex("ExportOutPort", nodeName)
	if err != nil {
		return err
	}
	p := findPortOut(spec.Type.Description(), portName)
	if p == nil {
		return errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", "ExportOutPort",
			fmt.Sprintf("node %q has no out-port %q", nodeName, portName))
	}
	return b.exportPort("ExportOutPort", node, p, portIdx, exportedName,
		&b.portsOutDesc, &b.exportedOut)
}

func (b *Builder) exportPort(method string, node uint16, p *flow.PortDescription, portIdx int, exportedName string, descs *[]*flow.PortDescription, specs *[]staticflow.PortSpec) error {
	if exportedName == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "FlowBuilder", method,
			"empty exported port name")
	}
	if findExported(*descs, exportedName) {
		return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", method,
			fmt.Sprintf("exported port %q declared twice", exportedName))
	}

	port := p.BasePortIdx
	size := p.ArraySize
	if portIdx != -1 {
		var err error
		port, err = portIndex(method, p, portIdx)
		if err != nil {
			return err
		}
		size = 0
	}

	*descs = append(*descs, &flow.PortDescription{
		Name:        exportedName,
		DataType:    p.DataType,
		ArraySize:   size,
		BasePortIdx: nextBasePortIdx(*descs),
	})

	width := size
	if width == 0 {
		width = 1
	}
	for i := uint16(0); i < width; i++ {
		*specs = append(*specs, staticflow.PortSpec{Node: node, Port: port + i})
	}
	return nil
}

// ExportOption promotes a child's option member to an option of the flow
// itself. The exported member is never required; its default is the value
// the child was declared with, falling back to the member's own default.
func (b *Builder) ExportOption(nodeName, optionName, exportedName string) error {
	if err := b.built("ExportOption"); err != nil {
		return err
	}
	if exportedName == "" {
		exportedName = optionName
	}

	node, spec, err := b.nodeIndex("ExportOption", nodeName)
	if err != nil {
		return err
	}

	desc := spec.Type.Description()
	if desc == nil || desc.Options == nil {
		return errors.WrapInvalid(errors.ErrInvalidOption, "FlowBuilder", "ExportOption",
			fmt.Sprintf("node %q type takes no options", nodeName))
	}
	var member *options.MemberDescription
	for i := range desc.Options.Members {
		if desc.Options.Members[i].Name == optionName {
			member = &desc.Options.Members[i]
			break
		}
	}
	if member == nil {
		return errors.WrapInvalid(errors.ErrNotFound, "FlowBuilder", "ExportOption",
			fmt.Sprintf("node %q has no option %q", nodeName, optionName))
	}
	for i := range b.optMembers {
		if b.optMembers[i].Name == exportedName {
			return errors.WrapInvalid(errors.ErrAlreadyExists, "FlowBuilder", "ExportOption",
				fmt.Sprintf("exported option %q declared twice", exportedName))
		}
	}

	exported := options.MemberDescription{
		Name:        exportedName,
		DataType:    member.DataType,
		Required:    false,
		Default:     member.Default,
		Description: member.Description,
	}
	if bag, ok := spec.Opts.(*options.Bag); ok {
		if value, set := bag.Get(optionName); set {
			exported.Default = value
		}
	}

	b.optMembers = append(b.optMembers, exported)
	b.optExports = append(b.optExports, exportedOption{
		node:         node,
		childName:    optionName,
		exportedName: exportedName,
	})
	return nil
}

// childOptsOverlay builds the hook applied at instantiation: exported
// option values set on the flow's own bag replace the corresponding
// members of the child's declared options.
func (b *Builder) childOptsOverlay() staticflow.ChildOptsSetFunc {
	if len(b.optExports) == 0 {
		return nil
	}

	byChild := map[uint16][]exportedOption{}
	for _, e := range b.optExports {
		byChild[e.node] = append(byChild[e.node], e)
	}
	childDescs := make([]*options.Description, len(b.nodes))
	for i := range b.nodes {
		if d := b.nodes[i].Type.Description(); d != nil {
			childDescs[i] = d.Options
		}
	}

	return func(childIndex uint16, opts, childOpts options.Options) (options.Options, error) {
		exports := byChild[childIndex]
		if len(exports) == 0 {
			return childOpts, nil
		}
		parent, ok := opts.(*options.Bag)
		if !ok {
			return childOpts, nil
		}

		var bag *options.Bag
		switch child := childOpts.(type) {
		case *options.Bag:
			bag = child.Clone()
		case nil:
			desc := childDescs[childIndex]
			if desc == nil {
				return childOpts, nil
			}
			fresh, err := options.NewFromStrv(desc, nil)
			if err != nil {
				return nil, errors.Wrapf(err, "FlowBuilder", "ChildOptsSet",
					"child %d default options", childIndex)
			}
			bag = fresh
		default:
			return childOpts, nil
		}

		for _, e := range exports {
			if value, set := parent.Get(e.exportedName); set {
				if err := bag.Set(e.childName, value); err != nil {
					return nil, errors.Wrapf(err, "FlowBuilder", "ChildOptsSet",
						"child %d option %q", childIndex, e.childName)
				}
			}
		}
		return bag, nil
	}
}

// GetNodeType builds the declared flow into a node type. Connections are
// ordered as dispatch requires; exported ports keep the declaration order,
// which must follow child index order. The result is memoized and further
// mutation of the builder is rejected.
func (b *Builder) GetNodeType() (*staticflow.Type, error) {
	if b.typ != nil {
		return b.typ, nil
	}

	sort.SliceStable(b.conns, func(i, j int) bool {
		if b.conns[i].Src != b.conns[j].Src {
			return b.conns[i].Src < b.conns[j].Src
		}
		return b.conns[i].SrcPort < b.conns[j].SrcPort
	})

	typ, err := staticflow.NewType(staticflow.Spec{
		Nodes:        b.nodes,
		Conns:        b.conns,
		ExportedIn:   b.exportedIn,
		ExportedOut:  b.exportedOut,
		ChildOptsSet: b.childOptsOverlay(),
		Logger:       b.log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "FlowBuilder", "GetNodeType", "flow type construction")
	}

	desc := b.desc
	desc.PortsIn = b.portsInDesc
	desc.PortsOut = b.portsOutDesc
	if len(b.optMembers) > 0 {
		desc.Options = &options.Description{SubAPI: 1, Members: b.optMembers}
		defaults, err := options.NewFromStrv(desc.Options, nil)
		if err != nil {
			return nil, errors.Wrap(err, "FlowBuilder", "GetNodeType", "exported option defaults")
		}
		typ.SetDefaultOptions(defaults)
	}
	typ.SetDescription(&desc)

	b.typ = typ
	return typ, nil
}
