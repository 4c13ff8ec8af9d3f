package builder_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/builder"
	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flow"
	"github.com/c360/flowkit/options"
	"github.com/c360/flowkit/packet"
	"github.com/c360/flowkit/registry"
	"github.com/c360/flowkit/resolver"
)

type gateDelivery struct {
	port   uint16
	connID uint16
	value  int32
}

type gateState struct {
	deliveries []gateDelivery
	opts       *options.Bag
}

// gateType is a described fixture with a scalar "IN" port, a three-wide
// "AIN" array port, an "OUT" port and two option members.
type gateType struct {
	flow.TypeBase

	inPort  *flow.PortIn
	outPort *flow.PortOut

	emitOnOpen int32
	last       *gateState
}

func newGateType() *gateType {
	t := &gateType{}
	t.Desc = &flow.Description{
		Name: "gate",
		PortsIn: []*flow.PortDescription{
			{Name: "IN", DataType: "int", BasePortIdx: 0},
			{Name: "AIN", DataType: "int", ArraySize: 3, BasePortIdx: 1},
		},
		PortsOut: []*flow.PortDescription{
			{Name: "OUT", DataType: "int", BasePortIdx: 0},
		},
		Options: &options.Description{
			SubAPI: 1,
			Members: []options.MemberDescription{
				{Name: "value", DataType: options.DataTypeInt, Default: 1},
				{Name: "label", DataType: options.DataTypeString, Default: "off"},
			},
		},
	}

	t.inPort = &flow.PortIn{
		APIVersion: flow.PortAPIVersion,
		PacketType: packet.TypeAny,
		Process: func(node *flow.Node, data flow.NodeData, port, connID uint16, pkt *packet.Packet) error {
			st := data.(*gateState)
			d := gateDelivery{port: port, connID: connID}
			if r, err := pkt.IRange(); err == nil {
				d.value = r.Value
			}
			st.deliveries = append(st.deliveries, d)
			pkt.Del()
			return nil
		},
	}
	t.outPort = &flow.PortOut{
		APIVersion: flow.PortAPIVersion,
		PacketType: packet.TypeIRange,
	}
	return t
}

func (t *gateType) PortsInCount() uint16  { return 4 }
func (t *gateType) PortsOutCount() uint16 { return 1 }

func (t *gateType) PortIn(port uint16) *flow.PortIn {
	if port < 4 {
		return t.inPort
	}
	return nil
}

func (t *gateType) PortOut(port uint16) *flow.PortOut {
	if port == 0 {
		return t.outPort
	}
	return nil
}

func (t *gateType) Open(node *flow.Node, opts options.Options) (flow.NodeData, error) {
	st := &gateState{}
	if bag, ok := opts.(*options.Bag); ok {
		st.opts = bag
	}
	t.last = st
	if t.emitOnOpen != 0 {
		if err := node.SendIRangeValue(0, t.emitOnOpen); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (t *gateType) Close(*flow.Node, flow.NodeData) {}

func gateOpts(t *testing.T, gt *gateType, strv ...string) *options.Bag {
	t.Helper()
	bag, err := options.NewFromStrv(gt.Desc.Options, strv)
	require.NoError(t, err)
	return bag
}

func TestAddNodeValidation(t *testing.T) {
	b := builder.New()

	err := b.AddNode("", newGateType(), nil)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	err = b.AddNode("a", nil, nil)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	require.NoError(t, b.AddNode("a", newGateType(), nil))
	err = b.AddNode("a", newGateType(), nil)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	dup := newGateType()
	dup.Desc.PortsIn = append(dup.Desc.PortsIn, &flow.PortDescription{Name: "IN"})
	err = b.AddNode("dup", dup, nil)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	reserved := newGateType()
	reserved.Desc.PortsOut = append(reserved.Desc.PortsOut, &flow.PortDescription{Name: "ERROR"})
	err = b.AddNode("reserved", reserved, nil)
	assert.True(t, pkgerrors.IsAlreadyExists(err))
}

func TestConnectByName(t *testing.T) {
	src := newGateType()
	src.emitOnOpen = 7
	dst := newGateType()

	b := builder.New()
	require.NoError(t, b.AddNode("a", src, nil))
	require.NoError(t, b.AddNode("b", dst, nil))
	require.NoError(t, b.Connect("a", "OUT", -1, "b", "IN", -1))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	defer node.Del()

	require.Len(t, dst.last.deliveries, 1)
	assert.Equal(t, uint16(0), dst.last.deliveries[0].port)
	assert.Equal(t, uint16(0), dst.last.deliveries[0].connID)
	assert.Equal(t, int32(7), dst.last.deliveries[0].value)
}

func TestConnectArrayPortRules(t *testing.T) {
	src := newGateType()
	src.emitOnOpen = 3
	dst := newGateType()

	b := builder.New()
	require.NoError(t, b.AddNode("a", src, nil))
	require.NoError(t, b.AddNode("b", dst, nil))

	err := b.Connect("a", "OUT", 0, "b", "IN", -1)
	assert.True(t, pkgerrors.IsInvalidArgument(err), "index on a scalar port")

	err = b.Connect("a", "OUT", -1, "b", "AIN", -1)
	assert.True(t, pkgerrors.IsInvalidArgument(err), "array port without index")

	err = b.Connect("a", "OUT", -1, "b", "AIN", 3)
	assert.True(t, pkgerrors.IsOutOfRange(err), "index past the array size")

	require.NoError(t, b.Connect("a", "OUT", -1, "b", "AIN", 2))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	defer node.Del()

	require.Len(t, dst.last.deliveries, 1)
	assert.Equal(t, uint16(3), dst.last.deliveries[0].port)
}

func TestConnectUnknownNames(t *testing.T) {
	b := builder.New()
	require.NoError(t, b.AddNode("a", newGateType(), nil))

	err := b.Connect("missing", "OUT", -1, "a", "IN", -1)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = b.Connect("a", "NOPE", -1, "a", "IN", -1)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = b.Connect("a", "OUT", -1, "a", "NOPE", -1)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestConnectErrorPortByName(t *testing.T) {
	src := newGateType()
	dst := newGateType()

	b := builder.New()
	require.NoError(t, b.AddNode("a", src, nil))
	require.NoError(t, b.AddNode("b", dst, nil))
	require.NoError(t, b.Connect("a", "ERROR", -1, "b", "IN", -1))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	defer node.Del()

	inner, err := typ.GetNode(node, 0)
	require.NoError(t, err)
	require.NoError(t, inner.SendError(2, "boom"))

	require.Len(t, dst.last.deliveries, 1)
	assert.Equal(t, uint16(0), dst.last.deliveries[0].port)
}

func TestConnectByIndexBounds(t *testing.T) {
	b := builder.New()
	require.NoError(t, b.AddNode("a", newGateType(), nil))
	require.NoError(t, b.AddNode("b", newGateType(), nil))

	err := b.ConnectByIndex("a", 1, "b", 0)
	assert.True(t, pkgerrors.IsOutOfRange(err))

	err = b.ConnectByIndex("a", 0, "b", 4)
	assert.True(t, pkgerrors.IsOutOfRange(err))

	require.NoError(t, b.ConnectByIndex("a", flow.PortError, "b", 0))
	require.NoError(t, b.ConnectByIndex("a", 0, "b", 3))
}

func TestExportPorts(t *testing.T) {
	gt := newGateType()

	b := builder.New()
	require.NoError(t, b.AddNode("a", gt, nil))
	require.NoError(t, b.ExportInPort("a", "IN", -1, "INPUT"))
	require.NoError(t, b.ExportInPort("a", "AIN", -1, "ARRAY"))
	require.NoError(t, b.ExportOutPort("a", "OUT", -1, "OUTPUT"))
	require.NoError(t, b.ExportOutPort("a", "ERROR", -1, "FAULT"))

	err := b.ExportInPort("a", "IN", -1, "INPUT")
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	typ, err := b.GetNodeType()
	require.NoError(t, err)
	assert.Equal(t, uint16(4), typ.PortsInCount())
	assert.Equal(t, uint16(2), typ.PortsOutCount())

	desc := typ.Description()
	require.NotNil(t, desc)
	wantIn := []*flow.PortDescription{
		{Name: "INPUT", DataType: "int"},
		{Name: "ARRAY", DataType: "int", ArraySize: 3, BasePortIdx: 1},
	}
	wantOut := []*flow.PortDescription{
		{Name: "OUTPUT", DataType: "int"},
		{Name: "FAULT", DataType: "error", BasePortIdx: 1},
	}
	assert.Empty(t, cmp.Diff(wantIn, desc.PortsIn))
	assert.Empty(t, cmp.Diff(wantOut, desc.PortsOut))

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	defer node.Del()

	require.NoError(t, flow.DeliverPacket(node, 0, 0, packet.NewIRangeValue(5)))
	require.NoError(t, flow.DeliverPacket(node, 3, 0, packet.NewIRangeValue(9)))

	require.Len(t, gt.last.deliveries, 2)
	assert.Equal(t, uint16(0), gt.last.deliveries[0].port)
	assert.Equal(t, int32(5), gt.last.deliveries[0].value)
	assert.Equal(t, uint16(3), gt.last.deliveries[1].port)
	assert.Equal(t, int32(9), gt.last.deliveries[1].value)
}

func TestExportOption(t *testing.T) {
	gt := newGateType()

	b := builder.New()
	require.NoError(t, b.AddNode("a", gt, gateOpts(t, gt, "value=7")))
	require.NoError(t, b.ExportOption("a", "value", "level"))

	err := b.ExportOption("a", "label", "level")
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	err = b.ExportOption("a", "nope", "other")
	assert.True(t, pkgerrors.IsNotFound(err))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	desc := typ.Description()
	require.NotNil(t, desc.Options)
	require.Len(t, desc.Options.Members, 1)
	assert.Equal(t, "level", desc.Options.Members[0].Name)
	assert.False(t, desc.Options.Members[0].Required)

	node, err := flow.NewNode(nil, "defaults", typ, nil)
	require.NoError(t, err)
	require.NotNil(t, gt.last.opts)
	assert.Equal(t, int32(7), gt.last.opts.Int("value", 0).Value)
	node.Del()

	flowOpts, err := options.NewFromStrv(desc.Options, []string{"level=9"})
	require.NoError(t, err)
	node, err = flow.NewNode(nil, "override", typ, flowOpts)
	require.NoError(t, err)
	assert.Equal(t, int32(9), gt.last.opts.Int("value", 0).Value)
	node.Del()
}

func TestBuiltFlowRejectsMutation(t *testing.T) {
	b := builder.New()
	require.NoError(t, b.AddNode("a", newGateType(), nil))
	require.NoError(t, b.AddNode("b", newGateType(), nil))
	require.NoError(t, b.Connect("a", "OUT", -1, "b", "IN", -1))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsAlreadyExists(b.AddNode("c", newGateType(), nil)))
	assert.True(t, pkgerrors.IsAlreadyExists(b.AddNodeByID("d", "gate", nil)))
	assert.True(t, pkgerrors.IsAlreadyExists(b.Connect("a", "OUT", -1, "b", "AIN", 0)))
	assert.True(t, pkgerrors.IsAlreadyExists(b.ConnectByIndex("a", 0, "b", 0)))
	assert.True(t, pkgerrors.IsAlreadyExists(b.ExportInPort("a", "IN", -1, "X")))
	assert.True(t, pkgerrors.IsAlreadyExists(b.ExportOutPort("b", "OUT", -1, "Y")))
	assert.True(t, pkgerrors.IsAlreadyExists(b.ExportOption("a", "value", "Z")))
	assert.True(t, pkgerrors.IsAlreadyExists(b.SetTypeDescription("n", "", "", "", "", "", "")))

	again, err := b.GetNodeType()
	require.NoError(t, err)
	assert.Same(t, typ, again)

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	node.Del()
}

func TestAddNodeByID(t *testing.T) {
	gt := newGateType()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("gate", gt))
	require.NoError(t, reg.Register("plain", &plainType{}))

	b := builder.New()
	b.SetResolver(resolver.FromRegistry("test", reg))

	require.NoError(t, b.AddNodeByID("a", "gate", []string{"value=5"}))

	err := b.AddNodeByID("x", "missing", nil)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = b.AddNodeByID("y", "gate", []string{"nope=1"})
	assert.True(t, pkgerrors.IsInvalidOption(err))

	err = b.AddNodeByID("p", "plain", []string{"value=1"})
	assert.True(t, pkgerrors.IsInvalidOption(err))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	node, err := flow.NewNode(nil, "f", typ, nil)
	require.NoError(t, err)
	defer node.Del()

	require.NotNil(t, gt.last.opts)
	assert.Equal(t, int32(5), gt.last.opts.Int("value", 0).Value)
}

func TestSetTypeDescription(t *testing.T) {
	b := builder.New()

	err := b.SetTypeDescription("bad name", "", "", "", "", "", "")
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	require.NoError(t, b.SetTypeDescription("composite", "test", "a fixture flow",
		"nobody", "http://example.com", "MIT", "1"))
	require.NoError(t, b.AddNode("a", newGateType(), nil))

	typ, err := b.GetNodeType()
	require.NoError(t, err)

	desc := typ.Description()
	require.NotNil(t, desc)
	assert.Equal(t, "composite", desc.Name)
	assert.Equal(t, "test", desc.Category)
}

// plainType has no description and no options.
type plainType struct {
	flow.TypeBase
}
