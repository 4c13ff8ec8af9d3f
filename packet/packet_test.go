package packet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/blob"
	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/packet"
	"github.com/c360/flowkit/types"
)

func TestScalarRoundTrips(t *testing.T) {
	b := packet.NewBoolean(true)
	defer b.Del()
	v, err := b.Boolean()
	require.NoError(t, err)
	assert.True(t, v)
	assert.Same(t, packet.TypeBoolean, b.Type())

	by := packet.NewByte(0x7f)
	defer by.Del()
	bv, err := by.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), bv)

	s := packet.NewString("hello")
	defer s.Del()
	sv, err := s.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", sv)

	now := time.Now()
	ts := packet.NewTimestamp(now)
	defer ts.Del()
	tv, err := ts.Timestamp()
	require.NoError(t, err)
	assert.True(t, now.Equal(tv))
}

func TestTypeMismatch(t *testing.T) {
	p := packet.NewBoolean(false)
	defer p.Del()

	_, err := p.Byte()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	_, err = p.String()
	assert.Error(t, err)
}

func TestIRangeValidation(t *testing.T) {
	_, err := packet.NewIRange(types.IntRange{Value: 50, Min: 0, Max: 10, Step: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsOutOfRange(err))

	p, err := packet.NewIRange(types.IntRange{Value: 5, Min: 0, Max: 10, Step: 1})
	require.NoError(t, err)
	defer p.Del()

	r, err := p.IRange()
	require.NoError(t, err)
	assert.Equal(t, int32(5), r.Value)
}

func TestErrorPacket(t *testing.T) {
	p := packet.NewErrorf(2, "no such %s", "entry")
	defer p.Del()

	code, msg, err := p.GetError()
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Equal(t, "no such entry", msg)
}

func TestBlobPacketRefCounting(t *testing.T) {
	b, err := blob.New(nil, nil, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, b.RefCount())

	p, err := packet.NewBlob(b)
	require.NoError(t, err)
	assert.Equal(t, 2, b.RefCount(), "packet takes its own reference")

	got, err := p.Blob()
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Equal(t, 2, b.RefCount(), "getter borrows, does not ref")

	p.Del()
	assert.Equal(t, 1, b.RefCount(), "packet release drops its reference")

	b.Unref()
	assert.Equal(t, 0, b.RefCount())
}

func TestPacketFanOutRefs(t *testing.T) {
	b, err := blob.New(nil, nil, []byte{9})
	require.NoError(t, err)
	p, err := packet.NewBlob(b)
	require.NoError(t, err)
	b.Unref() // packet now holds the only blob reference

	p.Ref()
	p.Ref()
	p.Del()
	p.Del()
	assert.Equal(t, 1, b.RefCount(), "payload alive until last reference")

	p.Del()
	assert.Equal(t, 0, b.RefCount(), "payload freed exactly once")
}

func TestComposedTypeMemoized(t *testing.T) {
	a, err := packet.ComposedType([]*packet.Type{packet.TypeBoolean, packet.TypeIRange})
	require.NoError(t, err)
	b, err := packet.ComposedType([]*packet.Type{packet.TypeBoolean, packet.TypeIRange})
	require.NoError(t, err)
	assert.Same(t, a, b, "composed types are memoized by member list")

	c, err := packet.ComposedType([]*packet.Type{packet.TypeIRange, packet.TypeBoolean})
	require.NoError(t, err)
	assert.NotSame(t, a, c, "member order distinguishes composed types")

	assert.True(t, a.IsComposed())
	assert.Equal(t, []*packet.Type{packet.TypeBoolean, packet.TypeIRange}, a.ComposedMembers())
}

func TestComposedPacket(t *testing.T) {
	typ, err := packet.ComposedType([]*packet.Type{packet.TypeBoolean, packet.TypeString})
	require.NoError(t, err)

	p, err := packet.NewComposed(typ, packet.NewBoolean(true), packet.NewString("x"))
	require.NoError(t, err)

	members, err := p.ComposedMembers()
	require.NoError(t, err)
	require.Len(t, members, 2)

	v, err := members[0].Boolean()
	require.NoError(t, err)
	assert.True(t, v)

	p.Del()
}

func TestComposedMemberTypeEnforced(t *testing.T) {
	typ, err := packet.ComposedType([]*packet.Type{packet.TypeBoolean, packet.TypeString})
	require.NoError(t, err)

	_, err = packet.NewComposed(typ, packet.NewString("x"), packet.NewBoolean(true))
	assert.Error(t, err)

	_, err = packet.NewComposed(typ, packet.NewBoolean(true))
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	assert.True(t, packet.Match(packet.TypeBoolean, packet.TypeBoolean))
	assert.False(t, packet.Match(packet.TypeBoolean, packet.TypeByte))
	assert.True(t, packet.Match(packet.TypeAny, packet.TypeByte))
	assert.True(t, packet.Match(packet.TypeBoolean, packet.TypeAny))
}
