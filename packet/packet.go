package packet

import (
	"fmt"
	"time"

	"github.com/c360/flowkit/blob"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/types"
)

// Error is the payload of a TypeError packet: an integer code plus an
// optional human-readable message.
type Error struct {
	Code int
	Msg  string
}

// Packet is an immutable typed value. The runtime reference-counts packets
// at fan-out: every Process hook consumes the reference it receives, and the
// payload is released exactly once when the last reference is dropped.
type Packet struct {
	typ    *Type
	refcnt int
	data   any
}

func newPacket(typ *Type, data any) *Packet {
	return &Packet{typ: typ, refcnt: 1, data: data}
}

// Type returns the packet's type singleton.
func (p *Packet) Type() *Type {
	if p == nil {
		return nil
	}
	return p.typ
}

// Ref takes one extra reference on the packet. The runtime uses this at
// fan-out to hand every destination its own reference.
func (p *Packet) Ref() *Packet {
	if p == nil || p.refcnt < 1 {
		return p
	}
	p.refcnt++
	return p
}

// Del releases one reference. When the last reference is dropped the payload
// is freed: inner blobs are unreferenced and composed members released.
func (p *Packet) Del() {
	if p == nil || p.refcnt < 1 {
		return
	}
	p.refcnt--
	if p.refcnt > 0 {
		return
	}

	switch data := p.data.(type) {
	case *blob.Blob:
		data.Unref()
	case []*Packet:
		for _, member := range data {
			member.Del()
		}
	}
	p.data = nil
}

// Constructors. Fallible payloads return an error; trivially valid ones do
// not.

// NewEmpty creates a packet with no payload, used as a pure trigger.
func NewEmpty() *Packet { return newPacket(TypeEmpty, nil) }

// NewBoolean creates a boolean packet.
func NewBoolean(v bool) *Packet { return newPacket(TypeBoolean, v) }

// NewByte creates a byte packet.
func NewByte(v byte) *Packet { return newPacket(TypeByte, v) }

// NewString creates a string packet owning a copy of s.
func NewString(s string) *Packet { return newPacket(TypeString, s) }

// NewTimestamp creates a timestamp packet.
func NewTimestamp(t time.Time) *Packet { return newPacket(TypeTimestamp, t) }

// NewError creates an error packet with the given code and message. The
// message is copied.
func NewError(code int, msg string) *Packet {
	return newPacket(TypeError, Error{Code: code, Msg: msg})
}

// NewErrorf creates an error packet with a formatted message.
func NewErrorf(code int, format string, args ...any) *Packet {
	return NewError(code, fmt.Sprintf(format, args...))
}

// NewIRange creates an integer-range packet after validating the bounds.
func NewIRange(r types.IntRange) (*Packet, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "Packet", "NewIRange", "range validation")
	}
	return newPacket(TypeIRange, r), nil
}

// NewIRangeValue creates an integer-range packet with open bounds.
func NewIRangeValue(v int32) *Packet {
	return newPacket(TypeIRange, types.NewIntRange(v))
}

// NewDRange creates a float-range packet after validating the bounds.
func NewDRange(r types.FloatRange) (*Packet, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "Packet", "NewDRange", "range validation")
	}
	return newPacket(TypeDRange, r), nil
}

// NewDRangeValue creates a float-range packet with open bounds.
func NewDRangeValue(v float64) *Packet {
	return newPacket(TypeDRange, types.NewFloatRange(v))
}

// NewRGB creates a color packet after validating the channels.
func NewRGB(c types.RGB) (*Packet, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "Packet", "NewRGB", "color validation")
	}
	return newPacket(TypeRGB, c), nil
}

// NewDirectionVector creates a direction-vector packet after validation.
func NewDirectionVector(d types.DirectionVector) (*Packet, error) {
	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(err, "Packet", "NewDirectionVector", "vector validation")
	}
	return newPacket(TypeDirectionVector, d), nil
}

// NewLocation creates a location packet after validation.
func NewLocation(l types.Location) (*Packet, error) {
	if err := l.Validate(); err != nil {
		return nil, errors.Wrap(err, "Packet", "NewLocation", "location validation")
	}
	return newPacket(TypeLocation, l), nil
}

// NewBlob creates a blob packet. The packet takes its own reference on the
// blob; the caller keeps (and remains responsible for) its original one.
func NewBlob(b *blob.Blob) (*Packet, error) {
	return newBlobPacket(TypeBlob, b, "NewBlob")
}

// NewJSONObject creates a json-object packet backed by a blob holding the
// serialized object.
func NewJSONObject(b *blob.Blob) (*Packet, error) {
	return newBlobPacket(TypeJSONObject, b, "NewJSONObject")
}

// NewJSONArray creates a json-array packet backed by a blob holding the
// serialized array.
func NewJSONArray(b *blob.Blob) (*Packet, error) {
	return newBlobPacket(TypeJSONArray, b, "NewJSONArray")
}

func newBlobPacket(typ *Type, b *blob.Blob, method string) (*Packet, error) {
	if b == nil || b.RefCount() < 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", method, "blob validation")
	}
	return newPacket(typ, b.Ref()), nil
}

// NewComposed creates a packet of the given composed type, taking ownership
// of each member packet. Member count and types must match the composed
// type's member list exactly.
func NewComposed(typ *Type, members ...*Packet) (*Packet, error) {
	if !typ.IsComposed() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "NewComposed",
			"type is not composed")
	}
	if len(members) != len(typ.members) {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "NewComposed",
			fmt.Sprintf("expected %d members, got %d", len(typ.members), len(members)))
	}
	for i, m := range members {
		if m == nil || m.typ != typ.members[i] {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "NewComposed",
				fmt.Sprintf("member %d type mismatch", i))
		}
	}
	return newPacket(typ, append([]*Packet(nil), members...)), nil
}

// Getters. Each fails with an invalid-argument type-mismatch error when the
// packet's type differs from the requested one. Strings and blobs are
// borrowed, not copied; the caller must not release them.

func (p *Packet) mismatch(method string, want *Type) error {
	return errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", method,
		fmt.Sprintf("type mismatch: have %s, want %s", p.typ.Name(), want.Name()))
}

// Boolean reads a boolean payload.
func (p *Packet) Boolean() (bool, error) {
	if p.typ != TypeBoolean {
		return false, p.mismatch("Boolean", TypeBoolean)
	}
	return p.data.(bool), nil
}

// Byte reads a byte payload.
func (p *Packet) Byte() (byte, error) {
	if p.typ != TypeByte {
		return 0, p.mismatch("Byte", TypeByte)
	}
	return p.data.(byte), nil
}

// IRange reads an integer-range payload.
func (p *Packet) IRange() (types.IntRange, error) {
	if p.typ != TypeIRange {
		return types.IntRange{}, p.mismatch("IRange", TypeIRange)
	}
	return p.data.(types.IntRange), nil
}

// DRange reads a float-range payload.
func (p *Packet) DRange() (types.FloatRange, error) {
	if p.typ != TypeDRange {
		return types.FloatRange{}, p.mismatch("DRange", TypeDRange)
	}
	return p.data.(types.FloatRange), nil
}

// String reads a string payload. The string is borrowed.
func (p *Packet) String() (string, error) {
	if p.typ != TypeString {
		return "", p.mismatch("String", TypeString)
	}
	return p.data.(string), nil
}

// RGB reads a color payload.
func (p *Packet) RGB() (types.RGB, error) {
	if p.typ != TypeRGB {
		return types.RGB{}, p.mismatch("RGB", TypeRGB)
	}
	return p.data.(types.RGB), nil
}

// DirectionVector reads a direction-vector payload.
func (p *Packet) DirectionVector() (types.DirectionVector, error) {
	if p.typ != TypeDirectionVector {
		return types.DirectionVector{}, p.mismatch("DirectionVector", TypeDirectionVector)
	}
	return p.data.(types.DirectionVector), nil
}

// Location reads a location payload.
func (p *Packet) Location() (types.Location, error) {
	if p.typ != TypeLocation {
		return types.Location{}, p.mismatch("Location", TypeLocation)
	}
	return p.data.(types.Location), nil
}

// Timestamp reads a timestamp payload.
func (p *Packet) Timestamp() (time.Time, error) {
	if p.typ != TypeTimestamp {
		return time.Time{}, p.mismatch("Timestamp", TypeTimestamp)
	}
	return p.data.(time.Time), nil
}

// Blob reads a blob payload. The blob is borrowed; callers needing to keep
// it beyond the packet's life must Ref it themselves.
func (p *Packet) Blob() (*blob.Blob, error) {
	if p.typ != TypeBlob {
		return nil, p.mismatch("Blob", TypeBlob)
	}
	return p.data.(*blob.Blob), nil
}

// JSONObject reads the blob backing a json-object payload. Borrowed.
func (p *Packet) JSONObject() (*blob.Blob, error) {
	if p.typ != TypeJSONObject {
		return nil, p.mismatch("JSONObject", TypeJSONObject)
	}
	return p.data.(*blob.Blob), nil
}

// JSONArray reads the blob backing a json-array payload. Borrowed.
func (p *Packet) JSONArray() (*blob.Blob, error) {
	if p.typ != TypeJSONArray {
		return nil, p.mismatch("JSONArray", TypeJSONArray)
	}
	return p.data.(*blob.Blob), nil
}

// GetError reads an error payload.
func (p *Packet) GetError() (code int, msg string, err error) {
	if p.typ != TypeError {
		return 0, "", p.mismatch("GetError", TypeError)
	}
	e := p.data.(Error)
	return e.Code, e.Msg, nil
}

// ComposedMembers returns the member packets of a composed packet. Members
// are borrowed; they are released with the packet.
func (p *Packet) ComposedMembers() ([]*Packet, error) {
	if !p.typ.IsComposed() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "ComposedMembers",
			"packet is not composed")
	}
	members := p.data.([]*Packet)
	out := make([]*Packet, len(members))
	copy(out, members)
	return out, nil
}
