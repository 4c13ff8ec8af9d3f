// Package packet implements the typed value carriers that flow along
// connections. Packet types are process-wide singletons compared by
// identity, never by name. A packet owns its payload: sending transfers
// ownership and the receiving pipeline releases it exactly once.
package packet

import (
	"strings"
	"sync"

	"github.com/c360/flowkit/errors"
)

// Type identifies the concrete payload shape of a packet. Types are
// singletons; two ports carry the same packet type only when their Type
// pointers are equal.
type Type struct {
	name    string
	members []*Type // non-nil only for composed types
}

// Name returns the type's human-readable name, used in descriptions and
// diagnostics only.
func (t *Type) Name() string { return t.name }

// IsComposed reports whether the type is a fixed-length tuple of other
// packet types.
func (t *Type) IsComposed() bool { return t != nil && t.members != nil }

// ComposedMembers returns the member types of a composed type, or nil.
func (t *Type) ComposedMembers() []*Type {
	if !t.IsComposed() {
		return nil
	}
	out := make([]*Type, len(t.members))
	copy(out, t.members)
	return out
}

// The built-in packet types.
var (
	// TypeAny matches any packet type in port compatibility checks. No
	// packet is ever constructed with this type.
	TypeAny = &Type{name: "any"}

	TypeEmpty           = &Type{name: "empty"}
	TypeBoolean         = &Type{name: "boolean"}
	TypeByte            = &Type{name: "byte"}
	TypeIRange          = &Type{name: "int"}
	TypeDRange          = &Type{name: "float"}
	TypeString          = &Type{name: "string"}
	TypeBlob            = &Type{name: "blob"}
	TypeRGB             = &Type{name: "rgb"}
	TypeDirectionVector = &Type{name: "direction-vector"}
	TypeLocation        = &Type{name: "location"}
	TypeTimestamp       = &Type{name: "timestamp"}
	TypeJSONObject      = &Type{name: "json-object"}
	TypeJSONArray       = &Type{name: "json-array"}
	TypeError           = &Type{name: "error"}
)

// composedTypes memoizes composed types by member list so repeated lookups
// yield the same singleton. Mutated during type construction only, which
// happens at program setup; the lock keeps registration safe regardless.
var (
	composedMu    sync.Mutex
	composedTypes = map[string]*Type{}
)

// ComposedType looks up or creates the composed type with the given member
// list. Passing the same members always returns the identical *Type.
func ComposedType(members []*Type) (*Type, error) {
	if len(members) < 2 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "ComposedType",
			"composed type needs at least two members")
	}

	names := make([]string, len(members))
	for i, m := range members {
		if m == nil || m == TypeAny || m.IsComposed() {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Packet", "ComposedType",
				"invalid member type")
		}
		names[i] = m.name
	}
	key := strings.Join(names, ",")

	composedMu.Lock()
	defer composedMu.Unlock()

	if t, ok := composedTypes[key]; ok {
		return t, nil
	}

	t := &Type{
		name:    "composed:" + key,
		members: append([]*Type(nil), members...),
	}
	composedTypes[key] = t
	return t, nil
}

// Match reports whether packet types a and b are compatible for a
// connection. TypeAny matches everything.
func Match(a, b *Type) bool {
	if a == TypeAny || b == TypeAny {
		return true
	}
	return a == b
}
