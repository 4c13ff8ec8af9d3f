// Package blob implements reference-counted immutable byte buffers with
// cascaded parent ownership. A blob optionally pins a parent blob: while the
// child is reachable the parent's storage stays alive, and releasing the
// child drops exactly one parent reference.
//
// Blobs are shared but immutable after construction. The reference count is
// the only mutable field and must be manipulated from the main-loop thread
// only, matching the runtime's single-threaded cooperative model.
package blob

import (
	"github.com/c360/flowkit/errors"
)

// Type is the free-policy vtable for a blob. Free runs exactly once, when
// the reference count reaches zero and before the parent reference is
// dropped.
type Type struct {
	// Free releases the underlying storage. A nil Free leaves the memory
	// to its external owner.
	Free func(b *Blob)
}

// TypeDefault releases the blob's memory when the last reference is dropped.
var TypeDefault = &Type{Free: func(b *Blob) { b.mem = nil }}

// TypeNoFree never touches the memory; the caller owns the underlying
// storage and must outlive every reference to the blob.
var TypeNoFree = &Type{}

// Blob is a reference-counted byte buffer.
type Blob struct {
	typ    *Type
	parent *Blob
	mem    []byte
	refcnt int
}

// New creates a blob with reference count 1 wrapping mem. A non-nil parent
// is pinned with one additional reference; acyclicity is guaranteed by
// construction since the parent must pre-exist. A nil typ selects
// TypeDefault.
func New(typ *Type, parent *Blob, mem []byte) (*Blob, error) {
	if typ == nil {
		typ = TypeDefault
	}
	if parent != nil && parent.refcnt < 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Blob", "New", "dead parent")
	}

	b := &Blob{
		typ:    typ,
		parent: parent,
		mem:    mem,
		refcnt: 1,
	}
	if parent != nil {
		parent.Ref()
	}
	return b, nil
}

// Ref increments the reference count and returns the blob for chaining.
func (b *Blob) Ref() *Blob {
	if b == nil || b.refcnt < 1 {
		return b
	}
	b.refcnt++
	return b
}

// Unref decrements the reference count. On reaching zero the type's Free
// hook runs and one parent reference is released.
func (b *Blob) Unref() {
	if b == nil || b.refcnt < 1 {
		return
	}
	b.refcnt--
	if b.refcnt > 0 {
		return
	}

	parent := b.parent
	b.parent = nil
	if b.typ.Free != nil {
		b.typ.Free(b)
	}
	if parent != nil {
		parent.Unref()
	}
}

// SetParent atomically pins newParent and releases the current parent. It is
// only valid while the caller owns the blob exclusively (reference count 1).
func (b *Blob) SetParent(newParent *Blob) error {
	if b == nil {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Blob", "SetParent", "nil blob")
	}
	if b.refcnt != 1 {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Blob", "SetParent", "shared blob")
	}
	if newParent == b {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Blob", "SetParent", "self parent")
	}

	if newParent != nil {
		newParent.Ref()
	}
	if b.parent != nil {
		b.parent.Unref()
	}
	b.parent = newParent
	return nil
}

// Data returns the underlying bytes. Callers must not mutate them. Returns
// nil after the blob has been freed.
func (b *Blob) Data() []byte {
	if b == nil {
		return nil
	}
	return b.mem
}

// Size returns the byte length of the blob's storage.
func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.mem)
}

// Parent returns the pinned parent blob, or nil.
func (b *Blob) Parent() *Blob {
	if b == nil {
		return nil
	}
	return b.parent
}

// RefCount reports the current reference count. Zero means the blob has
// been freed and must not be used.
func (b *Blob) RefCount() int {
	if b == nil {
		return 0
	}
	return b.refcnt
}
