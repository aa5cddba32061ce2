// Package op defines the operation nodes of a generation graph. Every
// operation is a small comparable value: its kind, its scalar parameters, and
// references to the child nodes it consumes. Nodes never point at each other
// directly; a child is a Ref into the arena that owns the graph.
package op

import (
	"fmt"

	"github.com/chazu/opgraph/pkg/program"
)

// Ref refers to a node by its position in a graph arena. The zero Ref is
// NoRef, so an unset child slot is always absent rather than pointing at the
// first node.
type Ref uint32

// NoRef marks an absent child.
const NoRef Ref = 0

// RefAt returns the Ref of the node stored at arena index i.
func RefAt(i int) Ref {
	return Ref(i + 1)
}

// Index returns the arena index of r. It must not be called on NoRef.
func (r Ref) Index() int {
	return int(r) - 1
}

// IsZero reports whether r is NoRef.
func (r Ref) IsZero() bool {
	return r == NoRef
}

func (r Ref) String() string {
	if r == NoRef {
		return "#-"
	}
	return fmt.Sprintf("#%d", r.Index())
}

// Slot is one child position of an operation.
type Slot struct {
	Name string // slot name, e.g. "source" or "lods[2]"
	Pos  int    // position in the operation's stable slot order
	Ref  Ref    // NoRef if the child is absent
}

// Op is implemented by every operation kind. The set of implementations is
// closed to this package.
//
// Implementations are comparable structs holding only scalars and Refs.
// Equal and Hash look at nothing else.
type Op interface {
	// Kind returns the operation's tag.
	Kind() Kind

	// ForEachChild visits every child slot in a stable, kind-defined order,
	// including absent ones.
	ForEachChild(visit func(Slot))

	// Clone returns a copy of the operation with every present child r
	// replaced by mapChild(r). Absent children stay absent.
	Clone(mapChild func(Ref) Ref) Op

	// EncodeArgs writes the operation's fixed-size argument struct. Child
	// slots are written as the addresses returned by resolve, which maps
	// NoRef to program.NoAddress.
	EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address)

	hashParams(h *hasher)
}

// Equal reports whether a and b are structurally identical: same kind, equal
// parameters, and the same child refs in every slot. Float parameters
// compare by bits after folding -0 into +0, so an op carrying a NaN equals a
// bitwise copy of itself.
func Equal(a, b Op) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return sameChildren(a, b) && sameParams(a, b)
}

// sameChildren reports whether a and b hold the same ref in every slot.
func sameChildren(a, b Op) bool {
	var refs []Ref
	a.ForEachChild(func(s Slot) {
		refs = append(refs, s.Ref)
	})
	same, i := true, 0
	b.ForEachChild(func(s Slot) {
		if i >= len(refs) || refs[i] != s.Ref {
			same = false
		}
		i++
	})
	return same && i == len(refs)
}

// Hash returns a hash of o consistent with Equal: Equal(a, b) implies
// Hash(a) == Hash(b).
func Hash(o Op) uint64 {
	h := newHasher()
	h.u8(uint8(o.Kind()))
	o.ForEachChild(func(s Slot) {
		h.u32(uint32(s.Ref))
	})
	o.hashParams(h)
	return h.sum()
}

// Children returns the present child refs of o in slot order. A child
// referenced from two slots appears twice.
func Children(o Op) []Ref {
	var out []Ref
	o.ForEachChild(func(s Slot) {
		if !s.Ref.IsZero() {
			out = append(out, s.Ref)
		}
	})
	return out
}

// mapRef applies mapChild to r unless r is absent.
func mapRef(r Ref, mapChild func(Ref) Ref) Ref {
	if r.IsZero() {
		return NoRef
	}
	return mapChild(r)
}
