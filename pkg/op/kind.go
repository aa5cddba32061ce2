package op

import "strings"

// Kind identifies the concrete operation a node performs. The numeric value
// of a Kind is also its opcode tag in a linked program.
type Kind uint8

const (
	KindNone                          Kind = iota // never emitted
	KindConst                                     // scalar integer constant
	KindMeshConstant                              // reference to an external mesh resource
	KindMatrixConstant                            // affine transform constant
	KindMeshTransform                             // transform a mesh by a matrix
	KindMeshTransformWithBoundingMesh             // transform the vertices selected by a bounding mesh
	KindMeshClipDeform                            // deform a mesh so it stays inside a clip shape
	KindMeshClipMorphPlane                        // morph vertices towards a clipping plane
	KindMeshMerge                                 // merge two meshes
	KindAddLOD                                    // assemble levels of detail

	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindConst:
		return "Const"
	case KindMeshConstant:
		return "MeshConstant"
	case KindMatrixConstant:
		return "MatrixConstant"
	case KindMeshTransform:
		return "MeshTransform"
	case KindMeshTransformWithBoundingMesh:
		return "MeshTransformWithBoundingMesh"
	case KindMeshClipDeform:
		return "MeshClipDeform"
	case KindMeshClipMorphPlane:
		return "MeshClipMorphPlane"
	case KindMeshMerge:
		return "MeshMerge"
	case KindAddLOD:
		return "AddLOD"
	default:
		return "unknown"
	}
}

// IsValid reports whether k names an emittable operation.
func (k Kind) IsValid() bool {
	return k > KindNone && k < numKinds
}

// Opcode returns the opcode tag emitted for k.
func (k Kind) Opcode() byte {
	return byte(k)
}

// KindOf maps an opcode tag back to its Kind.
func KindOf(opcode byte) (Kind, bool) {
	k := Kind(opcode)
	return k, k.IsValid()
}

// Kinds returns every emittable kind in opcode order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds-1)
	for k := KindConst; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ArgSize returns the size in bytes of the fixed argument struct that follows
// the opcode tag of k. It returns -1 for an invalid kind.
func ArgSize(k Kind) int {
	const (
		addr = 4
		u8   = 1
		u32  = 4
		f64  = 8
	)
	switch k {
	case KindConst:
		return u32
	case KindMeshConstant:
		return u32
	case KindMatrixConstant:
		return 12 * f64
	case KindMeshTransform:
		return 2 * addr
	case KindMeshTransformWithBoundingMesh:
		return 3*addr + u8
	case KindMeshClipDeform:
		return 2*addr + u8
	case KindMeshClipMorphPlane:
		return addr + 9*f64
	case KindMeshMerge:
		return 2*addr + u32
	case KindAddLOD:
		return u8 + MaxLODs*addr
	default:
		return -1
	}
}

var (
	meshKinds = []Kind{
		KindMeshConstant,
		KindMeshTransform,
		KindMeshTransformWithBoundingMesh,
		KindMeshClipDeform,
		KindMeshClipMorphPlane,
		KindMeshMerge,
	}
	matrixKinds = []Kind{KindMatrixConstant}
)

// MeshKinds returns the kinds whose result is a mesh.
func MeshKinds() []Kind {
	return append([]Kind(nil), meshKinds...)
}

// slotKinds is the child kind contract of each kind, by slot position. A
// kind or slot missing here takes a child of any kind.
var slotKinds = map[Kind][][]Kind{
	KindMeshTransform:                 {meshKinds, matrixKinds},
	KindMeshTransformWithBoundingMesh: {meshKinds, meshKinds, matrixKinds},
	KindMeshClipDeform:                {meshKinds, meshKinds},
	KindMeshClipMorphPlane:            {meshKinds},
	KindMeshMerge:                     {meshKinds, meshKinds},
}

// Accepts returns the kinds a child in slot pos of a k node may have, or
// nil if any kind is allowed.
func Accepts(k Kind, pos int) []Kind {
	slots := slotKinds[k]
	if pos < 0 || pos >= len(slots) {
		return nil
	}
	return append([]Kind(nil), slots[pos]...)
}

// AcceptsChild reports whether a child of kind child may fill slot pos of a
// k node.
func AcceptsChild(k Kind, pos int, child Kind) bool {
	slots := slotKinds[k]
	if pos < 0 || pos >= len(slots) {
		return true
	}
	for _, want := range slots[pos] {
		if want == child {
			return true
		}
	}
	return false
}

// FormatKinds joins kinds for messages, e.g. "MeshConstant or MeshMerge".
func FormatKinds(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " or ")
}
