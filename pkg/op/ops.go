package op

import (
	"fmt"

	"github.com/chazu/opgraph/pkg/program"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time checks that every kind implements Op.
var (
	_ Op = Const{}
	_ Op = MeshConstant{}
	_ Op = MatrixConstant{}
	_ Op = MeshTransform{}
	_ Op = MeshTransformWithBoundingMesh{}
	_ Op = MeshClipDeform{}
	_ Op = MeshClipMorphPlane{}
	_ Op = MeshMerge{}
	_ Op = AddLOD{}
)

// ---------------------------------------------------------------------------
// Leaves
// ---------------------------------------------------------------------------

// Const is a scalar integer constant.
type Const struct {
	Value int32
}

func (Const) Kind() Kind               { return KindConst }
func (Const) ForEachChild(func(Slot))  {}
func (o Const) Clone(func(Ref) Ref) Op { return o }
func (o Const) hashParams(h *hasher)   { h.u32(uint32(o.Value)) }
func (o Const) EncodeArgs(e *program.Encoder, _ func(Ref) program.Address) {
	e.I32(o.Value)
}

// MeshConstant names a mesh resource owned by whoever executes the program.
type MeshConstant struct {
	Resource uint32
}

func (MeshConstant) Kind() Kind               { return KindMeshConstant }
func (MeshConstant) ForEachChild(func(Slot))  {}
func (o MeshConstant) Clone(func(Ref) Ref) Op { return o }
func (o MeshConstant) hashParams(h *hasher)   { h.u32(o.Resource) }
func (o MeshConstant) EncodeArgs(e *program.Encoder, _ func(Ref) program.Address) {
	e.U32(o.Resource)
}

// MatrixConstant is a constant affine transform.
type MatrixConstant struct {
	Matrix Affine
}

func (MatrixConstant) Kind() Kind               { return KindMatrixConstant }
func (MatrixConstant) ForEachChild(func(Slot))  {}
func (o MatrixConstant) Clone(func(Ref) Ref) Op { return o }

func (o MatrixConstant) hashParams(h *hasher) {
	for _, v := range o.Matrix {
		h.f64(v)
	}
}

func (o MatrixConstant) EncodeArgs(e *program.Encoder, _ func(Ref) program.Address) {
	for _, v := range o.Matrix {
		e.F64(v)
	}
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

// MeshTransform applies a matrix to every vertex of a mesh.
type MeshTransform struct {
	Source Ref
	Matrix Ref
}

func (MeshTransform) Kind() Kind { return KindMeshTransform }

func (o MeshTransform) ForEachChild(visit func(Slot)) {
	visit(Slot{Name: "source", Pos: 0, Ref: o.Source})
	visit(Slot{Name: "matrix", Pos: 1, Ref: o.Matrix})
}

func (o MeshTransform) Clone(mapChild func(Ref) Ref) Op {
	o.Source = mapRef(o.Source, mapChild)
	o.Matrix = mapRef(o.Matrix, mapChild)
	return o
}

func (MeshTransform) hashParams(*hasher) {}

func (o MeshTransform) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.Address(resolve(o.Source))
	e.Address(resolve(o.Matrix))
}

// BoundingSelection chooses which vertices a bounding mesh selects.
type BoundingSelection uint8

const (
	SelectInside  BoundingSelection = iota // vertices inside the bounding mesh
	SelectOutside                          // vertices outside the bounding mesh
)

func (s BoundingSelection) String() string {
	switch s {
	case SelectInside:
		return "inside"
	case SelectOutside:
		return "outside"
	default:
		return fmt.Sprintf("BoundingSelection(%d)", uint8(s))
	}
}

// MeshTransformWithBoundingMesh applies a matrix only to the vertices of
// Source selected by BoundingMesh. Without a bounding mesh every vertex is
// selected.
type MeshTransformWithBoundingMesh struct {
	Source       Ref
	BoundingMesh Ref
	Matrix       Ref
	Selection    BoundingSelection
}

func (MeshTransformWithBoundingMesh) Kind() Kind { return KindMeshTransformWithBoundingMesh }

func (o MeshTransformWithBoundingMesh) ForEachChild(visit func(Slot)) {
	visit(Slot{Name: "source", Pos: 0, Ref: o.Source})
	visit(Slot{Name: "boundingMesh", Pos: 1, Ref: o.BoundingMesh})
	visit(Slot{Name: "matrix", Pos: 2, Ref: o.Matrix})
}

func (o MeshTransformWithBoundingMesh) Clone(mapChild func(Ref) Ref) Op {
	o.Source = mapRef(o.Source, mapChild)
	o.BoundingMesh = mapRef(o.BoundingMesh, mapChild)
	o.Matrix = mapRef(o.Matrix, mapChild)
	return o
}

func (o MeshTransformWithBoundingMesh) hashParams(h *hasher) { h.u8(uint8(o.Selection)) }

func (o MeshTransformWithBoundingMesh) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.Address(resolve(o.Source))
	e.Address(resolve(o.BoundingMesh))
	e.Address(resolve(o.Matrix))
	e.U8(uint8(o.Selection))
}

// ---------------------------------------------------------------------------
// Clipping
// ---------------------------------------------------------------------------

// FaceCullStrategy decides when a face of a clipped mesh is removed.
type FaceCullStrategy uint8

const (
	CullAllVertices FaceCullStrategy = iota // cull a face once all its vertices are clipped
	CullOneVertex                           // cull a face as soon as one vertex is clipped
)

func (s FaceCullStrategy) String() string {
	switch s {
	case CullAllVertices:
		return "all-vertices-culled"
	case CullOneVertex:
		return "one-vertex-culled"
	default:
		return fmt.Sprintf("FaceCullStrategy(%d)", uint8(s))
	}
}

// MeshClipDeform deforms Mesh so that it stays within ClipShape.
type MeshClipDeform struct {
	Mesh      Ref
	ClipShape Ref
	FaceCull  FaceCullStrategy
}

func (MeshClipDeform) Kind() Kind { return KindMeshClipDeform }

func (o MeshClipDeform) ForEachChild(visit func(Slot)) {
	visit(Slot{Name: "mesh", Pos: 0, Ref: o.Mesh})
	visit(Slot{Name: "clipShape", Pos: 1, Ref: o.ClipShape})
}

func (o MeshClipDeform) Clone(mapChild func(Ref) Ref) Op {
	o.Mesh = mapRef(o.Mesh, mapChild)
	o.ClipShape = mapRef(o.ClipShape, mapChild)
	return o
}

func (o MeshClipDeform) hashParams(h *hasher) { h.u8(uint8(o.FaceCull)) }

func (o MeshClipDeform) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.Address(resolve(o.Mesh))
	e.Address(resolve(o.ClipShape))
	e.U8(uint8(o.FaceCull))
}

// MeshClipMorphPlane morphs the vertices of Source that lie within Radius of
// the plane through Origin towards it, pulled by Factor over Distance.
type MeshClipMorphPlane struct {
	Source   Ref
	Origin   v3.Vec
	Normal   v3.Vec
	Distance float64
	Factor   float64
	Radius   float64
}

func (MeshClipMorphPlane) Kind() Kind { return KindMeshClipMorphPlane }

func (o MeshClipMorphPlane) ForEachChild(visit func(Slot)) {
	visit(Slot{Name: "source", Pos: 0, Ref: o.Source})
}

func (o MeshClipMorphPlane) Clone(mapChild func(Ref) Ref) Op {
	o.Source = mapRef(o.Source, mapChild)
	return o
}

func (o MeshClipMorphPlane) hashParams(h *hasher) {
	for _, v := range o.params() {
		h.f64(v)
	}
}

func (o MeshClipMorphPlane) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.Address(resolve(o.Source))
	for _, v := range o.params() {
		e.F64(v)
	}
}

func (o MeshClipMorphPlane) params() [9]float64 {
	return [9]float64{
		o.Origin.X, o.Origin.Y, o.Origin.Z,
		o.Normal.X, o.Normal.Y, o.Normal.Z,
		o.Distance, o.Factor, o.Radius,
	}
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// MeshMerge appends Added to Base as a new surface.
type MeshMerge struct {
	Base         Ref
	Added        Ref
	NewSurfaceID uint32
}

func (MeshMerge) Kind() Kind { return KindMeshMerge }

func (o MeshMerge) ForEachChild(visit func(Slot)) {
	visit(Slot{Name: "base", Pos: 0, Ref: o.Base})
	visit(Slot{Name: "added", Pos: 1, Ref: o.Added})
}

func (o MeshMerge) Clone(mapChild func(Ref) Ref) Op {
	o.Base = mapRef(o.Base, mapChild)
	o.Added = mapRef(o.Added, mapChild)
	return o
}

func (o MeshMerge) hashParams(h *hasher) { h.u32(o.NewSurfaceID) }

func (o MeshMerge) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.Address(resolve(o.Base))
	e.Address(resolve(o.Added))
	e.U32(o.NewSurfaceID)
}

// MaxLODs is the number of level-of-detail slots an AddLOD carries.
const MaxLODs = 8

// AddLOD assembles up to MaxLODs levels of detail, finest first. Empty slots
// are skipped when the program is linked.
type AddLOD struct {
	LODs [MaxLODs]Ref
}

// NewAddLOD returns an AddLOD with the given levels in order. It panics if
// more than MaxLODs levels are given.
func NewAddLOD(lods ...Ref) AddLOD {
	if len(lods) > MaxLODs {
		panic(fmt.Sprintf("op: AddLOD takes at most %d levels, got %d", MaxLODs, len(lods)))
	}
	var o AddLOD
	copy(o.LODs[:], lods)
	return o
}

// Count returns the number of present levels.
func (o AddLOD) Count() int {
	n := 0
	for _, r := range o.LODs {
		if !r.IsZero() {
			n++
		}
	}
	return n
}

func (AddLOD) Kind() Kind { return KindAddLOD }

func (o AddLOD) ForEachChild(visit func(Slot)) {
	for i, r := range o.LODs {
		visit(Slot{Name: lodSlotNames[i], Pos: i, Ref: r})
	}
}

func (o AddLOD) Clone(mapChild func(Ref) Ref) Op {
	for i, r := range o.LODs {
		o.LODs[i] = mapRef(r, mapChild)
	}
	return o
}

func (AddLOD) hashParams(*hasher) {}

// EncodeArgs writes the level count followed by the present levels in order,
// padded with NoAddress up to MaxLODs.
func (o AddLOD) EncodeArgs(e *program.Encoder, resolve func(Ref) program.Address) {
	e.U8(uint8(o.Count()))
	written := 0
	for _, r := range o.LODs {
		if r.IsZero() {
			continue
		}
		e.Address(resolve(r))
		written++
	}
	for ; written < MaxLODs; written++ {
		e.Address(program.NoAddress)
	}
}

var lodSlotNames = func() [MaxLODs]string {
	var names [MaxLODs]string
	for i := range names {
		names[i] = fmt.Sprintf("lods[%d]", i)
	}
	return names
}()
