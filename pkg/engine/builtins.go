package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/opgraph/pkg/graph"
	"github.com/chazu/opgraph/pkg/op"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a node of the graph being built so it can be passed
// between builtins.
type sexpNodeRef struct {
	ref  op.Ref
	kind op.Kind
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %s %s)", n.ref, n.kind)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpMatrix wraps an sdfx matrix that has not been added to the graph yet.
// Matrices are composed freely and become a MatrixConstant node when an op
// consumes them.
type sexpMatrix struct {
	m sdf.M44
}

func (m *sexpMatrix) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(matrix %s)", op.AffineFromM44(m.m))
}
func (m *sexpMatrix) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			// Keyword at end with no value: treat as flag with nil.
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// float reads the keyword argument name into dst if it is present.
func (a kwArgs) float(name string, dst *float64) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*dst = f
	return nil
}

// vec reads the keyword argument name into dst if it is present.
func (a kwArgs) vec(name string, dst *v3.Vec) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*dst = vec
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, errors.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt64 extracts an integer from a SexpInt.
func toInt64(s zygo.Sexp) (int64, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return v.Val, nil
	}
	return 0, errors.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toInt32 extracts an integer that fits in 32 signed bits.
func toInt32(s zygo.Sexp) (int32, error) {
	n, err := toInt64(s)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, errors.Errorf("%d does not fit in 32 bits", n)
	}
	return int32(n), nil
}

// toUint32 extracts a non-negative integer that fits in 32 bits.
func toUint32(s zygo.Sexp) (uint32, error) {
	n, err := toInt64(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, errors.Errorf("%d is not a valid unsigned 32 bit value", n)
	}
	return uint32(n), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", errors.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", errors.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, errors.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toMatrix extracts an sdfx matrix from a sexpMatrix.
func toMatrix(s zygo.Sexp) (sdf.M44, error) {
	if m, ok := s.(*sexpMatrix); ok {
		return m.m, nil
	}
	return sdf.M44{}, errors.Errorf("expected matrix, got %T (%s)", s, s.SexpString(nil))
}

// isNull reports whether s is the nil literal.
func isNull(s zygo.Sexp) bool {
	return s == zygo.SexpNull
}

// toNodeRef extracts a node ref of one of the given kinds. With no kinds
// listed any kind is accepted. nil yields op.NoRef, for an absent child.
func toNodeRef(s zygo.Sexp, kinds ...op.Kind) (op.Ref, error) {
	if isNull(s) {
		return op.NoRef, nil
	}
	n, ok := s.(*sexpNodeRef)
	if !ok {
		return op.NoRef, errors.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
	}
	if len(kinds) == 0 {
		return n.ref, nil
	}
	for _, k := range kinds {
		if n.kind == k {
			return n.ref, nil
		}
	}
	return op.NoRef, errors.Errorf("expected %s node, got %s", op.FormatKinds(kinds), n.kind)
}

// toMatrixRef accepts either a matrix value, which is added to the graph as
// a MatrixConstant, or an existing MatrixConstant node.
func toMatrixRef(b *graph.Builder, s zygo.Sexp) (op.Ref, error) {
	if m, ok := s.(*sexpMatrix); ok {
		return b.Add(op.MatrixConstant{Matrix: op.AffineFromM44(m.m)}), nil
	}
	return toNodeRef(s, op.KindMatrixConstant)
}

// toSelection converts :inside or :outside.
func toSelection(s zygo.Sexp) (op.BoundingSelection, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	for _, sel := range []op.BoundingSelection{op.SelectInside, op.SelectOutside} {
		if name == sel.String() {
			return sel, nil
		}
	}
	return 0, errors.Errorf("invalid selection %q, expected inside or outside", name)
}

// toFaceCull converts :all-vertices-culled or :one-vertex-culled.
func toFaceCull(s zygo.Sexp) (op.FaceCullStrategy, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	for _, fc := range []op.FaceCullStrategy{op.CullAllVertices, op.CullOneVertex} {
		if name == fc.String() {
			return fc, nil
		}
	}
	return 0, errors.Errorf("invalid face cull %q, expected all-vertices-culled or one-vertex-culled", name)
}

// toAxisRotation converts an axis keyword and an angle in degrees into a
// rotation matrix.
func toAxisRotation(axis zygo.Sexp, degrees float64) (sdf.M44, error) {
	name, err := toKeywordString(axis)
	if err != nil {
		return sdf.M44{}, errors.Wrap(err, "expected axis keyword (:x, :y, :z)")
	}
	a := sdf.DtoR(degrees)
	switch name {
	case "x":
		return sdf.RotateX(a), nil
	case "y":
		return sdf.RotateY(a), nil
	case "z":
		return sdf.RotateZ(a), nil
	}
	return sdf.M44{}, errors.Errorf("invalid axis %q, expected x, y, or z", name)
}

// meshKinds are the kinds a mesh argument accepts.
var meshKinds = op.MeshKinds()

// add inserts o and wraps the resulting node.
func add(b *graph.Builder, o op.Op) zygo.Sexp {
	return &sexpNodeRef{ref: b.Add(o), kind: o.Kind()}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all graph DSL builtins into a zygomys environment.
// The builtins insert ops through b, so equal subexpressions evaluate to the
// same node. Output names are appended to outputs as they are defined.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *graph.Builder, outputs *[]string) {

	// -----------------------------------------------------------------------
	// (const 5)
	// -----------------------------------------------------------------------
	env.AddFunction("const", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.Errorf("const requires exactly 1 argument, got %d", len(args))
		}
		v, err := toInt32(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "const")
		}
		return add(b, op.Const{Value: v}), nil
	})

	// -----------------------------------------------------------------------
	// (mesh 7)
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.Errorf("mesh requires a resource id, got %d arguments", len(args))
		}
		id, err := toUint32(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "mesh: resource")
		}
		return add(b, op.MeshConstant{Resource: id}), nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, errors.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "vec3: %s", axis)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (translate (vec3 0 0 10))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.Errorf("translate requires a vec3, got %d arguments", len(args))
		}
		v, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "translate")
		}
		return &sexpMatrix{m: sdf.Translate3d(v)}, nil
	})

	// -----------------------------------------------------------------------
	// (scale (vec3 1 2 1)) or (scale 2)
	// -----------------------------------------------------------------------
	env.AddFunction("scale", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.Errorf("scale requires a vec3 or a number, got %d arguments", len(args))
		}
		if f, err := toFloat64(args[0]); err == nil {
			return &sexpMatrix{m: sdf.Scale3d(v3.Vec{X: f, Y: f, Z: f})}, nil
		}
		v, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "scale")
		}
		return &sexpMatrix{m: sdf.Scale3d(v)}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate :z 90)
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.Errorf("rotate requires an axis and an angle, got %d arguments", len(args))
		}
		deg, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "rotate: angle")
		}
		m, err := toAxisRotation(args[0], deg)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "rotate: axis")
		}
		return &sexpMatrix{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (compose (translate ...) (rotate ...) ...)
	//
	// The product of the matrices in order, so the last one is applied
	// first.
	// -----------------------------------------------------------------------
	env.AddFunction("compose", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		m := sdf.Identity3d()
		for i, arg := range args {
			next, err := toMatrix(arg)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "compose: argument %d", i+1)
			}
			m = m.Mul(next)
		}
		return &sexpMatrix{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (matrix (translate ...))
	// -----------------------------------------------------------------------
	env.AddFunction("matrix", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.Errorf("matrix requires exactly 1 argument, got %d", len(args))
		}
		m, err := toMatrix(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "matrix")
		}
		return add(b, op.MatrixConstant{Matrix: op.AffineFromM44(m)}), nil
	})

	// -----------------------------------------------------------------------
	// (transform source matrix)
	// -----------------------------------------------------------------------
	env.AddFunction("transform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.Errorf("transform requires a source and a matrix, got %d arguments", len(args))
		}
		src, err := toNodeRef(args[0], meshKinds...)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "transform: source")
		}
		m, err := toMatrixRef(b, args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "transform: matrix")
		}
		return add(b, op.MeshTransform{Source: src, Matrix: m}), nil
	})

	// -----------------------------------------------------------------------
	// (transform-bounded source bounding matrix :select :outside)
	// -----------------------------------------------------------------------
	env.AddFunction("transform_bounded", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 3 {
			return zygo.SexpNull, errors.Errorf("transform-bounded requires a source, a bounding mesh and a matrix, got %d arguments",
				len(pa.positional))
		}
		o := op.MeshTransformWithBoundingMesh{}
		var err error
		if o.Source, err = toNodeRef(pa.positional[0], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "transform-bounded: source")
		}
		if o.BoundingMesh, err = toNodeRef(pa.positional[1], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "transform-bounded: bounding mesh")
		}
		if o.Matrix, err = toMatrixRef(b, pa.positional[2]); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "transform-bounded: matrix")
		}
		if v, ok := pa.kw["select"]; ok {
			if o.Selection, err = toSelection(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "transform-bounded: select")
			}
		}
		return add(b, o), nil
	})

	// -----------------------------------------------------------------------
	// (clip-deform mesh shape :cull :one-vertex-culled)
	// -----------------------------------------------------------------------
	env.AddFunction("clip_deform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, errors.Errorf("clip-deform requires a mesh and a clip shape, got %d arguments",
				len(pa.positional))
		}
		o := op.MeshClipDeform{}
		var err error
		if o.Mesh, err = toNodeRef(pa.positional[0], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "clip-deform: mesh")
		}
		if o.ClipShape, err = toNodeRef(pa.positional[1], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "clip-deform: clip shape")
		}
		if v, ok := pa.kw["cull"]; ok {
			if o.FaceCull, err = toFaceCull(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "clip-deform: cull")
			}
		}
		return add(b, o), nil
	})

	// -----------------------------------------------------------------------
	// (clip-morph-plane source :origin (vec3 ...) :normal (vec3 ...)
	//                  :distance 1 :factor 0.5 :radius 2)
	// -----------------------------------------------------------------------
	env.AddFunction("clip_morph_plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, errors.Errorf("clip-morph-plane requires a source mesh, got %d arguments",
				len(pa.positional))
		}
		o := op.MeshClipMorphPlane{Normal: v3.Vec{Z: 1}}
		var err error
		if o.Source, err = toNodeRef(pa.positional[0], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "clip-morph-plane: source")
		}
		for _, check := range []error{
			pa.vec("origin", &o.Origin),
			pa.vec("normal", &o.Normal),
			pa.float("distance", &o.Distance),
			pa.float("factor", &o.Factor),
			pa.float("radius", &o.Radius),
		} {
			if check != nil {
				return zygo.SexpNull, errors.Wrap(check, "clip-morph-plane")
			}
		}
		return add(b, o), nil
	})

	// -----------------------------------------------------------------------
	// (merge base added :surface 3)
	// -----------------------------------------------------------------------
	env.AddFunction("merge", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, errors.Errorf("merge requires a base and an added mesh, got %d arguments",
				len(pa.positional))
		}
		o := op.MeshMerge{}
		var err error
		if o.Base, err = toNodeRef(pa.positional[0], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "merge: base")
		}
		if o.Added, err = toNodeRef(pa.positional[1], meshKinds...); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "merge: added")
		}
		if v, ok := pa.kw["surface"]; ok {
			if o.NewSurfaceID, err = toUint32(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "merge: surface")
			}
		}
		return add(b, o), nil
	})

	// -----------------------------------------------------------------------
	// (add-lod finest ... coarsest)
	// -----------------------------------------------------------------------
	env.AddFunction("add_lod", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) > op.MaxLODs {
			return zygo.SexpNull, errors.Errorf("add-lod takes at most %d levels, got %d", op.MaxLODs, len(args))
		}
		var o op.AddLOD
		for i, arg := range args {
			r, err := toNodeRef(arg)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "add-lod: level %d", i)
			}
			o.LODs[i] = r
		}
		return add(b, o), nil
	})

	// -----------------------------------------------------------------------
	// (output "name" node)
	// -----------------------------------------------------------------------
	env.AddFunction("output", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.Errorf("output requires a name and a node, got %d arguments", len(args))
		}
		outName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "output: name")
		}
		if !b.Graph().Lookup(outName).IsZero() {
			return zygo.SexpNull, errors.Errorf("output: %q is already defined", outName)
		}
		if isNull(args[1]) {
			return zygo.SexpNull, errors.New("output: node must not be nil")
		}
		r, err := toNodeRef(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "output: node")
		}
		b.Output(outName, r)
		*outputs = append(*outputs, outName)
		return args[1], nil
	})
}
