package op

import (
	"fmt"
	"strings"

	"github.com/chazu/opgraph/pkg/program"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// Operand is one decoded child address of an Instruction.
type Operand struct {
	Name    string
	Address program.Address
}

// Param is one decoded scalar of an Instruction.
type Param struct {
	Name  string
	Value interface{}
}

// Instruction is a decoded program entry. It is the layout an executor reads
// from a linked program.
type Instruction struct {
	Address  program.Address
	Offset   int
	Kind     Kind
	Operands []Operand
	Params   []Param
}

func (in Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %06x %s", in.Address, in.Offset, in.Kind)
	for _, o := range in.Operands {
		fmt.Fprintf(&b, " %s=%s", o.Name, o.Address)
	}
	for _, p := range in.Params {
		fmt.Fprintf(&b, " %s=%v", p.Name, p.Value)
	}
	return b.String()
}

// Decode decodes the entry at addr of p.
func Decode(p *program.Program, addr program.Address) (Instruction, error) {
	d, err := program.NewDecoder(p, addr)
	if err != nil {
		return Instruction{}, err
	}
	kind, ok := KindOf(d.Opcode())
	if !ok {
		return Instruction{}, errors.Errorf("op: entry %s has unknown opcode %d", addr, d.Opcode())
	}
	if d.Remaining() != ArgSize(kind) {
		return Instruction{}, errors.Errorf("op: entry %s (%s) has %d argument bytes, want %d",
			addr, kind, d.Remaining(), ArgSize(kind))
	}
	off, _ := p.Offset(addr)
	in := Instruction{Address: addr, Offset: off, Kind: kind}

	switch kind {
	case KindConst:
		in.param("value", d.I32())

	case KindMeshConstant:
		in.param("resource", d.U32())

	case KindMatrixConstant:
		var m Affine
		for i := range m {
			m[i] = d.F64()
		}
		in.param("matrix", m)

	case KindMeshTransform:
		in.operand("source", d.Address())
		in.operand("matrix", d.Address())

	case KindMeshTransformWithBoundingMesh:
		in.operand("source", d.Address())
		in.operand("boundingMesh", d.Address())
		in.operand("matrix", d.Address())
		in.param("selection", BoundingSelection(d.U8()))

	case KindMeshClipDeform:
		in.operand("mesh", d.Address())
		in.operand("clipShape", d.Address())
		in.param("faceCull", FaceCullStrategy(d.U8()))

	case KindMeshClipMorphPlane:
		in.operand("source", d.Address())
		in.param("origin", v3.Vec{X: d.F64(), Y: d.F64(), Z: d.F64()})
		in.param("normal", v3.Vec{X: d.F64(), Y: d.F64(), Z: d.F64()})
		in.param("distance", d.F64())
		in.param("factor", d.F64())
		in.param("radius", d.F64())

	case KindMeshMerge:
		in.operand("base", d.Address())
		in.operand("added", d.Address())
		in.param("newSurfaceID", d.U32())

	case KindAddLOD:
		count := int(d.U8())
		if count > MaxLODs {
			return Instruction{}, errors.Errorf("op: entry %s has %d LODs, at most %d allowed", addr, count, MaxLODs)
		}
		in.param("count", count)
		for i := 0; i < MaxLODs; i++ {
			a := d.Address()
			if i < count {
				in.operand(lodSlotNames[i], a)
			}
		}
	}

	if err := d.Err(); err != nil {
		return Instruction{}, err
	}
	return in, nil
}

// Disassemble decodes every entry of p in address order.
func Disassemble(p *program.Program) ([]Instruction, error) {
	out := make([]Instruction, 0, p.Len())
	for i := 0; i < p.Len(); i++ {
		in, err := Decode(p, program.Address(i))
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (in *Instruction) operand(name string, a program.Address) {
	in.Operands = append(in.Operands, Operand{Name: name, Address: a})
}

func (in *Instruction) param(name string, v interface{}) {
	in.Params = append(in.Params, Param{Name: name, Value: v})
}
