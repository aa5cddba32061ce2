package link

import (
	"strings"
	"testing"

	"github.com/chazu/opgraph/pkg/graph"
	"github.com/chazu/opgraph/pkg/op"
	"github.com/chazu/opgraph/pkg/program"
	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"
)

// expectPanic runs fn and fails unless it panics with a message containing
// substr.
func expectPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic containing %q", substr)
		}
		msg, _ := r.(string)
		if !strings.Contains(msg, substr) {
			t.Fatalf("panic = %v, want it to contain %q", r, substr)
		}
	}()
	fn()
}

// lodOf returns an AddLOD whose only level is r.
func lodOf(r op.Ref) op.AddLOD {
	var l op.AddLOD
	l.LODs[0] = r
	return l
}

type chain struct {
	mesh, shape, matrix, transform, clip, lod op.Ref
}

func buildChain() (*graph.Builder, chain) {
	b := graph.NewBuilder()
	var c chain
	c.mesh = b.Add(op.MeshConstant{Resource: 1})
	c.shape = b.Add(op.MeshConstant{Resource: 2})
	c.matrix = b.Add(op.MatrixConstant{Matrix: op.Identity()})
	c.transform = b.Add(op.MeshTransform{Source: c.mesh, Matrix: c.matrix})
	c.clip = b.Add(op.MeshClipDeform{Mesh: c.transform, ClipShape: c.shape})
	c.lod = b.Add(op.NewAddLOD(c.clip, c.transform))
	b.Output("character", c.lod)
	return b, c
}

func TestEndToEnd(t *testing.T) {
	b := graph.NewBuilder()
	leaf := b.Add(op.Const{Value: 5})
	x := b.Add(op.NewAddLOD(leaf))
	y := b.Add(op.NewAddLOD(leaf))
	if x != y {
		t.Fatalf("equal LOD nodes were not merged: %s, %s", x, y)
	}

	l := New(b.Graph(), Options{Verify: true})
	addrX := l.Link(x)
	addrY := l.Link(y)
	if addrX != addrY {
		t.Errorf("addresses differ: %s, %s", addrX, addrY)
	}

	p := l.Program()
	if p.Len() != 2 {
		t.Fatalf("address table has %d entries, want 2", p.Len())
	}
	leafAddr, ok := l.Address(leaf)
	if !ok {
		t.Fatal("leaf was not linked")
	}
	if leafAddr != 0 || addrX != 1 {
		t.Errorf("addresses = leaf %s, lod %s, want @0 and @1", leafAddr, addrX)
	}

	in, err := op.Decode(p, addrX)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(in.Operands) != 1 || in.Operands[0].Address != leafAddr {
		t.Errorf("LOD operands = %s, want the leaf address", spew.Sdump(in.Operands))
	}
	if p.Size() != 1+op.ArgSize(op.KindConst)+1+op.ArgSize(op.KindAddLOD) {
		t.Errorf("program size = %d", p.Size())
	}
}

func TestLinkIdempotent(t *testing.T) {
	b, c := buildChain()
	l := New(b.Graph(), Options{})
	first := l.Link(c.lod)
	size := l.Program().Size()

	for i := 0; i < 3; i++ {
		if got := l.Link(c.lod); got != first {
			t.Errorf("relink returned %s, want %s", got, first)
		}
	}
	if got := l.Link(c.transform); got >= first {
		t.Errorf("child relinked at %s, after its parent %s", got, first)
	}
	if l.Program().Size() != size {
		t.Errorf("relinking grew the program from %d to %d bytes", size, l.Program().Size())
	}
}

func TestLinkOrder(t *testing.T) {
	b, c := buildChain()
	l := New(b.Graph(), Options{Verify: true})
	l.Link(c.lod)

	var got []program.Address
	for _, r := range []op.Ref{c.mesh, c.matrix, c.transform, c.shape, c.clip, c.lod} {
		addr, ok := l.Address(r)
		if !ok {
			t.Fatalf("%s was not linked", r)
		}
		got = append(got, addr)
	}
	want := []program.Address{0, 1, 2, 3, 4, 5}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("addresses diff (-got +want):\n%s", diff)
	}

	// Every child precedes its parent.
	g := b.Graph()
	for i := 0; i < g.NodeCount(); i++ {
		r := op.RefAt(i)
		self, _ := l.Address(r)
		for _, child := range g.Children(r) {
			if addr, _ := l.Address(child); addr >= self {
				t.Errorf("%s at %s has child %s at %s", r, self, child, addr)
			}
		}
	}
	if err := Verify(l.Program()); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestSharedNodesEmittedOnce(t *testing.T) {
	b, c := buildChain()
	p, roots := Compile(b.Graph(), []op.Ref{c.lod, c.clip, c.transform}, Options{})
	if p.Len() != 6 {
		t.Errorf("program has %d entries, want 6", p.Len())
	}
	if diff := pretty.Compare(roots, []program.Address{5, 4, 2}); diff != "" {
		t.Errorf("root addresses diff (-got +want):\n%s", diff)
	}

	insts, err := op.Disassemble(p)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	seen := make(map[op.Kind]int)
	for _, in := range insts {
		seen[in.Kind]++
	}
	if seen[op.KindMeshTransform] != 1 {
		t.Errorf("transform emitted %d times", seen[op.KindMeshTransform])
	}
}

func TestUnreachableNodesNotEmitted(t *testing.T) {
	b, c := buildChain()
	spare := b.Add(op.Const{Value: 7})
	l := New(b.Graph(), Options{})
	l.Link(c.lod)
	if _, ok := l.Address(spare); ok {
		t.Error("unreachable node should not be linked")
	}
	if l.Len() != 6 {
		t.Errorf("linked %d entries, want 6", l.Len())
	}
}

func TestAbsentChild(t *testing.T) {
	b := graph.NewBuilder()
	mesh := b.Add(op.MeshConstant{Resource: 3})
	moved := b.Add(op.MeshTransform{Source: mesh})

	p, roots := Compile(b.Graph(), []op.Ref{moved}, Options{Verify: true})
	in, err := op.Decode(p, roots[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []op.Operand{
		{Name: "source", Address: 0},
		{Name: "matrix", Address: program.NoAddress},
	}
	if diff := pretty.Compare(in.Operands, want); diff != "" {
		t.Errorf("operands diff (-got +want):\n%s", diff)
	}
}

func TestLinkGrowingGraph(t *testing.T) {
	b, c := buildChain()
	l := New(b.Graph(), Options{})
	l.Link(c.clip)
	before := l.Program()

	merged := b.Add(op.MeshMerge{Base: c.clip, Added: c.shape, NewSurfaceID: 3})
	addr := l.Link(merged)
	if addr != 5 {
		t.Errorf("new node linked at %s, want @5", addr)
	}
	after := l.Program()
	if string(after.Code()[:before.Size()]) != string(before.Code()) {
		t.Error("linking more nodes rewrote earlier entries")
	}
	if before.Len() != 5 {
		t.Errorf("earlier snapshot changed to %d entries", before.Len())
	}
}

func TestDeepChain(t *testing.T) {
	b := graph.NewBuilder()
	r := b.Add(op.MeshConstant{Resource: 1})
	added := b.Add(op.MeshConstant{Resource: 2})
	const depth = 100000
	for i := 0; i < depth; i++ {
		r = b.Add(op.MeshMerge{Base: r, Added: added, NewSurfaceID: uint32(i)})
	}
	p, roots := Compile(b.Graph(), []op.Ref{r}, Options{})
	if p.Len() != depth+2 {
		t.Errorf("program has %d entries, want %d", p.Len(), depth+2)
	}
	if int(roots[0]) != depth+1 {
		t.Errorf("root at %s, want the last entry", roots[0])
	}
}

func TestLinkCyclePanics(t *testing.T) {
	g := graph.FromNodes([]op.Op{
		lodOf(op.RefAt(1)),
		lodOf(op.RefAt(0)),
	})
	expectPanic(t, "cycle detected", func() {
		New(g, Options{}).Link(op.RefAt(0))
	})
}

func TestLinkSelfLoopPanics(t *testing.T) {
	g := graph.FromNodes([]op.Op{lodOf(op.RefAt(0))})
	expectPanic(t, "cycle detected", func() {
		New(g, Options{}).Link(op.RefAt(0))
	})
}

func TestLinkOutOfRangePanics(t *testing.T) {
	b, _ := buildChain()
	expectPanic(t, "out of range", func() {
		New(b.Graph(), Options{}).Link(op.RefAt(99))
	})
	expectPanic(t, "out of range", func() {
		New(b.Graph(), Options{}).Link(op.NoRef)
	})

	g := graph.FromNodes([]op.Op{lodOf(op.RefAt(5))})
	expectPanic(t, "#0 references #5", func() {
		New(g, Options{}).Link(op.RefAt(0))
	})
}

func TestDebugLogging(t *testing.T) {
	b, c := buildChain()
	var lines []string
	opts := Options{
		Debug: true,
		Logf: func(format string, v ...interface{}) {
			lines = append(lines, format)
		},
	}
	Compile(b.Graph(), []op.Ref{c.lod}, opts)
	if len(lines) != 6 {
		t.Errorf("got %d log lines, want one per entry", len(lines))
	}
}

func TestLinkChecksChildKinds(t *testing.T) {
	b := graph.NewBuilder()
	five := b.Add(op.Const{Value: 5})
	mesh := b.Add(op.MeshConstant{Resource: 1})
	bad := b.Add(op.MeshTransform{Source: five, Matrix: mesh})

	expectPanic(t, "slot source holds Const #0, want MeshConstant", func() {
		Compile(b.Graph(), []op.Ref{bad}, Options{Verify: true})
	})

	// Without the option the entry is written, and Verify reports it.
	p, _ := Compile(b.Graph(), []op.Ref{bad}, Options{})
	err := Verify(p)
	if err == nil {
		t.Fatal("expected Verify to reject mismatched operand kinds")
	}
	for _, want := range []string{
		"operand source embeds @0, a Const entry, want MeshConstant",
		"operand matrix embeds @1, a MeshConstant entry, want MatrixConstant",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %v, want it to contain %q", err, want)
		}
	}
}

func TestVerifyRejectsBadPrograms(t *testing.T) {
	tests := []struct {
		name  string
		build func(e *program.Encoder)
		want  string
	}{
		{
			name: "forward reference",
			build: func(e *program.Encoder) {
				e.Begin(op.KindAddLOD.Opcode())
				e.U8(1)
				e.Address(1)
				for i := 1; i < op.MaxLODs; i++ {
					e.Address(program.NoAddress)
				}
				e.Begin(op.KindConst.Opcode())
				e.I32(0)
			},
			want: "does not precede it",
		},
		{
			name: "self reference",
			build: func(e *program.Encoder) {
				e.Begin(op.KindMeshConstant.Opcode())
				e.U32(1)
				e.Begin(op.KindMeshTransform.Opcode())
				e.Address(1)
				e.Address(0)
			},
			want: "operand source embeds @1",
		},
		{
			name: "truncated entry",
			build: func(e *program.Encoder) {
				e.Begin(op.KindConst.Opcode())
				e.U8(1)
			},
			want: "argument bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := program.NewEncoder()
			tt.build(e)
			err := Verify(e.Program())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
