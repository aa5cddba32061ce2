// Package link flattens an operation graph into a program. Each node is
// emitted once, after every node it consumes, so any address embedded in an
// entry refers to an entry that precedes it.
package link

import (
	"fmt"

	"github.com/chazu/opgraph/pkg/graph"
	"github.com/chazu/opgraph/pkg/op"
	"github.com/chazu/opgraph/pkg/program"
)

// state is the per-node link progress.
type state uint8

const (
	unlinked state = iota
	linking        // on the worklist; its children are being linked
	linked
)

// Options control a Linker.
type Options struct {
	// Verify checks every emitted entry: its size must match its kind and
	// each embedded address must precede it.
	Verify bool

	// Debug enables logging of every emitted entry through Logf.
	Debug bool

	// Logf is used for debug logging. It may be nil.
	Logf func(format string, v ...interface{})
}

// Linker emits the nodes of one graph into one program. Link may be called
// any number of times; nodes shared between calls are emitted only once.
//
// The graph may grow between calls, but nodes must never be replaced. A
// Linker is not safe for concurrent use.
type Linker struct {
	opts  Options
	g     *graph.Graph
	enc   *program.Encoder
	state []state
	addrs []program.Address // valid where state is linked
}

// New returns a Linker that emits nodes of g.
func New(g *graph.Graph, opts Options) *Linker {
	return &Linker{
		opts: opts,
		g:    g,
		enc:  program.NewEncoder(),
	}
}

// Link emits r and everything it depends on that is not yet emitted, and
// returns the address of r. Linking an already linked node returns its
// existing address and emits nothing.
//
// It panics if r or any node below it is out of range, or if a cycle is
// found.
func (l *Linker) Link(r op.Ref) program.Address {
	l.grow()
	l.check(r, op.NoRef)
	if l.state[r.Index()] == linked {
		return l.addrs[r.Index()]
	}

	type frame struct {
		ref      op.Ref
		children []op.Ref
		next     int
	}

	l.state[r.Index()] = linking
	stack := []frame{{ref: r, children: l.g.Children(r)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.children) {
			child := top.children[top.next]
			top.next++
			l.check(child, top.ref)
			switch l.state[child.Index()] {
			case linked:
			case linking:
				panic(fmt.Sprintf("link: cycle detected: %s is reachable from itself through %s", child, top.ref))
			default:
				l.state[child.Index()] = linking
				stack = append(stack, frame{ref: child, children: l.g.Children(child)})
			}
			continue
		}
		ref := top.ref
		stack = stack[:len(stack)-1]
		l.emit(ref)
	}
	return l.addrs[r.Index()]
}

// LinkAll links every root in order and returns their addresses.
func (l *Linker) LinkAll(roots []op.Ref) []program.Address {
	out := make([]program.Address, len(roots))
	for i, r := range roots {
		out[i] = l.Link(r)
	}
	return out
}

// Address returns the address r was linked at, if it has been linked.
func (l *Linker) Address(r op.Ref) (program.Address, bool) {
	if !l.g.Has(r) || r.Index() >= len(l.state) || l.state[r.Index()] != linked {
		return program.NoAddress, false
	}
	return l.addrs[r.Index()], true
}

// Len returns the number of entries emitted so far.
func (l *Linker) Len() int {
	return int(l.enc.Next())
}

// Program returns a snapshot of everything emitted so far. Later calls to
// Link do not affect it.
func (l *Linker) Program() *program.Program {
	return l.enc.Program()
}

// Compile links roots of g into a new program and returns it with the root
// addresses in the order given.
func Compile(g *graph.Graph, roots []op.Ref, opts Options) (*program.Program, []program.Address) {
	l := New(g, opts)
	addrs := l.LinkAll(roots)
	return l.Program(), addrs
}

// grow extends the side tables to cover nodes added since the last call.
func (l *Linker) grow() {
	n := l.g.NodeCount()
	for len(l.state) < n {
		l.state = append(l.state, unlinked)
		l.addrs = append(l.addrs, program.NoAddress)
	}
}

// check panics unless r is a node of the graph. parent names the node that
// referenced r, or is NoRef for a requested root.
func (l *Linker) check(r, parent op.Ref) {
	if l.g.Has(r) {
		return
	}
	if parent.IsZero() {
		panic(fmt.Sprintf("link: reference %s out of range (graph has %d nodes)", r, l.g.NodeCount()))
	}
	panic(fmt.Sprintf("link: %s references %s, which is out of range (graph has %d nodes)", parent, r, l.g.NodeCount()))
}

// emit writes the entry for r. All of its children must be linked.
func (l *Linker) emit(r op.Ref) {
	o := l.g.Get(r)
	if l.opts.Verify {
		l.checkKinds(r, o)
	}
	addr := l.enc.Begin(o.Kind().Opcode())
	start := l.enc.Size()

	o.EncodeArgs(l.enc, func(c op.Ref) program.Address {
		if c.IsZero() {
			return program.NoAddress
		}
		if l.state[c.Index()] != linked {
			panic(fmt.Sprintf("link: %s encodes child %s before it was linked", r, c))
		}
		child := l.addrs[c.Index()]
		if l.opts.Verify && child >= addr {
			panic(fmt.Sprintf("link: %s at %s embeds %s, which does not precede it", r, addr, child))
		}
		return child
	})

	if l.opts.Verify {
		if got, want := l.enc.Size()-start, op.ArgSize(o.Kind()); got != want {
			panic(fmt.Sprintf("link: %s (%s) wrote %d argument bytes, want %d", r, o.Kind(), got, want))
		}
	}

	l.state[r.Index()] = linked
	l.addrs[r.Index()] = addr
	if l.opts.Debug && l.opts.Logf != nil {
		l.opts.Logf("link: %s %s -> %s", r, o.Kind(), addr)
	}
}

// checkKinds panics if a child of o is of a kind its slot does not take.
func (l *Linker) checkKinds(r op.Ref, o op.Op) {
	o.ForEachChild(func(s op.Slot) {
		child := l.g.Get(s.Ref)
		if child == nil || op.AcceptsChild(o.Kind(), s.Pos, child.Kind()) {
			return
		}
		panic(fmt.Sprintf("link: %s (%s) slot %s holds %s %s, want %s",
			r, o.Kind(), s.Name, child.Kind(), s.Ref, op.FormatKinds(op.Accepts(o.Kind(), s.Pos))))
	})
}
