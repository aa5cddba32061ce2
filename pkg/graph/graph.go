package graph

import (
	"fmt"

	"github.com/chazu/opgraph/pkg/op"
)

// Graph is an arena of operation nodes. A node is addressed by the op.Ref
// returned when it was added, and may only reference nodes added before it,
// so every Graph built through Add is acyclic.
type Graph struct {
	nodes     []op.Op
	Roots     []op.Ref
	NameIndex map[string]op.Ref
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		NameIndex: make(map[string]op.Ref),
	}
}

// FromNodes wraps an existing node slice without checking it. Use Validate
// before compiling a graph that did not come from Add.
func FromNodes(nodes []op.Op) *Graph {
	g := New()
	g.nodes = nodes
	return g
}

// Add appends a node and returns its ref. It does not check for duplicates;
// use a Builder for that. It panics if o is nil or references a node that
// does not already exist.
func (g *Graph) Add(o op.Op) op.Ref {
	if o == nil {
		panic("graph: cannot add a nil op")
	}
	ref := op.RefAt(len(g.nodes))
	o.ForEachChild(func(s op.Slot) {
		if !s.Ref.IsZero() && s.Ref >= ref {
			panic(fmt.Sprintf("graph: %s slot %s references %s, which is not older than the new node %s",
				o.Kind(), s.Name, s.Ref, ref))
		}
	})
	g.nodes = append(g.nodes, o)
	return ref
}

// AddRoot registers a ref as a root of the graph.
func (g *Graph) AddRoot(r op.Ref) {
	g.Roots = append(g.Roots, r)
}

// SetName assigns a user-visible name to a node and registers it as a root.
func (g *Graph) SetName(name string, r op.Ref) {
	g.NameIndex[name] = r
	g.AddRoot(r)
}

// Lookup returns the node ref with the given name, or op.NoRef.
func (g *Graph) Lookup(name string) op.Ref {
	return g.NameIndex[name]
}

// MustLookup returns the node ref with the given name, or panics.
func (g *Graph) MustLookup(name string) op.Ref {
	r := g.Lookup(name)
	if r.IsZero() {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return r
}

// Has reports whether r refers to a node of g.
func (g *Graph) Has(r op.Ref) bool {
	return !r.IsZero() && r.Index() < len(g.nodes)
}

// Get returns the node for r, or nil.
func (g *Graph) Get(r op.Ref) op.Op {
	if !g.Has(r) {
		return nil
	}
	return g.nodes[r.Index()]
}

// MustGet returns the node for r, or panics.
func (g *Graph) MustGet(r op.Ref) op.Op {
	o := g.Get(r)
	if o == nil {
		panic(fmt.Sprintf("graph: no node %s", r))
	}
	return o
}

// Children returns the present child refs of the node r.
func (g *Graph) Children(r op.Ref) []op.Ref {
	o := g.Get(r)
	if o == nil {
		return nil
	}
	return op.Children(o)
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// CountKind returns the number of nodes of kind k.
func (g *Graph) CountKind(k op.Kind) int {
	n := 0
	for _, o := range g.nodes {
		if o != nil && o.Kind() == k {
			n++
		}
	}
	return n
}

// Names returns the reverse of NameIndex.
func (g *Graph) Names() map[op.Ref]string {
	names := make(map[op.Ref]string, len(g.NameIndex))
	for name, r := range g.NameIndex {
		names[r] = name
	}
	return names
}
