package graph

import (
	"github.com/chazu/opgraph/pkg/op"
)

// Stats counts what a Builder did with the ops it was given.
type Stats struct {
	Inserted   int // ops that became new nodes
	Reused     int // ops answered with an existing node
	Collisions int // inserts whose hash bucket held only unequal nodes
}

// Builder inserts ops into a Graph, reusing an existing node whenever an
// equal op was inserted before (hash-consing). Equality is by child identity,
// so sharing is only found for subgraphs built bottom-up through the same
// Builder.
//
// A Builder is not safe for concurrent use. Independent builders share no
// state.
type Builder struct {
	// Debug enables logging of every reuse through Logf.
	Debug bool

	// Logf is used for debug logging. It may be nil.
	Logf func(format string, v ...interface{})

	graph   *Graph
	hash    func(op.Op) uint64
	buckets map[uint64][]op.Ref
	stats   Stats
}

// NewBuilder returns a Builder over a new empty graph.
func NewBuilder() *Builder {
	return &Builder{
		graph:   New(),
		hash:    op.Hash,
		buckets: make(map[uint64][]op.Ref),
	}
}

// NewBuilderFor returns a Builder that extends g. The existing nodes of g
// are indexed, so later inserts reuse them too. Nodes of g that are already
// duplicates of each other stay as they are. g must pass Validate.
func NewBuilderFor(g *Graph) *Builder {
	b := &Builder{
		graph:   g,
		hash:    op.Hash,
		buckets: make(map[uint64][]op.Ref, len(g.nodes)),
	}
	for i, o := range g.nodes {
		h := b.hash(o)
		b.buckets[h] = append(b.buckets[h], op.RefAt(i))
	}
	return b
}

// Add returns the ref of a node equal to o, inserting o if there is none.
// It panics if o is nil.
func (b *Builder) Add(o op.Op) op.Ref {
	if o == nil {
		panic("graph: cannot add a nil op")
	}
	h := b.hash(o)
	bucket := b.buckets[h]
	for _, r := range bucket {
		if op.Equal(b.graph.nodes[r.Index()], o) {
			b.stats.Reused++
			if b.Debug && b.Logf != nil {
				b.Logf("builder: reusing %s for %s", r, o.Kind())
			}
			return r
		}
	}
	if len(bucket) > 0 {
		b.stats.Collisions++
	}
	r := b.graph.Add(o)
	b.buckets[h] = append(bucket, r)
	b.stats.Inserted++
	return r
}

// Output names r and registers it as a root of the graph.
func (b *Builder) Output(name string, r op.Ref) {
	b.graph.SetName(name, r)
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// Get returns the node for r.
func (b *Builder) Get(r op.Ref) op.Op {
	return b.graph.Get(r)
}

// Stats returns insertion counters.
func (b *Builder) Stats() Stats {
	return b.stats
}
