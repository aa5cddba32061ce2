package graph

import (
	"github.com/chazu/opgraph/pkg/op"
)

// Transform rebuilds the subgraphs under roots bottom-up. Each node is cloned
// with its children remapped to their rebuilt versions and handed to fn,
// which may return a replacement op (or nil to keep the clone). Every result
// is inserted through b, so parts of the graph fn leaves alone come back as
// the very same nodes. The original nodes are never modified.
//
// It returns the rebuilt roots in the order given.
func Transform(b *Builder, roots []op.Ref, fn func(old op.Ref, clone op.Op) op.Op) []op.Ref {
	memo := rebuild(b, b.graph, roots, nil, fn)
	return remapAll(roots, memo)
}

// Substitute rebuilds the subgraphs under roots with every use of from
// replaced by to, and returns the rebuilt roots. Both refs must belong to the
// builder's graph.
func Substitute(b *Builder, roots []op.Ref, from, to op.Ref) []op.Ref {
	memo := rebuild(b, b.graph, roots, map[op.Ref]op.Ref{from: to}, nil)
	return remapAll(roots, memo)
}

// Import copies the subgraphs under roots from src into dst, hash-consing
// each node on the way. Subgraphs src and dst both already contain come back
// as dst's existing nodes. It returns the imported roots in dst.
func Import(dst *Builder, src *Graph, roots []op.Ref) []op.Ref {
	memo := rebuild(dst, src, roots, nil, nil)
	return remapAll(roots, memo)
}

// rebuild clones every node of src reachable from roots into dst, children
// first, and returns the old-to-new mapping. Refs in seed are mapped as given
// and not descended into.
func rebuild(dst *Builder, src *Graph, roots []op.Ref, seed map[op.Ref]op.Ref, fn func(op.Ref, op.Op) op.Op) map[op.Ref]op.Ref {
	memo := make(map[op.Ref]op.Ref, len(seed))
	for from, to := range seed {
		memo[from] = to
	}
	skip := func(r op.Ref) bool {
		_, ok := seed[r]
		return ok
	}

	// The order is collected first because src and dst may be the same
	// graph, which grows as clones are inserted.
	var order []op.Ref
	postOrder(src, roots, skip, func(r op.Ref) {
		order = append(order, r)
	})

	remap := func(r op.Ref) op.Ref { return memo[r] }
	for _, r := range order {
		clone := src.Get(r).Clone(remap)
		if fn != nil {
			if repl := fn(r, clone); repl != nil {
				clone = repl
			}
		}
		memo[r] = dst.Add(clone)
	}
	return memo
}

func remapAll(refs []op.Ref, memo map[op.Ref]op.Ref) []op.Ref {
	out := make([]op.Ref, len(refs))
	for i, r := range refs {
		out[i] = memo[r]
	}
	return out
}
