package graph

import (
	"github.com/chazu/opgraph/pkg/op"
)

// PostOrder calls visit once for every node reachable from roots, children
// before parents. Children are entered in slot order and roots in the order
// given. The walk uses an explicit stack, so graph depth is not limited by
// the goroutine stack.
func PostOrder(g *Graph, roots []op.Ref, visit func(op.Ref)) {
	postOrder(g, roots, nil, visit)
}

// postOrder is PostOrder with an optional skip predicate: a skipped node is
// neither visited nor descended into.
func postOrder(g *Graph, roots []op.Ref, skip func(op.Ref) bool, visit func(op.Ref)) {
	type frame struct {
		ref      op.Ref
		children []op.Ref
		next     int
	}

	seen := make([]bool, g.NodeCount())
	var stack []frame

	push := func(r op.Ref) {
		if !g.Has(r) || seen[r.Index()] {
			return
		}
		seen[r.Index()] = true
		if skip != nil && skip(r) {
			return
		}
		stack = append(stack, frame{ref: r, children: g.Children(r)})
	}

	for _, root := range roots {
		push(root)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.children) {
				child := top.children[top.next]
				top.next++
				push(child)
				continue
			}
			ref := top.ref
			stack = stack[:len(stack)-1]
			visit(ref)
		}
	}
}

// Reachable returns, indexed by arena index, whether each node is reachable
// from roots.
func Reachable(g *Graph, roots []op.Ref) []bool {
	reached := make([]bool, g.NodeCount())
	PostOrder(g, roots, func(r op.Ref) {
		reached[r.Index()] = true
	})
	return reached
}

// RefCounts returns, indexed by arena index, how many references each node
// has: one per child slot of a reachable parent that names it, plus one per
// occurrence in roots. Unreachable nodes have a count of zero.
func RefCounts(g *Graph, roots []op.Ref) []int {
	counts := make([]int, g.NodeCount())
	for _, r := range roots {
		if g.Has(r) {
			counts[r.Index()]++
		}
	}
	PostOrder(g, roots, func(r op.Ref) {
		for _, c := range g.Children(r) {
			counts[c.Index()]++
		}
	})
	return counts
}

// Prune copies the nodes reachable from roots into a new compact graph and
// returns it with the remapped roots. Names of surviving nodes are carried
// over; nodes only the dropped part of the graph referenced are gone.
func Prune(g *Graph, roots []op.Ref) (*Graph, []op.Ref) {
	b := NewBuilder()
	memo := rebuild(b, g, roots, nil, nil)

	out := b.Graph()
	for name, r := range g.NameIndex {
		if nr, ok := memo[r]; ok {
			out.NameIndex[name] = nr
		}
	}
	newRoots := remapAll(roots, memo)
	out.Roots = append(out.Roots, newRoots...)
	return out, newRoots
}
