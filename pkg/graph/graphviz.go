package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/opgraph/pkg/op"
)

// Graphviz outputs the graph in graphviz format. Edges point from a node to
// the children it consumes and are labelled with the slot name.
// https://en.wikipedia.org/wiki/DOT_%28graph_description_language%29
func (g *Graph) Graphviz(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", strconv.Quote(name))
	fmt.Fprintf(&b, "\tlabel=%s;\n", strconv.Quote(name))

	names := g.Names()
	var edges strings.Builder // use a second buffer for clearer output ordering
	for i, o := range g.nodes {
		if o == nil {
			continue
		}
		r := op.RefAt(i)
		label := fmt.Sprintf("%s %s", r, o.Kind())
		if n, ok := names[r]; ok {
			label = fmt.Sprintf("%s (%s)", label, n)
		}
		fmt.Fprintf(&b, "\tn%d [label=%s];\n", i, strconv.Quote(label))
		o.ForEachChild(func(s op.Slot) {
			if s.Ref.IsZero() {
				return
			}
			fmt.Fprintf(&edges, "\tn%d -> n%d [label=%s];\n", i, s.Ref.Index(), strconv.Quote(s.Name))
		})
	}
	b.WriteString(edges.String())
	b.WriteString("}\n")
	return b.String()
}
