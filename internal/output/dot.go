package output

import (
	"fmt"
	"strings"

	"calltree/internal/engine/calltree"
)

type DOTGenerator struct {
	graph *calltree.CallGraph
}

func NewDOTGenerator(g *calltree.CallGraph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph calltree {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n\n")

	entries := entryPoints(d.graph)
	recursive := recursiveEdges(d.graph)

	// One cluster per owning class
	for i, grp := range groupByClass(d.graph) {
		buf.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
		buf.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOT(grp.Class)))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
		for _, n := range grp.Methods {
			if entries[n] {
				buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"lightyellow\", color=\"darkgoldenrod\", penwidth=2.0];\n",
					escapeDOT(n.String()), escapeDOT(n.Method)))
				continue
			}
			buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n",
				escapeDOT(n.String()), escapeDOT(n.Method)))
		}
		buf.WriteString("  }\n\n")
	}

	for _, e := range d.graph.Edges() {
		if e[0].IsRoot() {
			continue
		}
		from, to := escapeDOT(e[0].String()), escapeDOT(e[1].String())
		if recursive[e] {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"red\", penwidth=2.0, label=\"RECURSION\"];\n", from, to))
		} else if e[0].Class == e[1].Class {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\"];\n", from, to))
		} else {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"steelblue\", style=dashed];\n", from, to))
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}
