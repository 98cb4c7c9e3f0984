package output

import (
	"fmt"
	"strings"

	"calltree/internal/engine/calltree"
)

type TSVGenerator struct {
	graph *calltree.CallGraph
}

func NewTSVGenerator(g *calltree.CallGraph) *TSVGenerator {
	return &TSVGenerator{graph: g}
}

// Generate lists every edge in graph order. The entry edge has an empty
// caller.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("CallerClass\tCallerMethod\tCalleeClass\tCalleeMethod\tRecursive\n")

	recursive := recursiveEdges(t.graph)
	for _, e := range t.graph.Edges() {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%t\n",
			e[0].Class, e[0].Method, e[1].Class, e[1].Method, recursive[e]))
	}

	return buf.String(), nil
}
