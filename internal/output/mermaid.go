package output

import (
	"fmt"
	"strings"

	"calltree/internal/engine/calltree"
)

type MermaidGenerator struct {
	graph *calltree.CallGraph
}

func NewMermaidGenerator(g *calltree.CallGraph) *MermaidGenerator {
	return &MermaidGenerator{graph: g}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("%%{init: {'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")

	ids := makeIDs(m.graph.Nodes())
	entries := entryPoints(m.graph)
	recursive := recursiveEdges(m.graph)

	var entryIDs []string
	for _, grp := range groupByClass(m.graph) {
		b.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", sanitizeID("class_"+grp.Class), escapeMermaidLabel(grp.Class)))
		for _, n := range grp.Methods {
			b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[n], escapeMermaidLabel(n.Method)))
			if entries[n] {
				entryIDs = append(entryIDs, ids[n])
			}
		}
		b.WriteString("  end\n")
	}

	b.WriteString("\n")
	linkIndex := 0
	var recursiveLinks []string
	for _, e := range m.graph.Edges() {
		if e[0].IsRoot() {
			continue
		}
		if recursive[e] {
			b.WriteString(fmt.Sprintf("  %s -->|recursion| %s\n", ids[e[0]], ids[e[1]]))
			recursiveLinks = append(recursiveLinks, fmt.Sprint(linkIndex))
		} else {
			b.WriteString(fmt.Sprintf("  %s --> %s\n", ids[e[0]], ids[e[1]]))
		}
		linkIndex++
	}

	if len(entryIDs) > 0 {
		b.WriteString("\n  classDef entryNode fill:#fff8dc,stroke:#b8860b,stroke-width:2px;\n")
		b.WriteString("  class " + strings.Join(entryIDs, ",") + " entryNode;\n")
	}
	if len(recursiveLinks) > 0 {
		b.WriteString("  linkStyle " + strings.Join(recursiveLinks, ",") + " stroke:#d62728,stroke-width:2px;\n")
	}

	return b.String(), nil
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
