package output

import (
	"fmt"
	"strings"

	"calltree/internal/engine/calltree"
)

type PlantUMLGenerator struct {
	graph *calltree.CallGraph
}

func NewPlantUMLGenerator(g *calltree.CallGraph) *PlantUMLGenerator {
	return &PlantUMLGenerator{graph: g}
}

// Generate draws one package per class holding a rectangle per method.
func (p *PlantUMLGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("@startuml\n")
	b.WriteString("skinparam packageStyle rectangle\n")
	b.WriteString("skinparam linetype ortho\n")
	b.WriteString("left to right direction\n\n")

	aliases := makeIDs(p.graph.Nodes())
	entries := entryPoints(p.graph)
	recursive := recursiveEdges(p.graph)

	for _, grp := range groupByClass(p.graph) {
		b.WriteString(fmt.Sprintf("package \"%s\" {\n", escapePlantUML(grp.Class)))
		for _, n := range grp.Methods {
			stereo := ""
			if entries[n] {
				stereo = " <<entry>>"
			}
			b.WriteString(fmt.Sprintf("  rectangle \"%s\" as %s%s\n", escapePlantUML(n.Method), aliases[n], stereo))
		}
		b.WriteString("}\n")
	}

	b.WriteString("\n")
	for _, e := range p.graph.Edges() {
		if e[0].IsRoot() {
			continue
		}
		if recursive[e] {
			b.WriteString(fmt.Sprintf("%s -[#red,bold]-> %s : recursion\n", aliases[e[0]], aliases[e[1]]))
			continue
		}
		b.WriteString(fmt.Sprintf("%s --> %s\n", aliases[e[0]], aliases[e[1]]))
	}

	b.WriteString("@enduml\n")
	return b.String(), nil
}

func escapePlantUML(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
