package output

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"calltree/internal/core/errors"
	"calltree/internal/engine/calltree"
)

// Formats lists the renderers Render accepts.
var Formats = []string{"tree", "dot", "tsv", "mermaid", "plantuml"}

// Render writes g in the named format. style only applies to "tree".
func Render(w io.Writer, format string, g *calltree.CallGraph, style *calltree.TreeStyle) error {
	var (
		text string
		err  error
	)
	switch strings.ToLower(format) {
	case "", "tree":
		return calltree.PrintTree(w, g, style)
	case "dot":
		text, err = NewDOTGenerator(g).Generate()
	case "tsv":
		text, err = NewTSVGenerator(g).Generate()
	case "mermaid":
		text, err = NewMermaidGenerator(g).Generate()
	case "plantuml":
		text, err = NewPlantUMLGenerator(g).Generate()
	default:
		return errors.Newf(errors.CodeValidationError, "unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

// classGroup is one owning class and its methods in first-seen order.
type classGroup struct {
	Class   string
	Methods []calltree.QualifiedMethod
}

func groupByClass(g *calltree.CallGraph) []classGroup {
	var groups []classGroup
	index := make(map[string]int)
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			continue
		}
		i, ok := index[n.Class]
		if !ok {
			i = len(groups)
			index[n.Class] = i
			groups = append(groups, classGroup{Class: n.Class})
		}
		groups[i].Methods = append(groups[i].Methods, n)
	}
	return groups
}

// entryPoints are the starting methods hanging off the root.
func entryPoints(g *calltree.CallGraph) map[calltree.QualifiedMethod]bool {
	out := make(map[calltree.QualifiedMethod]bool)
	for _, n := range g.Successors(calltree.Root) {
		out[n] = true
	}
	return out
}

// recursiveEdges returns the edges that lie on a cycle: u->v such that u is
// reachable from v.
func recursiveEdges(g *calltree.CallGraph) map[[2]calltree.QualifiedMethod]bool {
	out := make(map[[2]calltree.QualifiedMethod]bool)
	for _, e := range g.Edges() {
		if e[0].IsRoot() {
			continue
		}
		if reaches(g, e[1], e[0]) {
			out[e] = true
		}
	}
	return out
}

func reaches(g *calltree.CallGraph, from, to calltree.QualifiedMethod) bool {
	if from == to || g.HasEdge(from, to) {
		return true
	}
	seen := map[calltree.QualifiedMethod]bool{from: true}
	queue := []calltree.QualifiedMethod{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == to {
			return true
		}
		for _, next := range g.Successors(n) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func sanitizeID(name string) string {
	if name == "" {
		return "m"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "m_" + out
	}
	return out
}

// makeIDs assigns each node a unique identifier safe for diagram syntax.
func makeIDs(nodes []calltree.QualifiedMethod) map[calltree.QualifiedMethod]string {
	ids := make(map[calltree.QualifiedMethod]string, len(nodes))
	used := make(map[string]int, len(nodes))
	for _, n := range nodes {
		base := sanitizeID(n.String())
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[n] = base
			continue
		}
		ids[n] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}
