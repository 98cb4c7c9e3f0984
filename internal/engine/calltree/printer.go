package calltree

import (
	"bufio"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TreeStyle colours the class and method halves of each printed node.
type TreeStyle struct {
	Class  lipgloss.Style
	Method lipgloss.Style
	Repeat lipgloss.Style
}

func DefaultTreeStyle() *TreeStyle {
	return &TreeStyle{
		Class:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Method: lipgloss.NewStyle().Bold(true),
		Repeat: lipgloss.NewStyle().Faint(true),
	}
}

const indentUnit = "  "

type frame struct {
	depth    int
	children []QualifiedMethod
}

// PrintTree writes the graph as an indented tree, pre-order from Root, two
// spaces per level. A node is printed every time it is reached but its
// callees only under its first occurrence. A nil style prints plain text.
func PrintTree(w io.Writer, g *CallGraph, style *TreeStyle) error {
	bw := bufio.NewWriter(w)
	seen := map[QualifiedMethod]bool{Root: true}
	stack := []frame{{depth: 0, children: g.Successors(Root)}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.children) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := top.children[0]
		top.children = top.children[1:]
		depth := top.depth

		repeat := seen[n]
		if _, err := bw.WriteString(strings.Repeat(indentUnit, depth) + style.render(n, repeat) + "\n"); err != nil {
			return err
		}
		if !repeat {
			seen[n] = true
			stack = append(stack, frame{depth: depth + 1, children: g.Successors(n)})
		}
	}
	return bw.Flush()
}

func (s *TreeStyle) render(n QualifiedMethod, repeat bool) string {
	if s == nil {
		return n.String()
	}
	text := s.Class.Render(n.Class) + "." + s.Method.Render(n.Method)
	if repeat {
		return s.Repeat.Render(n.String())
	}
	return text
}
