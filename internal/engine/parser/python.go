package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NamedChildren returns the named children of node, skipping comments.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// PositionalArgs returns the positional arguments of an argument_list,
// including starred ones, in source order.
func PositionalArgs(args *sitter.Node) []*sitter.Node {
	if args == nil || args.Kind() != "argument_list" {
		return nil
	}
	var out []*sitter.Node
	for _, child := range NamedChildren(args) {
		switch child.Kind() {
		case "keyword_argument", "dictionary_splat":
			continue
		}
		out = append(out, child)
	}
	return out
}

// Decorators returns the expressions of the decorators attached to a
// function or class definition.
func Decorators(def *sitter.Node) []*sitter.Node {
	if def == nil {
		return nil
	}
	parent := def.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}

	var out []*sitter.Node
	for _, child := range NamedChildren(parent) {
		if child.Kind() != "decorator" {
			continue
		}
		if exprs := NamedChildren(child); len(exprs) > 0 {
			out = append(out, exprs[0])
		}
	}
	return out
}

// DefinitionSpan returns the node whose text is the full definition of def,
// i.e. the decorated_definition wrapper when decorators are present.
func DefinitionSpan(def *sitter.Node) *sitter.Node {
	if parent := def.Parent(); parent != nil && parent.Kind() == "decorated_definition" {
		return parent
	}
	return def
}

// Unwrap returns the definition inside a decorated_definition, or node itself.
func Unwrap(node *sitter.Node) *sitter.Node {
	if node != nil && node.Kind() == "decorated_definition" {
		if def := node.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return node
}

// LineSpan returns the text of every full source line touched by node, so an
// indented definition keeps its leading whitespace.
func LineSpan(node *sitter.Node, source []byte) string {
	start := int(node.StartByte())
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	end := int(node.EndByte())
	for end > start && isSpace(source[end-1]) {
		end--
	}
	for end < len(source) && source[end] != '\n' {
		end++
	}
	if end < len(source) {
		end++
	}
	return string(source[start:end])
}

// Dedent removes the common leading whitespace of all non-blank lines.
// Blank lines are normalised to empty lines.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		margin = commonPrefix(margin, indent)
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// FieldChildren returns every child of node stored under field, in order.
// Used for repeated fields such as the names of an import list.
func FieldChildren(node *sitter.Node, field string) []*sitter.Node {
	if node == nil {
		return nil
	}
	cursor := node.Walk()
	defer cursor.Close()

	nodes := node.ChildrenByFieldName(field, cursor)
	out := make([]*sitter.Node, 0, len(nodes))
	for i := range nodes {
		out = append(out, &nodes[i])
	}
	return out
}
