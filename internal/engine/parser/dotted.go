package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// DottedName returns the static dotted path of node ("a.b.c") when node is a
// bare identifier or a chain of pure attribute accesses rooted at one.
// Anything else in the chain (a call, a subscript, an operator, a literal)
// makes the path unresolvable and ok is false. Redundant parentheses are
// ignored, as they are not part of the expression's structure.
func DottedName(node *sitter.Node, source []byte) (name string, ok bool) {
	parts, ok := dottedParts(node, source)
	if !ok {
		return "", false
	}
	return strings.Join(parts, "."), true
}

// DottedParts is DottedName split into its components.
func DottedParts(node *sitter.Node, source []byte) ([]string, bool) {
	return dottedParts(node, source)
}

func dottedParts(node *sitter.Node, source []byte) ([]string, bool) {
	var rev []string
	for node != nil {
		switch node.Kind() {
		case "identifier":
			rev = append(rev, Text(node, source))
			parts := make([]string, len(rev))
			for i, p := range rev {
				parts[len(rev)-1-i] = p
			}
			return parts, true
		case "attribute":
			attr := node.ChildByFieldName("attribute")
			if attr == nil {
				return nil, false
			}
			rev = append(rev, Text(attr, source))
			node = node.ChildByFieldName("object")
		case "parenthesized_expression":
			node = Unparen(node)
			if node != nil && node.Kind() == "parenthesized_expression" {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return nil, false
}

// Unparen strips redundant parentheses around a single expression. A
// parenthesized node that holds anything but one expression is returned as is.
func Unparen(node *sitter.Node) *sitter.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		inner := NamedChildren(node)
		if len(inner) != 1 {
			return node
		}
		switch inner[0].Kind() {
		case "list_splat", "yield":
			return node
		}
		node = inner[0]
	}
	return node
}
