// Package attrs finds, per class, the attribute names assigned through self
// and the read-only properties a class exposes.
package attrs

import (
	"context"
	"os"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"
	"calltree/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type collector struct {
	table   *Table
	classes []string
	funcs   []string
}

// Collect records the attributes of every class in tree into table, or into
// a fresh table when table is nil. A class that is defined again replaces
// its earlier entry.
func Collect(tree *parser.Tree, table *Table) *Table {
	if table == nil {
		table = NewTable()
	}
	c := &collector{table: table}
	walker := parser.NewWalker(map[string]parser.NodeHandler{
		"class_definition":     c.visitClass,
		"function_definition":  c.visitFunction,
		"assignment":           c.visitAssignment,
		"augmented_assignment": skip,
	})
	walker.Walk(tree.Context(), tree.Root())
	return table
}

// CollectSource parses src and collects its classes.
func CollectSource(ctx context.Context, p *parser.Parser, path string, src []byte, table *Table) (*Table, error) {
	_, span := observability.Tracer.Start(ctx, "attrs.Collect", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	if p == nil {
		p = parser.NewParser()
	}
	tree, err := p.Parse(path, src)
	if err != nil {
		span.RecordError(err)
		return table, err
	}
	defer tree.Close()
	return Collect(tree, table), nil
}

// CollectFile reads and collects one source file.
func CollectFile(ctx context.Context, p *parser.Parser, path string, table *Table) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return table, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}
	return CollectSource(ctx, p, path, src, table)
}

func skip(*parser.ExtractionContext, *sitter.Node) bool {
	return true
}

func (c *collector) visitClass(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if len(c.classes) > 0 {
		name = c.classes[len(c.classes)-1] + "." + name
	}
	observability.AttributeClasses.Inc()

	c.classes = append(c.classes, name)
	c.table.reset(name)
	ctx.Visit(node.ChildByFieldName("body"))
	c.classes = c.classes[:len(c.classes)-1]

	// Classes built inside a function have no stable identity.
	if len(c.funcs) > 0 {
		c.table.remove(name)
	}
	return true
}

func (c *collector) visitFunction(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))

	c.funcs = append(c.funcs, name)
	ctx.Visit(node.ChildByFieldName("body"))
	c.funcs = c.funcs[:len(c.funcs)-1]

	if len(c.classes) == 0 {
		return true
	}
	for _, dec := range parser.Decorators(node) {
		if dec.Kind() == "identifier" && ctx.Text(dec) == "property" {
			c.table.add(c.classes[len(c.classes)-1], name)
			break
		}
	}
	return true
}

func (c *collector) visitAssignment(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	if len(c.classes) == 0 {
		return true
	}
	class := c.classes[len(c.classes)-1]
	for assign := node; assign != nil && assign.Kind() == "assignment"; assign = assign.ChildByFieldName("right") {
		if assign.ChildByFieldName("right") == nil {
			break
		}
		for _, target := range targets(assign.ChildByFieldName("left")) {
			parts, ok := parser.DottedParts(target, ctx.Source)
			if ok && len(parts) >= 2 && parts[0] == parser.Receiver {
				c.table.add(class, parts[1])
			}
		}
	}
	return true
}

// targets splits a tuple or list target one level deep.
func targets(left *sitter.Node) []*sitter.Node {
	if left == nil {
		return nil
	}
	switch left.Kind() {
	case "pattern_list", "tuple_pattern", "list_pattern":
		return parser.NamedChildren(left)
	}
	return []*sitter.Node{left}
}
