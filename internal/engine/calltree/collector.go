package calltree

import (
	"calltree/internal/engine/parser"
	"calltree/internal/engine/pymodel"
	"calltree/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Calls maps the class where method lookup starts to the names called
// through it. Both levels keep first-seen order without duplicates.
type Calls struct {
	order []*pymodel.Class
	names map[*pymodel.Class]*util.OrderedSet[string]

	// Unresolved holds Base.m(self) names that no class in Base's
	// linearization defines.
	Unresolved []string
}

func newCalls() *Calls {
	return &Calls{names: make(map[*pymodel.Class]*util.OrderedSet[string])}
}

func (c *Calls) add(start *pymodel.Class, name string) {
	set, ok := c.names[start]
	if !ok {
		set = util.NewOrderedSet[string]()
		c.names[start] = set
		c.order = append(c.order, start)
	}
	set.Add(name)
}

// Starts returns the lookup-start classes in the order first recorded.
func (c *Calls) Starts() []*pymodel.Class {
	out := make([]*pymodel.Class, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Calls) Names(start *pymodel.Class) []string {
	set, ok := c.names[start]
	if !ok {
		return nil
	}
	return set.Items()
}

// Len counts recorded (start, name) pairs.
func (c *Calls) Len() int {
	n := 0
	for _, set := range c.names {
		n += set.Len()
	}
	return n
}

type callCollector struct {
	mro       []*pymodel.Class
	declaring *pymodel.Class
	calls     *Calls
}

// CollectCalls scans a parsed method for calls made through self, through
// an ancestor class name with self as first argument, and through super().
// mro is the linearization of the class analysis started from; declaring is
// the class that defines the method being scanned.
func CollectCalls(tree *parser.Tree, mro []*pymodel.Class, declaring *pymodel.Class) *Calls {
	c := &callCollector{mro: mro, declaring: declaring, calls: newCalls()}
	if len(mro) == 0 {
		return c.calls
	}
	walker := parser.NewWalker(map[string]parser.NodeHandler{
		"call": c.visitCall,
	})
	walker.Walk(tree.Context(), tree.Root())
	return c.calls
}

func (c *callCollector) visitCall(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	fn := parser.Unparen(node.ChildByFieldName("function"))
	args := node.ChildByFieldName("arguments")
	if fn == nil || fn.Kind() != "attribute" {
		return false
	}
	name := ctx.Text(fn.ChildByFieldName("attribute"))

	if parts, ok := parser.DottedParts(fn, ctx.Source); ok {
		if len(parts) != 2 {
			return false
		}
		if parts[0] == parser.Receiver {
			c.calls.add(c.mro[0], name)
			ctx.Visit(args)
			return true
		}
		return c.visitBaseCall(ctx, parts[0], name, args)
	}

	obj := parser.Unparen(fn.ChildByFieldName("object"))
	if obj != nil && obj.Kind() == "call" {
		return c.visitSuperCall(ctx, obj, name, args)
	}
	return false
}

// visitBaseCall handles Base.name(self, ...).
func (c *callCollector) visitBaseCall(ctx *parser.ExtractionContext, base, name string, args *sitter.Node) bool {
	positional := parser.PositionalArgs(args)
	if len(positional) == 0 || !isReceiver(ctx, positional[0]) {
		return false
	}
	cls := c.byName(c.mro, base)
	if cls == nil {
		return false
	}

	own, err := cls.MRO()
	if err != nil {
		own = []*pymodel.Class{cls}
	}
	if _, owner, ok := FindOwner(own, name); ok {
		c.calls.add(owner, name)
	} else {
		c.calls.Unresolved = append(c.calls.Unresolved, base+"."+name)
	}
	ctx.Visit(args)
	return true
}

// visitSuperCall handles super().name(...) and super(X, self).name(...).
func (c *callCollector) visitSuperCall(ctx *parser.ExtractionContext, superCall *sitter.Node, name string, args *sitter.Node) bool {
	callee, ok := parser.DottedName(superCall.ChildByFieldName("function"), ctx.Source)
	if !ok || callee != "super" {
		return false
	}

	// object never has a successor to start from.
	candidates := c.mro[:len(c.mro)-1]
	var anchor *pymodel.Class
	superArgs := parser.NamedChildren(superCall.ChildByFieldName("arguments"))
	switch len(superArgs) {
	case 0:
		for _, k := range candidates {
			if k == c.declaring {
				anchor = k
				break
			}
		}
	case 2:
		if !isReceiver(ctx, superArgs[1]) {
			return false
		}
		parts, ok := parser.DottedParts(superArgs[0], ctx.Source)
		if !ok || len(parts) != 1 {
			return false
		}
		anchor = c.byName(candidates, parts[0])
	}
	if anchor == nil {
		return false
	}

	for i, k := range c.mro {
		if k == anchor {
			c.calls.add(c.mro[i+1], name)
			break
		}
	}
	ctx.Visit(args)
	return true
}

func (c *callCollector) byName(classes []*pymodel.Class, name string) *pymodel.Class {
	for _, k := range classes {
		if k.Name == name {
			return k
		}
	}
	return nil
}

func isReceiver(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	node = parser.Unparen(node)
	return node != nil && node.Kind() == "identifier" && ctx.Text(node) == parser.Receiver
}
