package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for a visitor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state/helpers used by all visitors.
type ExtractionContext struct {
	Source []byte
	Path   string

	walker *Walker
}

// Walker walks the syntax tree and dispatches node handlers by kind. Nodes
// without a handler are descended into generically.
type Walker struct {
	handlers map[string]NodeHandler
}

func NewWalker(handlers map[string]NodeHandler) *Walker {
	return &Walker{handlers: handlers}
}

func (w *Walker) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	ctx.walker = w

	stop := false
	if handler, ok := w.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}
	if !stop {
		w.WalkChildren(ctx, node)
	}
}

func (w *Walker) WalkChildren(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		w.Walk(ctx, node.Child(i))
	}
}

// Visit dispatches node through the walker that is currently driving ctx.
// Handlers use it to descend selectively before returning true.
func (c *ExtractionContext) Visit(node *sitter.Node) {
	if c.walker != nil {
		c.walker.Walk(c, node)
	}
}

// VisitChildren descends into every child of node.
func (c *ExtractionContext) VisitChildren(node *sitter.Node) {
	if c.walker != nil && node != nil {
		c.walker.WalkChildren(c, node)
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	return Text(node, c.Source)
}

func (c *ExtractionContext) Location(node *sitter.Node) Location {
	return Location{
		File:   c.Path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}
