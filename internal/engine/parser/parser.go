package parser

import (
	"calltree/internal/core/errors"
	"calltree/internal/shared/observability"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser turns Python source into syntax trees. One Parser may be shared by
// goroutines; each Parse call leases its own tree-sitter parser.
type Parser struct {
	pool *ParserPool
}

func NewParser() *Parser {
	return &Parser{pool: NewParserPool(PythonLanguage())}
}

// Tree owns a parsed syntax tree together with the source it was built from.
// Nodes obtained from a Tree are invalid after Close.
type Tree struct {
	Path   string
	Source []byte
	tree   *sitter.Tree
}

func (p *Parser) Parse(path string, source []byte) (*Tree, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues("python").Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, errors.Newf(errors.CodeInternal, "parse failed").WithContext(errors.CtxPath, path)
	}
	return &Tree{Path: path, Source: source, tree: tree}, nil
}

func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Context returns a fresh extraction context over this tree's source.
func (t *Tree) Context() *ExtractionContext {
	return &ExtractionContext{Source: t.Source, Path: t.Path}
}

func (t *Tree) Text(node *sitter.Node) string {
	return Text(node, t.Source)
}

// Text returns the source slice spanned by node.
func Text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}
