// Package lambda captures, serializes and restores Python lambda
// expressions. Restoring never evaluates arbitrary code: the text is
// compiled against a small expression grammar and run by a sandboxed
// evaluator.
package lambda

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"
	"calltree/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// restoredPath names the origin of closures built from serialized text.
const restoredPath = "<lambda>"

var sharedParser = sync.OnceValue(parser.NewParser)

// Capture wraps a lambda and lazily isolates its source text on the first
// Serialize call. A failed capture is permanent.
type Capture struct {
	fn *Closure

	once     sync.Once
	captured atomic.Bool
	src      string
	err      error
}

// Wrap returns a capture of fn. No parsing happens until Serialize.
func Wrap(fn *Closure) *Capture {
	return &Capture{fn: fn}
}

func (c *Capture) Func() *Closure {
	return c.fn
}

// Call invokes the wrapped lambda regardless of capture state.
func (c *Capture) Call(args ...Value) (Value, error) {
	if c.fn == nil {
		return nil, errors.New(errors.CodeValidationError, "capture holds no lambda")
	}
	return c.fn.Call(args...)
}

// Source returns the cached source text once a capture has succeeded.
func (c *Capture) Source() (string, bool) {
	if !c.captured.Load() {
		return "", false
	}
	return c.src, true
}

// Serialize returns the canonical text of the wrapped lambda.
func (c *Capture) Serialize() (string, error) {
	c.once.Do(func() {
		_, span := observability.Tracer.Start(context.Background(), "lambda.Serialize")
		defer span.End()

		c.src, c.err = c.isolate()
		span.SetAttributes(attribute.String("outcome", outcome(c.err)))
		if c.err != nil {
			span.SetStatus(codes.Error, c.err.Error())
		}
		observability.LambdaCaptures.WithLabelValues(outcome(c.err)).Inc()
		if c.err == nil {
			c.captured.Store(true)
		}
	})
	if c.err != nil {
		return "", c.err
	}
	return c.src, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsCode(err, errors.CodeAmbiguous):
		return "ambiguous"
	case errors.IsCode(err, errors.CodeNotSupported):
		return "unsupported"
	}
	return "error"
}

func (c *Capture) isolate() (string, error) {
	if c.fn == nil {
		return "", errors.New(errors.CodeValidationError, "capture holds no lambda")
	}
	origin := c.fn.origin
	if origin == nil {
		return "", errors.New(errors.CodeNotSupported, "lambda evaluator does not support capturing lambdas without source")
	}
	if c.fn.enclosed() {
		return "", errors.Newf(errors.CodeNotSupported, "lambda evaluator does not support closures over enclosing lambda variables").
			WithContext(errors.CtxLine, origin.StartLine)
	}

	text := parser.Dedent(sourceLines(origin.Source, origin.StartLine, origin.EndLine))
	tree, err := sharedParser().Parse(origin.Path, []byte(text))
	if err != nil {
		return "", err
	}
	defer tree.Close()

	first, last := origin.lambdaRows()
	var found []*sitter.Node
	for _, node := range topLevelLambdas(tree.Context(), tree.Root()) {
		start := origin.StartLine + int(node.StartPosition().Row)
		end := origin.StartLine + int(node.EndPosition().Row)
		if start <= last && end >= first {
			found = append(found, node)
		}
	}
	switch len(found) {
	case 0:
		return "", errors.Newf(errors.CodeNotFound, "no lambda found in source").
			WithContext(errors.CtxPath, origin.Path).
			WithContext(errors.CtxLine, first)
	case 1:
	default:
		return "", errors.Newf(errors.CodeAmbiguous, "only one lambda function is allowed per line").
			WithContext(errors.CtxPath, origin.Path).
			WithContext(errors.CtxLine, first)
	}

	ctx := tree.Context()
	ctx.Path = origin.Path
	l, err := compileLambda(ctx, found[0])
	if err != nil {
		return "", err
	}
	return Unparse(l), nil
}

// topLevelLambdas lists lambda nodes that are not nested in another lambda.
func topLevelLambdas(ctx *parser.ExtractionContext, root *sitter.Node) []*sitter.Node {
	var found []*sitter.Node
	walker := parser.NewWalker(map[string]parser.NodeHandler{
		"lambda": func(_ *parser.ExtractionContext, node *sitter.Node) bool {
			found = append(found, node)
			return true
		},
	})
	walker.Walk(ctx, root)
	return found
}

func sourceLines(src []byte, start, end int) string {
	lines := strings.SplitAfter(string(src), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "")
}

// Deserialize compiles text, which must be a single lambda expression, into
// a new capture.
func Deserialize(text string) (*Capture, error) {
	tree, err := sharedParser().Parse(restoredPath, []byte(text))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.Root()
	if root.HasError() {
		return nil, errors.Newf(errors.CodeValidationError, "malformed lambda text %q", text)
	}
	stmts := parser.NamedChildren(root)
	if len(stmts) != 1 || stmts[0].Kind() != "expression_statement" {
		return nil, errors.Newf(errors.CodeValidationError, "text is not a single lambda expression")
	}
	exprs := parser.NamedChildren(stmts[0])
	if len(exprs) != 1 || exprs[0].Kind() != "lambda" {
		return nil, errors.Newf(errors.CodeValidationError, "text is not a single lambda expression")
	}

	l, err := compileLambda(tree.Context(), exprs[0])
	if err != nil {
		return nil, err
	}
	origin := &Origin{
		Path:          restoredPath,
		Source:        []byte(text),
		StartLine:     int(stmts[0].StartPosition().Row) + 1,
		EndLine:       int(stmts[0].EndPosition().Row) + 1,
		LambdaLine:    int(exprs[0].StartPosition().Row) + 1,
		LambdaEndLine: int(exprs[0].EndPosition().Row) + 1,
	}
	fn, err := newClosure(&interp{origin: origin}, l, nil, origin)
	if err != nil {
		return nil, err
	}
	return Wrap(fn), nil
}

// MarshalText serializes the wrapped lambda.
func (c *Capture) MarshalText() ([]byte, error) {
	src, err := c.Serialize()
	if err != nil {
		return nil, err
	}
	return []byte(src), nil
}

// UnmarshalText restores a lambda into an empty capture.
func (c *Capture) UnmarshalText(text []byte) error {
	if c.fn != nil {
		return errors.New(errors.CodeValidationError, "capture already holds a lambda")
	}
	restored, err := Deserialize(string(text))
	if err != nil {
		return err
	}
	c.fn = restored.fn
	return nil
}

// LoadAt compiles the lambda that starts on line of a source file. With a
// non-zero col only a lambda starting at that column matches; otherwise the
// first one on the line is used. The capture's origin is the statement
// enclosing the lambda; serializing only considers lambdas sharing a line
// with the target.
func LoadAt(p *parser.Parser, path string, src []byte, line, col int) (*Capture, error) {
	tree, err := p.Parse(path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	ctx := tree.Context()
	var target *sitter.Node
	walker := parser.NewWalker(map[string]parser.NodeHandler{
		"lambda": func(ctx *parser.ExtractionContext, node *sitter.Node) bool {
			if target != nil {
				return true
			}
			loc := ctx.Location(node)
			if loc.Line == line && (col == 0 || loc.Column == col) {
				target = node
				return true
			}
			return false
		},
	})
	walker.Walk(ctx, tree.Root())

	if target == nil {
		return nil, errors.Newf(errors.CodeNotFound, "no lambda found").
			WithContext(errors.CtxPath, path).
			WithContext(errors.CtxLine, line)
	}

	l, err := compileLambda(ctx, target)
	if err != nil {
		return nil, err
	}
	stmt := enclosingStatement(target)
	origin := &Origin{
		Path:          path,
		Source:        src,
		StartLine:     int(stmt.StartPosition().Row) + 1,
		EndLine:       int(stmt.EndPosition().Row) + 1,
		LambdaLine:    int(target.StartPosition().Row) + 1,
		LambdaEndLine: int(target.EndPosition().Row) + 1,
	}
	fn, err := newClosure(&interp{origin: origin}, l, nil, origin)
	if err != nil {
		return nil, err
	}
	return Wrap(fn), nil
}

func enclosingStatement(node *sitter.Node) *sitter.Node {
	for n := node; n != nil; n = n.Parent() {
		parent := n.Parent()
		if parent == nil {
			return n
		}
		switch parent.Kind() {
		case "module", "block":
			return n
		}
	}
	return node
}

// ParseLiteral compiles a literal argument such as 3, 2.5, 'x' or (1, [2]).
// Names and calls are rejected.
func ParseLiteral(text string) (Value, error) {
	tree, err := sharedParser().Parse("<arg>", []byte(text))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.Root()
	stmts := parser.NamedChildren(root)
	if root.HasError() || len(stmts) != 1 || stmts[0].Kind() != "expression_statement" {
		return nil, errors.Newf(errors.CodeValidationError, "invalid literal %q", text)
	}
	exprs := parser.NamedChildren(stmts[0])
	if len(exprs) != 1 {
		return nil, errors.Newf(errors.CodeValidationError, "invalid literal %q", text)
	}
	e, err := compile(tree.Context(), exprs[0])
	if err != nil {
		return nil, err
	}
	if !literal(e) {
		return nil, errors.Newf(errors.CodeValidationError, "argument %q is not a literal", text)
	}
	return (&interp{}).eval(e, nil)
}

func literal(e Expr) bool {
	switch n := e.(type) {
	case *Const:
		return true
	case *UnaryOp:
		return n.Op != "not" && literal(n.Operand)
	case *TupleExpr:
		return allLiteral(n.Elts)
	case *ListExpr:
		return allLiteral(n.Elts)
	}
	return false
}

func allLiteral(exprs []Expr) bool {
	for _, e := range exprs {
		if !literal(e) {
			return false
		}
	}
	return true
}
