package pymodel

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Loader resolves dotted module names against a list of search roots and
// caches every module it parses. A Loader models one analysis request and is
// not safe for concurrent use.
type Loader struct {
	roots  []string
	parser *parser.Parser

	modules   map[string]*Module
	missing   map[string]error
	externals map[string]*Class
}

func NewLoader(roots []string, p *parser.Parser) *Loader {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	if p == nil {
		p = parser.NewParser()
	}
	return &Loader{
		roots:     roots,
		parser:    p,
		modules:   make(map[string]*Module),
		missing:   make(map[string]error),
		externals: make(map[string]*Class),
	}
}

// LoadModule returns the module named name, parsing it on first use.
func (l *Loader) LoadModule(name string) (*Module, error) {
	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	if err, ok := l.missing[name]; ok {
		return nil, err
	}

	path, isPkg, err := l.locate(name)
	if err != nil {
		l.missing[name] = err
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		wrapped := (&errors.DomainError{Code: errors.CodeInternal, Message: "read module", Err: err}).
			WithContext(errors.CtxModule, name).
			WithContext(errors.CtxPath, path)
		l.missing[name] = wrapped
		return nil, wrapped
	}

	m, err := l.build(name, path, src, isPkg)
	if err != nil {
		l.missing[name] = err
		return nil, err
	}
	l.modules[name] = m
	return m, nil
}

// LoadSource registers src as module name without touching the filesystem.
func (l *Loader) LoadSource(name, path string, src []byte) (*Module, error) {
	m, err := l.build(name, path, src, filepath.Base(path) == "__init__.py")
	if err != nil {
		return nil, err
	}
	l.modules[name] = m
	delete(l.missing, name)
	return m, nil
}

func (l *Loader) locate(name string) (string, bool, error) {
	rel := filepath.Join(strings.Split(name, ".")...)
	for _, root := range l.roots {
		candidate := filepath.Join(root, rel+".py")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, false, nil
		}
		candidate = filepath.Join(root, rel, "__init__.py")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return "", false, errors.Newf(errors.CodeNotFound, "module %s not found on search path", name).
		WithContext(errors.CtxModule, name).
		WithContext(errors.CtxPath, strings.Join(l.roots, string(filepath.ListSeparator)))
}

func (l *Loader) build(name, path string, src []byte, isPkg bool) (*Module, error) {
	tree, err := l.parser.Parse(path, src)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxModule, name)
	}
	defer tree.Close()

	if tree.Root().HasError() {
		slog.Debug("module has syntax errors", "module", name, "path", path)
	}

	m := &Module{
		Name:      name,
		Path:      path,
		Source:    src,
		IsPackage: isPkg,
		classes:   make(map[string]*Class),
		imports:   make(map[string]importBinding),
		loader:    l,
	}
	ctx := tree.Context()
	for _, stmt := range suiteStatements(tree.Root()) {
		m.scanTopLevel(ctx, stmt)
	}
	return m, nil
}

func (m *Module) scanTopLevel(ctx *parser.ExtractionContext, stmt *sitter.Node) {
	switch stmt.Kind() {
	case "import_statement":
		m.bindImport(ctx, stmt)
	case "import_from_statement":
		m.bindFromImport(ctx, stmt)
	case "class_definition", "decorated_definition":
		if def := parser.Unwrap(stmt); def.Kind() == "class_definition" {
			m.addClass(ctx, def, nil)
		}
	}
}

func (m *Module) addClass(ctx *parser.ExtractionContext, def *sitter.Node, outer *Class) *Class {
	name := ctx.Text(def.ChildByFieldName("name"))
	qual := name
	if outer != nil {
		qual = outer.QualName + "." + name
	}

	c := newClass(name, qual, m)
	c.outer = outer
	c.Location = ctx.Location(def)
	for _, arg := range parser.PositionalArgs(def.ChildByFieldName("superclasses")) {
		ref := baseRef{text: ctx.Text(arg)}
		if parts, ok := parser.DottedParts(arg, ctx.Source); ok {
			ref.parts = parts
		}
		c.bases = append(c.bases, ref)
	}

	if _, ok := m.classes[qual]; !ok {
		m.order = append(m.order, qual)
	}
	m.classes[qual] = c

	for _, stmt := range suiteStatements(def.ChildByFieldName("body")) {
		c.scanMember(ctx, stmt)
	}
	return c
}

func (c *Class) scanMember(ctx *parser.ExtractionContext, stmt *sitter.Node) {
	switch stmt.Kind() {
	case "function_definition", "decorated_definition", "class_definition":
		def := parser.Unwrap(stmt)
		name := ctx.Text(def.ChildByFieldName("name"))
		switch def.Kind() {
		case "function_definition":
			c.define(&Member{
				Name:     name,
				Kind:     MemberFunction,
				Source:   parser.Dedent(parser.LineSpan(parser.DefinitionSpan(def), ctx.Source)),
				Location: ctx.Location(def),
			})
		case "class_definition":
			c.define(&Member{Name: name, Kind: MemberClass, Location: ctx.Location(def)})
			c.Module.addClass(ctx, def, c)
		}
	case "expression_statement":
		for _, expr := range parser.NamedChildren(stmt) {
			if expr.Kind() == "assignment" {
				c.scanAssignment(ctx, expr)
			}
		}
	}
}

func (c *Class) scanAssignment(ctx *parser.ExtractionContext, assign *sitter.Node) {
	right := assign.ChildByFieldName("right")
	if right == nil {
		// A bare annotation binds nothing in the class namespace.
		return
	}
	for _, name := range boundNames(assign.ChildByFieldName("left")) {
		c.define(&Member{Name: ctx.Text(name), Kind: MemberAttribute, Location: ctx.Location(name)})
	}
	if right.Kind() == "assignment" {
		c.scanAssignment(ctx, right)
	}
}

// boundNames returns the identifiers bound by an assignment target.
func boundNames(target *sitter.Node) []*sitter.Node {
	if target == nil {
		return nil
	}
	switch target.Kind() {
	case "identifier":
		return []*sitter.Node{target}
	case "pattern_list", "tuple_pattern", "list_pattern", "parenthesized_expression", "list_splat_pattern":
		var out []*sitter.Node
		for _, child := range parser.NamedChildren(target) {
			out = append(out, boundNames(child)...)
		}
		return out
	}
	return nil
}

// suiteStatements flattens a block into its statements, descending into
// if/try/with bodies since names bound there land in the same namespace.
func suiteStatements(block *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, stmt := range parser.NamedChildren(block) {
		switch stmt.Kind() {
		case "if_statement", "try_statement", "with_statement":
			for _, body := range compoundBlocks(stmt) {
				out = append(out, suiteStatements(body)...)
			}
		default:
			out = append(out, stmt)
		}
	}
	return out
}

func compoundBlocks(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range parser.NamedChildren(node) {
		switch child.Kind() {
		case "block":
			out = append(out, child)
		case "elif_clause", "else_clause", "except_clause", "except_group_clause", "finally_clause":
			out = append(out, compoundBlocks(child)...)
		}
	}
	return out
}

func (m *Module) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Path)
}
