package pymodel

import (
	"log/slog"
	"strings"

	"calltree/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxResolveDepth bounds re-export chains between modules.
const maxResolveDepth = 16

func dottedText(ctx *parser.ExtractionContext, node *sitter.Node) string {
	return strings.Join(strings.Fields(ctx.Text(node)), "")
}

func (m *Module) bindImport(ctx *parser.ExtractionContext, stmt *sitter.Node) {
	for _, name := range parser.FieldChildren(stmt, "name") {
		switch name.Kind() {
		case "dotted_name":
			full := dottedText(ctx, name)
			head := strings.SplitN(full, ".", 2)[0]
			m.imports[head] = importBinding{module: head}
		case "aliased_import":
			full := dottedText(ctx, name.ChildByFieldName("name"))
			alias := ctx.Text(name.ChildByFieldName("alias"))
			m.imports[alias] = importBinding{module: full}
		}
	}
}

func (m *Module) bindFromImport(ctx *parser.ExtractionContext, stmt *sitter.Node) {
	source := m.fromModule(ctx, stmt.ChildByFieldName("module_name"))
	if source == "" {
		return
	}

	for _, child := range parser.NamedChildren(stmt) {
		if child.Kind() == "wildcard_import" {
			m.stars = append(m.stars, source)
			return
		}
	}
	for _, name := range parser.FieldChildren(stmt, "name") {
		switch name.Kind() {
		case "dotted_name":
			attr := dottedText(ctx, name)
			m.imports[attr] = importBinding{module: source, attr: attr}
		case "aliased_import":
			attr := dottedText(ctx, name.ChildByFieldName("name"))
			alias := ctx.Text(name.ChildByFieldName("alias"))
			m.imports[alias] = importBinding{module: source, attr: attr}
		}
	}
}

// fromModule returns the absolute module named by a from-import, resolving
// leading dots against this module's package.
func (m *Module) fromModule(ctx *parser.ExtractionContext, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "dotted_name" {
		return dottedText(ctx, node)
	}

	level := 0
	rest := ""
	for _, child := range parser.NamedChildren(node) {
		switch child.Kind() {
		case "import_prefix":
			level = strings.Count(ctx.Text(child), ".")
		case "dotted_name":
			rest = dottedText(ctx, child)
		}
	}

	pkg := m.Name
	if !m.IsPackage {
		pkg = parentModule(pkg)
	}
	for i := 1; i < level; i++ {
		pkg = parentModule(pkg)
	}
	switch {
	case pkg == "":
		return rest
	case rest == "":
		return pkg
	default:
		return pkg + "." + rest
	}
}

func parentModule(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}

// resolveBase maps a base expression of c to a class, falling back to an
// opaque external class when the name cannot be found.
func (l *Loader) resolveBase(c *Class, ref baseRef) *Class {
	if ref.parts != nil {
		if found := l.lookupInScope(c.Module, c.outer, ref.parts); found != nil {
			return found
		}
		if len(ref.parts) == 1 && ref.parts[0] == "object" ||
			len(ref.parts) == 2 && ref.parts[0] == "builtins" && ref.parts[1] == "object" {
			return Object
		}
	}
	slog.Debug("unresolved base class", "class", c.String(), "base", ref.text)
	return l.external(ref)
}

func (l *Loader) external(ref baseRef) *Class {
	if c, ok := l.externals[ref.text]; ok {
		return c
	}
	name := ref.text
	if len(ref.parts) > 0 {
		name = ref.parts[len(ref.parts)-1]
	}
	c := newClass(name, ref.text, nil)
	c.external = true
	c.mro = []*Class{c, Object}
	l.externals[ref.text] = c
	return c
}

// lookupInScope resolves a dotted name as seen from a class body nested in
// outer (nil for module level). Enclosing class bodies are searched first.
func (l *Loader) lookupInScope(m *Module, outer *Class, parts []string) *Class {
	for scope := outer; scope != nil; scope = scope.outer {
		if c, ok := m.classes[scope.QualName+"."+parts[0]]; ok {
			return m.nested(c, parts[1:])
		}
	}
	if c, ok := m.classes[parts[0]]; ok {
		return m.nested(c, parts[1:])
	}
	if b, ok := m.imports[parts[0]]; ok {
		return l.lookupBinding(b, parts[1:], 0)
	}
	return l.lookupStars(m, parts, 0)
}

// lookupAttr resolves parts as attribute accesses on module m.
func (l *Loader) lookupAttr(m *Module, parts []string, depth int) *Class {
	if len(parts) == 0 || depth > maxResolveDepth {
		return nil
	}
	if c, ok := m.classes[parts[0]]; ok {
		return m.nested(c, parts[1:])
	}
	if b, ok := m.imports[parts[0]]; ok {
		if found := l.lookupBinding(b, parts[1:], depth+1); found != nil {
			return found
		}
	}
	if sub, err := l.LoadModule(m.Name + "." + parts[0]); err == nil {
		return l.lookupAttr(sub, parts[1:], depth+1)
	}
	return l.lookupStars(m, parts, depth+1)
}

func (l *Loader) lookupBinding(b importBinding, rest []string, depth int) *Class {
	if depth > maxResolveDepth {
		return nil
	}
	mod, err := l.LoadModule(b.module)
	if b.attr == "" {
		if err == nil {
			return l.lookupAttr(mod, rest, depth+1)
		}
		// Namespace packages have no __init__.py of their own.
		if len(rest) > 1 {
			return l.lookupBinding(importBinding{module: b.module + "." + rest[0]}, rest[1:], depth+1)
		}
		return nil
	}

	if err == nil {
		if found := l.lookupAttr(mod, append([]string{b.attr}, rest...), depth+1); found != nil {
			return found
		}
	}
	// from pkg import submodule
	if sub, err := l.LoadModule(b.module + "." + b.attr); err == nil {
		return l.lookupAttr(sub, rest, depth+1)
	}
	return nil
}

func (l *Loader) lookupStars(m *Module, parts []string, depth int) *Class {
	for _, name := range m.stars {
		mod, err := l.LoadModule(name)
		if err != nil {
			continue
		}
		if found := l.lookupAttr(mod, parts, depth+1); found != nil {
			return found
		}
	}
	return nil
}

// nested walks inner class names below c.
func (m *Module) nested(c *Class, rest []string) *Class {
	for _, part := range rest {
		inner, ok := m.classes[c.QualName+"."+part]
		if !ok {
			return nil
		}
		c = inner
	}
	return c
}
