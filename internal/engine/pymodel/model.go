// Package pymodel is a static object model of Python source: modules, the
// classes they define, each class's own namespace, and its C3 linearization.
// It stands in for runtime reflection when analysing code that is never run.
package pymodel

import (
	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"
)

type MemberKind int

const (
	MemberFunction MemberKind = iota
	MemberAttribute
	MemberClass
	MemberBuiltin
)

func (k MemberKind) String() string {
	switch k {
	case MemberFunction:
		return "function"
	case MemberAttribute:
		return "attribute"
	case MemberClass:
		return "class"
	case MemberBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Member is one name bound directly in a class body.
type Member struct {
	Name     string
	Kind     MemberKind
	Source   string
	Location parser.Location
}

// Class is a class definition, an opaque external base, or the builtin object.
type Class struct {
	Name     string
	QualName string
	Module   *Module
	Location parser.Location

	outer   *Class
	members map[string]*Member

	bases     []baseRef
	mro       []*Class
	mroErr    error
	resolving bool
	external  bool
}

// baseRef is an unresolved base expression; parts is nil when the
// expression is not a plain dotted name.
type baseRef struct {
	text  string
	parts []string
}

func newClass(name, qual string, mod *Module) *Class {
	return &Class{
		Name:     name,
		QualName: qual,
		Module:   mod,
		members:  make(map[string]*Member),
	}
}

func (c *Class) String() string {
	if c.Module != nil {
		return c.Module.Name + "." + c.QualName
	}
	return c.QualName
}

// External reports whether the class stands in for a base that could not be
// found on the search path.
func (c *Class) External() bool {
	return c.external
}

// Defines reports whether name is bound in the class's own namespace.
func (c *Class) Defines(name string) bool {
	_, ok := c.members[name]
	return ok
}

func (c *Class) Member(name string) (*Member, bool) {
	m, ok := c.members[name]
	return m, ok
}

// MethodSource returns the dedented definition of the function name as
// written in this class, decorators included.
func (c *Class) MethodSource(name string) (string, error) {
	m, ok := c.members[name]
	if !ok {
		return "", errors.Newf(errors.CodeNotFound, "%s does not define %s", c.Name, name).
			WithContext(errors.CtxClass, c.QualName).
			WithContext(errors.CtxMethod, name)
	}
	if m.Kind != MemberFunction || m.Source == "" {
		return "", errors.Newf(errors.CodeNotSupported, "%s.%s is a %s with no function source", c.Name, name, m.Kind).
			WithContext(errors.CtxClass, c.QualName).
			WithContext(errors.CtxMethod, name)
	}
	return m.Source, nil
}

func (c *Class) define(m *Member) {
	c.members[m.Name] = m
}

// Module is one parsed source file.
type Module struct {
	Name      string
	Path      string
	Source    []byte
	IsPackage bool

	classes map[string]*Class
	order   []string
	imports map[string]importBinding
	stars   []string
	loader  *Loader
}

// importBinding is a name bound by an import statement. An empty attr binds
// the module itself.
type importBinding struct {
	module string
	attr   string
}

// Class returns the class with the given qualified name ("Outer.Inner").
func (m *Module) Class(qual string) (*Class, bool) {
	c, ok := m.classes[qual]
	return c, ok
}

// Classes returns every class defined in the module, outer before inner, in
// source order.
func (m *Module) Classes() []*Class {
	out := make([]*Class, 0, len(m.order))
	for _, qual := range m.order {
		out = append(out, m.classes[qual])
	}
	return out
}
