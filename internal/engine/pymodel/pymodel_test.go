package pymodel

import (
	"os"
	"path/filepath"
	"testing"

	"calltree/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func mroNames(t *testing.T, c *Class) []string {
	t.Helper()
	mro, err := c.MRO()
	require.NoError(t, err)
	names := make([]string, 0, len(mro))
	for _, k := range mro {
		names = append(names, k.Name)
	}
	return names
}

func TestLinearization(t *testing.T) {
	root := writeTree(t, map[string]string{
		"shapes.py": `
class A:
    def m(self):
        pass

class B(A):
    pass

class C(A):
    def m(self):
        super().m()

class D(B, C):
    pass
`,
	})
	l := NewLoader([]string{root}, nil)
	mod, err := l.LoadModule("shapes")
	require.NoError(t, err)

	d, ok := mod.Class("D")
	require.True(t, ok)
	assert.Equal(t, []string{"D", "B", "C", "A", "object"}, mroNames(t, d))

	a, _ := mod.Class("A")
	assert.Equal(t, []string{"A", "object"}, mroNames(t, a))
}

func TestInconsistentHierarchy(t *testing.T) {
	root := writeTree(t, map[string]string{
		"bad.py": `
class X: pass
class Y(X): pass
class Z(X, Y): pass
`,
	})
	l := NewLoader([]string{root}, nil)
	mod, err := l.LoadModule("bad")
	require.NoError(t, err)

	z, _ := mod.Class("Z")
	_, err = z.MRO()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestNamespace(t *testing.T) {
	root := writeTree(t, map[string]string{
		"comp.py": `
import sys

class Comp:
    flag: bool
    default = other = 3
    a, b = 1, 2

    if sys.version_info >= (3, 8):
        def fast(self):
            return 1
    else:
        def slow(self):
            return 2

    try:
        import json
    except ImportError:
        json = None

    @property
    def ready(self):
        return True

    run = fast

    class Options:
        def declare(self):
            pass

    def setup(self):
        class Hidden:
            pass
        self.x = 1
`,
	})
	l := NewLoader([]string{root}, nil)
	mod, err := l.LoadModule("comp")
	require.NoError(t, err)

	comp, ok := mod.Class("Comp")
	require.True(t, ok)

	for _, name := range []string{"default", "other", "a", "b", "fast", "slow", "json", "ready", "run", "Options", "setup"} {
		assert.True(t, comp.Defines(name), "expected %s in namespace", name)
	}
	assert.False(t, comp.Defines("flag"), "bare annotations bind nothing")
	assert.False(t, comp.Defines("x"), "instance attributes are not class members")

	_, ok = mod.Class("Comp.Options")
	assert.True(t, ok)
	_, ok = mod.Class("Comp.setup.Hidden")
	assert.False(t, ok)
	_, ok = mod.Class("Hidden")
	assert.False(t, ok)

	src, err := comp.MethodSource("ready")
	require.NoError(t, err)
	assert.Equal(t, "@property\ndef ready(self):\n    return True\n", src)

	_, err = comp.MethodSource("run")
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))

	_, err = comp.MethodSource("missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestImports(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pkg/__init__.py": "from .core import Base as PublicBase\n",
		"pkg/core.py": `
class Base:
    def run(self):
        pass
`,
		"pkg/sub/__init__.py": "",
		"pkg/sub/leaf.py": `
from ..core import Base
from .. import core
import pkg.core
import pkg.core as pc
from pkg import PublicBase
from collections import OrderedDict

class ViaRelative(Base): pass
class ViaModuleAttr(core.Base): pass
class ViaDotted(pkg.core.Base): pass
class ViaAlias(pc.Base): pass
class ViaReexport(PublicBase): pass
class Outside(OrderedDict): pass
`,
	})
	l := NewLoader([]string{root}, nil)
	mod, err := l.LoadModule("pkg.sub.leaf")
	require.NoError(t, err)

	core, err := l.LoadModule("pkg.core")
	require.NoError(t, err)
	base, _ := core.Class("Base")

	for _, name := range []string{"ViaRelative", "ViaModuleAttr", "ViaDotted", "ViaAlias", "ViaReexport"} {
		t.Run(name, func(t *testing.T) {
			c, ok := mod.Class(name)
			require.True(t, ok)
			bases, err := c.Bases()
			require.NoError(t, err)
			require.Len(t, bases, 1)
			assert.Same(t, base, bases[0])
		})
	}

	outside, _ := mod.Class("Outside")
	bases, err := outside.Bases()
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.True(t, bases[0].External())
	assert.Equal(t, []string{"Outside", "OrderedDict", "object"}, mroNames(t, outside))
}

func TestObjectIsLeaf(t *testing.T) {
	assert.True(t, Object.Defines("__init__"))
	_, err := Object.MethodSource("__init__")
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))

	mro, err := Object.MRO()
	require.NoError(t, err)
	assert.Equal(t, []*Class{Object}, mro)
}

func TestResolveMethodPath(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app/models.py": `
class Model:
    class Meta:
        def configure(self):
            pass

    def save(self):
        pass
`,
	})
	l := NewLoader([]string{root}, nil)

	c, method, err := l.ResolveMethodPath("app.models.Model.save")
	require.NoError(t, err)
	assert.Equal(t, "Model", c.Name)
	assert.Equal(t, "save", method)

	c, method, err = l.ResolveMethodPath("app.models.Model.Meta.configure")
	require.NoError(t, err)
	assert.Equal(t, "Model.Meta", c.QualName)
	assert.Equal(t, "configure", method)

	_, _, err = l.ResolveMethodPath("app.models.Missing.save")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, _, err = l.ResolveMethodPath("nowhere.Model.save")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestParseMethodPath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{path: "mod.Class.method", ok: true},
		{path: "a.b.c.Class.method", ok: true},
		{path: "Class.method", ok: false},
		{path: "method", ok: false},
		{path: "mod..method", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := ParseMethodPath(tt.path)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsCode(err, errors.CodeValidationError))
		})
	}
}
