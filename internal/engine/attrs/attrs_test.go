package attrs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, src string, table *Table) *Table {
	t.Helper()
	out, err := CollectSource(context.Background(), parser.NewParser(), "fixture.py", []byte(src), table)
	require.NoError(t, err)
	return out
}

func TestAssignedAndPropertyAttributes(t *testing.T) {
	table := collect(t, `
class Comp:
    def setup(self):
        self.value = 1

    @property
    def ready(self):
        return True
`, nil)

	assert.Equal(t, []string{"Comp"}, table.Classes())
	assert.Equal(t, []string{"ready", "value"}, table.Attributes("Comp"))
}

func TestClassInsideFunctionIsDiscarded(t *testing.T) {
	table := collect(t, `
def factory():
    class Comp:
        def setup(self):
            self.value = 1

        @property
        def ready(self):
            return True
    return Comp
`, nil)

	assert.False(t, table.Has("Comp"))
	assert.Equal(t, 0, table.Len())
}

func TestNestedClassesAreQualified(t *testing.T) {
	table := collect(t, `
class Outer:
    def __init__(self):
        self.a = 1

    class Inner:
        def __init__(self):
            self.b = 2

        class Deepest:
            def go(self):
                self.c = 3

    def later(self):
        self.d = 4
`, nil)

	assert.Equal(t, []string{"Outer", "Outer.Inner", "Outer.Inner.Deepest"}, table.Classes())
	assert.Equal(t, []string{"a", "d"}, table.Attributes("Outer"))
	assert.Equal(t, []string{"b"}, table.Attributes("Outer.Inner"))
	assert.Equal(t, []string{"c"}, table.Attributes("Outer.Inner.Deepest"))
}

func TestAssignmentForms(t *testing.T) {
	table := collect(t, `
class Shapes:
    def __init__(self, other):
        self.a, self.b = 1, 2
        (self.c, other.d) = 3, 4
        [self.e, self.f] = [5, 6]
        self.g = self.h = 7
        self.i: int = 8
        self.j: int
        self.k += 1
        self.l.m = 9
        self.n[0] = 10
        self.o().p = 11
        x = self.q = 12
        other.r = 13
`, nil)

	assert.Equal(t,
		[]string{"a", "b", "c", "e", "f", "g", "h", "i", "l", "q"},
		table.Attributes("Shapes"))
}

func TestDecorators(t *testing.T) {
	table := collect(t, `
class Deco:
    @property
    @cached
    def both(self):
        return 1

    @functools.cached_property
    def dotted(self):
        return 2

    @ready.setter
    def ready(self, v):
        pass

    @staticmethod
    def helper():
        pass
`, nil)

	assert.Equal(t, []string{"both"}, table.Attributes("Deco"))
}

func TestRedefinitionResetsClass(t *testing.T) {
	table := collect(t, `
class Twice:
    def f(self):
        self.first = 1

class Twice:
    def f(self):
        self.second = 2
`, nil)

	assert.Equal(t, []string{"Twice"}, table.Classes())
	assert.Equal(t, []string{"second"}, table.Attributes("Twice"))
}

func TestExistingTableIsExtended(t *testing.T) {
	table := collect(t, "class A:\n    def f(self):\n        self.x = 1\n", nil)
	table = collect(t, "class B:\n    def f(self):\n        self.y = 1\n", table)

	assert.Equal(t, []string{"A", "B"}, table.Classes())
	assert.Equal(t, map[string][]string{"A": {"x"}, "B": {"y"}}, table.Map())
}

func TestDiff(t *testing.T) {
	prev := FromMap(map[string][]string{
		"Kept":    {"a", "b"},
		"Same":    {"z"},
		"Removed": {"r"},
	})
	next := FromMap(map[string][]string{
		"Kept":  {"b", "c"},
		"Same":  {"z"},
		"Fresh": {"n"},
	})

	assert.Equal(t, []ClassDiff{
		{Class: "Fresh", Added: []string{"n"}, New: true},
		{Class: "Kept", Added: []string{"c"}, Removed: []string{"a"}},
		{Class: "Removed", Removed: []string{"r"}, Gone: true},
	}, next.Diff(prev))

	assert.Empty(t, next.Diff(next))
}

func TestJSON(t *testing.T) {
	table := FromMap(map[string][]string{"A": {"y", "x"}})
	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A": ["x", "y"]}`, string(data))

	restored := NewTable()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, table.Map(), restored.Map())
}

func TestCollectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("class A:\n    def f(self):\n        self.x = 1\n"), 0o644))

	table, err := CollectFile(context.Background(), nil, path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, table.Attributes("A"))

	_, err = CollectFile(context.Background(), nil, filepath.Join(t.TempDir(), "missing.py"), nil)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}
