package attrs

import (
	"encoding/json"

	"calltree/internal/shared/util"
)

// Table maps qualified class names to the attribute names found for them.
// Classes keep the order in which they were first defined.
type Table struct {
	order []string
	attrs map[string]map[string]struct{}
}

func NewTable() *Table {
	return &Table{attrs: make(map[string]map[string]struct{})}
}

// FromMap builds a table from class -> attributes, classes in sorted order.
func FromMap(m map[string][]string) *Table {
	t := NewTable()
	for _, class := range util.SortedStringKeys(m) {
		t.Set(class, m[class]...)
	}
	return t
}

// Set replaces the attributes of class, appending it if it is new.
func (t *Table) Set(class string, names ...string) {
	t.reset(class)
	for _, name := range names {
		t.add(class, name)
	}
}

func (t *Table) reset(class string) {
	if _, ok := t.attrs[class]; !ok {
		t.order = append(t.order, class)
	}
	t.attrs[class] = make(map[string]struct{})
}

func (t *Table) add(class, name string) {
	if set, ok := t.attrs[class]; ok {
		set[name] = struct{}{}
	}
}

func (t *Table) remove(class string) {
	if _, ok := t.attrs[class]; !ok {
		return
	}
	delete(t.attrs, class)
	for i, c := range t.order {
		if c == class {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *Table) Classes() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Has(class string) bool {
	_, ok := t.attrs[class]
	return ok
}

// Attributes returns the sorted attribute names of class.
func (t *Table) Attributes(class string) []string {
	return util.SortedStringKeys(t.attrs[class])
}

func (t *Table) Len() int {
	return len(t.order)
}

// Map returns a copy of the table as class -> sorted attributes.
func (t *Table) Map() map[string][]string {
	out := make(map[string][]string, len(t.order))
	for _, class := range t.order {
		out[class] = t.Attributes(class)
	}
	return out
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = *FromMap(m)
	return nil
}

// ClassDiff is the change of one class between two tables.
type ClassDiff struct {
	Class   string   `json:"class"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	New     bool     `json:"new,omitempty"`
	Gone    bool     `json:"gone,omitempty"`
}

// Diff reports how t differs from prev. Unchanged classes are omitted;
// classes are ordered as in t, then classes only prev knows.
func (t *Table) Diff(prev *Table) []ClassDiff {
	if prev == nil {
		prev = NewTable()
	}
	var out []ClassDiff
	for _, class := range t.order {
		d := ClassDiff{Class: class, New: !prev.Has(class)}
		d.Added = missingFrom(t.attrs[class], prev.attrs[class])
		d.Removed = missingFrom(prev.attrs[class], t.attrs[class])
		if d.New || len(d.Added) > 0 || len(d.Removed) > 0 {
			out = append(out, d)
		}
	}
	for _, class := range prev.order {
		if !t.Has(class) {
			out = append(out, ClassDiff{Class: class, Removed: prev.Attributes(class), Gone: true})
		}
	}
	return out
}

// missingFrom returns the sorted names of a that b lacks.
func missingFrom(a, b map[string]struct{}) []string {
	var out []string
	for _, name := range util.SortedStringKeys(a) {
		if _, ok := b[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
