package pymodel

// Object is the root of every hierarchy. It has a namespace but no source,
// so callers can resolve calls into it without being able to expand them.
var Object = newObject()

var objectMembers = []string{
	"__init__", "__new__",
	"__repr__", "__str__", "__format__", "__dir__", "__sizeof__",
	"__eq__", "__ne__", "__lt__", "__le__", "__gt__", "__ge__", "__hash__",
	"__getattribute__", "__setattr__", "__delattr__",
	"__reduce__", "__reduce_ex__", "__getstate__",
	"__init_subclass__", "__subclasshook__",
	"__class__", "__doc__",
}

func newObject() *Class {
	c := newClass("object", "object", nil)
	for _, name := range objectMembers {
		c.define(&Member{Name: name, Kind: MemberBuiltin})
	}
	c.mro = []*Class{c}
	return c
}
