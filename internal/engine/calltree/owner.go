package calltree

import "calltree/internal/engine/pymodel"

// FindOwner scans a linearization in order and returns the first class whose
// own namespace defines name.
func FindOwner(mro []*pymodel.Class, name string) (QualifiedMethod, *pymodel.Class, bool) {
	for _, c := range mro {
		if c.Defines(name) {
			return QualifiedMethod{Class: c.Name, Method: name}, c, true
		}
	}
	return QualifiedMethod{}, nil, false
}

// lookupOrder returns the classes searched for a call recorded under key.
// Inside the starting hierarchy that is the tail of the starting
// linearization, which is what makes super() cooperative; elsewhere it is
// the class's own linearization.
func lookupOrder(mro []*pymodel.Class, key *pymodel.Class) []*pymodel.Class {
	for i, c := range mro {
		if c == key {
			return mro[i:]
		}
	}
	own, err := key.MRO()
	if err != nil {
		return nil
	}
	return own
}
