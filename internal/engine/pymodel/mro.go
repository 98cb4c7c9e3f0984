package pymodel

import (
	"strings"

	"calltree/internal/core/errors"
)

// MRO returns the C3 linearization of c, most-derived first, ending in the
// builtin object. Bases are resolved on first use, which may load further
// modules through the owning Loader.
func (c *Class) MRO() ([]*Class, error) {
	if c.mro != nil || c.mroErr != nil {
		return c.mro, c.mroErr
	}
	if c.resolving {
		return nil, errors.Newf(errors.CodeValidationError, "cyclic inheritance through %s", c.Name).
			WithContext(errors.CtxClass, c.String())
	}
	c.resolving = true
	defer func() { c.resolving = false }()

	bases, err := c.Bases()
	if err != nil {
		c.mroErr = err
		return nil, err
	}

	seqs := make([][]*Class, 0, len(bases)+1)
	for _, base := range bases {
		baseMRO, err := base.MRO()
		if err != nil {
			c.mroErr = errors.AddContext(err, errors.CtxClass, c.String())
			return nil, c.mroErr
		}
		seqs = append(seqs, append([]*Class(nil), baseMRO...))
	}
	seqs = append(seqs, append([]*Class(nil), bases...))

	merged, err := merge(seqs)
	if err != nil {
		c.mroErr = errors.AddContext(err, errors.CtxClass, c.String())
		return nil, c.mroErr
	}
	c.mro = append([]*Class{c}, merged...)
	return c.mro, nil
}

// Bases returns the resolved direct bases. A class without explicit bases
// derives from object.
func (c *Class) Bases() ([]*Class, error) {
	if c == Object {
		return nil, nil
	}
	if c.external || c.Module == nil {
		return []*Class{Object}, nil
	}
	if len(c.bases) == 0 {
		return []*Class{Object}, nil
	}

	seen := make(map[*Class]bool, len(c.bases))
	out := make([]*Class, 0, len(c.bases))
	for _, ref := range c.bases {
		base := c.Module.loader.resolveBase(c, ref)
		if seen[base] {
			return nil, errors.Newf(errors.CodeValidationError, "duplicate base class %s", base.Name).
				WithContext(errors.CtxClass, c.String())
		}
		seen[base] = true
		out = append(out, base)
	}
	return out, nil
}

// merge is the C3 merge step: repeatedly take the first head that appears in
// no tail.
func merge(seqs [][]*Class) ([]*Class, error) {
	var out []*Class
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return out, nil
		}

		var next *Class
		for _, s := range seqs {
			if !inTail(seqs, s[0]) {
				next = s[0]
				break
			}
		}
		if next == nil {
			heads := make([]string, 0, len(seqs))
			for _, s := range seqs {
				heads = append(heads, s[0].Name)
			}
			return nil, errors.Newf(errors.CodeValidationError,
				"cannot create a consistent method resolution order for bases %s", strings.Join(heads, ", "))
		}

		out = append(out, next)
		for i, s := range seqs {
			if s[0] == next {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(seqs [][]*Class, c *Class) bool {
	for _, s := range seqs {
		for _, x := range s[1:] {
			if x == c {
				return true
			}
		}
	}
	return false
}
