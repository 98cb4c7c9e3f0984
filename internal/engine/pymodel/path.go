package pymodel

import (
	"strings"

	"calltree/internal/core/errors"
)

// MethodPath is a parsed "<module>.<Class>.<method>" reference. The split
// between module and class is only known once modules are located, so
// Parts keeps everything before the method.
type MethodPath struct {
	Raw    string
	Parts  []string
	Method string
}

// ParseMethodPath validates the shape of a method path without loading
// anything.
func ParseMethodPath(path string) (MethodPath, error) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) < 3 {
		return MethodPath{}, errors.Newf(errors.CodeValidationError,
			"method path %q must have the form <module>.<Class>.<method>", path).
			WithContext(errors.CtxPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return MethodPath{}, errors.Newf(errors.CodeValidationError,
				"method path %q has an empty component", path).
				WithContext(errors.CtxPath, path)
		}
	}
	return MethodPath{Raw: path, Parts: parts[:len(parts)-1], Method: parts[len(parts)-1]}, nil
}

// ResolveMethodPath loads the module named by path and returns the class
// and method name. The longest module prefix that exists wins, so
// "pkg.mod.Outer.Inner.run" may name a nested class.
func (l *Loader) ResolveMethodPath(path string) (*Class, string, error) {
	mp, err := ParseMethodPath(path)
	if err != nil {
		return nil, "", err
	}

	var lastErr error
	for split := len(mp.Parts) - 1; split >= 1; split-- {
		modName := strings.Join(mp.Parts[:split], ".")
		mod, err := l.LoadModule(modName)
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			continue
		}
		qual := strings.Join(mp.Parts[split:], ".")
		if c, ok := mod.Class(qual); ok {
			return c, mp.Method, nil
		}
		lastErr = errors.Newf(errors.CodeNotFound, "module %s has no class %s", modName, qual).
			WithContext(errors.CtxModule, modName).
			WithContext(errors.CtxClass, qual)
	}
	return nil, "", lastErr
}
