package lambda

import (
	"calltree/internal/core/errors"
)

// maxCallDepth bounds recursion through lambdas that call each other.
const maxCallDepth = 256

// Env is one lexical scope of the evaluator.
type Env struct {
	vars   map[string]Value
	parent *Env
}

func newEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]Value), parent: parent}
}

func (e *Env) lookup(name string) (Value, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if v, ok := scope.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Origin locates the statement a lambda was written in. LambdaLine and
// LambdaEndLine bound the lambda itself; zero means the whole statement.
type Origin struct {
	Path      string
	Source    []byte
	StartLine int
	EndLine   int

	LambdaLine    int
	LambdaEndLine int
}

// lambdaRows returns the 1-based line range a capture must isolate.
func (o *Origin) lambdaRows() (int, int) {
	if o.LambdaLine == 0 {
		return o.StartLine, o.EndLine
	}
	return o.LambdaLine, o.LambdaEndLine
}

// Closure is a callable lambda value.
type Closure struct {
	lambda   *Lambda
	defaults []Value
	env      *Env
	origin   *Origin
}

// Lambda returns the syntax the closure was built from.
func (c *Closure) Lambda() *Lambda {
	return c.lambda
}

func (c *Closure) Origin() *Origin {
	return c.origin
}

// Call invokes the closure with positional arguments.
func (c *Closure) Call(args ...Value) (Value, error) {
	in := &interp{origin: c.origin}
	return in.call(c, args)
}

// enclosed reports whether the closure captured variables of an enclosing
// lambda, which a source capture cannot reproduce.
func (c *Closure) enclosed() bool {
	for scope := c.env; scope != nil; scope = scope.parent {
		if len(scope.vars) > 0 {
			return true
		}
	}
	return false
}

// IsLambda reports whether v is a lambda closure or a capture of one.
func IsLambda(v interface{}) bool {
	switch x := v.(type) {
	case *Closure:
		return x != nil
	case *Capture:
		return x != nil && x.fn != nil
	}
	return false
}

func newClosure(in *interp, l *Lambda, env *Env, origin *Origin) (*Closure, error) {
	c := &Closure{lambda: l, env: env, origin: origin}
	for _, p := range l.Params {
		if p.Default == nil {
			c.defaults = append(c.defaults, nil)
			continue
		}
		v, err := in.eval(p.Default, env)
		if err != nil {
			return nil, err
		}
		c.defaults = append(c.defaults, v)
	}
	return c, nil
}

func (in *interp) call(c *Closure, args []Value) (Value, error) {
	if in.depth >= maxCallDepth {
		return nil, errors.Newf(errors.CodeValidationError, "maximum recursion depth exceeded")
	}
	in.depth++
	defer func() { in.depth-- }()

	params := c.lambda.Params
	if len(args) > len(params) && c.lambda.Vararg == "" {
		return nil, errors.Newf(errors.CodeValidationError,
			"<lambda>() takes %d positional arguments but %d were given", len(params), len(args))
	}

	frame := newEnv(c.env)
	for i, p := range params {
		switch {
		case i < len(args):
			frame.vars[p.Name] = args[i]
		case p.Default != nil:
			frame.vars[p.Name] = c.defaults[i]
		default:
			return nil, errors.Newf(errors.CodeValidationError,
				"<lambda>() missing required positional argument: '%s'", p.Name)
		}
	}
	if c.lambda.Vararg != "" {
		rest := Tuple{}
		if len(args) > len(params) {
			rest = append(rest, args[len(params):]...)
		}
		frame.vars[c.lambda.Vararg] = rest
	}
	return in.eval(c.lambda.Body, frame)
}
