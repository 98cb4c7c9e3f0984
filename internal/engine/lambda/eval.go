package lambda

import (
	"math"
	"math/bits"
	"strings"

	"calltree/internal/core/errors"
)

// maxSequenceLen bounds results of sequence repetition.
const maxSequenceLen = 1 << 20

type interp struct {
	depth  int
	origin *Origin
}

func typeError(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeValidationError, format, args...)
}

func (in *interp) eval(e Expr, env *Env) (Value, error) {
	switch n := e.(type) {
	case *Const:
		return n.Value, nil

	case *Name:
		if v, ok := env.lookup(n.ID); ok {
			return v, nil
		}
		return nil, errors.Newf(errors.CodeNotFound, "name '%s' is not defined", n.ID)

	case *TupleExpr:
		items, err := in.evalAll(n.Elts, env)
		return Tuple(items), err

	case *ListExpr:
		items, err := in.evalAll(n.Elts, env)
		return List(items), err

	case *BinOp:
		left, err := in.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := in.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return binary(n.Op, left, right)

	case *UnaryOp:
		v, err := in.eval(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v)

	case *BoolOp:
		var v Value
		for _, operand := range n.Values {
			var err error
			if v, err = in.eval(operand, env); err != nil {
				return nil, err
			}
			if truthy(v) == (n.Op == "or") {
				return v, nil
			}
		}
		return v, nil

	case *Compare:
		left, err := in.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		for i, op := range n.Ops {
			right, err := in.eval(n.Comparators[i], env)
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil || !ok {
				return false, err
			}
			left = right
		}
		return true, nil

	case *IfExp:
		test, err := in.eval(n.Test, env)
		if err != nil {
			return nil, err
		}
		if truthy(test) {
			return in.eval(n.Body, env)
		}
		return in.eval(n.Else, env)

	case *Subscript:
		value, err := in.eval(n.Value, env)
		if err != nil {
			return nil, err
		}
		index, err := in.eval(n.Index, env)
		if err != nil {
			return nil, err
		}
		return subscript(value, index)

	case *Call:
		fn, err := in.eval(n.Func, env)
		if err != nil {
			return nil, err
		}
		closure, ok := fn.(*Closure)
		if !ok {
			return nil, errors.Newf(errors.CodeNotSupported, "'%s' object is not callable by the lambda evaluator", typeName(fn))
		}
		args, err := in.evalAll(n.Args, env)
		if err != nil {
			return nil, err
		}
		return in.call(closure, args)

	case *Lambda:
		return newClosure(in, n, env, in.origin)
	}
	return nil, errors.Newf(errors.CodeInternal, "unknown expression %T", e)
}

func (in *interp) evalAll(exprs []Expr, env *Env) ([]Value, error) {
	out := make([]Value, 0, len(exprs))
	for _, e := range exprs {
		v, err := in.eval(e, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func unsupportedOperands(op string, a, b Value) error {
	return typeError("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

func binary(op string, a, b Value) (Value, error) {
	if x, y, ok := numericPair(a, b); ok {
		return arith(op, x, y, a, b)
	}

	switch op {
	case "+":
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				return append(append(Tuple{}, x...), y...), nil
			}
		case List:
			if y, ok := b.(List); ok {
				return append(append(List{}, x...), y...), nil
			}
		}
	case "*":
		if n, ok := toNumber(b); ok && !n.isFloat {
			return repeat(a, n.i, op, b)
		}
		if n, ok := toNumber(a); ok && !n.isFloat {
			return repeat(b, n.i, op, a)
		}
	}
	return nil, unsupportedOperands(op, a, b)
}

func repeat(seq Value, n int64, op string, other Value) (Value, error) {
	if n < 0 {
		n = 0
	}
	var length int64
	switch x := seq.(type) {
	case string:
		length = int64(len(x))
	case Tuple:
		length = int64(len(x))
	case List:
		length = int64(len(x))
	default:
		return nil, unsupportedOperands(op, seq, other)
	}
	if length*n > maxSequenceLen || (length > 0 && n > maxSequenceLen) {
		return nil, typeError("repetition result too large")
	}

	switch x := seq.(type) {
	case string:
		return strings.Repeat(x, int(n)), nil
	case Tuple:
		out := Tuple{}
		for i := int64(0); i < n; i++ {
			out = append(out, x...)
		}
		return out, nil
	default:
		out := List{}
		for i := int64(0); i < n; i++ {
			out = append(out, seq.(List)...)
		}
		return out, nil
	}
}

func zeroDivision(msg string) error {
	return errors.Newf(errors.CodeValidationError, "ZeroDivisionError: %s", msg)
}

func overflow() error {
	return errors.Newf(errors.CodeNotSupported, "lambda evaluator does not support integers beyond 64 bits")
}

func arith(op string, x, y number, a, b Value) (Value, error) {
	if x.isFloat || y.isFloat {
		switch op {
		case "<<", ">>", "&", "|", "^":
			return nil, unsupportedOperands(op, a, b)
		}
		return floatArith(op, x.float(), y.float())
	}

	i, j := x.i, y.i
	switch op {
	case "+":
		r := i + j
		if (i >= 0) == (j >= 0) && (r >= 0) != (i >= 0) {
			return nil, overflow()
		}
		return r, nil
	case "-":
		r := i - j
		if (i >= 0) != (j >= 0) && (r >= 0) != (i >= 0) {
			return nil, overflow()
		}
		return r, nil
	case "*":
		if i != 0 && j != 0 {
			r := i * j
			if r/j != i || (i == -1 && j == math.MinInt64) || (j == -1 && i == math.MinInt64) {
				return nil, overflow()
			}
			return r, nil
		}
		return int64(0), nil
	case "/":
		if j == 0 {
			return nil, zeroDivision("division by zero")
		}
		return float64(i) / float64(j), nil
	case "//":
		if j == 0 {
			return nil, zeroDivision("integer division or modulo by zero")
		}
		if i == math.MinInt64 && j == -1 {
			return nil, overflow()
		}
		q := i / j
		if (i%j != 0) && ((i < 0) != (j < 0)) {
			q--
		}
		return q, nil
	case "%":
		if j == 0 {
			return nil, zeroDivision("integer division or modulo by zero")
		}
		m := i % j
		if m != 0 && ((m < 0) != (j < 0)) {
			m += j
		}
		return m, nil
	case "**":
		if j < 0 {
			if i == 0 {
				return nil, zeroDivision("0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(i), float64(j)), nil
		}
		return intPow(i, j)
	case "<<":
		if j < 0 {
			return nil, typeError("negative shift count")
		}
		if j >= 63 || (i != 0 && bits.Len64(absU(i))+int(j) > 63) {
			if i == 0 {
				return int64(0), nil
			}
			return nil, overflow()
		}
		return i << uint(j), nil
	case ">>":
		if j < 0 {
			return nil, typeError("negative shift count")
		}
		if j >= 63 {
			if i < 0 {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		return i >> uint(j), nil
	case "&":
		return i & j, nil
	case "|":
		return i | j, nil
	case "^":
		return i ^ j, nil
	}
	return nil, unsupportedOperands(op, a, b)
}

func absU(i int64) uint64 {
	if i < 0 {
		return uint64(-i)
	}
	return uint64(i)
}

func intPow(base, exp int64) (Value, error) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r, err := arith("*", number{i: result}, number{i: base}, nil, nil)
			if err != nil {
				return nil, err
			}
			result = r.(int64)
		}
		exp >>= 1
		if exp > 0 {
			sq, err := arith("*", number{i: base}, number{i: base}, nil, nil)
			if err != nil {
				return nil, err
			}
			base = sq.(int64)
		}
	}
	return result, nil
}

func floatArith(op string, x, y float64) (Value, error) {
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, zeroDivision("float division by zero")
		}
		return x / y, nil
	case "//":
		if y == 0 {
			return nil, zeroDivision("float floor division by zero")
		}
		return math.Floor(x / y), nil
	case "%":
		if y == 0 {
			return nil, zeroDivision("float modulo")
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return m, nil
	case "**":
		if x == 0 && y < 0 {
			return nil, zeroDivision("0.0 cannot be raised to a negative power")
		}
		return math.Pow(x, y), nil
	}
	return nil, typeError("unsupported operand type(s) for %s: 'float'", op)
}

func unary(op string, v Value) (Value, error) {
	if op == "not" {
		return !truthy(v), nil
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, typeError("bad operand type for unary %s: '%s'", op, typeName(v))
	}
	switch op {
	case "+":
		return n.value(), nil
	case "-":
		if n.isFloat {
			return -n.f, nil
		}
		if n.i == math.MinInt64 {
			return nil, overflow()
		}
		return -n.i, nil
	case "~":
		if n.isFloat {
			return nil, typeError("bad operand type for unary ~: 'float'")
		}
		return ^n.i, nil
	}
	return nil, typeError("unknown unary operator %s", op)
}

func compare(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	case "is", "is not":
		same := identical(a, b)
		return same == (op == "is"), nil
	case "in", "not in":
		found, err := contains(b, a)
		if err != nil {
			return false, err
		}
		return found == (op == "in"), nil
	}

	c, ordered, err := order(a, b, op)
	if err != nil || !ordered {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, typeError("unknown comparison %s", op)
}

func identical(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	}
	return false
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeError("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case Tuple:
		return containsValue(c, item), nil
	case List:
		return containsValue(c, item), nil
	}
	return false, typeError("argument of type '%s' is not iterable", typeName(container))
}

func containsValue(items []Value, item Value) bool {
	for _, v := range items {
		if Equal(v, item) {
			return true
		}
	}
	return false
}

// order returns -1, 0 or 1 for values that support ordering. Comparisons
// involving NaN report unordered so every ordering test is false.
func order(a, b Value, op string) (int, bool, error) {
	if x, y, ok := numericPair(a, b); ok {
		if !x.isFloat && !y.isFloat {
			return cmpInt(x.i, y.i), true, nil
		}
		fx, fy := x.float(), y.float()
		switch {
		case fx < fy:
			return -1, true, nil
		case fx > fy:
			return 1, true, nil
		case fx == fy:
			return 0, true, nil
		}
		return 0, false, nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true, nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return orderSeq(x, y, op)
		}
	case List:
		if y, ok := b.(List); ok {
			return orderSeq(x, y, op)
		}
	}
	return 0, false, typeError("'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func orderSeq(a, b []Value, op string) (int, bool, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return order(a[i], b[i], op)
	}
	return cmpInt(int64(len(a)), int64(len(b))), true, nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func subscript(value, index Value) (Value, error) {
	n, ok := toNumber(index)
	if !ok || n.isFloat {
		return nil, typeError("%s indices must be integers, not %s", typeName(value), typeName(index))
	}
	var length int
	switch x := value.(type) {
	case string:
		runes := []rune(x)
		i, err := normIndex(n.i, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case Tuple:
		length = len(x)
		i, err := normIndex(n.i, length, "tuple")
		if err != nil {
			return nil, err
		}
		return x[i], nil
	case List:
		length = len(x)
		i, err := normIndex(n.i, length, "list")
		if err != nil {
			return nil, err
		}
		return x[i], nil
	}
	return nil, typeError("'%s' object is not subscriptable", typeName(value))
}

func normIndex(i int64, length int, kind string) (int, error) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, typeError("IndexError: %s index out of range", kind)
	}
	return int(i), nil
}
