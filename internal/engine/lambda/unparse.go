package lambda

import (
	"math"
	"strings"
)

// Unparse renders e as canonical source text. The output follows the
// layout of Python's ast.unparse: single spaces around binary operators,
// tuples always parenthesized, and parentheses only where precedence needs
// them.
func Unparse(e Expr) string {
	var b strings.Builder
	unparse(&b, e, precTest)
	return b.String()
}

func unparse(b *strings.Builder, e Expr, ctx int) {
	switch n := e.(type) {
	case *Name:
		b.WriteString(n.ID)

	case *Const:
		if f, ok := n.Value.(float64); ok && math.IsInf(f, 0) {
			// Python spells an infinite literal as an overflowing one.
			if f < 0 {
				b.WriteString("-")
			}
			b.WriteString("1e309")
			return
		}
		b.WriteString(Repr(n.Value))

	case *TupleExpr:
		b.WriteString("(")
		writeList(b, n.Elts)
		if len(n.Elts) == 1 {
			b.WriteString(",")
		}
		b.WriteString(")")

	case *ListExpr:
		b.WriteString("[")
		writeList(b, n.Elts)
		b.WriteString("]")

	case *BinOp:
		own := binaryPrec[n.Op]
		left, right := own, own+1
		if n.Op == "**" {
			left, right = own+1, own
		}
		parens(b, ctx > own, func() {
			unparse(b, n.Left, left)
			b.WriteString(" " + n.Op + " ")
			unparse(b, n.Right, right)
		})

	case *UnaryOp:
		own := precFactor
		op := n.Op
		if op == "not" {
			own = precNot
			op = "not "
		}
		parens(b, ctx > own, func() {
			b.WriteString(op)
			unparse(b, n.Operand, own)
		})

	case *BoolOp:
		own := precAnd
		if n.Op == "or" {
			own = precOr
		}
		parens(b, ctx > own, func() {
			level := own
			for i, v := range n.Values {
				if i > 0 {
					b.WriteString(" " + n.Op + " ")
				}
				if level < precAtom {
					level++
				}
				unparse(b, v, level)
			}
		})

	case *Compare:
		parens(b, ctx > precCmp, func() {
			unparse(b, n.Left, precExpr)
			for i, op := range n.Ops {
				b.WriteString(" " + op + " ")
				unparse(b, n.Comparators[i], precExpr)
			}
		})

	case *IfExp:
		parens(b, ctx > precTest, func() {
			unparse(b, n.Body, precOr)
			b.WriteString(" if ")
			unparse(b, n.Test, precOr)
			b.WriteString(" else ")
			unparse(b, n.Else, precTest)
		})

	case *Subscript:
		unparse(b, n.Value, precAtom)
		b.WriteString("[")
		if t, ok := n.Index.(*TupleExpr); ok && len(t.Elts) > 0 {
			writeList(b, t.Elts)
			if len(t.Elts) == 1 {
				b.WriteString(",")
			}
		} else {
			unparse(b, n.Index, precTest)
		}
		b.WriteString("]")

	case *Call:
		unparse(b, n.Func, precAtom)
		b.WriteString("(")
		writeList(b, n.Args)
		b.WriteString(")")

	case *Lambda:
		parens(b, ctx > precTest, func() {
			b.WriteString("lambda")
			if len(n.Params) > 0 || n.Vararg != "" {
				b.WriteString(" ")
				writeParams(b, n)
			}
			b.WriteString(": ")
			unparse(b, n.Body, precTest)
		})
	}
}

func writeList(b *strings.Builder, items []Expr) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		unparse(b, item, precTest)
	}
}

func writeParams(b *strings.Builder, l *Lambda) {
	for i, p := range l.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if p.Default != nil {
			b.WriteString("=")
			unparse(b, p.Default, precTest)
		}
	}
	if l.Vararg != "" {
		if len(l.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("*" + l.Vararg)
	}
}

func parens(b *strings.Builder, need bool, body func()) {
	if need {
		b.WriteString("(")
	}
	body()
	if need {
		b.WriteString(")")
	}
}
