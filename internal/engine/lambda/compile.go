package lambda

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// capabilities names what an unsupported node kind would need.
var capabilities = map[string]string{
	"attribute":                "attribute access",
	"dictionary":               "dict displays",
	"set":                      "set displays",
	"list_comprehension":       "comprehensions",
	"set_comprehension":        "comprehensions",
	"dictionary_comprehension": "comprehensions",
	"generator_expression":     "generator expressions",
	"named_expression":         "assignment expressions",
	"await":                    "await",
	"yield":                    "yield",
	"slice":                    "slices",
	"ellipsis":                 "the Ellipsis literal",
	"keyword_argument":         "keyword arguments",
	"list_splat":               "argument unpacking",
	"dictionary_splat":         "argument unpacking",
	"dictionary_splat_pattern": "keyword parameters",
	"keyword_separator":        "keyword-only parameters",
	"positional_separator":     "positional-only parameters",
	"interpolation":            "f-strings",
	"ERROR":                    "well-formed source",
}

func unsupported(ctx *parser.ExtractionContext, node *sitter.Node, what string) error {
	if what == "" {
		if c, ok := capabilities[node.Kind()]; ok {
			what = c
		} else {
			what = node.Kind() + " expressions"
		}
	}
	loc := ctx.Location(node)
	return errors.Newf(errors.CodeNotSupported, "lambda evaluator does not support %s", what).
		WithContext(errors.CtxLine, loc.Line).
		WithContext(errors.CtxPath, loc.String())
}

// compileLambda converts a tree-sitter lambda node.
func compileLambda(ctx *parser.ExtractionContext, node *sitter.Node) (*Lambda, error) {
	e, err := compile(ctx, node)
	if err != nil {
		return nil, err
	}
	l, ok := e.(*Lambda)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "expression is not a lambda")
	}
	return l, nil
}

func compile(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	if node == nil {
		return nil, errors.Newf(errors.CodeValidationError, "incomplete expression")
	}
	if node.IsError() || node.IsMissing() {
		return nil, unsupported(ctx, node, "well-formed source")
	}

	switch node.Kind() {
	case "identifier":
		return &Name{ID: ctx.Text(node)}, nil
	case "true":
		return &Const{Value: true}, nil
	case "false":
		return &Const{Value: false}, nil
	case "none":
		return &Const{Value: nil}, nil
	case "integer":
		return compileInt(ctx, node)
	case "float":
		return compileFloat(ctx, node)
	case "string":
		s, err := compileString(ctx, node)
		if err != nil {
			return nil, err
		}
		return &Const{Value: s}, nil
	case "concatenated_string":
		var b strings.Builder
		for _, part := range parser.NamedChildren(node) {
			s, err := compileString(ctx, part)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return &Const{Value: b.String()}, nil

	case "parenthesized_expression":
		inner := parser.NamedChildren(node)
		if len(inner) != 1 {
			return nil, unsupported(ctx, node, "")
		}
		return compile(ctx, inner[0])

	case "tuple":
		elts, err := compileAll(ctx, parser.NamedChildren(node))
		if err != nil {
			return nil, err
		}
		return &TupleExpr{Elts: elts}, nil
	case "list":
		elts, err := compileAll(ctx, parser.NamedChildren(node))
		if err != nil {
			return nil, err
		}
		return &ListExpr{Elts: elts}, nil

	case "binary_operator":
		op := node.ChildByFieldName("operator").Kind()
		if _, ok := binaryPrec[op]; !ok {
			return nil, unsupported(ctx, node, "the "+op+" operator")
		}
		left, err := compile(ctx, node.ChildByFieldName("left"))
		if err != nil {
			return nil, err
		}
		right, err := compile(ctx, node.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: op, Left: left, Right: right}, nil

	case "unary_operator":
		operand, err := compile(ctx, node.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: node.ChildByFieldName("operator").Kind(), Operand: operand}, nil

	case "not_operator":
		operand, err := compile(ctx, node.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "not", Operand: operand}, nil

	case "boolean_operator":
		return compileBoolOp(ctx, node)

	case "comparison_operator":
		return compileCompare(ctx, node)

	case "conditional_expression":
		parts := parser.NamedChildren(node)
		if len(parts) != 3 {
			return nil, unsupported(ctx, node, "well-formed source")
		}
		exprs, err := compileAll(ctx, parts)
		if err != nil {
			return nil, err
		}
		return &IfExp{Body: exprs[0], Test: exprs[1], Else: exprs[2]}, nil

	case "subscript":
		return compileSubscript(ctx, node)

	case "call":
		return compileCall(ctx, node)

	case "lambda":
		return compileLambdaNode(ctx, node)
	}
	return nil, unsupported(ctx, node, "")
}

func compileAll(ctx *parser.ExtractionContext, nodes []*sitter.Node) ([]Expr, error) {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		e, err := compile(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// compileBoolOp flattens an unparenthesized chain of the same operator,
// matching how Python groups "a and b and c".
func compileBoolOp(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	op := node.ChildByFieldName("operator").Kind()
	var operands []*sitter.Node
	var flatten func(n *sitter.Node)
	flatten = func(n *sitter.Node) {
		if n.Kind() == "boolean_operator" && n.ChildByFieldName("operator").Kind() == op {
			flatten(n.ChildByFieldName("left"))
			operands = append(operands, n.ChildByFieldName("right"))
			return
		}
		operands = append(operands, n)
	}
	flatten(node)

	values, err := compileAll(ctx, operands)
	if err != nil {
		return nil, err
	}
	return &BoolOp{Op: op, Values: values}, nil
}

func compileCompare(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	cmp := &Compare{}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "comment" {
			continue
		}
		if !child.IsNamed() {
			op := strings.Join(strings.Fields(child.Kind()), " ")
			if !compareOps[op] {
				return nil, unsupported(ctx, child, "the "+op+" operator")
			}
			cmp.Ops = append(cmp.Ops, op)
			continue
		}
		e, err := compile(ctx, child)
		if err != nil {
			return nil, err
		}
		if cmp.Left == nil {
			cmp.Left = e
		} else {
			cmp.Comparators = append(cmp.Comparators, e)
		}
	}
	if cmp.Left == nil || len(cmp.Ops) == 0 || len(cmp.Ops) != len(cmp.Comparators) {
		return nil, unsupported(ctx, node, "well-formed source")
	}
	return cmp, nil
}

func compileSubscript(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	value, err := compile(ctx, node.ChildByFieldName("value"))
	if err != nil {
		return nil, err
	}
	indexes, err := compileAll(ctx, parser.FieldChildren(node, "subscript"))
	if err != nil {
		return nil, err
	}
	switch len(indexes) {
	case 0:
		return nil, unsupported(ctx, node, "well-formed source")
	case 1:
		return &Subscript{Value: value, Index: indexes[0]}, nil
	default:
		return &Subscript{Value: value, Index: &TupleExpr{Elts: indexes}}, nil
	}
}

func compileCall(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	args := node.ChildByFieldName("arguments")
	if args == nil || args.Kind() != "argument_list" {
		return nil, unsupported(ctx, node, "generator expressions")
	}
	fn, err := compile(ctx, node.ChildByFieldName("function"))
	if err != nil {
		return nil, err
	}
	compiled, err := compileAll(ctx, parser.NamedChildren(args))
	if err != nil {
		return nil, err
	}
	return &Call{Func: fn, Args: compiled}, nil
}

func compileLambdaNode(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	l := &Lambda{}
	seenDefault := false
	for _, p := range parser.NamedChildren(node.ChildByFieldName("parameters")) {
		if l.Vararg != "" {
			return nil, unsupported(ctx, p, "keyword-only parameters")
		}
		switch p.Kind() {
		case "identifier":
			if seenDefault {
				return nil, errors.Newf(errors.CodeValidationError, "non-default parameter %s follows default parameter", ctx.Text(p)).
					WithContext(errors.CtxLine, ctx.Location(p).Line)
			}
			l.Params = append(l.Params, Param{Name: ctx.Text(p)})
		case "default_parameter":
			def, err := compile(ctx, p.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			seenDefault = true
			l.Params = append(l.Params, Param{Name: ctx.Text(p.ChildByFieldName("name")), Default: def})
		case "list_splat_pattern":
			inner := parser.NamedChildren(p)
			if len(inner) != 1 || inner[0].Kind() != "identifier" {
				return nil, unsupported(ctx, p, "keyword-only parameters")
			}
			l.Vararg = ctx.Text(inner[0])
		default:
			return nil, unsupported(ctx, p, "")
		}
	}

	body, err := compile(ctx, node.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	l.Body = body
	return l, nil
}

func compileInt(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	text := strings.ReplaceAll(ctx.Text(node), "_", "")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return nil, unsupported(ctx, node, "complex numbers")
	}
	lower := strings.ToLower(text)
	base := 10
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, text = 16, text[2:]
	case strings.HasPrefix(lower, "0o"):
		base, text = 8, text[2:]
	case strings.HasPrefix(lower, "0b"):
		base, text = 2, text[2:]
	}
	v, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return nil, unsupported(ctx, node, "integers beyond 64 bits")
	}
	return &Const{Value: v}, nil
}

func compileFloat(ctx *parser.ExtractionContext, node *sitter.Node) (Expr, error) {
	text := strings.ReplaceAll(ctx.Text(node), "_", "")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return nil, unsupported(ctx, node, "complex numbers")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// Overflowing literals such as 1e309 are infinite in Python.
		if numErr, ok := err.(*strconv.NumError); !ok || numErr.Err != strconv.ErrRange {
			return nil, unsupported(ctx, node, "well-formed source")
		}
	}
	return &Const{Value: v}, nil
}

// compileString decodes one string literal.
func compileString(ctx *parser.ExtractionContext, node *sitter.Node) (string, error) {
	if node.Kind() != "string" {
		return "", unsupported(ctx, node, "")
	}
	for _, child := range parser.NamedChildren(node) {
		if child.Kind() == "interpolation" {
			return "", unsupported(ctx, child, "")
		}
	}

	raw := ctx.Text(node)
	i := 0
	for i < len(raw) && raw[i] != '\'' && raw[i] != '"' {
		i++
	}
	prefix := strings.ToLower(raw[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", unsupported(ctx, node, "bytes and f-string literals")
	}
	body := raw[i:]
	quote := body[:1]
	if strings.HasPrefix(body, strings.Repeat(quote, 3)) && len(body) >= 6 {
		quote = strings.Repeat(quote, 3)
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, quote), quote)

	if strings.Contains(prefix, "r") {
		return body, nil
	}
	s, ok := unescape(body)
	if !ok {
		return "", unsupported(ctx, node, "named unicode escapes")
	}
	return s, nil
}

func unescape(s string) (string, bool) {
	if !strings.Contains(s, `\`) {
		return s, true
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+width > len(s) {
				return "", false
			}
			r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil || !utf8.ValidRune(rune(r)) {
				return "", false
			}
			b.WriteRune(rune(r))
			i += width
		case 'N':
			return "", false
		default:
			if e >= '0' && e <= '7' {
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				r, _ := strconv.ParseUint(s[i:j], 8, 32)
				b.WriteRune(rune(r))
				i = j - 1
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), true
}
