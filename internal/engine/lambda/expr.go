package lambda

// Expr is a node of the restricted lambda grammar.
type Expr interface {
	exprNode()
}

type (
	Name struct {
		ID string
	}

	// Const holds nil, bool, int64, float64 or string.
	Const struct {
		Value Value
	}

	TupleExpr struct {
		Elts []Expr
	}

	ListExpr struct {
		Elts []Expr
	}

	BinOp struct {
		Op          string
		Left, Right Expr
	}

	// UnaryOp covers "-", "+", "~" and "not".
	UnaryOp struct {
		Op      string
		Operand Expr
	}

	// BoolOp is an n-ary "and" or "or".
	BoolOp struct {
		Op     string
		Values []Expr
	}

	Compare struct {
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	IfExp struct {
		Test, Body, Else Expr
	}

	Subscript struct {
		Value, Index Expr
	}

	Call struct {
		Func Expr
		Args []Expr
	}

	Lambda struct {
		Params []Param
		Vararg string
		Body   Expr
	}

	Param struct {
		Name    string
		Default Expr
	}
)

func (*Name) exprNode()      {}
func (*Const) exprNode()     {}
func (*TupleExpr) exprNode() {}
func (*ListExpr) exprNode()  {}
func (*BinOp) exprNode()     {}
func (*UnaryOp) exprNode()   {}
func (*BoolOp) exprNode()    {}
func (*Compare) exprNode()   {}
func (*IfExp) exprNode()     {}
func (*Subscript) exprNode() {}
func (*Call) exprNode()      {}
func (*Lambda) exprNode()    {}

// Operator precedence, lowest binding first.
const (
	precTuple = iota + 2
	precYield
	precTest
	precOr
	precAnd
	precNot
	precCmp
	precExpr
	precBXor
	precBAnd
	precShift
	precArith
	precTerm
	precFactor
	precPower
	precAwait
	precAtom
)

// precBOr shares a level with a bare expression.
const precBOr = precExpr

var binaryPrec = map[string]int{
	"|":  precBOr,
	"^":  precBXor,
	"&":  precBAnd,
	"<<": precShift,
	">>": precShift,
	"+":  precArith,
	"-":  precArith,
	"*":  precTerm,
	"/":  precTerm,
	"//": precTerm,
	"%":  precTerm,
	"**": precPower,
}

var compareOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
	"in": true, "not in": true, "is": true, "is not": true,
}
