package attribute

import "fmt"

// Op is a comparison operator
type Op int

const (
	OpLT Op = iota
	OpGT
	OpLE
	OpGE
	OpEQ
	OpNE
)

var opNames = map[Op]string{
	OpLT: "<",
	OpGT: ">",
	OpLE: "<=",
	OpGE: ">=",
	OpEQ: "==",
	OpNE: "!=",
}

func (o Op) String() string { return opNames[o] }

// ParseOp maps an operator literal to its Op
func ParseOp(s string) (Op, bool) {
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

func (o Op) apply(l, r float64) bool {
	switch o {
	case OpLT:
		return l < r
	case OpGT:
		return l > r
	case OpLE:
		return l <= r
	case OpGE:
		return l >= r
	case OpEQ:
		return l == r
	default:
		return l != r
	}
}

// Cond compares the variable with a constant. ValueLeft puts the
// constant on the left side of the operator.
type Cond struct {
	Op        Op
	Value     float64
	ValueLeft bool
}

func (c Cond) eval(x float64) bool {
	if c.ValueLeft {
		return c.Op.apply(c.Value, x)
	}
	return c.Op.apply(x, c.Value)
}

// Expr is a chained comparison such as `1 < x <= 5`; every link must hold.
type Expr struct {
	Text  string
	Conds []Cond
}

// NewExpr builds an expression from its links
func NewExpr(text string, conds ...Cond) (*Expr, error) {
	if len(conds) == 0 || len(conds) > 2 {
		return nil, fmt.Errorf("expression %q must have one or two comparisons", text)
	}
	return &Expr{Text: text, Conds: conds}, nil
}

// Eval binds the variable to x
func (e *Expr) Eval(x float64) bool {
	for _, c := range e.Conds {
		if !c.eval(x) {
			return false
		}
	}
	return true
}
