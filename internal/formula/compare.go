package formula

import (
	"strconv"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

var comparisonOps = map[TokenType]attribute.Op{
	LT: attribute.OpLT,
	GT: attribute.OpGT,
	LE: attribute.OpLE,
	GE: attribute.OpGE,
	EQ: attribute.OpEQ,
	NE: attribute.OpNE,
}

type operand struct {
	tok   Token
	isVar bool
	value float64
}

// parseComparison builds `var op val`, `val op var` or `val op var op val`.
// Date operands are quoted dates converted with layout.
func parseComparison(toks []Token, text string, kind attribute.Kind, layout string) (*attribute.Expr, error) {
	var (
		operands []operand
		ops      []attribute.Op
	)

	for i := 0; i < len(toks); {
		if len(operands) > len(ops) {
			if !toks[i].isComparison() {
				return nil, syntaxAt(toks[i], "expected comparison operator")
			}
			ops = append(ops, comparisonOps[toks[i].Type])
			i++
			continue
		}
		o, n, err := readOperand(toks[i:], kind, layout)
		if err != nil {
			return nil, err
		}
		operands = append(operands, o)
		i += n
	}

	last := toks[len(toks)-1]
	if len(operands) != len(ops)+1 {
		return nil, syntaxAt(last, "comparison ends with an operator")
	}

	vars := 0
	for _, o := range operands {
		if o.isVar {
			vars++
		}
	}
	if vars != 1 {
		return nil, syntaxAt(toks[0], "comparison must reference the value exactly once")
	}

	var conds []attribute.Cond
	switch {
	case len(operands) == 2 && operands[0].isVar:
		conds = append(conds, attribute.Cond{Op: ops[0], Value: operands[1].value})
	case len(operands) == 2:
		conds = append(conds, attribute.Cond{Op: ops[0], Value: operands[0].value, ValueLeft: true})
	case len(operands) == 3 && operands[1].isVar:
		conds = append(conds,
			attribute.Cond{Op: ops[0], Value: operands[0].value, ValueLeft: true},
			attribute.Cond{Op: ops[1], Value: operands[2].value},
		)
	default:
		return nil, syntaxAt(toks[0], "a chained comparison needs the value in the middle")
	}
	return attribute.NewExpr(text, conds...)
}

// readOperand reads one operand and returns how many tokens it used
func readOperand(toks []Token, kind attribute.Kind, layout string) (operand, int, error) {
	t := toks[0]
	switch t.Type {
	case STRING:
		if kind != attribute.Date {
			return operand{}, 0, syntaxAt(t, "quoted operands are only valid for dates")
		}
		ts, err := attribute.ParseDate(t.Literal, layout)
		if err != nil {
			return operand{}, 0, fcaerr.NewDateValueError(t.Literal, layout)
		}
		return operand{tok: t, value: ts}, 1, nil
	case MINUS:
		if len(toks) < 2 || toks[1].Type != IDENT {
			return operand{}, 0, syntaxAt(t, "expected number after -")
		}
		x, err := strconv.ParseFloat(toks[1].Literal, 64)
		if err != nil {
			return operand{}, 0, syntaxAt(toks[1], "expected number after -")
		}
		return operand{tok: t, value: -x}, 2, nil
	case IDENT:
		if x, err := strconv.ParseFloat(t.Literal, 64); err == nil {
			return operand{tok: t, value: x}, 1, nil
		}
		return operand{tok: t, isVar: true}, 1, nil
	}
	return operand{}, 0, syntaxAt(t, "expected value or variable")
}
