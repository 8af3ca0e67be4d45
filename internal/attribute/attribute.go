package attribute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// Key returns the lookup key that joins a formula term to a header column
func (a *Attribute) Key() string {
	switch {
	case a.Pattern != "":
		return a.Pattern
	case a.Name != "":
		return a.Name
	default:
		return strconv.Itoa(a.Index)
	}
}

// SetExpr installs a comparison for Numeric and Date attributes
func (a *Attribute) SetExpr(e *Expr) {
	a.expr = e
	if e != nil && a.ExprText == "" {
		a.ExprText = e.Text
	}
}

// Expr returns the installed comparison
func (a *Attribute) Expr() *Expr { return a.expr }

// SetLiteral installs the equality test of a Nominal attribute
func (a *Attribute) SetLiteral(value string) {
	a.literal = value
	a.hasLiteral = true
	if a.ExprText == "" {
		a.ExprText = strconv.Quote(value)
	}
}

// Literal returns the nominal equality operand
func (a *Attribute) Literal() (string, bool) { return a.literal, a.hasLiteral }

// SetRegexp compiles the filter of a String attribute
func (a *Attribute) SetRegexp(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fcaerr.NewFormulaRegexError(pattern, err)
	}
	a.re = re
	a.ExprText = pattern
	return nil
}

// HasScale reports whether process turns values into boolean tokens
func (a *Attribute) HasScale() bool {
	return a.expr != nil || a.hasLiteral || a.re != nil || a.ExprText != ""
}

// Bival returns the attribute's tokens, falling back to def
func (a *Attribute) Bival(def Bival) Bival {
	if a.Tokens != nil {
		return *a.Tokens
	}
	return def
}

// Process scales value when scale is set and a rule exists, otherwise
// records it in the statistics when update is set. The none value of a
// scaled attribute is written as false.
func (a *Attribute) Process(value, none string, scale, update bool, b Bival) (string, error) {
	if scale && a.HasScale() {
		if none != "" && value == none {
			return a.Bival(b).False, nil
		}
		return a.Scale(value, b)
	}
	if update {
		if err := a.Update(value, none, 1); err != nil {
			return "", err
		}
	}
	return value, nil
}

// Scale evaluates the attribute's rule against value
func (a *Attribute) Scale(value string, b Bival) (string, error) {
	tokens := a.Bival(b)
	switch {
	case a.Kind == Numeric && a.expr != nil:
		x, err := parseNumber(value)
		if err != nil {
			return "", err
		}
		return tokens.Token(a.expr.Eval(x)), nil
	case a.Kind == Date && a.expr != nil:
		ts, err := ParseDate(value, a.DateFormat)
		if err != nil {
			return "", err
		}
		return tokens.Token(a.expr.Eval(ts)), nil
	case a.Kind == Nominal && a.hasLiteral:
		return tokens.Token(value == a.literal), nil
	case a.Kind == String && a.re != nil:
		return tokens.Token(a.re.MatchString(value)), nil
	}
	return "", &fcaerr.FormulaError{
		Code: fcaerr.CodeFormulaSyntax,
		Msg:  fmt.Sprintf("attribute %q: no %s comparison for expression %q", a.Name, a.Kind, a.ExprText),
	}
}

// Update adds value to the statistics, step times
func (a *Attribute) Update(value, none string, step int) error {
	if value == none {
		a.noneCount += step
		return nil
	}

	switch a.Kind {
	case Numeric:
		x, err := parseNumber(value)
		if err != nil {
			return err
		}
		a.bound(x)
		a.count(value, step)
	case Date:
		ts, err := ParseDate(value, a.DateFormat)
		if err != nil {
			return err
		}
		a.bound(ts)
		a.count(value, step)
	default:
		a.count(value, step)
	}
	return nil
}

// bound seeds max with the first value and min with the second, then
// extends both.
func (a *Attribute) bound(x float64) {
	switch a.seeds {
	case 0:
		a.max = x
		a.seeds++
	case 1:
		a.min = x
		a.seeds++
	default:
		if x > a.max {
			a.max = x
		}
		if x < a.min {
			a.min = x
		}
	}
}

func (a *Attribute) count(value string, step int) {
	if a.seen == nil {
		a.seen = make(map[string]int)
	}
	if _, ok := a.seen[value]; !ok {
		a.values = append(a.values, value)
	}
	a.seen[value] += step
}

// SetValues declares known values without counting them
func (a *Attribute) SetValues(values []string) {
	a.values = a.values[:0]
	a.seen = make(map[string]int, len(values))
	for _, v := range values {
		if _, ok := a.seen[v]; ok {
			continue
		}
		a.seen[v] = 0
		a.values = append(a.values, v)
	}
}

// Values returns the distinct values in first-seen order
func (a *Attribute) Values() []string {
	out := make([]string, len(a.values))
	copy(out, a.values)
	return out
}

// Rates returns value counts in first-seen order
func (a *Attribute) Rates() []Rate {
	rates := make([]Rate, 0, len(a.values))
	for _, v := range a.values {
		rates = append(rates, Rate{Value: v, Count: a.seen[v]})
	}
	return rates
}

// NoneCount returns how many none values were recorded
func (a *Attribute) NoneCount() int { return a.noneCount }

// Bounds returns min and max and how many of them were seeded
func (a *Attribute) Bounds() (min, max float64, seeded int) {
	return a.min, a.max, a.seeds
}

// AllNumeric reports whether every observed value parses as a number
func (a *Attribute) AllNumeric() bool {
	if len(a.values) == 0 {
		return false
	}
	for _, v := range a.values {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
	}
	return true
}

// ResetStats clears counts, bounds and observed values
func (a *Attribute) ResetStats() {
	a.values = nil
	a.seen = make(map[string]int)
	a.noneCount = 0
	a.min, a.max, a.seeds = 0, 0, 0
}

// Clone returns a copy with independent statistics
func (a *Attribute) Clone() *Attribute {
	c := *a
	c.values = a.Values()
	c.seen = make(map[string]int, len(a.seen))
	for k, v := range a.seen {
		c.seen[k] = v
	}
	if a.Tokens != nil {
		t := *a.Tokens
		c.Tokens = &t
	}
	return &c
}

// AdoptFrom copies type information of a header attribute into a formula
// attribute that left its kind unspecified.
func (a *Attribute) AdoptFrom(h *Attribute) {
	a.Kind = h.Kind
	a.DateFormat = h.DateFormat
	a.values = h.Values()
	a.seen = make(map[string]int, len(h.seen))
	for k, v := range h.seen {
		a.seen[k] = v
	}
	a.noneCount = h.noneCount
	a.min, a.max, a.seeds = h.min, h.max, h.seeds
	a.IsClass = a.IsClass || h.IsClass
}

func parseNumber(value string) (float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fcaerr.NewValueError(fcaerr.ValueNumeric, value, "not a number")
	}
	return x, nil
}
