package attribute

import (
	"regexp"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// Kind selects the scaling rule and statistics of an attribute
type Kind int

const (
	Generic Kind = iota
	Numeric
	Nominal
	String
	Date
)

// String returns the kind name used in reports
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Nominal:
		return "nominal"
	case String:
		return "string"
	case Date:
		return "date"
	default:
		return "generic"
	}
}

// Bival is the pair of literals a boolean result is written as
type Bival struct {
	True  string `yaml:"true" mapstructure:"true" json:"true"`
	False string `yaml:"false" mapstructure:"false" json:"false"`
}

// DefaultBival is used when neither the operation nor the attribute
// overrides the tokens.
var DefaultBival = Bival{True: "1", False: "0"}

// Token returns the literal for v
func (b Bival) Token(v bool) string {
	if v {
		return b.True
	}
	return b.False
}

// Parse maps a literal back to its boolean value
func (b Bival) Parse(value string) (bool, error) {
	switch value {
	case b.True:
		return true, nil
	case b.False:
		return false, nil
	}
	return false, fcaerr.NewBivalError(value, b.True, b.False)
}

// IsPair reports whether values are exactly the two tokens in any order
func (b Bival) IsPair(values []string) bool {
	if len(values) != 2 {
		return false
	}
	return (values[0] == b.True && values[1] == b.False) || (values[0] == b.False && values[1] == b.True)
}

// Rate is the number of occurrences of one value
type Rate struct {
	Value string
	Count int
}

// Attribute describes one column of a dataset. Header parsers create one
// per physical column, the formula parser one per formula term.
type Attribute struct {
	// Index is the position in the attribute list, -1 while unmerged
	Index int
	Name  string
	// Pattern is the original name or index given in a formula
	Pattern string
	Kind    Kind
	IsClass bool
	Unpack  bool
	// Tokens overrides the operation tokens for this attribute only
	Tokens *Bival
	// DateFormat is a strptime layout, used by Date attributes
	DateFormat string
	// Column is the physical position in the source row, -1 while unresolved
	Column int
	// ExprText is the scale expression as written
	ExprText string

	expr       *Expr
	literal    string
	hasLiteral bool
	re         *regexp.Regexp

	values    []string
	seen      map[string]int
	noneCount int
	min, max  float64
	seeds     int
}

// New creates an unmerged attribute of the given kind
func New(name string, kind Kind) *Attribute {
	a := &Attribute{
		Index:  -1,
		Column: -1,
		Name:   name,
		Kind:   kind,
		seen:   make(map[string]int),
	}
	if kind == Date {
		a.DateFormat = DefaultDateFormat
	}
	return a
}

// NewNominal creates a nominal attribute with known values
func NewNominal(name string, values ...string) *Attribute {
	a := New(name, Nominal)
	a.SetValues(values)
	return a
}
