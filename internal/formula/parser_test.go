package formula

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

type attrView struct {
	Name    string
	Pattern string
	Kind    attribute.Kind
	Expr    string
	Unpack  bool
}

func view(attrs []*attribute.Attribute) []attrView {
	out := make([]attrView, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, attrView{Name: a.Name, Pattern: a.Pattern, Kind: a.Kind, Expr: a.ExprText, Unpack: a.Unpack})
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []attrView
	}{
		{
			name:  "rename with numeric scale",
			input: "age=AGE[n,x<50]",
			want:  []attrView{{Name: "AGE", Pattern: "age", Kind: attribute.Numeric, Expr: "x<50"}},
		},
		{
			name:  "nominal literal",
			input: "sex=MAN[e,'man']",
			want:  []attrView{{Name: "MAN", Pattern: "sex", Kind: attribute.Nominal, Expr: `"man"`}},
		},
		{
			name:  "colon form",
			input: "3=weight:n[10<=x<20]",
			want:  []attrView{{Name: "weight", Pattern: "3", Kind: attribute.Numeric, Expr: "10<=x<20"}},
		},
		{
			name:  "plain names",
			input: "b;a",
			want: []attrView{
				{Name: "b", Pattern: "b", Kind: attribute.Generic},
				{Name: "a", Pattern: "a", Kind: attribute.Generic},
			},
		},
		{
			name:  "index without rename",
			input: "2",
			want:  []attrView{{Pattern: "2", Kind: attribute.Generic}},
		},
		{
			name:  "unpack",
			input: "color[]",
			want:  []attrView{{Name: "color", Pattern: "color", Kind: attribute.Nominal, Unpack: true}},
		},
		{
			name:  "type only",
			input: "x[s]",
			want:  []attrView{{Name: "x", Pattern: "x", Kind: attribute.String}},
		},
		{
			name:  "trailing semicolon",
			input: "a;",
			want:  []attrView{{Name: "a", Pattern: "a", Kind: attribute.Generic}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := Parse(tt.input, -1)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, view(attrs)); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRangeExpansion(t *testing.T) {
	attrs, err := Parse("0-2=a,b,c[n,x<5]", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 3 {
		t.Fatalf("got %d attributes, want 3", len(attrs))
	}
	for i, name := range []string{"a", "b", "c"} {
		a := attrs[i]
		if a.Name != name || a.Kind != attribute.Numeric {
			t.Errorf("attrs[%d] = %s/%v", i, a.Name, a.Kind)
		}
		got, err := a.Scale("4", attribute.DefaultBival)
		if err != nil || got != "1" {
			t.Errorf("attrs[%d].Scale(4) = %q, %v", i, got, err)
		}
		got, _ = a.Scale("5", attribute.DefaultBival)
		if got != "0" {
			t.Errorf("attrs[%d].Scale(5) = %q", i, got)
		}
	}
}

func TestParseNamesMismatch(t *testing.T) {
	_, err := Parse("0-2=a,b[n]", -1)
	var fe *fcaerr.FormulaError
	if !errors.As(err, &fe) || fe.Code != fcaerr.CodeFormulaNames {
		t.Fatalf("expected names error, got %v", err)
	}
	want := "formula names error: 3 source names but 2 new names"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseOpenRanges(t *testing.T) {
	attrs, err := Parse("2-", 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"2", "3", "4"}, patterns(attrs)); diff != "" {
		t.Errorf("open end mismatch: %s", diff)
	}
	attrs, err = Parse("-1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0", "1"}, patterns(attrs)); diff != "" {
		t.Errorf("open start mismatch: %s", diff)
	}
	if _, err := Parse("2-", -1); fcaerr.CodeOf(err) != fcaerr.CodeFormulaSyntax {
		t.Errorf("open range without count: %v", err)
	}
}

func patterns(attrs []*attribute.Attribute) []string {
	var out []string
	for _, a := range attrs {
		out = append(out, a.Pattern)
	}
	return out
}

func TestParseBins(t *testing.T) {
	tests := []struct {
		input string
		want  attribute.Bival
	}{
		{"x[0='f',1='t']", attribute.Bival{True: "t", False: "f"}},
		{"x[1='yes']", attribute.Bival{True: "yes", False: "0"}},
		{"x['on']", attribute.Bival{True: "on", False: "0"}},
	}
	for _, tt := range tests {
		attrs, err := Parse(tt.input, -1)
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if attrs[0].Tokens == nil || *attrs[0].Tokens != tt.want {
			t.Errorf("%s: tokens = %+v, want %+v", tt.input, attrs[0].Tokens, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	attrs, err := Parse("born[d/'%Y-%m-%d', x < '2000-01-01']", -1)
	if err != nil {
		t.Fatal(err)
	}
	a := attrs[0]
	if a.Kind != attribute.Date || a.DateFormat != "%Y-%m-%d" {
		t.Fatalf("got kind %v format %q", a.Kind, a.DateFormat)
	}
	if got, _ := a.Scale("1999-12-31", attribute.DefaultBival); got != "1" {
		t.Errorf("Scale(1999-12-31) = %q", got)
	}
	if got, _ := a.Scale("2000-01-02", attribute.DefaultBival); got != "0" {
		t.Errorf("Scale(2000-01-02) = %q", got)
	}

	_, err = Parse("born[d/'%Y', x < 'never']", -1)
	if fcaerr.CodeOf(err) != fcaerr.CodeDateValue {
		t.Errorf("bad date literal: %v", err)
	}
}

func TestParseStringRegex(t *testing.T) {
	attrs, err := Parse(`name[s,'^J\w+']`, -1)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := attrs[0].Scale("John", attribute.DefaultBival); got != "1" {
		t.Errorf("Scale(John) = %q", got)
	}
	if _, err := Parse("name[s,'(']", -1); fcaerr.CodeOf(err) != fcaerr.CodeFormulaRegex {
		t.Errorf("invalid regex: %v", err)
	}
}

func TestParseNegativeAndReversed(t *testing.T) {
	attrs, err := Parse("t[n,-5 > x]", -1)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := attrs[0].Scale("-6", attribute.DefaultBival); got != "1" {
		t.Errorf("Scale(-6) = %q", got)
	}
	if got, _ := attrs[0].Scale("0", attribute.DefaultBival); got != "0" {
		t.Errorf("Scale(0) = %q", got)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	inputs := []string{
		"a[n,x<5",
		"a]",
		"a[q]",
		"a[n,x<]",
		"a[n,5<6]",
		"a[n,x<y]",
		"a=",
		"=b",
		"a[0='x',1='x']",
		"a b",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input, -1)
			var pe *fcaerr.ParseError
			if !errors.As(err, &pe) || pe.Code != fcaerr.CodeFormulaSyntax {
				t.Fatalf("expected formula syntax error, got %v", err)
			}
			if pe.Line != 1 || pe.Column < 1 {
				t.Errorf("position = %d:%d", pe.Line, pe.Column)
			}
		})
	}
}

func TestGenericExpressionFailsOnScale(t *testing.T) {
	attrs, err := Parse("a[g,x>1]", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := attrs[0].Scale("2", attribute.DefaultBival); err == nil {
		t.Error("generic attribute with an expression must not scale")
	}
}
