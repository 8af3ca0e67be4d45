package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/formula"
)

// base holds what every format shares
type base struct {
	format   Format
	opts     Options
	path     string
	relation string

	src       *Source
	dataStart int
	objCount  int
	objects   []string
	header    []*attribute.Attribute
	attrs     []*attribute.Attribute
	template  map[string]int
	stats     bool

	w      *bufio.Writer
	closer io.Closer
	out    []*attribute.Attribute
	rows   int
}

func (b *base) Format() Format    { return b.format }
func (b *base) Path() string      { return b.path }
func (b *base) DataStart() int    { return b.dataStart }
func (b *base) Objects() []string { return b.objects }
func (b *base) StatsKnown() bool  { return b.stats }
func (b *base) Source() *Source   { return b.src }

func (b *base) HeaderAttributes() []*attribute.Attribute { return b.header }
func (b *base) Attributes() []*attribute.Attribute       { return b.attrs }

func (b *base) setCloser(c io.Closer) { b.closer = c }

// RelationName falls back to the base name of the file
func (b *base) RelationName() string {
	if b.relation != "" {
		return b.relation
	}
	if b.path != "" && b.path != "<stdin>" {
		name := filepath.Base(b.path)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return DefaultRelationName
}

// ObjectCount returns the number of data rows, -1 when not yet counted
func (b *base) ObjectCount() int { return b.objCount }

func (b *base) SetObjectCount(n int) { b.objCount = n }

// buildTemplate maps every name and index of the header to its column
func (b *base) buildTemplate() {
	b.template = make(map[string]int, 2*len(b.header))
	for i, a := range b.header {
		a.Index = i
		if a.Column < 0 {
			a.Column = i
		}
		b.template[strconv.Itoa(i)] = a.Column
		if a.Name != "" {
			if _, ok := b.template[a.Name]; !ok {
				b.template[a.Name] = a.Column
			}
		}
	}
}

func (b *base) headerAt(col int) *attribute.Attribute {
	for _, h := range b.header {
		if h.Column == col {
			return h
		}
	}
	return nil
}

// ResolveAttributes builds the attribute list used for processing. Without
// a formula it is a copy of the header. With one, every term must name a
// header column; untyped terms without a scale take the header's kind and
// statistics, index-only terms take the header's name. Class columns that
// the formula does not mention are appended.
func (b *base) ResolveAttributes(formulaText, classes string) error {
	if len(b.header) == 0 {
		return fcaerr.NewHeaderError(string(b.format), 0, 0, "", "no attributes found")
	}
	b.buildTemplate()

	var attrs []*attribute.Attribute
	if strings.TrimSpace(formulaText) == "" {
		for _, h := range b.header {
			attrs = append(attrs, h.Clone())
		}
	} else {
		parsed, err := formula.Parse(formulaText, len(b.header)-1)
		if err != nil {
			return err
		}
		for _, a := range parsed {
			col, ok := b.template[a.Key()]
			if !ok {
				return fcaerr.NewFormulaKeyError(a.Key())
			}
			h := b.headerAt(col)
			a.Column = col
			if a.Name == "" {
				a.Name = h.Name
			}
			if a.Kind == attribute.Generic && a.ExprText == "" {
				a.AdoptFrom(h)
			}
			a.IsClass = a.IsClass || h.IsClass
			attrs = append(attrs, a)
		}
		for _, h := range b.header {
			if h.IsClass && !hasColumn(attrs, h.Column) {
				attrs = append(attrs, h.Clone())
			}
		}
	}

	if strings.TrimSpace(classes) != "" {
		keys, err := formula.ParseSequence(classes, len(b.header)-1)
		if err != nil {
			return err
		}
		for _, key := range keys {
			col, ok := b.template[key]
			if !ok {
				return fcaerr.NewFormulaKeyError(key)
			}
			found := false
			for _, a := range attrs {
				if a.Column == col {
					a.IsClass = true
					found = true
				}
			}
			if !found {
				c := b.headerAt(col).Clone()
				c.IsClass = true
				attrs = append(attrs, c)
			}
		}
	}

	for i, a := range attrs {
		a.Index = i
	}
	b.attrs = attrs
	return nil
}

func hasColumn(attrs []*attribute.Attribute, col int) bool {
	for _, a := range attrs {
		if a.Column == col {
			return true
		}
	}
	return false
}

// UnpackAttributes expands every unpack attribute into one nominal dummy
// per observed value, named `<name>_<value>`.
func (b *base) UnpackAttributes() {
	var attrs []*attribute.Attribute
	for _, a := range b.attrs {
		if !a.Unpack {
			attrs = append(attrs, a)
			continue
		}
		for _, v := range a.Values() {
			d := attribute.New(a.Name+"_"+v, attribute.Nominal)
			d.Pattern = a.Key()
			d.Column = a.Column
			d.Tokens = a.Tokens
			d.IsClass = a.IsClass
			d.SetLiteral(v)
			attrs = append(attrs, d)
		}
	}
	for i, a := range attrs {
		a.Index = i
	}
	b.attrs = attrs
}

// apply runs every attribute over the physical fields of one line
func (b *base) apply(fields []string, lineNo int, line string, scale, update bool) ([]string, error) {
	out := make([]string, len(b.attrs))
	for i, a := range b.attrs {
		if a.Column >= len(fields) {
			return nil, fcaerr.NewLineError(string(b.format), lineNo, len(fields)+1, line,
				fmt.Sprintf("expected %d values, got %d", len(b.header), len(fields)))
		}
		v, err := a.Process(fields[a.Column], b.opts.NoneValue, scale, update, b.opts.Bival)
		if err != nil {
			var valueErr *fcaerr.ValueError
			if errors.As(err, &valueErr) {
				return nil, &fcaerr.AttrError{
					Line: lineNo, Text: line, Attr: i + 1, Name: a.Name,
					Format: string(b.format), Err: err,
				}
			}
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// splitClasses separates class values from regular values of an output row
func (b *base) splitClasses(values []string) (regular, classes []string) {
	for i, a := range b.out {
		if a.IsClass {
			classes = append(classes, values[i])
		} else {
			regular = append(regular, values[i])
		}
	}
	return regular, classes
}

// nextClass returns the literal class configured for the current row
func (b *base) nextClass() (string, bool) {
	if len(b.opts.Classes) == 0 {
		return "", false
	}
	if b.rows < len(b.opts.Classes) {
		return b.opts.Classes[b.rows], true
	}
	return b.opts.NoneValue, true
}

// bools decodes the regular values of an output row into booleans
func (b *base) bools(values []string) ([]bool, error) {
	var out []bool
	for i, a := range b.out {
		if a.IsClass {
			continue
		}
		v, err := a.Bival(b.opts.Bival).Parse(values[i])
		if err != nil {
			return nil, &fcaerr.AttrError{
				Line: b.rows + 1, Text: strings.Join(values, b.opts.Separator),
				Attr: i + 1, Name: a.Name, Format: string(b.format), Err: err,
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// regular returns the non-class output attributes
func (b *base) regular() []*attribute.Attribute {
	var out []*attribute.Attribute
	for _, a := range b.out {
		if !a.IsClass {
			out = append(out, a)
		}
	}
	return out
}

func (b *base) write(s string) error {
	if _, err := b.w.WriteString(s); err != nil {
		return writeErr(err)
	}
	return nil
}

func (b *base) writeLine(s string) error {
	if err := b.write(s); err != nil {
		return err
	}
	b.rows++
	return b.write("\n")
}

// Finish has nothing to complete for single-file formats
func (b *base) Finish() error { return nil }

// Close flushes the target and releases both streams
func (b *base) Close() error {
	var err error
	if b.w != nil {
		if ferr := b.w.Flush(); ferr != nil {
			err = writeErr(ferr)
		}
	}
	if b.closer != nil {
		if cerr := b.closer.Close(); err == nil {
			err = cerr
		}
	}
	if b.src != nil {
		if cerr := b.src.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func writeErr(err error) error {
	if errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("%w: %v", fcaerr.ErrBrokenPipe, err)
	}
	return fmt.Errorf("failed to write target: %w", err)
}
