package format

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

// datData reads and writes index lists. With classes set it is the DTL
// variant, whose lines carry class values after the class separator.
type datData struct {
	*base
	classes  bool
	bits     int
	nClasses int
}

// ReadHeader scans the whole file: the attribute universe is the largest
// index seen, and every row that does not list an index counts as a false
// value of that index. Malformed lines are left to the conversion pass.
func (d *datData) ReadHeader(ctx context.Context, hooks Hooks) error {
	var (
		trues   []int
		rows    int
		lineNo  int
		classes []*attribute.Attribute
		present []int
	)

	for {
		if hooks.stop() {
			return fcaerr.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := d.src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		lineNo++
		hooks.line(line)

		indexPart, classPart := d.splitClassPart(line)
		indices, err := d.parseIndices(indexPart, lineNo, line)
		if err != nil {
			continue
		}
		for _, idx := range indices {
			for idx >= len(trues) {
				trues = append(trues, 0)
			}
			trues[idx]++
		}
		if d.classes {
			for j, v := range strings.Fields(classPart) {
				for j >= len(classes) {
					c := attribute.New("", attribute.Nominal)
					c.IsClass = true
					classes = append(classes, c)
					present = append(present, 0)
				}
				_ = classes[j].Update(v, d.opts.NoneValue, 1)
				present[j]++
			}
		}
		rows++
	}

	d.header = d.header[:0]
	for i, n := range trues {
		a := attribute.NewNominal(strconv.Itoa(i), d.opts.Bival.True, d.opts.Bival.False)
		a.Column = i
		_ = a.Update(d.opts.Bival.True, d.opts.NoneValue, n)
		_ = a.Update(d.opts.Bival.False, d.opts.NoneValue, rows-n)
		d.header = append(d.header, a)
	}
	for j, c := range classes {
		c.Name = "class"
		if len(classes) > 1 {
			c.Name = "class" + strconv.Itoa(j)
		}
		c.Column = len(trues) + j
		if missing := rows - present[j]; missing > 0 {
			_ = c.Update(d.opts.NoneValue, d.opts.NoneValue, missing)
		}
		d.header = append(d.header, c)
	}

	d.bits = len(trues)
	d.nClasses = len(classes)
	d.objCount = rows
	d.dataStart = 0
	d.stats = true
	return d.src.Rewind()
}

func (d *datData) splitClassPart(line string) (string, string) {
	if !d.classes {
		return line, ""
	}
	i := strings.Index(line, d.opts.ClassSeparator)
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i+len(d.opts.ClassSeparator):]
}

func (d *datData) parseIndices(part string, lineNo int, line string) ([]int, error) {
	fields := strings.Fields(part)
	indices := make([]int, 0, len(fields))
	offset := 0
	for _, f := range fields {
		col := strings.Index(line[offset:], f) + offset + 1
		offset = col - 1 + len(f)
		idx, err := strconv.Atoi(f)
		if err != nil || idx < 0 {
			return nil, fcaerr.NewLineError(string(d.format), lineNo, col, line,
				fmt.Sprintf("invalid attribute index %q", f))
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func (d *datData) PrepareLine(line string, lineNo int, scale, update bool) ([]string, error) {
	indexPart, classPart := d.splitClassPart(line)
	indices, err := d.parseIndices(indexPart, lineNo, line)
	if err != nil {
		return nil, err
	}

	fields := make([]string, d.bits, d.bits+d.nClasses)
	for i := range fields {
		fields[i] = d.opts.Bival.False
	}
	for _, idx := range indices {
		if idx >= d.bits {
			return nil, fcaerr.NewLineError(string(d.format), lineNo, 1, line,
				fmt.Sprintf("attribute index %d out of range", idx))
		}
		fields[idx] = d.opts.Bival.True
	}

	if d.classes {
		values := strings.Fields(classPart)
		if len(values) > d.nClasses {
			return nil, fcaerr.NewLineError(string(d.format), lineNo, len(indexPart)+1, line,
				fmt.Sprintf("expected at most %d class values, got %d", d.nClasses, len(values)))
		}
		for j := 0; j < d.nClasses; j++ {
			if j < len(values) {
				fields = append(fields, values[j])
			} else {
				fields = append(fields, d.opts.NoneValue)
			}
		}
	}
	return d.apply(fields, lineNo, line, scale, update)
}

func (d *datData) WriteHeader(src Data) error {
	d.out = src.Attributes()
	return nil
}

func (d *datData) WriteLine(values []string) error {
	bits, err := d.bools(values)
	if err != nil {
		return err
	}
	on := make([]string, 0, len(bits))
	for i, v := range bits {
		if v {
			on = append(on, strconv.Itoa(i))
		}
	}
	line := strings.Join(on, d.opts.Separator)

	if d.classes {
		_, classes := d.splitClasses(values)
		if c, ok := d.nextClass(); ok {
			classes = append(classes, c)
		}
		line += d.opts.ClassSeparator + strings.Join(classes, d.opts.Separator)
	}
	return d.writeLine(line)
}
