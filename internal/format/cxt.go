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

// cxtData reads and writes Burmeister contexts
type cxtData struct {
	*base
	lineNo int
}

// nextLine returns the next non-blank header line
func (d *cxtData) nextLine(what string) (string, error) {
	for {
		line, err := d.src.ReadLine()
		if errors.Is(err, io.EOF) {
			return "", fcaerr.NewHeaderError(string(CXT), d.lineNo+1, 1, "", "unexpected end of header, expected "+what)
		}
		if err != nil {
			return "", err
		}
		d.lineNo++
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed, nil
		}
	}
}

func (d *cxtData) nextCount(what string) (int, error) {
	line, err := d.nextLine(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return 0, fcaerr.NewHeaderError(string(CXT), d.lineNo, 1, line, "expected "+what)
	}
	return n, nil
}

func (d *cxtData) ReadHeader(ctx context.Context, hooks Hooks) error {
	d.lineNo = 0
	line, err := d.nextLine("B")
	if err != nil {
		return err
	}
	if line != "B" {
		return fcaerr.NewHeaderError(string(CXT), d.lineNo, 1, line, "context must start with B")
	}

	// A purely numeric relation name cannot be told apart from the row count.
	line, err = d.nextLine("relation name or object count")
	if err != nil {
		return err
	}
	rows, err := strconv.Atoi(line)
	if err != nil {
		d.relation = line
		if rows, err = d.nextCount("object count"); err != nil {
			return err
		}
	}
	cols, err := d.nextCount("attribute count")
	if err != nil {
		return err
	}

	d.objects = make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		name, err := d.nextLine("object name")
		if err != nil {
			return err
		}
		d.objects = append(d.objects, name)
	}

	d.header = d.header[:0]
	for i := 0; i < cols; i++ {
		name, err := d.nextLine("attribute name")
		if err != nil {
			return err
		}
		a := attribute.NewNominal(name, d.opts.Bival.True, d.opts.Bival.False)
		a.Column = i
		d.header = append(d.header, a)
	}

	d.objCount = rows
	d.dataStart = d.lineNo
	d.stats = true
	return d.src.Rewind()
}

func (d *cxtData) PrepareLine(line string, lineNo int, scale, update bool) ([]string, error) {
	row := strings.TrimSpace(line)
	if row == "" {
		return nil, nil
	}
	cells := []rune(row)
	if len(cells) != len(d.header) {
		return nil, fcaerr.NewLineError(string(CXT), lineNo, 1, line,
			fmt.Sprintf("expected %d cells, got %d", len(d.header), len(cells)))
	}

	fields := make([]string, len(cells))
	for i, c := range cells {
		switch string(c) {
		case d.opts.Cross:
			fields[i] = d.opts.Bival.True
		case d.opts.Dot:
			fields[i] = d.opts.Bival.False
		default:
			return nil, fcaerr.NewLineError(string(CXT), lineNo, i+1, line,
				fmt.Sprintf("invalid symbol %q", c))
		}
	}
	return d.apply(fields, lineNo, line, scale, update)
}

func (d *cxtData) WriteHeader(src Data) error {
	d.out = src.Attributes()
	attrs := d.regular()

	relation := d.opts.RelationName
	if relation == "" {
		relation = src.RelationName()
	}
	count := src.ObjectCount()
	if count < 0 {
		count = 0
	}

	objects := d.opts.Objects
	if len(objects) == 0 && len(src.Objects()) == count {
		objects = src.Objects()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "B\n%s\n%d\n%d\n", relation, count, len(attrs))
	for i := 0; i < count; i++ {
		if i < len(objects) {
			sb.WriteString(objects[i])
		} else {
			sb.WriteString(strconv.Itoa(i))
		}
		sb.WriteByte('\n')
	}
	for _, a := range attrs {
		sb.WriteString(a.Name)
		sb.WriteByte('\n')
	}
	return d.write(sb.String())
}

func (d *cxtData) WriteLine(values []string) error {
	bits, err := d.bools(values)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, v := range bits {
		if v {
			sb.WriteString(d.opts.Cross)
		} else {
			sb.WriteString(d.opts.Dot)
		}
	}
	return d.writeLine(sb.String())
}
