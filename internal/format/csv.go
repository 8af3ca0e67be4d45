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

// csvData reads and writes separator delimited values
type csvData struct {
	*base
}

func (d *csvData) ReadHeader(ctx context.Context, hooks Hooks) error {
	line, err := d.src.ReadLine()
	if errors.Is(err, io.EOF) {
		return fcaerr.NewHeaderError(string(CSV), 1, 1, "", "empty file")
	}
	if err != nil {
		return err
	}

	fields := splitEscaped(line, d.opts.Separator)
	d.header = d.header[:0]
	for i, f := range fields {
		name := strconv.Itoa(i)
		if d.opts.AttrsFirstLine {
			if f == "" {
				return fcaerr.NewHeaderError(string(CSV), 1, i+1, line, "empty attribute name")
			}
			name = f
		}
		a := attribute.New(name, attribute.Generic)
		a.Column = i
		d.header = append(d.header, a)
	}
	if d.opts.AttrsFirstLine {
		d.dataStart = 1
	}
	return d.src.Rewind()
}

func (d *csvData) PrepareLine(line string, lineNo int, scale, update bool) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	fields := splitEscaped(line, d.opts.Separator)
	if len(fields) != len(d.header) {
		return nil, fcaerr.NewLineError(string(CSV), lineNo, min(len(fields), len(d.header))+1, line,
			fmt.Sprintf("expected %d values, got %d", len(d.header), len(fields)))
	}
	return d.apply(fields, lineNo, line, scale, update)
}

func (d *csvData) WriteHeader(src Data) error {
	d.out = src.Attributes()
	if !d.opts.AttrsFirstLine {
		return nil
	}
	names := make([]string, len(d.out))
	for i, a := range d.out {
		names[i] = a.Name
	}
	if err := d.write(strings.Join(names, d.opts.Separator)); err != nil {
		return err
	}
	return d.write("\n")
}

func (d *csvData) WriteLine(values []string) error {
	return d.writeLine(strings.Join(values, d.opts.Separator))
}

// splitEscaped splits on sep unless it is preceded by a backslash, and
// trims every field.
func splitEscaped(line, sep string) []string {
	var (
		fields []string
		start  int
	)
	for i := 0; i+len(sep) <= len(line); {
		if strings.HasPrefix(line[i:], sep) && (i == 0 || line[i-1] != '\\') {
			fields = append(fields, strings.TrimSpace(line[start:i]))
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	return append(fields, strings.TrimSpace(line[start:]))
}
