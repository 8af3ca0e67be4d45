package format

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

// c45Data reads and writes C4.5 data files. The schema lives in a
// `<base>.names` file next to the data file.
type c45Data struct {
	*base
	// keep marks the physical columns that are not ignored
	keep    []bool
	classes []string
	seen    map[string]bool
}

// NamesPath returns the names file that belongs to a data file
func NamesPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".names"
}

// namesDecl is one attribute statement of a names file
type namesDecl struct {
	name   string
	kind   attribute.Kind
	values []string
	ignore bool
}

func (d *c45Data) ReadHeader(ctx context.Context, hooks Hooks) error {
	path := NamesPath(d.path)
	f, err := os.Open(path)
	if err != nil {
		return &fcaerr.NamesFileError{Path: path, Err: err}
	}
	defer f.Close()

	classes, decls, err := parseNames(f)
	if err != nil {
		return err
	}

	d.header = d.header[:0]
	d.keep = d.keep[:0]
	for _, decl := range decls {
		d.keep = append(d.keep, !decl.ignore)
		if decl.ignore {
			continue
		}
		a := attribute.New(decl.name, decl.kind)
		if decl.kind == attribute.Date {
			a.DateFormat = "%Y-%m-%d"
		}
		if len(decl.values) > 0 {
			a.SetValues(decl.values)
		}
		a.Column = len(d.header)
		d.header = append(d.header, a)
	}

	class := attribute.NewNominal("class", classes...)
	class.IsClass = true
	class.Column = len(d.header)
	d.header = append(d.header, class)
	d.classes = classes
	d.dataStart = 0
	return nil
}

// parseNames reads the class labels and attribute declarations. Statements
// end with a period at the end of a line, or where the next line opens a
// new declaration. Everything after '|' is a comment.
func parseNames(r io.Reader) ([]string, []namesDecl, error) {
	var (
		statements []string
		lines      []int
		current    strings.Builder
		start      int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, strings.TrimSuffix(s, "."))
			lines = append(lines, start)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '|'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, ":") && current.Len() > 0 {
			flush()
		}
		if current.Len() == 0 {
			start = lineNo
		} else {
			current.WriteByte(' ')
		}
		current.WriteString(line)
		if strings.HasSuffix(line, ".") {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read names: %w", err)
	}
	flush()

	if len(statements) == 0 {
		return nil, nil, fcaerr.NewHeaderError(string(DATA), 1, 1, "", "names file declares no classes")
	}
	if strings.Contains(statements[0], ":") {
		return nil, nil, fcaerr.NewHeaderError(string(DATA), lines[0], 1, statements[0], "expected class labels")
	}
	classes := splitList(statements[0])

	var decls []namesDecl
	for i, s := range statements[1:] {
		name, typ, ok := strings.Cut(s, ":")
		name = strings.TrimSpace(name)
		typ = strings.TrimSpace(typ)
		if !ok || name == "" {
			return nil, nil, fcaerr.NewHeaderError(string(DATA), lines[i+1], 1, s, "expected `name: type`")
		}
		decl := namesDecl{name: name}
		switch {
		case typ == "continuous":
			decl.kind = attribute.Numeric
		case typ == "ignore":
			decl.ignore = true
		case typ == "date":
			decl.kind = attribute.Date
		case strings.HasPrefix(typ, "discrete"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(typ, "discrete")))
			if err != nil || n < 1 {
				return nil, nil, fcaerr.NewHeaderError(string(DATA), lines[i+1], len(name)+2, s, "invalid discrete size")
			}
			decl.kind = attribute.Nominal
		case typ == "":
			return nil, nil, fcaerr.NewHeaderError(string(DATA), lines[i+1], len(name)+2, s, "missing attribute type")
		default:
			decl.kind = attribute.Nominal
			decl.values = splitList(typ)
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil, nil, fcaerr.NewHeaderError(string(DATA), lines[0], 1, statements[0], "names file declares no attributes")
	}
	return classes, decls, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d *c45Data) PrepareLine(line string, lineNo int, scale, update bool) ([]string, error) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		line = line[:i]
	}
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	fields := splitEscaped(line, d.opts.Separator)
	if len(fields) != len(d.keep)+1 {
		return nil, fcaerr.NewLineError(string(DATA), lineNo, 1, line,
			fmt.Sprintf("expected %d values, got %d", len(d.keep)+1, len(fields)))
	}

	dense := fields[:0]
	for i, f := range fields[:len(d.keep)] {
		if d.keep[i] {
			dense = append(dense, f)
		}
	}
	dense = append(dense, fields[len(fields)-1])
	return d.apply(dense, lineNo, line, scale, update)
}

func (d *c45Data) WriteHeader(src Data) error {
	if d.path == "" {
		return fcaerr.NewArgError("the %s format needs a target file for its names file", DATA)
	}
	d.out = src.Attributes()
	d.seen = make(map[string]bool)
	d.classes = d.classes[:0]
	return nil
}

// WriteLine writes the regular values followed by the class value. Several
// class attributes are joined with '_'.
func (d *c45Data) WriteLine(values []string) error {
	regular, classes := d.splitClasses(values)
	if c, ok := d.nextClass(); ok {
		classes = append(classes, c)
	}
	class := strings.Join(classes, "_")
	if class == "" {
		class = d.opts.NoneValue
	}
	if !d.seen[class] && class != d.opts.NoneValue {
		d.seen[class] = true
		d.classes = append(d.classes, class)
	}
	return d.writeLine(strings.Join(append(regular, class), d.opts.Separator))
}

// Finish writes the names file once every class value is known. A target
// that is closed without Finish gets no names file.
func (d *c45Data) Finish() error {
	if d.w == nil || d.path == "" || d.seen == nil {
		return nil
	}
	return d.writeNames()
}

func (d *c45Data) writeNames() error {
	var sb strings.Builder
	sb.WriteString(strings.Join(d.classes, ","))
	sb.WriteString(".\n")
	for _, a := range d.regular() {
		fmt.Fprintf(&sb, "%s: %s.\n", a.Name, a.NamesType(d.opts.Bival))
	}
	path := NamesPath(d.path)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write names file: %w", err)
	}
	return nil
}

