package format

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

// arffNode is one top level column; relational columns hold children
type arffNode struct {
	name     string
	children []*arffNode
}

func (n *arffNode) leaves() int {
	if n.children == nil {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += c.leaves()
	}
	return total
}

// arffData reads and writes the attribute-relation file format
type arffData struct {
	*base
	layout []*arffNode
}

func (d *arffData) ReadHeader(ctx context.Context, hooks Hooks) error {
	var (
		lineNo       int
		seenRelation bool
		stack        []*arffNode
	)
	d.header = d.header[:0]
	d.layout = nil

	for {
		line, err := d.src.ReadLine()
		if errors.Is(err, io.EOF) {
			return fcaerr.NewHeaderError(string(ARFF), lineNo, 1, "", "missing @data section")
		}
		if err != nil {
			return err
		}
		lineNo++

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%") {
			continue
		}
		keyword, rest := splitKeyword(trimmed)
		col := strings.Index(line, trimmed) + 1

		switch keyword {
		case "@relation":
			seenRelation = true
			d.relation = unquote(rest)
		case "@attribute":
			if !seenRelation {
				return fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, "@attribute before @relation")
			}
			node, err := d.parseAttribute(rest, stack, lineNo, line)
			if err != nil {
				return err
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			} else {
				d.layout = append(d.layout, node)
			}
			if node.children != nil {
				stack = append(stack, node)
			}
		case "@end":
			if len(stack) == 0 || unquote(rest) != stack[len(stack)-1].name {
				return fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, "@end does not close a relational attribute")
			}
			stack = stack[:len(stack)-1]
		case "@data":
			if !seenRelation {
				return fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, "missing @relation")
			}
			if len(stack) > 0 {
				return fcaerr.NewHeaderError(string(ARFF), lineNo, col, line,
					fmt.Sprintf("relational attribute %q is not closed", stack[len(stack)-1].name))
			}
			d.dataStart = lineNo
			return d.src.Rewind()
		default:
			return fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, "unexpected header line")
		}
	}
}

// parseAttribute reads `<name> <type>` and appends leaf attributes
func (d *arffData) parseAttribute(decl string, stack []*arffNode, lineNo int, line string) (*arffNode, error) {
	name, typ := splitName(decl)
	if name == "" || typ == "" {
		return nil, fcaerr.NewHeaderError(string(ARFF), lineNo, len(line)+1, line, "attribute needs a name and a type")
	}
	col := strings.LastIndex(line, typ) + 1

	full := name
	if len(stack) > 0 {
		parts := make([]string, 0, len(stack)+1)
		for _, n := range stack {
			parts = append(parts, n.name)
		}
		full = strings.Join(append(parts, name), ".")
	}

	node := &arffNode{name: name}
	lower := strings.ToLower(typ)
	var a *attribute.Attribute
	switch {
	case lower == "numeric" || lower == "real" || lower == "integer":
		a = attribute.New(full, attribute.Numeric)
	case lower == "string":
		a = attribute.New(full, attribute.String)
	case strings.HasPrefix(lower, "date"):
		a = attribute.New(full, attribute.Date)
		if pattern := unquote(strings.TrimSpace(typ[len("date"):])); pattern != "" {
			a.DateFormat = attribute.JavaToStrptime(pattern)
		}
	case strings.HasPrefix(typ, "{"):
		if !strings.HasSuffix(typ, "}") {
			return nil, fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, "unterminated nominal value list")
		}
		var values []string
		for _, v := range strings.Split(typ[1:len(typ)-1], d.opts.Separator) {
			if v = unquote(strings.TrimSpace(v)); v != "" {
				values = append(values, v)
			}
		}
		a = attribute.NewNominal(full, values...)
	case lower == "relational":
		node.children = []*arffNode{}
		return node, nil
	default:
		return nil, fcaerr.NewHeaderError(string(ARFF), lineNo, col, line, fmt.Sprintf("unknown attribute type %q", typ))
	}

	a.Column = len(d.header)
	d.header = append(d.header, a)
	return node, nil
}

func (d *arffData) PrepareLine(line string, lineNo int, scale, update bool) ([]string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "%") {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return nil, fcaerr.NewLineError(string(ARFF), lineNo, 1, line, "sparse instances are not supported")
	}

	fields, err := splitQuoted(trimmed, d.opts.Separator)
	if err != nil {
		return nil, fcaerr.NewLineError(string(ARFF), lineNo, 1, line, err.Error())
	}
	fields, err = d.splice(fields, d.layout)
	if err != nil {
		return nil, fcaerr.NewLineError(string(ARFF), lineNo, 1, line, err.Error())
	}
	if len(fields) != len(d.header) {
		return nil, fcaerr.NewLineError(string(ARFF), lineNo, 1, line,
			fmt.Sprintf("expected %d values, got %d", len(d.header), len(fields)))
	}
	return d.apply(fields, lineNo, line, scale, update)
}

// splice replaces relational values by their parsed sub-tuples
func (d *arffData) splice(fields []string, layout []*arffNode) ([]string, error) {
	if len(fields) != len(layout) {
		return nil, fmt.Errorf("expected %d values, got %d", len(layout), len(fields))
	}
	out := make([]string, 0, len(fields))
	for i, node := range layout {
		if node.children == nil {
			out = append(out, fields[i])
			continue
		}
		sub, err := splitQuoted(fields[i], d.opts.Separator)
		if err != nil {
			return nil, err
		}
		leaves, err := d.splice(sub, node.children)
		if err != nil {
			return nil, fmt.Errorf("relational attribute %q: %w", node.name, err)
		}
		out = append(out, leaves...)
	}
	return out, nil
}

func (d *arffData) WriteHeader(src Data) error {
	d.out = src.Attributes()
	relation := d.opts.RelationName
	if relation == "" {
		relation = src.RelationName()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@relation %s\n\n", quoteARFF(relation, d.opts.Separator))
	for _, a := range d.out {
		fmt.Fprintf(&sb, "@attribute %s %s\n", quoteARFF(a.Name, d.opts.Separator), a.ARFFType(d.opts.Separator, d.opts.Bival))
	}
	sb.WriteString("\n@data\n")
	return d.write(sb.String())
}

func (d *arffData) WriteLine(values []string) error {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteARFF(v, d.opts.Separator)
	}
	return d.writeLine(strings.Join(quoted, d.opts.Separator))
}

func splitKeyword(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:i]), strings.TrimSpace(line[i+1:])
}

// splitName splits a possibly quoted name from the rest of the declaration
func splitName(decl string) (string, string) {
	if decl == "" {
		return "", ""
	}
	if q := decl[0]; q == '\'' || q == '"' {
		end := strings.IndexByte(decl[1:], q)
		if end < 0 {
			return "", ""
		}
		return decl[1 : end+1], strings.TrimSpace(decl[end+2:])
	}
	i := strings.IndexAny(decl, " \t")
	if i < 0 {
		return decl, ""
	}
	return decl[:i], strings.TrimSpace(decl[i+1:])
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func quoteARFF(s, sep string) string {
	if s == "" || strings.ContainsAny(s, " \t'\"") || strings.Contains(s, sep) {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	return s
}

// splitQuoted splits on sep outside of quotes and unquotes every field
func splitQuoted(line, sep string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		quote  byte
	)
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(line):
			cur.WriteByte(line[i+1])
			i += 2
			continue
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '\'' || c == '"') && strings.TrimSpace(cur.String()) == "":
			cur.Reset()
			quote = c
		case quote == 0 && strings.HasPrefix(line[i:], sep):
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
			i += len(sep)
			continue
		default:
			cur.WriteByte(c)
		}
		i++
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quoted value")
	}
	return append(fields, strings.TrimSpace(cur.String())), nil
}
