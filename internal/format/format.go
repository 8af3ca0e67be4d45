package format

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

// Format identifies a file format by its extension
type Format string

const (
	CSV  Format = "csv"
	ARFF Format = "arff"
	CXT  Format = "cxt"
	DAT  Format = "dat"
	DTL  Format = "dtl"
	DATA Format = "data"
)

// DefaultRelationName is written when no relation name is known
const DefaultRelationName = "default_name"

// Formats lists the supported formats
var Formats = []Format{CSV, ARFF, CXT, DAT, DTL, DATA}

// Bivalent reports whether every value of the format is a boolean
func (f Format) Bivalent() bool {
	return f == CXT || f == DAT || f == DTL
}

// Detect returns the format named by hint, or by the extension of path
func Detect(path, hint string) (Format, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hint)), ".")
	if name == "" {
		if path == "" || path == "-" {
			return "", fcaerr.NewArgError("a format is required when reading standard streams")
		}
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fcaerr.NewArgError("unsupported format %q", name)
}

// Options holds the recognized per-format settings
type Options struct {
	Separator      string
	NoneValue      string
	AttrsFirstLine bool
	// Objects names CXT objects
	Objects      []string
	RelationName string
	// Classes lists one literal class value per written row
	Classes        []string
	ClassSeparator string
	Cross          string
	Dot            string
	Bival          attribute.Bival
}

// DefaultOptions returns the defaults of every format
func DefaultOptions() Options {
	return Options{
		Separator:      ",",
		NoneValue:      "?",
		AttrsFirstLine: true,
		ClassSeparator: "|",
		Cross:          "X",
		Dot:            ".",
		Bival:          attribute.DefaultBival,
	}
}

// Hooks lets header parsers that read the whole file honor the stop flag
// and report progress.
type Hooks struct {
	Stop func() bool
	Line func(line string)
}

func (h Hooks) stop() bool { return h.Stop != nil && h.Stop() }

func (h Hooks) line(l string) {
	if h.Line != nil {
		h.Line(l)
	}
}

// Data is an open source or target file together with its schema
type Data interface {
	Format() Format
	Path() string
	RelationName() string
	ObjectCount() int
	SetObjectCount(n int)
	DataStart() int
	Objects() []string
	HeaderAttributes() []*attribute.Attribute
	Attributes() []*attribute.Attribute
	StatsKnown() bool
	Source() *Source

	// ReadHeader parses the header and builds the header attributes
	ReadHeader(ctx context.Context, hooks Hooks) error
	// ResolveAttributes merges a formula and class selection with the header
	ResolveAttributes(formula, classes string) error
	// UnpackAttributes replaces unpack attributes by one dummy per value
	UnpackAttributes()
	// PrepareLine tokenizes and processes one data line; nil means comment
	PrepareLine(line string, lineNo int, scale, update bool) ([]string, error)
	WriteHeader(src Data) error
	WriteLine(values []string) error
	// Finish completes a target after its last line; side files such as
	// the C4.5 names file are only written here
	Finish() error
	Close() error
}

type constructor func(b *base) Data

var registry = map[Format]constructor{
	CSV:  func(b *base) Data { return &csvData{base: b} },
	ARFF: func(b *base) Data { return &arffData{base: b} },
	CXT:  func(b *base) Data { return &cxtData{base: b} },
	DAT:  func(b *base) Data { return &datData{base: b} },
	DTL:  func(b *base) Data { return &datData{base: b, classes: true} },
	DATA: func(b *base) Data { return &c45Data{base: b} },
}

func newBase(f Format, opts Options) *base {
	if f == DAT || f == DTL {
		opts.Separator = " "
	}
	if opts.Separator == "" {
		opts.Separator = ","
	}
	if opts.Bival == (attribute.Bival{}) {
		opts.Bival = attribute.DefaultBival
	}
	return &base{format: f, opts: opts, objCount: -1}
}

// Open creates a source Data reading from src
func Open(f Format, src *Source, opts Options) (Data, error) {
	ctor, ok := registry[f]
	if !ok {
		return nil, fcaerr.NewArgError("unsupported format %q", f)
	}
	b := newBase(f, opts)
	b.src = src
	b.path = src.Name()
	return ctor(b), nil
}

// Create creates a target Data writing to w. path locates sidecar files.
func Create(f Format, w io.Writer, path string, opts Options) (Data, error) {
	ctor, ok := registry[f]
	if !ok {
		return nil, fcaerr.NewArgError("unsupported format %q", f)
	}
	b := newBase(f, opts)
	b.w = bufio.NewWriter(w)
	b.path = path
	return ctor(b), nil
}

// CreateFile creates path, or writes to standard output for "" and "-"
func CreateFile(f Format, path string, opts Options) (Data, error) {
	if path == "" || path == "-" {
		return Create(f, os.Stdout, "", opts)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	d, err := Create(f, file, path, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	d.(interface{ setCloser(io.Closer) }).setCloser(file)
	return d, nil
}
