package fcaerr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Code identifies an error kind. Codes double as CLI exit statuses.
type Code int

const (
	CodeOK Code = iota
	CodeUnknown
	CodeHeader
	CodeLine
	CodeAttr
	CodeValue
	CodeFormulaSyntax
	CodeFormulaNames
	CodeFormulaKey
	CodeFormulaRegex
	CodeSequence
	CodeDateSyntax
	CodeDateValue
	CodeBival
	CodeNamesFile
	CodeArgument
	CodeIO

	CodeInterrupted Code = 130
	CodeBrokenPipe  Code = 141
)

// String returns a human readable name of the code
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeHeader:
		return "header error"
	case CodeLine:
		return "line error"
	case CodeAttr:
		return "attribute error"
	case CodeValue:
		return "value error"
	case CodeFormulaSyntax:
		return "formula syntax error"
	case CodeFormulaNames:
		return "formula names error"
	case CodeFormulaKey:
		return "formula key error"
	case CodeFormulaRegex:
		return "formula regex error"
	case CodeSequence:
		return "sequence syntax error"
	case CodeDateSyntax:
		return "date format error"
	case CodeDateValue:
		return "date value error"
	case CodeBival:
		return "bivalent value error"
	case CodeNamesFile:
		return "names file error"
	case CodeArgument:
		return "argument error"
	case CodeIO:
		return "i/o error"
	case CodeInterrupted:
		return "interrupted"
	case CodeBrokenPipe:
		return "broken pipe"
	default:
		return "unknown error"
	}
}

var (
	// ErrCancelled is returned when an operation was stopped through its stop flag
	ErrCancelled = errors.New("operation cancelled")
	// ErrInterrupted marks termination by a keyboard interrupt
	ErrInterrupted = errors.New("interrupted")
	// ErrBrokenPipe marks a target stream whose reader went away
	ErrBrokenPipe = errors.New("broken pipe")
)

// ParseError is a syntax error located in a header, a data line, a formula
// or a sequence. Line and Column are 1-based, zero when unknown.
type ParseError struct {
	Code   Code
	Format string
	Line   int
	Column int
	Text   string
	Msg    string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	if e.Format != "" {
		fmt.Fprintf(&sb, " (%s)", e.Format)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line: %d, column: %d", e.Line, e.Column)
	} else if e.Column > 0 {
		fmt.Fprintf(&sb, " at column: %d", e.Column)
	}
	if e.Text != "" {
		fmt.Fprintf(&sb, ": %q", e.Text)
	}
	return sb.String()
}

// NewHeaderError reports a malformed or truncated header
func NewHeaderError(format string, line, column int, text, msg string) *ParseError {
	return &ParseError{Code: CodeHeader, Format: format, Line: line, Column: column, Text: text, Msg: msg}
}

// NewLineError reports a data line that does not match its format
func NewLineError(format string, line, column int, text, msg string) *ParseError {
	return &ParseError{Code: CodeLine, Format: format, Line: line, Column: column, Text: text, Msg: msg}
}

// NewFormulaSyntaxError reports a malformed attribute formula
func NewFormulaSyntaxError(line, column int, text, msg string) *ParseError {
	return &ParseError{Code: CodeFormulaSyntax, Format: "formula", Line: line, Column: column, Text: text, Msg: msg}
}

// NewSequenceError reports a malformed index or range sequence
func NewSequenceError(column int, text, msg string) *ParseError {
	return &ParseError{Code: CodeSequence, Format: "sequence", Column: column, Text: text, Msg: msg}
}

// NewDateSyntaxError reports an unusable date format
func NewDateSyntaxError(text, msg string) *ParseError {
	return &ParseError{Code: CodeDateSyntax, Format: "date", Text: text, Msg: msg}
}

// ValueKind names the conversion that rejected a value
type ValueKind string

const (
	ValueNumeric ValueKind = "numeric"
	ValueDate    ValueKind = "date"
	ValueNominal ValueKind = "nominal"
	ValueString  ValueKind = "string"
	ValueBival   ValueKind = "bivalent"
)

// ValueError is a single value rejected by its attribute
type ValueError struct {
	Kind  ValueKind
	Value string
	Msg   string
}

func (e *ValueError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("invalid %s value %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("invalid %s value %q: %s", e.Kind, e.Value, e.Msg)
}

// NewValueError creates an InvalidValue error of the given kind
func NewValueError(kind ValueKind, value, msg string) *ValueError {
	return &ValueError{Kind: kind, Value: value, Msg: msg}
}

// NewBivalError reports a value that is neither of the bivalent tokens
func NewBivalError(value, trueToken, falseToken string) *ValueError {
	return &ValueError{
		Kind:  ValueBival,
		Value: value,
		Msg:   fmt.Sprintf("expected %q or %q", trueToken, falseToken),
	}
}

// AttrError places a value error on a data line and attribute
type AttrError struct {
	Line   int
	Text   string
	Attr   int
	Name   string
	Format string
	Err    error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("attribute error at line: %d, attribute: %d (%s): %v: %q",
		e.Line, e.Attr, e.Name, e.Err, e.Text)
}

func (e *AttrError) Unwrap() error { return e.Err }

// FormulaError is a semantic formula failure
type FormulaError struct {
	Code Code
	Msg  string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewFormulaNamesError reports parallel name lists of different length
func NewFormulaNamesError(oldCount, newCount int) *FormulaError {
	return &FormulaError{
		Code: CodeFormulaNames,
		Msg:  fmt.Sprintf("%d source names but %d new names", oldCount, newCount),
	}
}

// NewFormulaKeyError reports a formula reference missing from the header
func NewFormulaKeyError(key string) *FormulaError {
	return &FormulaError{Code: CodeFormulaKey, Msg: fmt.Sprintf("attribute %q not found in header", key)}
}

// NewFormulaRegexError reports a string filter that does not compile
func NewFormulaRegexError(pattern string, err error) *FormulaError {
	return &FormulaError{Code: CodeFormulaRegex, Msg: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
}

// NewDateValueError reports a date literal that does not match its format
func NewDateValueError(value, layout string) *FormulaError {
	return &FormulaError{Code: CodeDateValue, Msg: fmt.Sprintf("date %q does not match format %q", value, layout)}
}

// NamesFileError reports a missing C4.5 names sidecar
type NamesFileError struct {
	Path string
	Err  error
}

func (e *NamesFileError) Error() string {
	return fmt.Sprintf("names file error: cannot open %s: %v", e.Path, e.Err)
}

func (e *NamesFileError) Unwrap() error { return e.Err }

// ArgError is an invalid combination of operation arguments
type ArgError struct {
	Msg string
}

func (e *ArgError) Error() string { return "argument error: " + e.Msg }

// NewArgError formats an ArgError
func NewArgError(format string, args ...any) *ArgError {
	return &ArgError{Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the outermost typed error in the chain
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}

	var (
		parseErr   *ParseError
		attrErr    *AttrError
		valueErr   *ValueError
		formulaErr *FormulaError
		namesErr   *NamesFileError
		argErr     *ArgError
		pathErr    *fs.PathError
	)

	switch {
	case errors.Is(err, ErrBrokenPipe):
		return CodeBrokenPipe
	case errors.Is(err, ErrInterrupted), errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CodeInterrupted
	case errors.As(err, &attrErr):
		if errors.As(attrErr.Err, &valueErr) && valueErr.Kind == ValueBival {
			return CodeBival
		}
		return CodeAttr
	case errors.As(err, &valueErr):
		if valueErr.Kind == ValueBival {
			return CodeBival
		}
		return CodeValue
	case errors.As(err, &parseErr):
		return parseErr.Code
	case errors.As(err, &formulaErr):
		return formulaErr.Code
	case errors.As(err, &namesErr):
		return CodeNamesFile
	case errors.As(err, &argErr):
		return CodeArgument
	case errors.As(err, &pathErr):
		return CodeIO
	default:
		return CodeUnknown
	}
}

// IsLineLevel reports whether err concerns a single data line and may be
// skipped when errors are tolerated.
func IsLineLevel(err error) bool {
	var (
		parseErr *ParseError
		attrErr  *AttrError
		valueErr *ValueError
	)
	switch {
	case errors.As(err, &attrErr), errors.As(err, &valueErr):
		return true
	case errors.As(err, &parseErr):
		return parseErr.Code == CodeLine
	default:
		return false
	}
}

// IsBival reports whether err is a bivalent token mismatch
func IsBival(err error) bool {
	var valueErr *ValueError
	return errors.As(err, &valueErr) && valueErr.Kind == ValueBival
}
