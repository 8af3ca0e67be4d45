package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
)

var kindNames = map[string]attribute.Kind{
	"n":          attribute.Numeric,
	"numeric":    attribute.Numeric,
	"continuous": attribute.Numeric,
	"e":          attribute.Nominal,
	"enum":       attribute.Nominal,
	"nominal":    attribute.Nominal,
	"discrete":   attribute.Nominal,
	"s":          attribute.String,
	"string":     attribute.String,
	"d":          attribute.Date,
	"date":       attribute.Date,
	"g":          attribute.Generic,
	"generic":    attribute.Generic,
}

// Parser turns a formula into attributes. Terms are separated by `;`:
//
//	old[,old...][=new[,new...]][spec]
//
// where spec is one of `[]` (unpack), `[0='f',1='t']` (token override),
// `[type]`, `[type,scale]` or `:type[scale]`.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	maxIndex  int
	errs      []error
}

// NewParser creates a parser. maxIndex bounds open ranges such as `3-`;
// pass -1 when the header size is unknown.
func NewParser(input string, maxIndex int) *Parser {
	p := &Parser{l: NewLexer(input), maxIndex: maxIndex}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses input into one attribute per expanded name
func Parse(input string, maxIndex int) ([]*attribute.Attribute, error) {
	return NewParser(input, maxIndex).Parse()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) hasError() bool { return len(p.errs) > 0 }

// addErr records a syntax error at the current token
func (p *Parser) addErr(msg string) {
	p.errs = append(p.errs, fcaerr.NewFormulaSyntaxError(
		p.curToken.Loc.Line, p.curToken.Loc.Col, p.curToken.Literal, msg))
}

func (p *Parser) expect(t TokenType) bool {
	if p.curToken.Type != t {
		p.addErr(fmt.Sprintf("expected %q but got %q", t, p.curToken.Type))
		return false
	}
	p.nextToken()
	return true
}

// Parse parses every term of the formula
func (p *Parser) Parse() ([]*attribute.Attribute, error) {
	var attrs []*attribute.Attribute
	for p.curToken.Type != EOF {
		if p.curToken.Type == SEMICOLON {
			p.nextToken()
			continue
		}
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if p.hasError() {
			return nil, p.errs[0]
		}
		attrs = append(attrs, term...)
		if p.curToken.Type != EOF && p.curToken.Type != SEMICOLON {
			p.addErr("expected ; between formulas")
			return nil, p.errs[0]
		}
	}
	return attrs, nil
}

// spec is the shared right-hand side of a term
type spec struct {
	kind       attribute.Kind
	typed      bool
	unpack     bool
	tokens     *attribute.Bival
	dateFormat string
	scale      []Token
	scaleText  string
}

func (p *Parser) parseTerm() ([]*attribute.Attribute, error) {
	olds := p.parseNames()
	if p.hasError() {
		return nil, p.errs[0]
	}
	news := olds
	renamed := false
	if p.curToken.Type == ASSIGN {
		p.nextToken()
		news = p.parseNames()
		renamed = true
		if p.hasError() {
			return nil, p.errs[0]
		}
	}
	if len(olds) != len(news) {
		return nil, fcaerr.NewFormulaNamesError(len(olds), len(news))
	}

	s := p.parseSpec()
	if p.hasError() {
		return nil, p.errs[0]
	}

	attrs := make([]*attribute.Attribute, 0, len(olds))
	for i, old := range olds {
		name := ""
		if renamed || !isIndex(old) {
			name = news[i]
		}
		a, err := s.build(name, old)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// parseNames reads a comma list of names and integer ranges
func (p *Parser) parseNames() []string {
	var names []string
	for {
		switch p.curToken.Type {
		case STRING:
			names = append(names, p.curToken.Literal)
			p.nextToken()
		case IDENT, MINUS:
			names = append(names, p.parseRange()...)
		default:
			p.addErr("expected attribute name")
			return nil
		}
		if p.hasError() {
			return nil
		}
		if p.curToken.Type != COMMA {
			return names
		}
		p.nextToken()
	}
}

func (p *Parser) parseRange() []string {
	start := 0
	if p.curToken.Type == IDENT {
		if p.peekToken.Type != MINUS {
			name := p.curToken.Literal
			p.nextToken()
			return []string{name}
		}
		n, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.addErr("range bound must be an integer")
			return nil
		}
		start = n
		p.nextToken()
	}
	p.nextToken() // -

	end := p.maxIndex
	if p.curToken.Type == IDENT {
		n, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.addErr("range bound must be an integer")
			return nil
		}
		end = n
		p.nextToken()
	} else if p.maxIndex < 0 {
		p.addErr("open range needs a known attribute count")
		return nil
	}

	if end < start {
		p.addErr(fmt.Sprintf("empty range %d-%d", start, end))
		return nil
	}
	names := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		names = append(names, strconv.Itoa(i))
	}
	return names
}

func (p *Parser) parseSpec() spec {
	s := spec{}
	switch p.curToken.Type {
	case COLON:
		p.nextToken()
		p.parseType(&s)
		if p.curToken.Type == LBRACKET {
			p.nextToken()
			p.parseScale(&s)
			p.expect(RBRACKET)
		}
	case LBRACKET:
		p.nextToken()
		switch {
		case p.curToken.Type == RBRACKET:
			s.unpack = true
			s.kind = attribute.Nominal
		case p.curToken.Type == STRING,
			p.curToken.Type == IDENT && (p.curToken.Literal == "0" || p.curToken.Literal == "1") && p.peekToken.Type == ASSIGN:
			p.parseBins(&s)
		default:
			p.parseType(&s)
			if p.curToken.Type == COMMA {
				p.nextToken()
				p.parseScale(&s)
			}
		}
		p.expect(RBRACKET)
	}
	return s
}

func (p *Parser) parseType(s *spec) {
	if p.curToken.Type != IDENT {
		p.addErr("expected attribute type")
		return
	}
	kind, ok := kindNames[strings.ToLower(p.curToken.Literal)]
	if !ok {
		p.addErr(fmt.Sprintf("unknown attribute type %q", p.curToken.Literal))
		return
	}
	s.kind, s.typed = kind, true
	p.nextToken()

	if kind == attribute.Date {
		s.dateFormat = attribute.DefaultDateFormat
		if p.curToken.Type == SLASH {
			p.nextToken()
			if p.curToken.Type != STRING && p.curToken.Type != IDENT {
				p.addErr("expected date format")
				return
			}
			s.dateFormat = p.curToken.Literal
			p.nextToken()
		}
	}
}

// parseBins reads `[0='f',1='t']`, `[0='f','t']`, `[1='t']` or `['t']`
func (p *Parser) parseBins(s *spec) {
	tokens := attribute.DefaultBival
	for {
		slot := "1"
		if p.curToken.Type == IDENT {
			slot = p.curToken.Literal
			p.nextToken()
			if !p.expect(ASSIGN) {
				return
			}
		}
		if p.curToken.Type != STRING {
			p.addErr("expected quoted token")
			return
		}
		if slot == "0" {
			tokens.False = p.curToken.Literal
		} else {
			tokens.True = p.curToken.Literal
		}
		p.nextToken()
		if p.curToken.Type != COMMA {
			break
		}
		p.nextToken()
	}
	if tokens.True == tokens.False {
		p.addErr("true and false tokens must differ")
		return
	}
	s.tokens = &tokens
}

// parseScale collects the scale tokens up to the closing bracket
func (p *Parser) parseScale(s *spec) {
	var sb strings.Builder
	for p.curToken.Type != RBRACKET {
		if p.curToken.Type == EOF || p.curToken.Type == ILLEGAL {
			p.addErr("unterminated scale expression")
			return
		}
		s.scale = append(s.scale, p.curToken)
		if p.curToken.Type == STRING {
			sb.WriteString(strconv.Quote(p.curToken.Literal))
		} else {
			sb.WriteString(p.curToken.Literal)
		}
		p.nextToken()
	}
	s.scaleText = sb.String()
	if len(s.scale) == 0 {
		p.addErr("empty scale expression")
	}
}

func (s spec) build(name, pattern string) (*attribute.Attribute, error) {
	a := attribute.New(name, s.kind)
	a.Pattern = pattern
	a.Unpack = s.unpack
	a.Tokens = s.tokens
	if s.kind == attribute.Date {
		a.DateFormat = s.dateFormat
		if err := attribute.CheckDateFormat(a.DateFormat); err != nil {
			return nil, err
		}
	}
	if !s.typed && !s.unpack {
		a.Kind = attribute.Generic
	}
	if len(s.scale) == 0 {
		return a, nil
	}

	switch s.kind {
	case attribute.Numeric, attribute.Date:
		e, err := parseComparison(s.scale, s.scaleText, s.kind, s.dateFormat)
		if err != nil {
			return nil, err
		}
		a.SetExpr(e)
	case attribute.Nominal:
		if len(s.scale) != 1 || (s.scale[0].Type != STRING && s.scale[0].Type != IDENT) {
			return nil, syntaxAt(s.scale[0], "nominal scale must be a single literal")
		}
		a.SetLiteral(s.scale[0].Literal)
	case attribute.String:
		if len(s.scale) != 1 || s.scale[0].Type != STRING {
			return nil, syntaxAt(s.scale[0], "string scale must be a quoted pattern")
		}
		if err := a.SetRegexp(s.scale[0].Literal); err != nil {
			return nil, err
		}
	default:
		a.ExprText = s.scaleText
	}
	return a, nil
}

func syntaxAt(t Token, msg string) error {
	return fcaerr.NewFormulaSyntaxError(t.Loc.Line, t.Loc.Col, t.Literal, msg)
}

func isIndex(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
