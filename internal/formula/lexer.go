package formula

import "strings"

const special = "[]=:;,-/<>!'\""

// Lexer splits a formula into tokens
type Lexer struct {
	input []rune
	pos   int
	line  int
	col   int
}

// NewLexer creates a lexer over input
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input), line: 1, col: 1}
}

func (l *Lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() rune {
	r := l.input[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.peek(0) {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

// NextToken returns the next token, EOF at the end of input
func (l *Lexer) NextToken() Token {
	l.skipSpace()
	loc := Pos{Line: l.line, Col: l.col}
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Loc: loc}
	}

	r := l.peek(0)
	two := func(t TokenType) Token {
		lit := string(l.advance()) + string(l.advance())
		return Token{Type: t, Literal: lit, Loc: loc}
	}
	one := func(t TokenType) Token {
		return Token{Type: t, Literal: string(l.advance()), Loc: loc}
	}

	switch r {
	case '[':
		return one(LBRACKET)
	case ']':
		return one(RBRACKET)
	case ':':
		return one(COLON)
	case ';':
		return one(SEMICOLON)
	case ',':
		return one(COMMA)
	case '-':
		return one(MINUS)
	case '/':
		return one(SLASH)
	case '=':
		if l.peek(1) == '=' {
			return two(EQ)
		}
		return one(ASSIGN)
	case '<':
		if l.peek(1) == '=' {
			return two(LE)
		}
		return one(LT)
	case '>':
		if l.peek(1) == '=' {
			return two(GE)
		}
		return one(GT)
	case '!':
		if l.peek(1) == '=' {
			return two(NE)
		}
		return one(ILLEGAL)
	case '\'', '"':
		return l.readString(loc)
	}

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.peek(0)
		if strings.ContainsRune(special, c) || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		sb.WriteRune(l.advance())
	}
	return Token{Type: IDENT, Literal: sb.String(), Loc: loc}
}

// readString reads a quoted literal; a backslash escapes the quote
func (l *Lexer) readString(loc Pos) Token {
	quote := l.advance()
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.advance()
		if c == '\\' && l.peek(0) == quote {
			sb.WriteRune(l.advance())
			continue
		}
		if c == quote {
			return Token{Type: STRING, Literal: sb.String(), Loc: loc}
		}
		sb.WriteRune(c)
	}
	return Token{Type: ILLEGAL, Literal: string(quote) + sb.String(), Loc: loc}
}
