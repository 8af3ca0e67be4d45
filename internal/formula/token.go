package formula

// TokenType classifies a lexeme of the formula language
type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	IDENT  TokenType = "IDENT"
	STRING TokenType = "STRING"

	ASSIGN    TokenType = "="
	COLON     TokenType = ":"
	SEMICOLON TokenType = ";"
	COMMA     TokenType = ","
	MINUS     TokenType = "-"
	SLASH     TokenType = "/"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	LT TokenType = "<"
	GT TokenType = ">"
	LE TokenType = "<="
	GE TokenType = ">="
	EQ TokenType = "=="
	NE TokenType = "!="
)

// Pos is a 1-based position in the input
type Pos struct {
	Line int
	Col  int
}

// Token is one lexeme with its start position
type Token struct {
	Type    TokenType
	Literal string
	Loc     Pos
}

func (t Token) isComparison() bool {
	switch t.Type {
	case LT, GT, LE, GE, EQ, NE:
		return true
	}
	return false
}
