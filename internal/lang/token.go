package lang

import "fmt"

// TokenKind classifies lexed tokens.
type TokenKind uint8

const (
	TokIdent TokenKind = iota
	TokKeyword
	TokInt
	TokString
	TokPunct
)

// Token is one lexed token with its source line for diagnostics.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

func (t Token) String() string {
	return fmt.Sprintf("%q@%d", t.Text, t.Line)
}

// keywords is the closed reserved-word set of the language.
var keywords = map[string]bool{
	"module": true,
	"import": true,
	"extern": true,
	"pub":    true,
	"fn":     true,
	"own":    true,
	"let":    true,
	"return": true,
	"if":     true,
	"else":   true,
	"while":  true,
	"true":   true,
	"false":  true,
}

// builtinTypes is the closed set of value types.
var builtinTypes = map[string]bool{
	"Int":    true,
	"Float":  true,
	"Bool":   true,
	"String": true,
	"Buffer": true,
	"Unit":   true,
}
