package lang

import (
	"fmt"
	"strings"
	"unicode"
)

// LexError reports an unlexable input with its source position.
type LexError struct {
	Path string
	Line int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// twoRunePuncts are the multi-rune punctuators, matched before single
// runes.
var twoRunePuncts = []string{"->", "==", "!=", "<=", ">=", "&&", "||"}

const singleRunePuncts = "(){}[],:;.+-*/=<>!&|%"

// Lex tokenizes preprocessed source text. Line comments (//) run to end
// of line; string literals support \" and \\ escapes and may not span
// lines.
func Lex(path, text string) ([]Token, error) {
	var toks []Token
	line := 1
	i := 0
	n := len(text)

	for i < n {
		c := text[i]

		switch {
		case c == '\n':
			line++
			i++

		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c == '/' && i+1 < n && text[i+1] == '/':
			for i < n && text[i] != '\n' {
				i++
			}

		case c == '"':
			start := i
			i++
			for i < n && text[i] != '"' {
				if text[i] == '\n' {
					return nil, &LexError{Path: path, Line: line, Msg: "unterminated string literal"}
				}
				if text[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i >= n {
				return nil, &LexError{Path: path, Line: line, Msg: "unterminated string literal"}
			}
			i++
			toks = append(toks, Token{Kind: TokString, Text: text[start:i], Line: line})

		case isIdentStart(rune(c)):
			start := i
			for i < n && isIdentPart(rune(text[i])) {
				i++
			}
			word := text[start:i]
			kind := TokIdent
			if keywords[word] {
				kind = TokKeyword
			}
			toks = append(toks, Token{Kind: kind, Text: word, Line: line})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (text[i] >= '0' && text[i] <= '9') {
				i++
			}
			toks = append(toks, Token{Kind: TokInt, Text: text[start:i], Line: line})

		default:
			if i+1 < n {
				pair := text[i : i+2]
				matched := false
				for _, p := range twoRunePuncts {
					if pair == p {
						toks = append(toks, Token{Kind: TokPunct, Text: pair, Line: line})
						i += 2
						matched = true
						break
					}
				}
				if matched {
					continue
				}
			}
			if strings.IndexByte(singleRunePuncts, c) >= 0 {
				toks = append(toks, Token{Kind: TokPunct, Text: string(c), Line: line})
				i++
				continue
			}
			return nil, &LexError{Path: path, Line: line, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
