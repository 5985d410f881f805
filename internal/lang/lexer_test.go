package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}

func TestLexBasics(t *testing.T) {
	toks, err := Lex("main.weft", `module main`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, []TokenKind{TokKeyword, TokIdent}, kinds(toks))
	assert.Equal(t, []string{"module", "main"}, texts(toks))
}

func TestLexFunction(t *testing.T) {
	src := `pub fn add(a: Int, b: Int) -> Int {
	return a + b;
}`
	toks, err := Lex("main.weft", src)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pub", "fn", "add", "(", "a", ":", "Int", ",", "b", ":", "Int", ")",
		"->", "Int", "{", "return", "a", "+", "b", ";", "}",
	}, texts(toks))
}

func TestLexTracksLines(t *testing.T) {
	toks, err := Lex("main.weft", "module main\n\nfn f() {\n}\n")
	require.NoError(t, err)

	byText := make(map[string]int)
	for _, tok := range toks {
		byText[tok.Text] = tok.Line
	}
	assert.Equal(t, 1, byText["module"])
	assert.Equal(t, 3, byText["fn"])
	assert.Equal(t, 4, byText["}"])
}

func TestLexComments(t *testing.T) {
	toks, err := Lex("main.weft", "module main // trailing words fn ignored\nimport util\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"module", "main", "import", "util"}, texts(toks))
}

func TestLexStrings(t *testing.T) {
	toks, err := Lex("main.weft", `extern "m" fn sqrt(x: Float) -> Float`)
	require.NoError(t, err)
	assert.Equal(t, TokString, toks[1].Kind)
	assert.Equal(t, `"m"`, toks[1].Text)

	toks, err = Lex("main.weft", `let s = "say \"hi\"";`)
	require.NoError(t, err)
	assert.Equal(t, `"say \"hi\""`, toks[3].Text)
}

func TestLexMultiRunePuncts(t *testing.T) {
	toks, err := Lex("main.weft", "a == b != c <= d >= e -> f && g || h")
	require.NoError(t, err)
	assert.Contains(t, texts(toks), "==")
	assert.Contains(t, texts(toks), "!=")
	assert.Contains(t, texts(toks), "<=")
	assert.Contains(t, texts(toks), ">=")
	assert.Contains(t, texts(toks), "->")
	assert.Contains(t, texts(toks), "&&")
	assert.Contains(t, texts(toks), "||")
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unterminated string", "let s = \"open", 1},
		{"string across lines", "let s = \"a\nb\"", 1},
		{"bad character", "module main\nfn f() { @ }", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex("main.weft", tt.src)
			require.Error(t, err)
			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, tt.line, lexErr.Line)
			assert.Equal(t, "main.weft", lexErr.Path)
		})
	}
}

func TestLexKeywordsVersusIdents(t *testing.T) {
	toks, err := Lex("main.weft", "returner return modules module")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{TokIdent, TokKeyword, TokIdent, TokKeyword}, kinds(toks))
}
