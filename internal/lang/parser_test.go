package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) (*Module, error) {
	t.Helper()
	toks, err := Lex("main.weft", src)
	require.NoError(t, err)
	return Parse("main.weft", toks)
}

func TestParseModuleHeader(t *testing.T) {
	m, err := parseSource(t, `module main
import util
import math
`)
	require.NoError(t, err)
	assert.Equal(t, "main", m.Name)
	assert.Equal(t, []string{"util", "math"}, m.Imports)
	assert.Empty(t, m.Funcs)
}

func TestParseFunction(t *testing.T) {
	m, err := parseSource(t, `module main

pub fn add(a: Int, b: Int) -> Int {
	return a + b;
}

fn helper() {
	let x = 1;
}
`)
	require.NoError(t, err)
	require.Len(t, m.Funcs, 2)

	add := m.Funcs[0]
	assert.Equal(t, "add", add.Name)
	assert.True(t, add.Public)
	assert.False(t, add.Extern)
	require.Len(t, add.Params, 2)
	assert.Equal(t, Param{Name: "a", Type: "Int"}, add.Params[0])
	assert.Equal(t, Param{Name: "b", Type: "Int"}, add.Params[1])
	assert.Equal(t, "Int", add.Result)
	assert.NotEmpty(t, add.Body)

	helper := m.Funcs[1]
	assert.False(t, helper.Public)
	assert.Equal(t, "Unit", helper.Result) // no arrow means Unit
}

func TestParseOwnParam(t *testing.T) {
	m, err := parseSource(t, `module main
fn consume(own buf: Buffer) -> Int {
	return size(buf);
}
`)
	require.NoError(t, err)
	require.Len(t, m.Funcs, 1)
	require.Len(t, m.Funcs[0].Params, 1)
	assert.True(t, m.Funcs[0].Params[0].Own)
	assert.Equal(t, "Buffer", m.Funcs[0].Params[0].Type)
}

func TestParseExtern(t *testing.T) {
	m, err := parseSource(t, `module main
extern "m" fn c_sqrt(x: Float) -> Float
pub fn run() -> Float {
	return c_sqrt(2);
}
`)
	require.NoError(t, err)
	require.Len(t, m.Funcs, 2)

	ext := m.Funcs[0]
	assert.True(t, ext.Extern)
	assert.Equal(t, "m", ext.LinkLib)
	assert.Equal(t, "c_sqrt", ext.Name)
	assert.Empty(t, ext.Body)
}

func TestParseNestedBraces(t *testing.T) {
	m, err := parseSource(t, `module main
fn f(x: Int) -> Int {
	if x > 0 {
		return 1;
	}
	return 0;
}
`)
	require.NoError(t, err)
	require.Len(t, m.Funcs, 1)
	// The body spans the whole nested block.
	last := m.Funcs[0].Body[len(m.Funcs[0].Body)-1]
	assert.Equal(t, ";", last.Text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing module", "fn f() {}", `expected "module"`},
		{"duplicate import", "module main\nimport util\nimport util\n", "duplicate import"},
		{"missing paren", "module main\nfn f {}", `expected "("`},
		{"unclosed body", "module main\nfn f() {\nreturn 0;", "unclosed function body"},
		{"empty extern lib", "module main\nextern \"\" fn g()", "must not be empty"},
		{"junk after header", "module main\n42\n", "expected function declaration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSource(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parseSource(t, "module main\nfn f(x) {}\n")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, "main.weft", parseErr.Path)
}
