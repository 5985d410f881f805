package lang

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowered(t *testing.T, src string) *HirModule {
	t.Helper()
	env, err := checkSource(t, src, nil)
	require.NoError(t, err)
	h, err := HirLower("main.weft", env)
	require.NoError(t, err)
	return h
}

func TestHirLowerStatements(t *testing.T) {
	h := lowered(t, `module main
pub fn run() -> Int {
	let x = 40 + 2;
	emit(x);
	return x;
}
`)
	require.Len(t, h.Funcs, 1)
	stmts := h.Funcs[0].Stmts
	require.Len(t, stmts, 3)

	assert.Equal(t, HirStmt{Op: "let", Target: "x", Expr: "40 + 2"}, stmts[0])
	assert.Equal(t, HirStmt{Op: "expr", Expr: "emit(x)"}, stmts[1])
	assert.Equal(t, HirStmt{Op: "ret", Expr: "x"}, stmts[2])
}

func TestHirLowerSeparatesExterns(t *testing.T) {
	h := lowered(t, `module main
extern "m" fn c_sqrt(x: Float) -> Float
pub fn run() -> Float {
	return c_sqrt(2);
}
`)
	require.Len(t, h.Externs, 1)
	assert.Equal(t, "c_sqrt", h.Externs[0].Name)
	assert.Equal(t, "m", h.Externs[0].Lib)
	require.Len(t, h.Funcs, 1)
}

func TestHirLowerMalformedLet(t *testing.T) {
	env, err := checkSource(t, "module main\nfn f() {\n\tlet = 3;\n}\n", nil)
	require.NoError(t, err)
	_, err = HirLower("main.weft", env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed let")
}

func TestMirBuildInstructions(t *testing.T) {
	h := lowered(t, `module main
pub fn run() -> Int {
	let x = 1;
	return x;
}
`)
	m := MirBuild(h, 0)
	require.Len(t, m.Funcs, 1)
	assert.Equal(t, []string{"%x = 1", "ret x"}, m.Funcs[0].Instrs)
}

func TestMirBuildImplicitReturn(t *testing.T) {
	h := lowered(t, "module main\nfn f() {\n\tlet x = 1;\n}\n")
	m := MirBuild(h, 0)
	instrs := m.Funcs[0].Instrs
	assert.Equal(t, "ret", instrs[len(instrs)-1])
}

func TestMirBuildDeadExpressionElimination(t *testing.T) {
	src := `module main
fn f() {
	1 + 2;
	emit(3);
}
`
	unopt := MirBuild(lowered(t, src), 0)
	assert.Equal(t, []string{"eval 1 + 2", "eval emit(3)", "ret"}, unopt.Funcs[0].Instrs)

	opt := MirBuild(lowered(t, src), 1)
	assert.Equal(t, []string{"eval emit(3)", "ret"}, opt.Funcs[0].Instrs)
}

func TestCodegenDeterministic(t *testing.T) {
	src := `module main
extern "z" fn compress(own buf: Buffer) -> Buffer
extern "m" fn c_sqrt(x: Float) -> Float
pub fn run() -> Float {
	return c_sqrt(2);
}
`
	h := lowered(t, src)
	opts := CodegenOptions{Target: "x86_64-unknown-linux-gnu", OptLevel: 1}

	a := Codegen(MirBuild(h, 1), opts)
	b := Codegen(MirBuild(h, 1), opts)
	assert.Equal(t, a.IR, b.IR)

	// Link libraries are sorted regardless of declaration order.
	assert.Equal(t, []string{"m", "z"}, a.LinkLibs)
}

func TestCodegenOutput(t *testing.T) {
	h := lowered(t, `module main
pub fn run() -> Int {
	return 0;
}
`)
	result := Codegen(MirBuild(h, 0), CodegenOptions{Target: "aarch64-apple-darwin", OptLevel: 2})
	ir := string(result.IR)

	assert.Contains(t, ir, "; weft unit main")
	assert.Contains(t, ir, "; target aarch64-apple-darwin opt 2")
	assert.Contains(t, ir, "define @run() -> Int {")
	assert.Contains(t, ir, "  ret 0")
	assert.Empty(t, result.LinkLibs)
}

func TestCodegenCoverageInstrumentation(t *testing.T) {
	h := lowered(t, "module main\npub fn run() -> Int {\n\treturn 0;\n}\n")
	plain := Codegen(MirBuild(h, 0), CodegenOptions{Target: "t", OptLevel: 0})
	cov := Codegen(MirBuild(h, 0), CodegenOptions{Target: "t", OptLevel: 0, Coverage: true})

	assert.NotContains(t, string(plain.IR), "@cov.hit")
	assert.True(t, strings.Contains(string(cov.IR), `call @cov.hit("main:run")`))
	assert.NotEqual(t, plain.IR, cov.IR)
}
