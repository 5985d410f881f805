package lang

import (
	"fmt"
	"strings"
)

// HirModule is the high-level IR of one unit: function bodies resolved
// into statement lists, extern declarations separated out.
type HirModule struct {
	Module  string
	Funcs   []*HirFunc
	Externs []ExternDecl
}

// HirFunc is one lowered function.
type HirFunc struct {
	Name   string
	Params []Param
	Result string
	Stmts  []HirStmt
}

// HirStmt is a statement in one of three forms: "let" binds Target to
// Expr, "ret" returns Expr, "expr" evaluates Expr for effect.
type HirStmt struct {
	Op     string
	Target string
	Expr   string
}

// ExternDecl is a foreign function with its link library.
type ExternDecl struct {
	Name   string
	Lib    string
	Params []Param
	Result string
}

// LowerError reports a body that cannot be lowered.
type LowerError struct {
	Path string
	Line int
	Msg  string
}

func (e *LowerError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// HirLower lowers a checked environment into statement form. Bodies are
// split at top-level semicolons; nested braces stay inside the enclosing
// statement's expression text.
func HirLower(path string, env *Env) (*HirModule, error) {
	h := &HirModule{Module: env.Module.Name}
	for _, fn := range env.Module.Funcs {
		if fn.Extern {
			h.Externs = append(h.Externs, ExternDecl{
				Name:   fn.Name,
				Lib:    fn.LinkLib,
				Params: fn.Params,
				Result: fn.Result,
			})
			continue
		}
		stmts, err := lowerBody(path, fn)
		if err != nil {
			return nil, err
		}
		h.Funcs = append(h.Funcs, &HirFunc{
			Name:   fn.Name,
			Params: fn.Params,
			Result: fn.Result,
			Stmts:  stmts,
		})
	}
	return h, nil
}

func lowerBody(path string, fn *FuncDecl) ([]HirStmt, error) {
	var stmts []HirStmt
	for _, span := range splitStatements(fn.Body) {
		if len(span) == 0 {
			continue
		}
		stmt, err := lowerStatement(path, span)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// splitStatements cuts a body at semicolons outside nested braces.
func splitStatements(body []Token) [][]Token {
	var spans [][]Token
	start := 0
	depth := 0
	for i, tok := range body {
		if tok.Kind != TokPunct {
			continue
		}
		switch tok.Text {
		case "{":
			depth++
		case "}":
			depth--
		case ";":
			if depth == 0 {
				spans = append(spans, body[start:i])
				start = i + 1
			}
		}
	}
	if start < len(body) {
		spans = append(spans, body[start:])
	}
	return spans
}

func lowerStatement(path string, span []Token) (HirStmt, error) {
	head := span[0]
	switch {
	case head.Kind == TokKeyword && head.Text == "return":
		return HirStmt{Op: "ret", Expr: spelledOut(span[1:])}, nil

	case head.Kind == TokKeyword && head.Text == "let":
		if len(span) < 4 || span[1].Kind != TokIdent || span[2].Text != "=" {
			return HirStmt{}, &LowerError{Path: path, Line: head.Line, Msg: "malformed let binding"}
		}
		return HirStmt{Op: "let", Target: span[1].Text, Expr: spelledOut(span[3:])}, nil

	default:
		return HirStmt{Op: "expr", Expr: spelledOut(span)}, nil
	}
}

// spelledOut renders a token span as normalized expression text. Member
// access stays tight; everything else is space separated.
func spelledOut(span []Token) string {
	var b strings.Builder
	for i, tok := range span {
		if i > 0 && !tightPair(span[i-1], tok) {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

func tightPair(prev, cur Token) bool {
	if prev.Text == "." || cur.Text == "." {
		return true
	}
	if cur.Text == "(" && (prev.Kind == TokIdent || prev.Kind == TokKeyword) {
		return true
	}
	if cur.Text == ")" || cur.Text == "," {
		return true
	}
	return prev.Text == "("
}
