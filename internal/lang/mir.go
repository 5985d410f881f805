package lang

import "strings"

// MirModule is the mid-level IR of one unit: straight-line instruction
// lists per function, ready for emission.
type MirModule struct {
	Module  string
	Funcs   []*MirFunc
	Externs []ExternDecl
}

// MirFunc is one function as an instruction sequence.
type MirFunc struct {
	Name   string
	Params []Param
	Result string
	Instrs []string
}

// MirBuild lowers HIR into instructions. At optimization level 1 and
// above, effect-free expression statements (no call involved) are
// eliminated.
func MirBuild(h *HirModule, optLevel int) *MirModule {
	m := &MirModule{Module: h.Module, Externs: h.Externs}
	for _, fn := range h.Funcs {
		mf := &MirFunc{Name: fn.Name, Params: fn.Params, Result: fn.Result}
		for _, stmt := range fn.Stmts {
			switch stmt.Op {
			case "let":
				mf.Instrs = append(mf.Instrs, "%"+stmt.Target+" = "+stmt.Expr)
			case "ret":
				instr := "ret"
				if stmt.Expr != "" {
					instr += " " + stmt.Expr
				}
				mf.Instrs = append(mf.Instrs, instr)
			default:
				if optLevel >= 1 && !strings.Contains(stmt.Expr, "(") {
					continue // dead expression, no observable effect
				}
				mf.Instrs = append(mf.Instrs, "eval "+stmt.Expr)
			}
		}
		if len(mf.Instrs) == 0 || !strings.HasPrefix(mf.Instrs[len(mf.Instrs)-1], "ret") {
			mf.Instrs = append(mf.Instrs, "ret")
		}
		m.Funcs = append(m.Funcs, mf)
	}
	return m
}
