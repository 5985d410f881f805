package lang

import "fmt"

// BorrowError reports a violated ownership rule.
type BorrowError struct {
	Path string
	Line int
	Msg  string
}

func (e *BorrowError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Borrowcheck enforces the move rule: an `own` parameter may be consumed
// at most once per function body. Every mention of an owned name is a
// move; a second mention is use-after-move.
func Borrowcheck(path string, m *Module) error {
	for _, fn := range m.Funcs {
		for _, param := range fn.Params {
			if !param.Own {
				continue
			}
			moved := false
			for _, tok := range fn.Body {
				if tok.Kind != TokIdent || tok.Text != param.Name {
					continue
				}
				if moved {
					return &BorrowError{Path: path, Line: tok.Line,
						Msg: fmt.Sprintf("use of moved value %q in function %q", param.Name, fn.Name)}
				}
				moved = true
			}
		}
	}
	return nil
}
