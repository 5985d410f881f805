package lang

import "fmt"

// Module is the syntax tree of one compilation unit.
type Module struct {
	Name    string
	Imports []string
	Funcs   []*FuncDecl
}

// FuncDecl is a function declaration. Extern declarations carry the
// library they link against and have no body.
type FuncDecl struct {
	Name    string
	Public  bool
	Extern  bool
	LinkLib string
	Params  []Param
	Result  string
	Body    []Token
	Line    int
}

// Param is a single function parameter. Own marks a parameter whose
// ownership moves into the function.
type Param struct {
	Name string
	Type string
	Own  bool
}

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

type parser struct {
	path string
	toks []Token
	pos  int
}

// Parse builds the syntax tree for a token stream. The grammar is:
//
//	module   := "module" ident import* decl*
//	import   := "import" ident
//	decl     := "pub"? "fn" ident "(" params? ")" ("->" type)? block
//	          | "extern" string "fn" ident "(" params? ")" ("->" type)?
//	params   := param ("," param)*
//	param    := "own"? ident ":" type
//
// Function bodies are captured as raw token spans; later stages give
// them meaning.
func Parse(path string, toks []Token) (*Module, error) {
	p := &parser{path: path, toks: toks}

	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent("module name")
	if err != nil {
		return nil, err
	}
	m := &Module{Name: name}

	for p.atKeyword("import") {
		p.pos++
		imp, err := p.expectIdent("import name")
		if err != nil {
			return nil, err
		}
		for _, prev := range m.Imports {
			if prev == imp {
				return nil, p.errorAt(p.prev(), "duplicate import %q", imp)
			}
		}
		m.Imports = append(m.Imports, imp)
	}

	for p.pos < len(p.toks) {
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, fn)
	}
	return m, nil
}

func (p *parser) parseFunc() (*FuncDecl, error) {
	fn := &FuncDecl{}

	switch {
	case p.atKeyword("extern"):
		fn.Extern = true
		fn.Line = p.toks[p.pos].Line
		p.pos++
		lib, err := p.expectString("extern library name")
		if err != nil {
			return nil, err
		}
		fn.LinkLib = unquote(lib)
		if fn.LinkLib == "" {
			return nil, p.errorAt(p.prev(), "extern library name must not be empty")
		}
	case p.atKeyword("pub"):
		fn.Public = true
		fn.Line = p.toks[p.pos].Line
		p.pos++
	}

	if !p.atKeyword("fn") {
		return nil, p.errorHere("expected function declaration")
	}
	if fn.Line == 0 {
		fn.Line = p.toks[p.pos].Line
	}
	p.pos++

	name, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	fn.Name = name

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	for !p.atPunct(")") {
		if len(fn.Params) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, param)
	}
	p.pos++ // ")"

	fn.Result = "Unit"
	if p.atPunct("->") {
		p.pos++
		typ, err := p.expectIdent("result type")
		if err != nil {
			return nil, err
		}
		fn.Result = typ
	}

	if fn.Extern {
		return fn, nil
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *parser) parseParam() (Param, error) {
	var param Param
	if p.atKeyword("own") {
		param.Own = true
		p.pos++
	}
	name, err := p.expectIdent("parameter name")
	if err != nil {
		return Param{}, err
	}
	param.Name = name
	if err := p.expectPunct(":"); err != nil {
		return Param{}, err
	}
	typ, err := p.expectIdent("parameter type")
	if err != nil {
		return Param{}, err
	}
	param.Type = typ
	return param, nil
}

// parseBlock consumes a balanced { ... } and returns the tokens between
// the outer braces.
func (p *parser) parseBlock() ([]Token, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	start := p.pos
	depth := 1
	for p.pos < len(p.toks) {
		switch {
		case p.atPunct("{"):
			depth++
		case p.atPunct("}"):
			depth--
			if depth == 0 {
				body := p.toks[start:p.pos]
				p.pos++
				return body, nil
			}
		}
		p.pos++
	}
	return nil, p.errorAt(p.toks[start-1], "unclosed function body")
}

func (p *parser) atKeyword(kw string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].Kind == TokKeyword && p.toks[p.pos].Text == kw
}

func (p *parser) atPunct(text string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].Kind == TokPunct && p.toks[p.pos].Text == text
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorHere("expected %q", kw)
	}
	p.pos++
	return nil
}

func (p *parser) expectPunct(text string) error {
	if !p.atPunct(text) {
		return p.errorHere("expected %q", text)
	}
	p.pos++
	return nil
}

func (p *parser) expectIdent(what string) (string, error) {
	if p.pos >= len(p.toks) || p.toks[p.pos].Kind != TokIdent {
		return "", p.errorHere("expected %s", what)
	}
	text := p.toks[p.pos].Text
	p.pos++
	return text, nil
}

func (p *parser) expectString(what string) (string, error) {
	if p.pos >= len(p.toks) || p.toks[p.pos].Kind != TokString {
		return "", p.errorHere("expected %s", what)
	}
	text := p.toks[p.pos].Text
	p.pos++
	return text, nil
}

func (p *parser) prev() Token {
	return p.toks[p.pos-1]
}

func (p *parser) errorHere(format string, args ...any) error {
	line := 0
	got := "end of file"
	if p.pos < len(p.toks) {
		line = p.toks[p.pos].Line
		got = fmt.Sprintf("%q", p.toks[p.pos].Text)
	} else if len(p.toks) > 0 {
		line = p.toks[len(p.toks)-1].Line
	}
	return &ParseError{Path: p.path, Line: line, Msg: fmt.Sprintf(format, args...) + ", got " + got}
}

func (p *parser) errorAt(tok Token, format string, args ...any) error {
	return &ParseError{Path: p.path, Line: tok.Line, Msg: fmt.Sprintf(format, args...)}
}

// unquote strips the surrounding quotes of a string literal token and
// resolves its escapes.
func unquote(lit string) string {
	if len(lit) < 2 {
		return ""
	}
	inner := lit[1 : len(lit)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		out = append(out, inner[i])
	}
	return string(out)
}
