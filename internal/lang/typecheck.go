package lang

import (
	"fmt"
	"sort"

	"github.com/weftlang/weft/internal/canon"
	"github.com/weftlang/weft/internal/fingerprint"
)

// FuncSig is the externally visible signature of one function.
type FuncSig struct {
	Name   string
	Params []string
	Result string
}

// Interface is the exported surface of a typechecked module: its public
// function signatures, sorted by name. It is what dependents are allowed
// to observe, and therefore exactly what the typecheck output fingerprint
// covers.
type Interface struct {
	Module string
	Funcs  []FuncSig
}

// Env is the result of typechecking one unit: the checked syntax tree,
// the unit's own exported interface, and the interfaces of everything it
// imports.
type Env struct {
	Module  *Module
	Exports Interface
	Imports map[string]Interface
}

// TypeError reports a semantic error with its source position.
type TypeError struct {
	Path string
	Line int
	Msg  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Typecheck validates a module against its imported interfaces and builds
// its environment. imports must hold an entry per declared import.
func Typecheck(path string, m *Module, imports map[string]Interface) (*Env, error) {
	seen := make(map[string]*FuncDecl, len(m.Funcs))
	for _, fn := range m.Funcs {
		if prev, dup := seen[fn.Name]; dup {
			return nil, &TypeError{Path: path, Line: fn.Line,
				Msg: fmt.Sprintf("function %q redeclared (first declared on line %d)", fn.Name, prev.Line)}
		}
		seen[fn.Name] = fn

		params := make(map[string]bool, len(fn.Params))
		for _, param := range fn.Params {
			if params[param.Name] {
				return nil, &TypeError{Path: path, Line: fn.Line,
					Msg: fmt.Sprintf("parameter %q redeclared in function %q", param.Name, fn.Name)}
			}
			params[param.Name] = true
			if !builtinTypes[param.Type] {
				return nil, &TypeError{Path: path, Line: fn.Line,
					Msg: fmt.Sprintf("unknown type %q for parameter %q", param.Type, param.Name)}
			}
			if param.Own && param.Type != "Buffer" {
				return nil, &TypeError{Path: path, Line: fn.Line,
					Msg: fmt.Sprintf("own parameter %q must have type Buffer, has %q", param.Name, param.Type)}
			}
		}
		if !builtinTypes[fn.Result] {
			return nil, &TypeError{Path: path, Line: fn.Line,
				Msg: fmt.Sprintf("unknown result type %q for function %q", fn.Result, fn.Name)}
		}
	}

	env := &Env{Module: m, Exports: exportedInterface(m), Imports: imports}
	if err := checkCalls(path, m, imports); err != nil {
		return nil, err
	}
	return env, nil
}

// checkCalls validates qualified calls (mod.fn) against imported
// interfaces. Unqualified calls are left to codegen-time resolution.
func checkCalls(path string, m *Module, imports map[string]Interface) error {
	for _, fn := range m.Funcs {
		body := fn.Body
		for i := 0; i+3 < len(body); i++ {
			if body[i].Kind != TokIdent || body[i+1].Text != "." ||
				body[i+2].Kind != TokIdent || body[i+3].Text != "(" {
				continue
			}
			mod, callee := body[i].Text, body[i+2].Text
			iface, ok := imports[mod]
			if !ok {
				if _, isParam := paramNamed(fn, mod); isParam {
					continue // field-style access on a parameter, not a module call
				}
				return &TypeError{Path: path, Line: body[i].Line,
					Msg: fmt.Sprintf("call to %s.%s but %q is not imported", mod, callee, mod)}
			}
			if !iface.has(callee) {
				return &TypeError{Path: path, Line: body[i].Line,
					Msg: fmt.Sprintf("module %q has no public function %q", mod, callee)}
			}
		}
	}
	return nil
}

func paramNamed(fn *FuncDecl, name string) (Param, bool) {
	for _, p := range fn.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (i Interface) has(name string) bool {
	for _, fn := range i.Funcs {
		if fn.Name == name {
			return true
		}
	}
	return false
}

// exportedInterface extracts the module's public signatures, sorted by
// function name so the interface encoding is declaration-order independent.
func exportedInterface(m *Module) Interface {
	iface := Interface{Module: m.Name}
	for _, fn := range m.Funcs {
		if !fn.Public {
			continue
		}
		params := make([]string, len(fn.Params))
		for j, p := range fn.Params {
			params[j] = p.Type
			if p.Own {
				params[j] = "own " + p.Type
			}
		}
		iface.Funcs = append(iface.Funcs, FuncSig{Name: fn.Name, Params: params, Result: fn.Result})
	}
	sort.Slice(iface.Funcs, func(a, b int) bool {
		return iface.Funcs[a].Name < iface.Funcs[b].Name
	})
	return iface
}

// Fingerprint digests the environment's observable surface: the unit's
// exported interface plus every imported interface, canonically encoded.
// Function bodies are excluded, so a body-only edit keeps this fingerprint
// stable while a signature change moves it.
func (e *Env) Fingerprint() (fingerprint.Fingerprint, error) {
	importNames := make([]string, 0, len(e.Imports))
	for name := range e.Imports {
		importNames = append(importNames, name)
	}
	sort.Strings(importNames)

	imports := make(map[string]any, len(e.Imports))
	for _, name := range importNames {
		imports[name] = interfaceMap(e.Imports[name])
	}

	encoded, err := canon.Marshal(map[string]any{
		"module":  e.Module.Name,
		"exports": interfaceMap(e.Exports),
		"imports": imports,
	})
	if err != nil {
		return fingerprint.Fingerprint{}, fmt.Errorf("encode module interface: %w", err)
	}
	return fingerprint.OfBytes(encoded), nil
}

func interfaceMap(i Interface) map[string]any {
	funcs := make([]any, 0, len(i.Funcs))
	for _, fn := range i.Funcs {
		params := make([]any, len(fn.Params))
		for j, p := range fn.Params {
			params[j] = p
		}
		funcs = append(funcs, map[string]any{
			"name":   fn.Name,
			"params": params,
			"result": fn.Result,
		})
	}
	return map[string]any{"module": i.Module, "funcs": funcs}
}
