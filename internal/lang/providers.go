package lang

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/weftlang/weft/internal/fingerprint"
	"github.com/weftlang/weft/internal/query"
)

// Artifact kinds produced by the codegen provider. Both are stored under
// the IR fingerprint so a unit's outputs travel together.
const (
	ArtifactIR   = "ir"
	ArtifactLibs = "libs"
)

// UnitFor resolves a module name to its unit identity under srcDir. One
// module is one file: srcDir/<module>.weft.
func UnitFor(srcDir, module string) query.UnitID {
	return query.UnitID{Path: filepath.Join(srcDir, module+".weft"), Module: module}
}

// RegisterProviders installs the eight stage providers and the codegen
// rehydrator. Called once before the first session.
func RegisterProviders(reg *query.Registry) {
	reg.Register(query.StageReadSource, readSourceProvider)
	reg.Register(query.StageTokenize, tokenizeProvider)
	reg.Register(query.StageParseModule, parseProvider)
	reg.Register(query.StageTypecheckModule, typecheckProvider)
	reg.Register(query.StageBorrowcheckModule, borrowcheckProvider)
	reg.Register(query.StageHirLower, hirLowerProvider)
	reg.Register(query.StageMirBuild, mirBuildProvider)
	reg.Register(query.StageCodegenUnit, codegenProvider)
	reg.RegisterRehydrator(query.StageCodegenUnit, codegenRehydrate)
}

// readSourceProvider is the pipeline leaf: read the file, resolve
// conditional compilation against the defines. Its output fingerprint
// digests the preprocessed text, so an edit inside an unsatisfied #when
// block invalidates nothing downstream.
func readSourceProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	raw, err := os.ReadFile(key.Unit.Path)
	if err != nil {
		return query.Outcome{}, fmt.Errorf("read source %s: %w", key.Unit.Path, err)
	}
	text, err := Preprocess(key.Unit.Path, raw, rn.Context().Options().Defines)
	if err != nil {
		return query.Outcome{}, err
	}
	src := &SourceText{Path: key.Unit.Path, Text: text}
	return query.Outcome{Value: src, OutputFP: fingerprint.OfString(text)}, nil
}

func tokenizeProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	src, err := ForceSource(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}
	toks, err := Lex(src.Path, src.Text)
	if err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: toks}, nil
}

func parseProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	toks, err := ForceTokens(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}
	m, err := Parse(key.Unit.Path, toks)
	if err != nil {
		return query.Outcome{}, err
	}
	if m.Name != key.Unit.Module {
		return query.Outcome{}, &ParseError{Path: key.Unit.Path, Line: 1,
			Msg: fmt.Sprintf("file declares module %q, expected %q", m.Name, key.Unit.Module)}
	}
	return query.Outcome{Value: m}, nil
}

// typecheckProvider forces the typecheck of every imported module, in
// declaration order, then checks this unit against the imported
// interfaces. Its output fingerprint covers interfaces only, so a
// body-only edit upstream stops propagating here.
func typecheckProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	m, err := ForceParse(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}

	srcDir := rn.Context().Options().SourceDir
	imports := make(map[string]Interface, len(m.Imports))
	for _, imp := range m.Imports {
		env, err := ForceTypecheck(rn, UnitFor(srcDir, imp))
		if err != nil {
			return query.Outcome{}, err
		}
		imports[imp] = env.Exports
	}

	env, err := Typecheck(key.Unit.Path, m, imports)
	if err != nil {
		return query.Outcome{}, err
	}
	fp, err := env.Fingerprint()
	if err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: env, OutputFP: fp}, nil
}

// borrowcheckProvider reads function bodies, so it depends on the parse
// as well as the typecheck: the typecheck output fingerprint covers
// interfaces only and would let a body edit slip past.
func borrowcheckProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	if _, err := ForceParse(rn, key.Unit); err != nil {
		return query.Outcome{}, err
	}
	env, err := ForceTypecheck(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}
	if err := Borrowcheck(key.Unit.Path, env.Module); err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: env.Module}, nil
}

// hirLowerProvider lowers bodies and has the same body-sensitivity as the
// borrow check, hence the same parse dependency.
func hirLowerProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	if _, err := ForceParse(rn, key.Unit); err != nil {
		return query.Outcome{}, err
	}
	env, err := ForceTypecheck(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}
	h, err := HirLower(key.Unit.Path, env)
	if err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: h}, nil
}

// mirBuildProvider narrows the lowered program to MIR. The typecheck is
// a declared input in its own right, not only through the lowering, so
// it is forced here and lands in the recorded dependency list.
func mirBuildProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	h, err := ForceHir(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}
	if _, err := ForceTypecheck(rn, key.Unit); err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: MirBuild(h, rn.Context().Options().OptLevel)}, nil
}

// codegenProvider gates on the borrow check, then emits IR from the MIR
// and stores it (plus the link-library list) in the artifact cache. The
// output fingerprint digests the emitted IR itself.
func codegenProvider(rn *query.Run, key query.Key) (query.Outcome, error) {
	if _, err := ForceBorrowcheck(rn, key.Unit); err != nil {
		return query.Outcome{}, err
	}
	m, err := ForceMir(rn, key.Unit)
	if err != nil {
		return query.Outcome{}, err
	}

	opts := rn.Context().Options()
	result := Codegen(m, CodegenOptions{
		Target:    opts.Target,
		OptLevel:  opts.OptLevel,
		DebugInfo: opts.DebugInfo,
		Coverage:  opts.Coverage,
	})

	fp := fingerprint.OfBytes(result.IR)
	ref, err := rn.Artifacts().Store(ArtifactIR, fp, result.IR)
	if err != nil {
		return query.Outcome{}, err
	}
	if _, err := rn.Artifacts().Store(ArtifactLibs, fp, EncodeLibs(result.LinkLibs)); err != nil {
		return query.Outcome{}, err
	}
	return query.Outcome{Value: result, OutputFP: fp, Artifact: ref}, nil
}

// codegenRehydrate reloads a green unit's emitted IR and link libraries
// from the artifact cache. A missing artifact is returned as an error;
// the engine degrades the query to red and re-emits.
func codegenRehydrate(rn *query.Run, prev query.Entry) (any, error) {
	ir, err := rn.Artifacts().Load(prev.Artifact)
	if err != nil {
		return nil, err
	}
	libs, err := rn.Artifacts().Load(query.ArtifactRef{Kind: ArtifactLibs, FP: prev.Artifact.FP})
	if err != nil {
		return nil, err
	}
	return &CodegenResult{IR: ir, LinkLibs: DecodeLibs(libs)}, nil
}

// Typed force helpers. Providers and the build loop go through these so
// key construction and result casts live in one place.

// ForceSource forces ReadSource for a unit.
func ForceSource(rn *query.Run, unit query.UnitID) (*SourceText, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageReadSource, unit))
	if err != nil {
		return nil, err
	}
	return v.(*SourceText), nil
}

// ForceTokens forces Tokenize for a unit.
func ForceTokens(rn *query.Run, unit query.UnitID) ([]Token, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageTokenize, unit))
	if err != nil {
		return nil, err
	}
	return v.([]Token), nil
}

// ForceParse forces ParseModule for a unit.
func ForceParse(rn *query.Run, unit query.UnitID) (*Module, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageParseModule, unit))
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

// ForceTypecheck forces TypecheckModule for a unit.
func ForceTypecheck(rn *query.Run, unit query.UnitID) (*Env, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageTypecheckModule, unit))
	if err != nil {
		return nil, err
	}
	return v.(*Env), nil
}

// ForceBorrowcheck forces BorrowcheckModule for a unit.
func ForceBorrowcheck(rn *query.Run, unit query.UnitID) (*Module, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageBorrowcheckModule, unit))
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

// ForceHir forces HirLower for a unit.
func ForceHir(rn *query.Run, unit query.UnitID) (*HirModule, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageHirLower, unit))
	if err != nil {
		return nil, err
	}
	return v.(*HirModule), nil
}

// ForceMir forces MirBuild for a unit.
func ForceMir(rn *query.Run, unit query.UnitID) (*MirModule, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageMirBuild, unit))
	if err != nil {
		return nil, err
	}
	return v.(*MirModule), nil
}

// ForceCodegen forces CodegenUnit for a unit.
func ForceCodegen(rn *query.Run, unit query.UnitID) (*CodegenResult, error) {
	v, err := rn.Force(rn.Context().KeyFor(query.StageCodegenUnit, unit))
	if err != nil {
		return nil, err
	}
	return v.(*CodegenResult), nil
}
