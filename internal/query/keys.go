package query

import (
	"fmt"
	"strings"

	"github.com/weftlang/weft/internal/fingerprint"
)

// Stage identifies one of the eight pipeline stages.
//
// The set is closed: the dependency shape between stages is fixed and
// exhaustively known, so stages are a tagged enum rather than open
// dispatch. Values are part of the on-disk cache format and must never be
// reordered.
type Stage uint8

const (
	StageReadSource Stage = iota
	StageTokenize
	StageParseModule
	StageTypecheckModule
	StageBorrowcheckModule
	StageHirLower
	StageMirBuild
	StageCodegenUnit

	// NumStages bounds the enum; also the size of the provider registry.
	NumStages
)

var stageNames = [NumStages]string{
	"read_source",
	"tokenize",
	"parse_module",
	"typecheck_module",
	"borrowcheck_module",
	"hir_lower",
	"mir_build",
	"codegen_unit",
}

// String returns the stable textual name of the stage.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
	return stageNames[s]
}

// Valid reports whether s is one of the eight known stages.
func (s Stage) Valid() bool {
	return s < NumStages
}

// UnitID names the file/module a query concerns.
type UnitID struct {
	// Path is the source file path, as given to the build.
	Path string

	// Module is the module name declared by (or expected of) the file.
	Module string
}

// Key is the discriminated identity of a single memoizable unit of
// compilation work: (stage, unit, options digest).
//
// Two queries with equal keys are the same query. Keys are immutable once
// constructed, comparable (usable as map keys), and totally ordered via
// Compare. The options digest folds in every build option that affects
// stage output (target, optimization level, debug info, defines, coverage),
// so a change of build profile changes every key.
type Key struct {
	Stage   Stage
	Unit    UnitID
	Options fingerprint.Fingerprint
}

// Compare returns -1, 0, or 1 giving keys a total order:
// stage, then unit path, then module, then options digest.
func (k Key) Compare(other Key) int {
	if k.Stage != other.Stage {
		if k.Stage < other.Stage {
			return -1
		}
		return 1
	}
	if c := strings.Compare(k.Unit.Path, other.Unit.Path); c != 0 {
		return c
	}
	if c := strings.Compare(k.Unit.Module, other.Unit.Module); c != 0 {
		return c
	}
	return k.Options.Compare(other.Options)
}

// String renders the key for logs and cycle traces.
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Stage, k.Unit.Module)
}
