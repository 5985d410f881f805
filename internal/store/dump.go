package store

import (
	"github.com/weftlang/weft/internal/canon"
	"github.com/weftlang/weft/internal/query"
)

// DumpCanonical renders the table as canonical JSON for inspection and for
// golden-file comparison. Entries appear in key order; the encoding is
// byte-stable for a given table.
func (t *Table) DumpCanonical() ([]byte, error) {
	entries := t.Sorted()
	entryList := make([]any, 0, len(entries))
	for _, e := range entries {
		entryList = append(entryList, entryMap(e))
	}

	return canon.Marshal(map[string]any{
		"version":         "1.0",
		"session_time_ms": t.SessionTime,
		"options":         t.Options.Hex(),
		"build":           t.Build.Hex(),
		"entries":         entryList,
	})
}

func entryMap(e query.Entry) map[string]any {
	deps := make([]any, 0, len(e.Deps))
	for _, dep := range e.Deps {
		deps = append(deps, keyMap(dep))
	}
	m := map[string]any{
		"key":       keyMap(e.Key),
		"input_fp":  e.InputFP.Hex(),
		"output_fp": e.OutputFP.Hex(),
		"deps":      deps,
	}
	if !e.Artifact.IsZero() {
		m["artifact"] = map[string]any{
			"kind": e.Artifact.Kind,
			"fp":   e.Artifact.FP.Hex(),
		}
	}
	return m
}

func keyMap(k query.Key) map[string]any {
	return map[string]any{
		"stage":  k.Stage.String(),
		"path":   k.Unit.Path,
		"module": k.Unit.Module,
	}
}
