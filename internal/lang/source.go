package lang

import (
	"fmt"
	"strings"
)

// SourceText is the preprocessed text of one unit, the root input of its
// pipeline.
type SourceText struct {
	Path string
	Text string
}

// PreprocessError reports a malformed conditional-compilation directive.
type PreprocessError struct {
	Path string
	Line int
	Msg  string
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Preprocess resolves `#when NAME` / `#end` conditional blocks against
// the build defines. Lines inside an unsatisfied block are replaced with
// blank lines so diagnostics keep their original line numbers. Blocks do
// not nest.
func Preprocess(path string, raw []byte, defines []string) (string, error) {
	names := make(map[string]bool, len(defines))
	for _, def := range defines {
		name, _, _ := strings.Cut(def, "=")
		names[name] = true
	}

	lines := strings.Split(string(raw), "\n")
	out := make([]string, 0, len(lines))
	keeping := true
	inBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#when"):
			if inBlock {
				return "", &PreprocessError{Path: path, Line: i + 1, Msg: "#when blocks do not nest"}
			}
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "#when"))
			if name == "" {
				return "", &PreprocessError{Path: path, Line: i + 1, Msg: "#when requires a define name"}
			}
			inBlock = true
			keeping = names[name]
			out = append(out, "")

		case trimmed == "#end":
			if !inBlock {
				return "", &PreprocessError{Path: path, Line: i + 1, Msg: "#end without matching #when"}
			}
			inBlock = false
			keeping = true
			out = append(out, "")

		case strings.HasPrefix(trimmed, "#"):
			return "", &PreprocessError{Path: path, Line: i + 1, Msg: fmt.Sprintf("unknown directive %q", trimmed)}

		case keeping:
			out = append(out, line)

		default:
			out = append(out, "")
		}
	}
	if inBlock {
		return "", &PreprocessError{Path: path, Line: len(lines), Msg: "unterminated #when block"}
	}
	return strings.Join(out, "\n"), nil
}
