package lang

import (
	"fmt"
	"sort"
	"strings"
)

// CodegenResult is the per-unit backend output: the emitted textual IR
// and the sorted set of libraries the unit links against.
type CodegenResult struct {
	IR       []byte
	LinkLibs []string
}

// CodegenOptions is the subset of build options the backend observes.
type CodegenOptions struct {
	Target    string
	OptLevel  int
	DebugInfo bool
	Coverage  bool
}

// Codegen emits the unit's textual IR from its MIR. Emission is fully
// deterministic: functions in declaration order, link libraries sorted
// and deduplicated.
func Codegen(m *MirModule, opts CodegenOptions) *CodegenResult {
	var b strings.Builder
	fmt.Fprintf(&b, "; weft unit %s\n", m.Module)
	fmt.Fprintf(&b, "; target %s opt %d\n", opts.Target, opts.OptLevel)
	if opts.DebugInfo {
		fmt.Fprintf(&b, "; debug-info\n")
	}

	libs := make(map[string]bool)
	for _, ext := range m.Externs {
		fmt.Fprintf(&b, "declare @%s(%s) -> %s ; lib %s\n",
			ext.Name, paramList(ext.Params), ext.Result, ext.Lib)
		libs[ext.Lib] = true
	}

	for _, fn := range m.Funcs {
		fmt.Fprintf(&b, "\ndefine @%s(%s) -> %s {\nentry:\n", fn.Name, paramList(fn.Params), fn.Result)
		if opts.Coverage {
			fmt.Fprintf(&b, "  call @cov.hit(%q)\n", m.Module+":"+fn.Name)
		}
		for _, instr := range fn.Instrs {
			fmt.Fprintf(&b, "  %s\n", instr)
		}
		b.WriteString("}\n")
	}

	linkLibs := make([]string, 0, len(libs))
	for lib := range libs {
		linkLibs = append(linkLibs, lib)
	}
	sort.Strings(linkLibs)

	return &CodegenResult{IR: []byte(b.String()), LinkLibs: linkLibs}
}

// EncodeLibs renders the link-library list for artifact storage, one
// library per line.
func EncodeLibs(libs []string) []byte {
	return []byte(strings.Join(libs, "\n"))
}

// DecodeLibs parses the artifact form produced by EncodeLibs.
func DecodeLibs(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}

func paramList(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		prefix := ""
		if p.Own {
			prefix = "own "
		}
		parts[i] = fmt.Sprintf("%s%s: %s", prefix, p.Name, p.Type)
	}
	return strings.Join(parts, ", ")
}
