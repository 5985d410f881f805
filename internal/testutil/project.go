// Package testutil provides shared helpers for tests that need an
// on-disk weft project.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/weftlang/weft/internal/build"
)

// Project is a temporary on-disk project tree for end-to-end tests.
type Project struct {
	Root   string
	Config *build.Config
}

// NewProject creates a project under t.TempDir() with the given sources,
// keyed by module name. The returned configuration builds every module
// as a root unit, in sorted module order.
func NewProject(t *testing.T, sources map[string]string) *Project {
	t.Helper()

	root := t.TempDir()
	p := &Project{
		Root: root,
		Config: &build.Config{
			Target:    "x86_64-unknown-linux-gnu",
			SourceDir: filepath.Join(root, "src"),
			BuildDir:  filepath.Join(root, ".weft"),
		},
	}
	require.NoError(t, os.MkdirAll(p.Config.SourceDir, 0o755))
	for module, src := range sources {
		p.WriteSource(t, module, src)
		p.Config.Units = append(p.Config.Units, module)
	}
	sort.Strings(p.Config.Units)
	return p
}

// WriteSource writes (or rewrites) one module's source file.
func (p *Project) WriteSource(t *testing.T, module, src string) {
	t.Helper()
	path := filepath.Join(p.Config.SourceDir, module+".weft")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

// SourcePath returns the path of a module's source file.
func (p *Project) SourcePath(module string) string {
	return filepath.Join(p.Config.SourceDir, module+".weft")
}

// WriteManifest persists the project configuration as a weft.yaml in the
// project root and returns its path, for tests that exercise the CLI.
func (p *Project) WriteManifest(t *testing.T) string {
	t.Helper()
	data, err := yaml.Marshal(map[string]any{
		"target":     p.Config.Target,
		"opt_level":  p.Config.OptLevel,
		"source_dir": "src",
		"build_dir":  ".weft",
		"units":      p.Config.Units,
	})
	require.NoError(t, err)
	path := filepath.Join(p.Root, "weft.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
