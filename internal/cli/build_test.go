package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/testutil"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	project := testutil.NewProject(t, map[string]string{
		"main": "module main\npub fn run() -> Int {\n\treturn 0;\n}\n",
	})
	manifest := project.WriteManifest(t)

	out, err := runCommand(t, "build", "--config", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ main")
	assert.Contains(t, out, "executed")
}

func TestBuildCommandIncrementalSecondRun(t *testing.T) {
	project := testutil.NewProject(t, map[string]string{
		"main": "module main\npub fn run() -> Int {\n\treturn 0;\n}\n",
	})
	manifest := project.WriteManifest(t)

	_, err := runCommand(t, "build", "--config", manifest)
	require.NoError(t, err)

	out, err := runCommand(t, "build", "--config", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "0 executed")
}

func TestBuildCommandReportsFailures(t *testing.T) {
	project := testutil.NewProject(t, map[string]string{
		"main": "module main\nfn broken( {\n}\n",
	})
	manifest := project.WriteManifest(t)

	out, err := runCommand(t, "build", "--config", manifest)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ main")
}

func TestBuildCommandMissingConfig(t *testing.T) {
	_, err := runCommand(t, "build", "--config", "/nonexistent/weft.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCacheDumpCommand(t *testing.T) {
	project := testutil.NewProject(t, map[string]string{
		"main": "module main\npub fn run() -> Int {\n\treturn 0;\n}\n",
	})
	manifest := project.WriteManifest(t)

	_, err := runCommand(t, "build", "--config", manifest)
	require.NoError(t, err)

	out, err := runCommand(t, "cache", "dump", "--config", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, `"version":"1.0"`)
	assert.Contains(t, out, `"stage":"codegen_unit"`)
	assert.Contains(t, out, "main.weft")
}

func TestCacheClearCommand(t *testing.T) {
	project := testutil.NewProject(t, map[string]string{
		"main": "module main\npub fn run() -> Int {\n\treturn 0;\n}\n",
	})
	manifest := project.WriteManifest(t)

	_, err := runCommand(t, "build", "--config", manifest)
	require.NoError(t, err)

	out, err := runCommand(t, "cache", "clear", "--config", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")

	// Cleared cache means a cold dump: an empty table.
	out, err = runCommand(t, "cache", "dump", "--config", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, `"entries":[]`)
}
