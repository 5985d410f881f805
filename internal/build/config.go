package build

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/weftlang/weft/internal/query"
)

// DefaultConfigFile is the project manifest name looked up when no
// explicit --config path is given.
const DefaultConfigFile = "weft.yaml"

// Config is the project manifest: which units to build and under which
// options. Loaded once per invocation; watch mode reloads it per batch so
// manifest edits take effect without a restart.
type Config struct {
	// Target is the target triple code generation emits for.
	Target string `yaml:"target"`

	// OptLevel is the optimization level, 0-3.
	OptLevel int `yaml:"opt_level"`

	// DebugInfo enables debug-info emission.
	DebugInfo bool `yaml:"debug"`

	// Coverage enables coverage instrumentation.
	Coverage bool `yaml:"coverage"`

	// Defines are conditional-compilation defines, NAME or NAME=value.
	Defines []string `yaml:"defines"`

	// SourceDir holds the unit sources; imports resolve against it.
	SourceDir string `yaml:"source_dir"`

	// BuildDir holds the session cache and the artifact store.
	BuildDir string `yaml:"build_dir"`

	// LibDir holds external library metadata (*.meta); its digest feeds
	// typechecking. Optional.
	LibDir string `yaml:"lib_dir"`

	// Units are the root modules to build, by module name.
	Units []string `yaml:"units"`
}

// LoadConfig reads and validates a manifest. Relative source, build, and
// lib directories are resolved against the manifest's own directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	base := filepath.Dir(path)
	cfg.SourceDir = resolveDir(base, cfg.SourceDir)
	cfg.BuildDir = resolveDir(base, cfg.BuildDir)
	if cfg.LibDir != "" {
		cfg.LibDir = resolveDir(base, cfg.LibDir)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Target == "" {
		c.Target = "x86_64-unknown-linux-gnu"
	}
	if c.SourceDir == "" {
		c.SourceDir = "src"
	}
	if c.BuildDir == "" {
		c.BuildDir = ".weft"
	}
}

func (c *Config) validate() error {
	if len(c.Units) == 0 {
		return fmt.Errorf("no units declared")
	}
	if c.OptLevel < 0 || c.OptLevel > 3 {
		return fmt.Errorf("opt_level %d out of range 0-3", c.OptLevel)
	}
	seen := make(map[string]bool, len(c.Units))
	for _, unit := range c.Units {
		if unit == "" {
			return fmt.Errorf("empty unit name")
		}
		if seen[unit] {
			return fmt.Errorf("unit %q declared twice", unit)
		}
		seen[unit] = true
	}
	return nil
}

// BuildOptions assembles the engine options for this configuration,
// measuring the library environment as part of assembly.
func (c *Config) BuildOptions(force bool) (query.Options, error) {
	libEnv, err := LibraryEnvDigest(c.LibDir)
	if err != nil {
		return query.Options{}, err
	}
	return query.Options{
		Target:       c.Target,
		OptLevel:     c.OptLevel,
		DebugInfo:    c.DebugInfo,
		Coverage:     c.Coverage,
		Defines:      c.Defines,
		SourceDir:    c.SourceDir,
		LibEnv:       libEnv,
		ForceRebuild: force,
	}, nil
}

// CachePath returns the session-table file for this configuration's
// build profile. One file per options digest: switching profiles never
// clobbers another profile's table.
func (c *Config) CachePath(optionsHex string) string {
	return filepath.Join(c.BuildDir, "cache", optionsHex+".wftc")
}

// ArtifactDir returns the content-addressed artifact root, shared across
// build profiles (artifacts are keyed by content, not options).
func (c *Config) ArtifactDir() string {
	return filepath.Join(c.BuildDir, "artifacts")
}

func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
