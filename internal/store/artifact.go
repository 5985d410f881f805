package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/weftlang/weft/internal/fingerprint"
	"github.com/weftlang/weft/internal/query"
)

// ErrArtifactMissing marks a Load whose referenced artifact was externally
// deleted. The engine degrades such queries to red; it is never fatal.
var ErrArtifactMissing = errors.New("artifact missing from cache")

// ArtifactCache is the content-addressed side store for large provider
// outputs, notably the textual intermediate representation of a
// compilation unit and its link-dependency list.
//
// Artifacts are files named by their fingerprint's hex form, one
// subdirectory per artifact kind. They are immutable once written — a new
// fingerprint means a new file, never an overwrite — and they outlive
// sessions until Clear is called explicitly. Stale artifacts unreferenced
// by the latest session table are permitted to accumulate; reclamation is
// out-of-band, never part of a build.
type ArtifactCache struct {
	root string
}

// NewArtifactCache creates a cache rooted at dir.
func NewArtifactCache(dir string) *ArtifactCache {
	return &ArtifactCache{root: dir}
}

// Store writes data under (kind, fp) and returns its handle.
//
// Idempotent: if the artifact already exists the call is a no-op, and
// concurrent stores of the same fingerprint race harmlessly to the same
// content (each writer lands a unique temp file and renames; rename is
// atomic, and all writers carry identical bytes by construction).
func (c *ArtifactCache) Store(kind string, fp fingerprint.Fingerprint, data []byte) (query.ArtifactRef, error) {
	ref := query.ArtifactRef{Kind: kind, FP: fp}
	final := c.path(ref)

	if _, err := os.Stat(final); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return query.ArtifactRef{}, fmt.Errorf("create artifact directory: %w", err)
	}
	tmp := final + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return query.ArtifactRef{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return query.ArtifactRef{}, fmt.Errorf("publish artifact: %w", err)
	}
	return ref, nil
}

// Load reads the artifact bytes for ref. Returns ErrArtifactMissing when
// the file has been externally deleted.
func (c *ArtifactCache) Load(ref query.ArtifactRef) ([]byte, error) {
	data, err := os.ReadFile(c.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", ref.Kind, ref.FP.Hex(), ErrArtifactMissing)
		}
		return nil, fmt.Errorf("read artifact %s/%s: %w", ref.Kind, ref.FP.Hex(), err)
	}
	return data, nil
}

// Clear removes every stored artifact. This is the only sanctioned
// reclamation path, invoked explicitly by the user, never during a build.
func (c *ArtifactCache) Clear() error {
	if err := os.RemoveAll(c.root); err != nil {
		return fmt.Errorf("clear artifact cache: %w", err)
	}
	return nil
}

func (c *ArtifactCache) path(ref query.ArtifactRef) string {
	return filepath.Join(c.root, ref.Kind, ref.FP.Hex())
}
