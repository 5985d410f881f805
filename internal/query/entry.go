package query

import "github.com/weftlang/weft/internal/fingerprint"

// ArtifactRef is a lookup key into the content-addressed artifact cache,
// not the content itself. The zero value means "no artifact".
type ArtifactRef struct {
	// Kind selects the artifact subdirectory ("ir", "libs").
	Kind string

	// FP is the content fingerprint the artifact is addressed by.
	FP fingerprint.Fingerprint
}

// IsZero reports whether the ref points at nothing.
func (r ArtifactRef) IsZero() bool {
	return r.Kind == "" && r.FP.IsZero()
}

// Entry is the record produced by executing (or reusing) one query.
//
// InputFP is computed before the provider runs, from the query's declared
// inputs: the current source bytes for ReadSource, or the output
// fingerprints of its dependencies plus any external digests (library
// environment, codegen options) for every other stage.
//
// OutputFP is computed from the provider's result. Deterministic-passthrough
// stages (Tokenize, ParseModule, BorrowcheckModule, HirLower, MirBuild)
// reuse InputFP as OutputFP: their output is fully determined by their
// input, so they provably do not alter the digest space. ReadSource,
// TypecheckModule, and CodegenUnit recompute OutputFP from content.
//
// Deps is the dependency list in order of first observation. Order matters:
// invalidation checks short-circuit in that order.
type Entry struct {
	Key      Key
	InputFP  fingerprint.Fingerprint
	OutputFP fingerprint.Fingerprint
	Deps     []Key
	Artifact ArtifactRef
}

// Color is the derived per-session verdict on whether a cached result may
// be reused. Never persisted; lives only in the session color map.
type Color uint8

const (
	// ColorUnknown means the green checker has not yet visited the key.
	ColorUnknown Color = iota

	// ColorGreen means the cached result is safe to reuse verbatim.
	ColorGreen

	// ColorRed means the query must be recomputed.
	ColorRed
)

// Previous is the read-only view of the prior session's table consulted by
// the green checker. Implementations must not mutate during a session.
type Previous interface {
	// Lookup returns the prior session's entry for key, if any.
	Lookup(key Key) (Entry, bool)
}

// Artifacts is the content-addressed side store for large provider outputs.
//
// Store must be idempotent: storing identical bytes under the same
// fingerprint twice is a no-op, and concurrent stores of the same
// fingerprint race harmlessly to the same content. Load must fail (with an
// error, not a panic) when the referenced artifact has been externally
// deleted; the engine degrades such queries to red.
type Artifacts interface {
	Store(kind string, fp fingerprint.Fingerprint, data []byte) (ArtifactRef, error)
	Load(ref ArtifactRef) ([]byte, error)
}
