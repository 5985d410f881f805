package query

import "github.com/weftlang/weft/internal/fingerprint"

// Outcome is a provider's successful result.
type Outcome struct {
	// Value is the stage's in-memory result, handed to dependent providers.
	Value any

	// OutputFP is the fingerprint of the produced content. Leave zero for
	// deterministic-passthrough stages; the engine then reuses the input
	// fingerprint as the output fingerprint.
	OutputFP fingerprint.Fingerprint

	// Artifact references content the provider placed in the artifact
	// cache, if the output is too large to live in the session table.
	Artifact ArtifactRef
}

// Provider is a pure, deterministic query function for one stage.
//
// A provider's declared inputs are exactly the set the engine fingerprints:
// the results it obtains by forcing other queries through rn, plus the
// external inputs routed through the build options. It must not read
// anything else. Domain failures (parse errors, type errors, unreadable
// source) are returned as ordinary errors; the engine tags them with the
// failing key and caches them for the session.
type Provider func(rn *Run, key Key) (Outcome, error)

// Rehydrator reconstructs a green query's value from the previous session's
// entry, typically by loading its artifact. Stages without a rehydrator
// re-run their provider to materialize the value when a dependent demands
// it; the proven-unchanged fingerprints and dependency list are still
// copied, not re-derived.
type Rehydrator func(rn *Run, prev Entry) (any, error)

// Registry maps the closed set of stages to their providers. Registration
// happens once, before the first session; the registry is read-only
// afterwards.
type Registry struct {
	providers   [NumStages]Provider
	rehydrators [NumStages]Rehydrator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs the provider for a stage, replacing any prior one.
func (r *Registry) Register(stage Stage, p Provider) {
	r.providers[stage] = p
}

// RegisterRehydrator installs the green-reuse loader for a stage.
func (r *Registry) RegisterRehydrator(stage Stage, h Rehydrator) {
	r.rehydrators[stage] = h
}

func (r *Registry) provider(stage Stage) Provider {
	if !stage.Valid() {
		return nil
	}
	return r.providers[stage]
}

func (r *Registry) rehydrator(stage Stage) Rehydrator {
	if !stage.Valid() {
		return nil
	}
	return r.rehydrators[stage]
}
