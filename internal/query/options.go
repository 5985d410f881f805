package query

import (
	"fmt"

	"github.com/weftlang/weft/internal/fingerprint"
)

// Options carries every build option that can affect a stage's output,
// plus the external digests the engine measures on behalf of providers.
//
// Nothing may be read from ambient global state: if a setting can change a
// provider's result, it must be routed through here so the options digest
// (and therefore every query key) reflects it.
type Options struct {
	// Target is the target triple, e.g. "x86_64-unknown-linux-gnu".
	Target string

	// OptLevel is the optimization level, 0-3.
	OptLevel int

	// DebugInfo enables debug-info emission.
	DebugInfo bool

	// Coverage enables coverage instrumentation.
	Coverage bool

	// Defines are conditional-compilation defines, in declaration order.
	// Order is preserved when folding into fingerprints.
	Defines []string

	// SourceDir is the directory imports are resolved against. It shapes
	// unit identity (paths inside keys) rather than the options digest.
	SourceDir string

	// LibEnv is the digest of the external-library environment; it feeds
	// TypecheckModule's input fingerprint.
	LibEnv fingerprint.Fingerprint

	// ForceRebuild skips green checking entirely and treats every query as
	// red. The previous-session store is bypassed, never deleted.
	ForceRebuild bool
}

// Digest folds the output-affecting options into a single fingerprint.
// It is combined in a fixed order: target, optimization level, debug info,
// coverage, then each define in declaration order.
func (o Options) Digest() fingerprint.Fingerprint {
	fp := fingerprint.OfString("weft/options/v1")
	fp = fingerprint.Combine(fp, fingerprint.OfString(o.Target))
	fp = fingerprint.Combine(fp, fingerprint.OfString(fmt.Sprintf("O%d", o.OptLevel)))
	fp = fingerprint.Combine(fp, fingerprint.OfString(fmt.Sprintf("g%t", o.DebugInfo)))
	fp = fingerprint.Combine(fp, fingerprint.OfString(fmt.Sprintf("cov%t", o.Coverage)))
	for _, def := range o.Defines {
		fp = fingerprint.Combine(fp, fingerprint.OfString(def))
	}
	return fp
}

// codegenDigest folds the subset of options that feed CodegenUnit's input
// fingerprint directly (target, optimization level, coverage). Precomputed
// once per context so codegen queries do not re-hash options.
func (o Options) codegenDigest() fingerprint.Fingerprint {
	fp := fingerprint.OfString("weft/codegen-options/v1")
	fp = fingerprint.Combine(fp, fingerprint.OfString(o.Target))
	fp = fingerprint.Combine(fp, fingerprint.OfString(fmt.Sprintf("O%d", o.OptLevel)))
	fp = fingerprint.Combine(fp, fingerprint.OfString(fmt.Sprintf("cov%t", o.Coverage)))
	return fp
}
