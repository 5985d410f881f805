package build

import "github.com/weftlang/weft/internal/fingerprint"

// Version is the toolchain version. Overridable at link time.
var Version = "0.3.0"

// BuildDigest identifies the toolchain build that writes a session table.
// A table written by a different build is never trusted: fingerprint
// rules may have changed between versions, so the whole table reads as
// empty rather than risking stale reuse.
func BuildDigest() fingerprint.Fingerprint {
	return fingerprint.OfString("weft-toolchain " + Version)
}
