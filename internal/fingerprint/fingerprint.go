// Package fingerprint provides the 128-bit content digest used throughout
// the incremental query engine to detect change without comparing full
// content.
//
// Fingerprints are checksums, not cryptographic hashes: collision
// resistance is a correctness/performance trade-off (two distinct realistic
// inputs are never expected to collide across 128 bits), not a security
// property. The underlying function is XXH3-128.
//
// Combine is deterministic and ORDER-SENSITIVE: combining the same inputs
// in a different order may legitimately produce a different fingerprint.
// Callers must combine in a fixed, documented order.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// Fingerprint is an opaque, order-sensitive 128-bit digest.
//
// Equality is bitwise: two fingerprints compare equal iff all 128 bits
// match. There is no partial or fuzzy equality. The zero value is reserved
// as "no fingerprint" and is never produced for non-empty input.
type Fingerprint struct {
	Hi uint64
	Lo uint64
}

// OfBytes computes the fingerprint of a byte sequence.
func OfBytes(data []byte) Fingerprint {
	sum := xxh3.Hash128(data)
	return Fingerprint{Hi: sum.Hi, Lo: sum.Lo}
}

// OfString computes the fingerprint of a string without copying it.
func OfString(s string) Fingerprint {
	sum := xxh3.HashString128(s)
	return Fingerprint{Hi: sum.Hi, Lo: sum.Lo}
}

// OfFile computes the fingerprint of a file's current on-disk content.
// The file is streamed, not loaded whole.
func OfFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	sum := h.Sum128()
	return Fingerprint{Hi: sum.Hi, Lo: sum.Lo}, nil
}

// Combine deterministically folds b into a.
//
// The fold is defined as the fingerprint of the little-endian concatenation
// a.Hi ++ a.Lo ++ b.Hi ++ b.Lo. Combine(a, b) != Combine(b, a) in general;
// order of combination is part of the contract.
func Combine(a, b Fingerprint) Fingerprint {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], a.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], a.Lo)
	binary.LittleEndian.PutUint64(buf[16:24], b.Hi)
	binary.LittleEndian.PutUint64(buf[24:32], b.Lo)
	return OfBytes(buf[:])
}

// CombineMany is Combine applied left-to-right over fps, seeded with the
// first element. An empty slice yields the zero fingerprint; a single
// element is returned unchanged.
func CombineMany(fps []Fingerprint) Fingerprint {
	if len(fps) == 0 {
		return Fingerprint{}
	}
	acc := fps[0]
	for _, fp := range fps[1:] {
		acc = Combine(acc, fp)
	}
	return acc
}

// IsZero reports whether f is the reserved "no fingerprint" value.
func (f Fingerprint) IsZero() bool {
	return f.Hi == 0 && f.Lo == 0
}

// Hex returns the 32-character lowercase hex form, Hi first. This is the
// textual form used for content-addressed artifact file names.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	return f.Hex()
}

// Compare returns -1, 0, or 1 ordering fingerprints by (Hi, Lo). Used to
// give QueryKeys a total order.
func (f Fingerprint) Compare(other Fingerprint) int {
	switch {
	case f.Hi < other.Hi:
		return -1
	case f.Hi > other.Hi:
		return 1
	case f.Lo < other.Lo:
		return -1
	case f.Lo > other.Lo:
		return 1
	default:
		return 0
	}
}
