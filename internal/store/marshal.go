package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/weftlang/weft/internal/fingerprint"
	"github.com/weftlang/weft/internal/query"
)

// Binary primitives for the cache file. All integers are little-endian;
// strings are u16-length-prefixed UTF-8. Readers validate every length
// against sanity caps so a truncated or corrupt file fails decoding
// instead of producing a nonsense table.

const (
	// maxStringLen caps any single encoded string (no path or module name
	// should exceed 32KB).
	maxStringLen = 32768

	// maxEntries caps the entry count of one cache file.
	maxEntries = 100000

	// maxDeps caps the dependency list of one entry.
	maxDeps = 4096
)

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("string too long to encode: %d bytes", len(s))
	}
	if err := writeU16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeFP(w io.Writer, fp fingerprint.Fingerprint) error {
	if err := writeU64(w, fp.Hi); err != nil {
		return err
	}
	return writeU64(w, fp.Lo)
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds cap", n)
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readFP(r io.Reader) (fingerprint.Fingerprint, error) {
	hi, err := readU64(r)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	lo, err := readU64(r)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return fingerprint.Fingerprint{Hi: hi, Lo: lo}, nil
}

// writeKey encodes a key as stage tag + unit path + module name. The
// options digest is not repeated per key: every key in one cache file
// shares the digest recorded in the file header, and an options mismatch
// invalidates the whole file.
func writeKey(w io.Writer, key query.Key) error {
	if err := writeU8(w, uint8(key.Stage)); err != nil {
		return err
	}
	if err := writeString(w, key.Unit.Path); err != nil {
		return err
	}
	return writeString(w, key.Unit.Module)
}

// readKey decodes a key, stamping it with the table's options digest.
func readKey(r io.Reader, options fingerprint.Fingerprint) (query.Key, error) {
	stage, err := readU8(r)
	if err != nil {
		return query.Key{}, err
	}
	if !query.Stage(stage).Valid() {
		return query.Key{}, fmt.Errorf("unknown stage tag %d", stage)
	}
	path, err := readString(r)
	if err != nil {
		return query.Key{}, err
	}
	module, err := readString(r)
	if err != nil {
		return query.Key{}, err
	}
	return query.Key{
		Stage:   query.Stage(stage),
		Unit:    query.UnitID{Path: path, Module: module},
		Options: options,
	}, nil
}

func writeEntry(w io.Writer, e query.Entry) error {
	if err := writeKey(w, e.Key); err != nil {
		return err
	}
	if err := writeFP(w, e.InputFP); err != nil {
		return err
	}
	if err := writeFP(w, e.OutputFP); err != nil {
		return err
	}

	if e.Artifact.IsZero() {
		if err := writeU8(w, 0); err != nil {
			return err
		}
	} else {
		if err := writeU8(w, 1); err != nil {
			return err
		}
		if err := writeString(w, e.Artifact.Kind); err != nil {
			return err
		}
		if err := writeFP(w, e.Artifact.FP); err != nil {
			return err
		}
	}

	if len(e.Deps) > maxDeps {
		return fmt.Errorf("dependency list too long to encode: %d", len(e.Deps))
	}
	if err := writeU16(w, uint16(len(e.Deps))); err != nil {
		return err
	}
	for _, dep := range e.Deps {
		if err := writeKey(w, dep); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r io.Reader, options fingerprint.Fingerprint) (query.Entry, error) {
	var e query.Entry
	var err error

	if e.Key, err = readKey(r, options); err != nil {
		return e, err
	}
	if e.InputFP, err = readFP(r); err != nil {
		return e, err
	}
	if e.OutputFP, err = readFP(r); err != nil {
		return e, err
	}

	hasArtifact, err := readU8(r)
	if err != nil {
		return e, err
	}
	switch hasArtifact {
	case 0:
	case 1:
		kind, err := readString(r)
		if err != nil {
			return e, err
		}
		fp, err := readFP(r)
		if err != nil {
			return e, err
		}
		e.Artifact = query.ArtifactRef{Kind: kind, FP: fp}
	default:
		return e, fmt.Errorf("invalid artifact flag %d", hasArtifact)
	}

	depCount, err := readU16(r)
	if err != nil {
		return e, err
	}
	if depCount > maxDeps {
		return e, fmt.Errorf("dependency count %d exceeds cap", depCount)
	}
	if depCount > 0 {
		e.Deps = make([]query.Key, 0, depCount)
		for i := 0; i < int(depCount); i++ {
			dep, err := readKey(r, options)
			if err != nil {
				return e, err
			}
			e.Deps = append(e.Deps, dep)
		}
	}
	return e, nil
}
