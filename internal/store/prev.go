package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/weftlang/weft/internal/fingerprint"
	"github.com/weftlang/weft/internal/query"
)

// Cache file layout (one file per build profile):
//
//	magic        u32   "WFTC"
//	version      u16 + u16 (major, minor)
//	entry count  u32
//	session time u64   unix milliseconds
//	options      128-bit digest of the build options
//	build        128-bit digest of the toolchain build
//	entries      see marshal.go
//
// A magic, major-version, options, or build mismatch invalidates the
// entire file: it is treated as "no previous session", never as a hard
// failure. Minor version bumps stay readable.
const (
	cacheMagic   = 0x43544657 // "WFTC" little-endian
	versionMajor = 1
	versionMinor = 0
)

// Table is the previous-session store: the persisted query table of the
// prior session, loaded read-only for comparison and written exactly once
// at session end. It is never mutated in place on disk.
type Table struct {
	// SessionTime is the save time of the session that produced the table,
	// in unix milliseconds.
	SessionTime int64

	// Options is the digest of the build options the table was built under.
	Options fingerprint.Fingerprint

	// Build is the digest of the toolchain build that wrote the table.
	Build fingerprint.Fingerprint

	entries map[query.Key]query.Entry
}

// NewTable creates an empty table for the given options and build digests.
func NewTable(options, build fingerprint.Fingerprint) *Table {
	return &Table{
		Options: options,
		Build:   build,
		entries: make(map[query.Key]query.Entry),
	}
}

// Lookup implements query.Previous.
func (t *Table) Lookup(key query.Key) (query.Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Merge replaces or inserts the given session entries. Entries from prior
// sessions that this session never forced are retained, so an incremental
// no-op build does not shrink the table.
func (t *Table) Merge(entries []query.Entry) {
	for _, e := range entries {
		t.entries[e.Key] = e
	}
}

// Sorted returns all entries in key order, for deterministic encoding and
// for the canonical dump.
func (t *Table) Sorted() []query.Entry {
	entries := make([]query.Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Compare(entries[j].Key) < 0
	})
	return entries
}

// Load reads the cache file at path. A missing, truncated, corrupt,
// version-mismatched, options-mismatched, or build-mismatched file yields
// an empty table — this is the primary defense against corrupt caches, and
// it is deliberately not an error.
func Load(path string, options, build fingerprint.Fingerprint) *Table {
	empty := NewTable(options, build)

	data, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	r := bytes.NewReader(data)

	magic, err := readU32(r)
	if err != nil || magic != cacheMagic {
		return empty
	}
	major, err := readU16(r)
	if err != nil || major != versionMajor {
		return empty
	}
	if _, err := readU16(r); err != nil { // minor: readable across bumps
		return empty
	}
	count, err := readU32(r)
	if err != nil || count > maxEntries {
		return empty
	}
	sessionTime, err := readU64(r)
	if err != nil {
		return empty
	}
	fileOptions, err := readFP(r)
	if err != nil || fileOptions != options {
		return empty
	}
	fileBuild, err := readFP(r)
	if err != nil || fileBuild != build {
		return empty
	}

	t := NewTable(options, build)
	t.SessionTime = int64(sessionTime)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r, options)
		if err != nil {
			return empty
		}
		t.entries[e.Key] = e
	}
	return t
}

// Save writes the table atomically: encode to a temporary file in the same
// directory, then rename over the target. A crash mid-write never leaves a
// half-written cache that a later Load would misinterpret as valid.
func Save(path string, t *Table) error {
	if len(t.entries) > maxEntries {
		return fmt.Errorf("session table too large to persist: %d entries", len(t.entries))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}

	w := bufio.NewWriter(f)
	encodeErr := encodeTable(w, t)
	if encodeErr == nil {
		encodeErr = w.Flush()
	}
	if closeErr := f.Close(); encodeErr == nil {
		encodeErr = closeErr
	}
	if encodeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("encode cache file: %w", encodeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func encodeTable(w *bufio.Writer, t *Table) error {
	if err := writeU32(w, cacheMagic); err != nil {
		return err
	}
	if err := writeU16(w, versionMajor); err != nil {
		return err
	}
	if err := writeU16(w, versionMinor); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(t.entries))); err != nil {
		return err
	}
	sessionTime := t.SessionTime
	if sessionTime == 0 {
		sessionTime = time.Now().UnixMilli()
	}
	if err := writeU64(w, uint64(sessionTime)); err != nil {
		return err
	}
	if err := writeFP(w, t.Options); err != nil {
		return err
	}
	if err := writeFP(w, t.Build); err != nil {
		return err
	}
	for _, e := range t.Sorted() {
		if err := writeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}
