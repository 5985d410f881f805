package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/weftlang/weft/internal/fingerprint"
)

// LibraryEnvDigest digests the external-library environment: every *.meta
// file under dir, by name and content, in sorted order. An empty or
// missing directory digests to a fixed sentinel so "no libraries" is
// itself a stable input.
//
// The digest feeds every typecheck input fingerprint; touching a library
// metadata file therefore recompiles exactly the typecheck-and-below of
// every unit, which is the correct over-approximation when per-library
// tracking is not available.
func LibraryEnvDigest(dir string) (fingerprint.Fingerprint, error) {
	fp := fingerprint.OfString("weft/libenv/v1")
	if dir == "" {
		return fp, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fp, nil
		}
		return fingerprint.Fingerprint{}, fmt.Errorf("read library dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".meta" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fingerprint.OfFile(filepath.Join(dir, name))
		if err != nil {
			return fingerprint.Fingerprint{}, fmt.Errorf("digest library %s: %w", name, err)
		}
		fp = fingerprint.Combine(fp, fingerprint.OfString(name))
		fp = fingerprint.Combine(fp, content)
	}
	return fp, nil
}
