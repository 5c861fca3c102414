package godb

import (
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// PageID identifies a page within the whole storage engine: a table and a
// page number within that table's heap file. It is a plain comparable value
// type so it can be used directly as a map key.
type PageID struct {
	TableID uint64
	PageNo  int
}

// stableHash derives a table identity from a heap file's absolute path. It
// must be stable across process restarts (the same file always yields the
// same table id) so xxhash's non-cryptographic, allocation-free 64-bit hash
// is a better fit here than, say, crypto/sha256: we need speed and
// stability, not collision resistance against an adversary.
func stableHash(absPath string) uint64 {
	return xxhash.Sum64String(absPath)
}

// tableIDFor computes the stable table id for a heap file's backing path,
// resolving it to an absolute path first so that relative and absolute
// references to the same file agree.
func tableIDFor(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	return stableHash(abs), nil
}
