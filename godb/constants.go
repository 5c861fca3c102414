package godb

import "time"

// DefaultPageSize is the on-disk and in-memory size of one page, in bytes.
const DefaultPageSize = 4096

// DefaultPages is the default BufferPool capacity, in pages.
const DefaultPages = 50

// StringLength is the fixed, padded byte width of a STRING field's payload
// on disk (the length prefix is a separate 4 bytes).
const StringLength = 128

// lockAcquireDeadline is the default bound on how long BufferPool.GetPage
// will poll the LockManager before giving up and aborting the calling
// transaction; NewBufferPoolFromConfig can set a different bound per pool.
// This timeout is the sole deadlock-resolution mechanism in this module.
const lockAcquireDeadline = 500 * time.Millisecond

// PageSize is the page size new pages are created and decoded with. It is a
// package variable, not a constant, so that tests and
// NewBufferPoolFromConfig can change it via SetPageSize/ResetPageSize;
// production code should never assign to it directly.
var PageSize = DefaultPageSize

// SetPageSize overrides the page size used by newly-created HeapPages. It is
// called by tests and by NewBufferPoolFromConfig; it does not rewrite pages
// already encoded at the previous size.
func SetPageSize(size int) {
	PageSize = size
}

// ResetPageSize restores PageSize to DefaultPageSize.
func ResetPageSize() {
	PageSize = DefaultPageSize
}
