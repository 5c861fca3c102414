package godb

// BufferPool caches pages read from disk, bounded at a fixed capacity, and
// is the sole path through which an executor touches a page: every read
// acquires a lock via the LockManager, every write is tracked so it can be
// logged and force-flushed on commit or discarded on abort (no-steal).
//
// Pages are cached in a doubly linked LRU list implemented as an arena of
// indices rather than pointers, so the list can never form a reference
// cycle. Eviction scans from the LRU end past any dirty pages and unlinks
// the first clean page it reaches in O(1).
// Lock bookkeeping and deadlock handling live in a standalone LockManager
// (lock_manager.go), which times out a waiter rather than building a
// wait-for graph.

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RWPerm is the permission an executor requests when fetching a page.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

func (p RWPerm) lockMode() LockMode {
	if p == WritePerm {
		return Exclusive
	}
	return Shared
}

const noIndex = -1

// cacheEntry is one slot in the BufferPool's LRU arena: a cached page plus
// its neighbors in recency order (indices into the arena, not pointers, so
// the list can never form a reference cycle and eviction can unlink a node
// in O(1) without walking anything).
type cacheEntry struct {
	pid        PageID
	page       *heapPage
	prev, next int
}

// BufferPool is the fixed-capacity LRU cache of pages shared by every
// transaction.
type BufferPool struct {
	mu sync.Mutex

	capacity int
	arena    []cacheEntry
	free     []int // arena indices not currently in use
	index    map[PageID]int
	head     int // most-recently-used entry's arena index, or noIndex
	tail     int // least-recently-used entry's arena index, or noIndex

	locks    *LockManager
	log      LogSink
	catalog  Catalog
	metrics  *poolMetrics
	logger   *logrus.Logger
	deadline time.Duration
}

// NewBufferPool constructs an empty BufferPool with room for numPages
// pages, backed by catalog for table-id lookups and log as its WAL sink.
func NewBufferPool(numPages int, catalog Catalog, log LogSink) *BufferPool {
	return &BufferPool{
		capacity: numPages,
		arena:    make([]cacheEntry, 0, numPages),
		index:    make(map[PageID]int, numPages),
		head:     noIndex,
		tail:     noIndex,
		locks:    NewLockManager(),
		log:      log,
		catalog:  catalog,
		metrics:  newPoolMetrics(),
		logger:   logrus.StandardLogger(),
		deadline: lockAcquireDeadline,
	}
}

// NewBufferPoolFromConfig constructs a BufferPool the way NewBufferPool does,
// but sized and timed from cfg rather than package defaults: cfg.PageSize is
// applied process-wide via SetPageSize before any page is read or created,
// cfg.NumPages becomes the pool's capacity, and cfg.LockTimeoutMS becomes the
// deadline GetPage waits against.
func NewBufferPoolFromConfig(cfg BufferPoolConfig, catalog Catalog, log LogSink) *BufferPool {
	SetPageSize(cfg.PageSize)
	bp := NewBufferPool(cfg.NumPages, catalog, log)
	bp.deadline = time.Duration(cfg.LockTimeoutMS) * time.Millisecond
	return bp
}

// Metrics exposes the pool's Prometheus collectors for registration by an
// embedding process.
func (bp *BufferPool) Metrics() *poolMetrics { return bp.metrics }

// --- LRU arena bookkeeping (mu must be held) ---

func (bp *BufferPool) allocEntry() int {
	if n := len(bp.free); n > 0 {
		idx := bp.free[n-1]
		bp.free = bp.free[:n-1]
		return idx
	}
	bp.arena = append(bp.arena, cacheEntry{})
	return len(bp.arena) - 1
}

func (bp *BufferPool) linkAtHead(idx int) {
	bp.arena[idx].prev = noIndex
	bp.arena[idx].next = bp.head
	if bp.head != noIndex {
		bp.arena[bp.head].prev = idx
	}
	bp.head = idx
	if bp.tail == noIndex {
		bp.tail = idx
	}
}

func (bp *BufferPool) unlink(idx int) {
	e := bp.arena[idx]
	if e.prev != noIndex {
		bp.arena[e.prev].next = e.next
	} else {
		bp.head = e.next
	}
	if e.next != noIndex {
		bp.arena[e.next].prev = e.prev
	} else {
		bp.tail = e.prev
	}
	bp.arena[idx].prev, bp.arena[idx].next = noIndex, noIndex
}

func (bp *BufferPool) moveToHead(idx int) {
	if bp.head == idx {
		return
	}
	bp.unlink(idx)
	bp.linkAtHead(idx)
}

// insertAtHead installs page as a brand-new MRU entry, returning its arena
// index.
func (bp *BufferPool) insertAtHead(pid PageID, page *heapPage) int {
	idx := bp.allocEntry()
	bp.arena[idx] = cacheEntry{pid: pid, page: page, prev: noIndex, next: noIndex}
	bp.linkAtHead(idx)
	bp.index[pid] = idx
	bp.metrics.cachedPages.Set(float64(len(bp.index)))
	return idx
}

// removeEntry unlinks idx from the LRU list, frees its arena slot for
// reuse, and deletes its index-map entry. unlink already resets the slot's
// own prev/next fields to noIndex, so nothing is left half-spliced.
func (bp *BufferPool) removeEntry(idx int) {
	bp.unlink(idx)
	delete(bp.index, bp.arena[idx].pid)
	bp.arena[idx] = cacheEntry{}
	bp.free = append(bp.free, idx)
	bp.metrics.cachedPages.Set(float64(len(bp.index)))
}

// evictLocked scans from the LRU end toward MRU, evicting the first clean
// page it finds (no-steal: dirty pages are never discarded except via
// commit-flush). Fails with TransactionAbortedError if every cached page is
// dirty.
func (bp *BufferPool) evictLocked() error {
	for idx := bp.tail; idx != noIndex; idx = bp.arena[idx].prev {
		if !bp.arena[idx].page.isDirty() {
			bp.logger.WithField("pid", bp.arena[idx].pid).Debug("evicting clean page")
			bp.removeEntry(idx)
			bp.metrics.evictions.Inc()
			return nil
		}
	}
	return GoDBError{TransactionAbortedError, "no clean page available to evict"}
}

// --- Public API ---

// GetPage retrieves pid from file on behalf of tid, materializing it from
// disk on a cache miss (evicting a clean page first if the pool is full),
// then acquiring the lock matching perm before returning it. The page is
// installed in the cache *before* the lock is held; callers that mutate
// the page must hold WritePerm themselves.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageID, perm RWPerm, file *HeapFile) (*heapPage, error) {
	page, err := bp.fetchLocked(pid, file)
	if err != nil {
		return nil, err
	}

	mode := perm.lockMode()
	deadline := time.Now().Add(bp.deadline)
	for {
		if bp.locks.Acquire(tid, pid, mode) {
			bp.metrics.lockGrants.Inc()
			return page, nil
		}
		bp.metrics.lockDenials.Inc()
		if time.Now().After(deadline) {
			bp.logger.WithFields(logrus.Fields{"pid": pid, "tid": tid}).Warn("lock acquire timed out")
			return nil, GoDBError{TransactionAbortedError, "timed out waiting for lock"}
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fetchLocked performs the cache lookup/insertion step under the pool's
// monitor: a hit moves the entry to MRU; a miss evicts if necessary, reads
// the page from file, and installs it at MRU.
func (bp *BufferPool) fetchLocked(pid PageID, file *HeapFile) (*heapPage, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if idx, ok := bp.index[pid]; ok {
		bp.moveToHead(idx)
		bp.metrics.cacheHits.Inc()
		return bp.arena[idx].page, nil
	}

	bp.metrics.cacheMisses.Inc()
	if len(bp.index) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}
	page, err := file.readPage(pid.PageNo)
	if err != nil {
		return nil, err
	}
	bp.insertAtHead(pid, page)
	return page, nil
}

// unsafeReleasePage forwards to LockManager.Release. Documented as risky:
// it breaks two-phase locking and should only be used by a caller (such as
// HeapFile.insertTuple scanning past a full page) that never read a tuple
// through the released lock.
func (bp *BufferPool) unsafeReleasePage(tid TransactionID, pid PageID) {
	bp.locks.Release(tid, pid)
}

// HoldsLock forwards to LockManager.HoldsLock.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageID) bool {
	return bp.locks.HoldsLock(tid, pid)
}

// refreshAtHead installs or replaces pid's cache entry with page, moving it
// to MRU, without going through a disk read. In practice HeapFile always
// reaches the page it returns via BufferPool.GetPage first (including a
// freshly appended page), so the entry is already cached and this just
// moves it to MRU; the install branch exists only as a defensive fallback.
func (bp *BufferPool) refreshAtHead(pid PageID, page *heapPage) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if idx, ok := bp.index[pid]; ok {
		bp.arena[idx].page = page
		bp.moveToHead(idx)
		return nil
	}
	if len(bp.index) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return err
		}
	}
	bp.insertAtHead(pid, page)
	return nil
}

// InsertTuple delegates to HeapFile.insertTuple and installs/refreshes
// every returned page at MRU.
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID uint64, t *Tuple) error {
	file, err := bp.heapFileFor(tableID)
	if err != nil {
		return err
	}
	pages, err := file.insertTuple(tid, t)
	if err != nil {
		return err
	}
	for _, pg := range pages {
		if err := bp.refreshAtHead(pg.pid, pg); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTuple delegates to HeapFile.deleteTuple and installs/refreshes
// every returned page at MRU, symmetric with InsertTuple.
func (bp *BufferPool) DeleteTuple(tid TransactionID, tableID uint64, t *Tuple) error {
	file, err := bp.heapFileFor(tableID)
	if err != nil {
		return err
	}
	pages, err := file.deleteTuple(tid, t)
	if err != nil {
		return err
	}
	for _, pg := range pages {
		if err := bp.refreshAtHead(pg.pid, pg); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BufferPool) heapFileFor(tableID uint64) (*HeapFile, error) {
	dbFile, err := bp.catalog.GetDatabaseFile(tableID)
	if err != nil {
		return nil, err
	}
	hf, ok := dbFile.(*HeapFile)
	if !ok {
		return nil, GoDBError{IncompatibleTypesError, "catalog entry is not a heap file"}
	}
	return hf, nil
}

// flushPageLocked writes pid's committed image to disk: if pid is cached
// and dirty, it logs the before/after images and forces the log *before*
// calling HeapFile.writePage, then clears the dirty flag. A no-op if pid
// isn't cached or isn't dirty. Callers must hold bp.mu.
func (bp *BufferPool) flushPageLocked(pid PageID) error {
	idx, ok := bp.index[pid]
	if !ok {
		return nil
	}
	page := bp.arena[idx].page
	if !page.isDirty() {
		return nil
	}
	after, err := page.getPageData()
	if err != nil {
		return err
	}
	if bp.log != nil {
		tid := *page.dirtyTid
		if err := bp.log.LogWrite(tid, page.getBeforeImage(), after); err != nil {
			return err
		}
		if err := bp.log.Force(); err != nil {
			return err
		}
	}
	if err := page.file.writePage(page); err != nil {
		return err
	}
	page.markDirty(false, TransactionID{})
	return nil
}

// FlushPage flushes pid if it is cached and dirty.
func (bp *BufferPool) FlushPage(pid PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

// FlushAllPages flushes every dirty cached page. Intended for shutdown or
// tests: unsafe under a no-steal policy while transactions are still live,
// since it writes pages whose owning transaction may yet abort.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for idx := range bp.arena {
		if bp.arena[idx].page == nil {
			continue // freed slot
		}
		if err := bp.flushPageLocked(bp.arena[idx].pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without flushing it, used by
// recovery paths that need to evict a rolled-back page without writing it.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if idx, ok := bp.index[pid]; ok {
		bp.removeEntry(idx)
	}
}

// TransactionComplete commits or aborts tid. On commit, every page tid
// dirtied is flushed (logged, forced, written) and then has its before-image
// reset; on abort, every such page stays resident
// in the cache but is replaced in place with a fresh read from disk (no-steal
// means nothing of tid's was ever written to disk, so the on-disk copy is
// the pre-transaction state), clearing its dirty marker in the process.
// Either way, every lock tid holds is released.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	dirtyPids := bp.dirtyPagesOf(tid)

	if commit {
		bp.mu.Lock()
		for _, pid := range dirtyPids {
			if err := bp.flushPageLocked(pid); err != nil {
				bp.mu.Unlock()
				return err
			}
			if idx, ok := bp.index[pid]; ok {
				if err := bp.arena[idx].page.setBeforeImage(); err != nil {
					bp.mu.Unlock()
					return err
				}
			}
		}
		bp.mu.Unlock()
		if lf, ok := bp.log.(interface{ LogCommit(TransactionID) }); ok {
			lf.LogCommit(tid)
		}
	} else {
		bp.mu.Lock()
		for _, pid := range dirtyPids {
			idx, ok := bp.index[pid]
			if !ok {
				continue
			}
			fresh, err := bp.arena[idx].page.file.readPage(pid.PageNo)
			if err != nil {
				bp.mu.Unlock()
				return err
			}
			bp.arena[idx].page = fresh
		}
		bp.mu.Unlock()
		if lf, ok := bp.log.(interface{ LogAbort(TransactionID) }); ok {
			lf.LogAbort(tid)
		}
	}

	bp.locks.ReleaseAll(tid)
	return nil
}

// dirtyPagesOf returns the PageIDs of every cached page tid has dirtied.
func (bp *BufferPool) dirtyPagesOf(tid TransactionID) []PageID {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	var pids []PageID
	for idx := range bp.arena {
		e := bp.arena[idx]
		if e.page != nil && e.page.isDirty() && *e.page.dirtyTid == tid {
			pids = append(pids, e.pid)
		}
	}
	return pids
}
