package godb

import "testing"

func TestLockManagerGrantsFirstRequester(t *testing.T) {
	lm := NewLockManager()
	tid := NewTID()
	pid := PageID{TableID: 1, PageNo: 0}
	if !lm.Acquire(tid, pid, Shared) {
		t.Fatal("first shared request on an unheld page should be granted")
	}
	if !lm.HoldsLock(tid, pid) {
		t.Fatal("HoldsLock should report true after a grant")
	}
}

func TestLockManagerMultipleSharedHolders(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	a, b := NewTID(), NewTID()
	if !lm.Acquire(a, pid, Shared) {
		t.Fatal("A's shared request should be granted")
	}
	if !lm.Acquire(b, pid, Shared) {
		t.Fatal("B's shared request should be granted alongside A's")
	}
}

func TestLockManagerExclusiveDeniesOtherTid(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	a, b := NewTID(), NewTID()
	if !lm.Acquire(a, pid, Exclusive) {
		t.Fatal("A's exclusive request on an unheld page should be granted")
	}
	if lm.Acquire(b, pid, Shared) {
		t.Fatal("B's shared request should be denied while A holds exclusive")
	}
	if lm.Acquire(b, pid, Exclusive) {
		t.Fatal("B's exclusive request should be denied while A holds exclusive")
	}
}

func TestLockManagerExclusiveRequestWhileSharedHeldByOtherDenied(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	a, b := NewTID(), NewTID()
	lm.Acquire(a, pid, Shared)
	if lm.Acquire(b, pid, Exclusive) {
		t.Fatal("B's exclusive request should be denied while A holds shared")
	}
}

// A reads p0 SHARED, then upgrades to EXCLUSIVE in place; concurrent B
// requesting SHARED is denied.
func TestLockManagerUpgradeInPlace(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	a, b := NewTID(), NewTID()

	if !lm.Acquire(a, pid, Shared) {
		t.Fatal("A's initial shared request should be granted")
	}
	if !lm.Acquire(a, pid, Exclusive) {
		t.Fatal("A's upgrade to exclusive should be granted: sole holder")
	}
	if lm.Acquire(b, pid, Shared) {
		t.Fatal("B's shared request should be denied once A holds exclusive")
	}
}

func TestLockManagerUpgradeDeniedWithOtherSharedHolders(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	a, b := NewTID(), NewTID()
	lm.Acquire(a, pid, Shared)
	lm.Acquire(b, pid, Shared)
	if lm.Acquire(a, pid, Exclusive) {
		t.Fatal("A's upgrade should be denied while B also holds shared")
	}
	if mode := lm.locks[pid][a]; mode != Shared {
		t.Errorf("A's mode should remain Shared after a denied upgrade, got %v", mode)
	}
}

func TestLockManagerReacquireIsNoOp(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	tid := NewTID()
	lm.Acquire(tid, pid, Shared)
	if !lm.Acquire(tid, pid, Shared) {
		t.Fatal("re-requesting the same mode already held should be granted")
	}
	lm.Acquire(tid, pid, Exclusive)
	if !lm.Acquire(tid, pid, Shared) {
		t.Fatal("requesting Shared while already holding Exclusive should be a no-op grant")
	}
	if mode := lm.locks[pid][tid]; mode != Exclusive {
		t.Errorf("holding Exclusive should not be downgraded by a Shared no-op, got %v", mode)
	}
}

func TestLockManagerReleaseDropsEmptyEntry(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	tid := NewTID()
	lm.Acquire(tid, pid, Exclusive)
	lm.Release(tid, pid)
	if lm.HoldsLock(tid, pid) {
		t.Fatal("HoldsLock should be false after Release")
	}
	if _, ok := lm.locks[pid]; ok {
		t.Error("the page's holder map should be removed once its last holder releases")
	}
	other := NewTID()
	if !lm.Acquire(other, pid, Exclusive) {
		t.Fatal("the page should be free for a new exclusive holder after release")
	}
}

func TestLockManagerReleaseAll(t *testing.T) {
	lm := NewLockManager()
	tid := NewTID()
	p0 := PageID{TableID: 1, PageNo: 0}
	p1 := PageID{TableID: 1, PageNo: 1}
	lm.Acquire(tid, p0, Shared)
	lm.Acquire(tid, p1, Exclusive)

	lm.ReleaseAll(tid)

	if lm.HoldsLock(tid, p0) || lm.HoldsLock(tid, p1) {
		t.Fatal("ReleaseAll should drop every lock tid held")
	}
	other := NewTID()
	if !lm.Acquire(other, p0, Exclusive) || !lm.Acquire(other, p1, Exclusive) {
		t.Fatal("both pages should be free for another transaction after ReleaseAll")
	}
}
