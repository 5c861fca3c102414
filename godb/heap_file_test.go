package godb

import (
	"path/filepath"
	"testing"
)

func heapFileTestDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
}

func newHeapFileTestVars(t *testing.T, numPages int) (*HeapFile, *BufferPool, TransactionID) {
	t.Helper()
	desc := heapFileTestDesc()
	bp := NewBufferPool(numPages, NewMapCatalog(), nil)
	path := filepath.Join(t.TempDir(), "students.dat")
	hf, err := NewHeapFile(path, desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf, bp, NewTID()
}

func TestHeapFileStartsEmpty(t *testing.T) {
	hf, _, _ := newHeapFileTestVars(t, 10)
	if n := hf.NumPages(); n != 0 {
		t.Errorf("expected 0 pages for a nonexistent file, got %d", n)
	}
}

func TestHeapFileInsertFillsThenAppends(t *testing.T) {
	hf, _, tid := newHeapFileTestVars(t, 10)
	desc := hf.Descriptor()

	p0, err := newHeapPage(PageID{}, desc, nil)
	if err != nil {
		t.Fatalf("newHeapPage: %v", err)
	}
	perPage := p0.numSlots

	for i := 0; i < perPage; i++ {
		tup := pageTestTuple(desc, "row", int64(i))
		if _, err := hf.insertTuple(tid, tup); err != nil {
			t.Fatalf("insertTuple %d: %v", i, err)
		}
	}
	if hf.NumPages() != 1 {
		t.Fatalf("expected 1 page after filling it, got %d", hf.NumPages())
	}

	if _, err := hf.insertTuple(tid, pageTestTuple(desc, "overflow", 0)); err != nil {
		t.Fatalf("insertTuple into a new page: %v", err)
	}
	if hf.NumPages() != 2 {
		t.Fatalf("expected a second page to be appended, got %d pages", hf.NumPages())
	}
}

func TestHeapFileInsertRoundTrip(t *testing.T) {
	hf, _, tid := newHeapFileTestVars(t, 10)
	desc := hf.Descriptor()
	tup := pageTestTuple(desc, "josie", 20)

	if _, err := hf.insertTuple(tid, tup); err != nil {
		t.Fatalf("insertTuple: %v", err)
	}
	if tup.Rid == nil {
		t.Fatal("insertTuple did not assign a record id")
	}

	iter := hf.iterator(tid)
	got, err := iter()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if got == nil || !got.equals(tup) {
		t.Errorf("expected the inserted tuple back from iteration, got %+v", got)
	}
	if *got.Rid != *tup.Rid {
		t.Errorf("expected rid %+v, got %+v", *tup.Rid, *got.Rid)
	}
}

func TestHeapFileIterationOrderAcrossPages(t *testing.T) {
	hf, _, tid := newHeapFileTestVars(t, 10)
	desc := hf.Descriptor()

	p0, _ := newHeapPage(PageID{}, desc, nil)
	perPage := p0.numSlots

	for i := 0; i < perPage+2; i++ {
		if _, err := hf.insertTuple(tid, pageTestTuple(desc, "r", int64(i))); err != nil {
			t.Fatalf("insertTuple %d: %v", i, err)
		}
	}
	if hf.NumPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", hf.NumPages())
	}

	iter := hf.iterator(tid)
	count := 0
	lastPage, lastSlot := -1, -1
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		if tup.Rid.PageID.PageNo < lastPage || (tup.Rid.PageID.PageNo == lastPage && tup.Rid.SlotNo <= lastSlot) {
			t.Fatalf("iteration out of (page, slot) order at tuple %d: %+v", count, tup.Rid)
		}
		lastPage, lastSlot = tup.Rid.PageID.PageNo, tup.Rid.SlotNo
		count++
	}
	if count != perPage+2 {
		t.Errorf("expected %d tuples, iterated %d", perPage+2, count)
	}
}

func TestHeapFileDeleteTuple(t *testing.T) {
	hf, _, tid := newHeapFileTestVars(t, 10)
	desc := hf.Descriptor()
	tup := pageTestTuple(desc, "annie", 17)
	if _, err := hf.insertTuple(tid, tup); err != nil {
		t.Fatalf("insertTuple: %v", err)
	}

	if _, err := hf.deleteTuple(tid, tup); err != nil {
		t.Fatalf("deleteTuple: %v", err)
	}

	iter := hf.iterator(tid)
	got, err := iter()
	if err != nil {
		t.Fatalf("iterator after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected no tuples after delete, got %+v", got)
	}
}
