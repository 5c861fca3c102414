package godb

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// HeapFile is an unordered collection of tuples backing one table: a
// contiguous byte stream of NumPages() pages, each exactly PageSize bytes,
// with no file-level header. Its table identity is a stable hash of its
// absolute path, not an index assigned by a catalog, so the same file
// always maps to the same PageID.TableID across restarts.
//
// Each read or write opens and closes its own file handle rather than
// keeping one open for the HeapFile's lifetime, trading a little syscall
// overhead for never having to coordinate a shared *os.File across
// concurrent callers.
type HeapFile struct {
	backingFile string
	absPath     string
	tableID     uint64
	desc        *TupleDesc
	bp          *BufferPool

	appendMu sync.Mutex // serializes the "append one empty page" step
}

// NewHeapFile opens (or prepares to create) a HeapFile backed by path, with
// schema desc, caching pages through bp.
func NewHeapFile(path string, desc *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolving heap file path")
	}
	return &HeapFile{
		backingFile: path,
		absPath:     abs,
		tableID:     stableHash(abs),
		desc:        desc,
		bp:          bp,
	}, nil
}

// BackingFile returns the path the HeapFile was constructed with.
func (f *HeapFile) BackingFile() string { return f.backingFile }

// TableID returns the stable hash of the file's absolute path.
func (f *HeapFile) TableID() uint64 { return f.tableID }

// Descriptor returns the HeapFile's TupleDesc.
func (f *HeapFile) Descriptor() *TupleDesc { return f.desc }

// NumPages returns floor(file_length / PageSize); a file that does not yet
// exist has zero pages.
func (f *HeapFile) NumPages() int {
	info, err := os.Stat(f.absPath)
	if err != nil {
		return 0
	}
	return int(info.Size() / int64(PageSize))
}

func (f *HeapFile) pageID(pageNo int) PageID {
	return PageID{TableID: f.tableID, PageNo: pageNo}
}

// readPage reads page pageNo directly from disk and decodes it, failing
// with InvalidPageError when the page is out of range. Called by
// BufferPool.GetPage on a cache miss.
func (f *HeapFile) readPage(pageNo int) (*heapPage, error) {
	numPages := f.NumPages()
	if pageNo < 0 || pageNo >= numPages {
		return nil, GoDBError{InvalidPageError, "page number out of range"}
	}
	file, err := os.Open(f.absPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening heap file for read")
	}
	defer file.Close()

	data := make([]byte, PageSize)
	if _, err := file.Seek(int64(pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking to page")
	}
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, errors.Wrap(err, "reading page")
	}
	return newHeapPageFromBytes(f.pageID(pageNo), f.desc, f, data)
}

// writePage writes p back to its offset on disk, failing with
// InvalidPageError if its page number is more than one past the current end
// of file; a page number exactly equal to NumPages() is allowed and extends
// the file by one page.
func (f *HeapFile) writePage(p *heapPage) error {
	numPages := f.NumPages()
	if p.pid.PageNo > numPages {
		return GoDBError{InvalidPageError, "page number would leave a gap in the file"}
	}
	file, err := os.OpenFile(f.absPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrap(err, "opening heap file for write")
	}
	defer file.Close()

	if _, err := file.Seek(int64(p.pid.PageNo)*int64(PageSize), io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking to page")
	}
	data, err := p.getPageData()
	if err != nil {
		return errors.Wrap(err, "serializing page")
	}
	if _, err := file.Write(data); err != nil {
		return errors.Wrap(err, "writing page")
	}
	return nil
}

// appendEmptyPage extends the file on disk by one zero-initialized page and
// returns its page number. Serialized by appendMu so two concurrent inserts
// that both miss on every existing page don't race to append at the same
// offset.
func (f *HeapFile) appendEmptyPage() (int, error) {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()

	pageNo := f.NumPages()
	file, err := os.OpenFile(f.absPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return 0, errors.Wrap(err, "opening heap file to append")
	}
	defer file.Close()
	if _, err := file.Seek(int64(pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "seeking to append offset")
	}
	if _, err := file.Write(createEmptyPageData()); err != nil {
		return 0, errors.Wrap(err, "appending empty page")
	}
	return pageNo, nil
}

// insertTuple scans existing pages in ascending page-number order,
// acquiring each through the buffer pool with write permission, until it
// finds one with an empty slot. A full page's lock is released immediately
// (via unsafeReleasePage) before moving on, since the transaction never
// read a tuple from it. If no page has space, a new page is appended to the
// file on disk and then re-acquired through the buffer pool for the insert.
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) ([]*heapPage, error) {
	if len(t.Fields) != len(f.desc.Fields) {
		return nil, GoDBError{IncompatibleTypesError, "tuple does not match heap file schema"}
	}

	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		pg, err := f.bp.GetPage(tid, f.pageID(pageNo), WritePerm, f)
		if err != nil {
			return nil, err
		}
		if pg.getNumEmptySlots() == 0 {
			f.bp.unsafeReleasePage(tid, f.pageID(pageNo))
			continue
		}
		if _, err := pg.insertTuple(t); err != nil {
			return nil, err
		}
		pg.markDirty(true, tid)
		return []*heapPage{pg}, nil
	}

	pageNo, err := f.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	pg, err := f.bp.GetPage(tid, f.pageID(pageNo), WritePerm, f)
	if err != nil {
		return nil, err
	}
	if _, err := pg.insertTuple(t); err != nil {
		return nil, err
	}
	pg.markDirty(true, tid)
	return []*heapPage{pg}, nil
}

// deleteTuple acquires the page named by t.Rid with write permission and
// removes t from it.
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) ([]*heapPage, error) {
	if t.Rid == nil {
		return nil, GoDBError{NotFoundError, "tuple has no record id"}
	}
	pg, err := f.bp.GetPage(tid, t.Rid.PageID, WritePerm, f)
	if err != nil {
		return nil, err
	}
	if err := pg.deleteTuple(*t.Rid); err != nil {
		return nil, err
	}
	pg.markDirty(true, tid)
	return []*heapPage{pg}, nil
}

// iterator returns a lazy, restartable sequence over every occupied tuple
// in the file, ordered by (page-number, slot-number): each page is fetched
// through the buffer pool with read permission, in ascending page-number
// order.
func (f *HeapFile) iterator(tid TransactionID) func() (*Tuple, error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				pg, err := f.bp.GetPage(tid, f.pageID(pageNo), ReadPerm, f)
				if err != nil {
					return nil, err
				}
				pageIter = pg.iterator()
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t != nil {
				td := *f.desc
				t.Desc = td
				return t, nil
			}
			pageIter = nil
			pageNo++
		}
	}
}
