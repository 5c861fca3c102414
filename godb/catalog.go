package godb

import (
	"sync"

	"golang.org/x/exp/maps"
)

// DbFile is the minimal contract a page store must satisfy to be cached by
// the BufferPool: byte-level page read/write, a page count, and the schema
// used to decode its pages. HeapFile is the only implementation in this
// module, but the interface is kept separate from HeapFile so a catalog
// lookup returns an abstract DbFile rather than a concrete HeapFile.
type DbFile interface {
	readPage(pageNo int) (*heapPage, error)
	writePage(p *heapPage) error
	NumPages() int
	Descriptor() *TupleDesc
	TableID() uint64
}

// Catalog is a directory interface: table-id <-> file mapping only. It
// deliberately knows nothing about table schemas beyond what a DbFile
// already exposes.
type Catalog interface {
	GetDatabaseFile(tableID uint64) (DbFile, error)
	TableIDIterator() func() (uint64, bool)
	GetTableName(tableID uint64) (string, error)
}

// MapCatalog is a minimal in-memory Catalog: the one BufferPool uses to
// resolve a tableID to a DbFile, and that tests register heap files against.
type MapCatalog struct {
	mu    sync.RWMutex
	files map[uint64]DbFile
	names map[uint64]string
}

// NewMapCatalog constructs an empty MapCatalog.
func NewMapCatalog() *MapCatalog {
	return &MapCatalog{
		files: make(map[uint64]DbFile),
		names: make(map[uint64]string),
	}
}

// Register adds file under name, keyed by its own TableID.
func (c *MapCatalog) Register(name string, file DbFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[file.TableID()] = file
	c.names[file.TableID()] = name
}

func (c *MapCatalog) GetDatabaseFile(tableID uint64) (DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[tableID]
	if !ok {
		return nil, GoDBError{NotFoundError, "no table registered with that id"}
	}
	return f, nil
}

func (c *MapCatalog) GetTableName(tableID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[tableID]
	if !ok {
		return "", GoDBError{NotFoundError, "no table registered with that id"}
	}
	return name, nil
}

// TableIDIterator returns a function yielding each registered table id once,
// then (0, false).
func (c *MapCatalog) TableIDIterator() func() (uint64, bool) {
	c.mu.RLock()
	ids := maps.Keys(c.files)
	c.mu.RUnlock()
	i := 0
	return func() (uint64, bool) {
		if i >= len(ids) {
			return 0, false
		}
		id := ids[i]
		i++
		return id, true
	}
}
