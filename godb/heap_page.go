package godb

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// heapPage implements a fixed-size page layout: a header bitmap (one bit
// per slot, LSB-first within each byte, 1 = occupied) followed by a dense
// array of fixed-width tuple slots.
type heapPage struct {
	pid      PageID
	desc     *TupleDesc
	file     *HeapFile
	numSlots int
	tuples   []*Tuple // len == numSlots; nil at slot i iff slot i unoccupied

	dirtyTid    *TransactionID
	beforeImage []byte
}

// numSlotsForDesc derives N = floor((PageSize*8) / (tupleBits+1)); the "+1"
// accounts for the header bit that accompanies every slot.
func numSlotsForDesc(desc *TupleDesc) int {
	tupleBits := desc.bytesPerTuple() * 8
	return (PageSize * 8) / (tupleBits + 1)
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage constructs a fresh, empty in-memory page (all header bits
// clear). newHeapPageFromBytes starts from it before decoding a page image.
func newHeapPage(pid PageID, desc *TupleDesc, file *HeapFile) (*heapPage, error) {
	n := numSlotsForDesc(desc)
	if n <= 0 {
		return nil, errors.Errorf("tuple descriptor too wide for page size %d", PageSize)
	}
	p := &heapPage{
		pid:      pid,
		desc:     desc,
		file:     file,
		numSlots: n,
		tuples:   make([]*Tuple, n),
	}
	return p, nil
}

// newHeapPageFromBytes decodes a page previously serialized by getPageData,
// snapshotting data as the page's before-image.
func newHeapPageFromBytes(pid PageID, desc *TupleDesc, file *HeapFile, data []byte) (*heapPage, error) {
	p, err := newHeapPage(pid, desc, file)
	if err != nil {
		return nil, err
	}
	if err := p.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, errors.Wrap(err, "decoding heap page")
	}
	before := make([]byte, len(data))
	copy(before, data)
	p.beforeImage = before
	return p, nil
}

func (p *heapPage) bitSet(header []byte, slot int) bool {
	return header[slot/8]&(1<<uint(slot%8)) != 0
}

func (p *heapPage) setBit(header []byte, slot int, v bool) {
	mask := byte(1 << uint(slot%8))
	if v {
		header[slot/8] |= mask
	} else {
		header[slot/8] &^= mask
	}
}

// initFromBuffer reads the header bitmap then the occupied tuple slots, in
// slot-number order, from buf.
func (p *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	hdr := make([]byte, headerBytes(p.numSlots))
	if err := binary.Read(buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	tupleSize := p.desc.bytesPerTuple()
	for slot := 0; slot < p.numSlots; slot++ {
		raw := make([]byte, tupleSize)
		if err := binary.Read(buf, binary.LittleEndian, raw); err != nil {
			return err
		}
		if !p.bitSet(hdr, slot) {
			continue
		}
		tup, err := readTupleFrom(bytes.NewBuffer(raw), p.desc)
		if err != nil {
			return err
		}
		tup.Rid = &RecordID{PageID: p.pid, SlotNo: slot}
		p.tuples[slot] = tup
	}
	return nil
}

// toBuffer re-serializes the header bitmap followed by every slot (occupied
// slots hold their tuple bytes, empty slots hold zeros) into a PageSize
// buffer.
func (p *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	hdr := make([]byte, headerBytes(p.numSlots))
	for slot, t := range p.tuples {
		if t != nil {
			p.setBit(hdr, slot, true)
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	tupleSize := p.desc.bytesPerTuple()
	for _, t := range p.tuples {
		if t == nil {
			if _, err := buf.Write(make([]byte, tupleSize)); err != nil {
				return nil, err
			}
			continue
		}
		before := buf.Len()
		if err := t.writeTo(buf); err != nil {
			return nil, err
		}
		if written := buf.Len() - before; written != tupleSize {
			return nil, errors.Errorf("tuple serialized to %d bytes, expected %d", written, tupleSize)
		}
	}
	if buf.Len() < PageSize {
		if _, err := buf.Write(make([]byte, PageSize-buf.Len())); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// getPageData returns the full PageSize on-disk representation of the page.
func (p *heapPage) getPageData() ([]byte, error) {
	buf, err := p.toBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setBeforeImage replaces the page's before-image snapshot with its current
// serialized contents. Called after a commit-flush.
func (p *heapPage) setBeforeImage() error {
	data, err := p.getPageData()
	if err != nil {
		return err
	}
	p.beforeImage = data
	return nil
}

func (p *heapPage) getBeforeImage() []byte {
	return p.beforeImage
}

// getNumEmptySlots counts the zero bits in the header.
func (p *heapPage) getNumEmptySlots() int {
	n := 0
	for _, t := range p.tuples {
		if t == nil {
			n++
		}
	}
	return n
}

// insertTuple assigns t.Rid to (pid, first zero slot) and writes it, or
// fails with NoSpaceError if the page is full.
func (p *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	for slot, existing := range p.tuples {
		if existing != nil {
			continue
		}
		rid := RecordID{PageID: p.pid, SlotNo: slot}
		stored := &Tuple{Desc: *p.desc, Fields: t.Fields, Rid: &rid}
		p.tuples[slot] = stored
		t.Rid = &rid
		return rid, nil
	}
	return RecordID{}, GoDBError{NoSpaceError, "page has no empty slots"}
}

// deleteTuple clears the slot named by rid, failing with NotFoundError if
// rid does not belong to this page or the slot is already empty.
func (p *heapPage) deleteTuple(rid RecordID) error {
	if rid.PageID != p.pid {
		return GoDBError{NotFoundError, "record id belongs to a different page"}
	}
	if rid.SlotNo < 0 || rid.SlotNo >= p.numSlots || p.tuples[rid.SlotNo] == nil {
		return GoDBError{NotFoundError, "slot is not occupied"}
	}
	p.tuples[rid.SlotNo] = nil
	return nil
}

// markDirty sets or clears the page's owning-transaction marker.
func (p *heapPage) markDirty(dirty bool, tid TransactionID) {
	if dirty {
		t := tid
		p.dirtyTid = &t
	} else {
		p.dirtyTid = nil
	}
}

func (p *heapPage) isDirty() bool {
	return p.dirtyTid != nil
}

// iterator returns a fresh closure over this page's occupied slots, in
// slot-number order. Calling iterator() again restarts the scan.
func (p *heapPage) iterator() func() (*Tuple, error) {
	slot := 0
	return func() (*Tuple, error) {
		for slot < p.numSlots {
			t := p.tuples[slot]
			slot++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

// createEmptyPageData returns a zero-initialized, PageSize-byte page image:
// every header bit clear, every slot's bytes zero. Used by HeapFile when it
// appends a new page to a table on disk.
func createEmptyPageData() []byte {
	return make([]byte, PageSize)
}
