package godb

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// LogSink is the write-ahead-log contract: LogWrite(tid, before, after)
// followed by Force() must precede every HeapFile.writePage call the
// BufferPool makes for a dirty page.
type LogSink interface {
	LogWrite(tid TransactionID, before, after []byte) error
	Force() error
}

// LogRecordType distinguishes the kinds of records written to a LogFile.
type LogRecordType int8

const (
	BeginRecord LogRecordType = iota
	CommitRecord
	AbortRecord
	UpdateRecord
)

func (t LogRecordType) String() string {
	switch t {
	case BeginRecord:
		return "begin"
	case CommitRecord:
		return "commit"
	case AbortRecord:
		return "abort"
	case UpdateRecord:
		return "update"
	default:
		return "unknown"
	}
}

// LogFile is a concrete LogSink. Its record format is a type byte, a
// transaction id, a variable-length body, and a trailing copy of the
// record's own start offset, which lets a reader walk the log backward
// without a separate footer index. Only the write path (LogWrite/Force,
// plus Commit/Abort markers) is wired into BufferPool; LogBegin is never
// called by it. ForwardIterator exists for inspection and testing, not
// crash recovery.
type LogFile struct {
	mu     sync.Mutex
	file   *os.File
	buf    bytes.Buffer
	offset int64
}

// NewLogFile opens (creating if necessary) the log file at path.
func NewLogFile(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statting log file")
	}
	return &LogFile{file: f, offset: info.Size()}, nil
}

func (w *LogFile) writeRaw(data any) {
	binary.Write(&w.buf, binary.LittleEndian, data)
	w.offset += int64(binary.Size(data))
}

func (w *LogFile) writeBytes(b []byte) {
	w.writeRaw(int32(len(b)))
	binary.Write(&w.buf, binary.LittleEndian, b)
	w.offset += int64(len(b))
}

func (w *LogFile) writeHeader(typ LogRecordType, tid TransactionID) int64 {
	start := w.offset
	w.writeRaw(int8(typ))
	idBytes, _ := tid.id.MarshalBinary()
	w.writeRaw(idBytes)
	return start
}

// LogWrite appends an UpdateRecord carrying the page's before- and
// after-images. It does not force the log to disk; callers (BufferPool)
// must call Force() before writing the page itself.
func (w *LogFile) LogWrite(tid TransactionID, before, after []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := w.writeHeader(UpdateRecord, tid)
	w.writeBytes(before)
	w.writeBytes(after)
	w.writeRaw(start)
	return nil
}

// LogBegin appends a BeginRecord marker.
func (w *LogFile) LogBegin(tid TransactionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := w.writeHeader(BeginRecord, tid)
	w.writeRaw(start)
}

// LogCommit appends a CommitRecord marker.
func (w *LogFile) LogCommit(tid TransactionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := w.writeHeader(CommitRecord, tid)
	w.writeRaw(start)
}

// LogAbort appends an AbortRecord marker.
func (w *LogFile) LogAbort(tid TransactionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := w.writeHeader(AbortRecord, tid)
	w.writeRaw(start)
}

// Force flushes any buffered records to stable storage.
func (w *LogFile) Force() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.file.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "writing log buffer")
	}
	w.buf.Reset()
	return errors.Wrap(w.file.Sync(), "syncing log file")
}

// LogRecord is one decoded record read back from a LogFile.
type LogRecord struct {
	Offset int64
	Type   LogRecordType
	Tid    TransactionID
	Before []byte
	After  []byte
}

// ForwardIterator returns a function that reads records from the start of
// the log in the order they were written. It returns (nil, nil) at EOF.
func (w *LogFile) ForwardIterator() (func() (*LogRecord, error), error) {
	if err := w.Force(); err != nil {
		return nil, err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking log file")
	}
	return func() (*LogRecord, error) {
		rec, err := readRecord(w.file)
		if err == io.EOF {
			return nil, nil
		}
		return rec, err
	}, nil
}

func readRecord(r io.Reader) (*LogRecord, error) {
	var typ int8
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return nil, err
	}
	var idBytes [16]byte
	if err := binary.Read(r, binary.LittleEndian, &idBytes); err != nil {
		return nil, err
	}
	var tid TransactionID
	if err := tid.id.UnmarshalBinary(idBytes[:]); err != nil {
		return nil, err
	}
	rec := &LogRecord{Type: LogRecordType(typ), Tid: tid}
	if rec.Type == UpdateRecord {
		before, err := readBytesField(r)
		if err != nil {
			return nil, err
		}
		after, err := readBytesField(r)
		if err != nil {
			return nil, err
		}
		rec.Before, rec.After = before, after
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Offset); err != nil {
		return nil, err
	}
	return rec, nil
}

func readBytesField(r io.Reader) ([]byte, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the underlying file.
func (w *LogFile) Close() error {
	return w.file.Close()
}
