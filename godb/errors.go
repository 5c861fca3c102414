package godb

import "fmt"

// GoDBErrorCode identifies the kind of failure a storage-layer operation
// returned, independent of the underlying cause. Callers switch on the code,
// not on the message.
type GoDBErrorCode int

const (
	// TransactionAbortedError: lock deadline exceeded, eviction failed
	// because every cached page is dirty, or caller-driven rollback.
	TransactionAbortedError GoDBErrorCode = iota
	// NoSpaceError: a page has no free slot for insertTuple.
	NoSpaceError
	// NotFoundError: deleteTuple targets a slot that is not occupied.
	NotFoundError
	// InvalidPageError: a page number is out of range for read/write.
	InvalidPageError
	// IoError: the underlying file system failed. No function in this
	// module returns it; file-system failures come back as wrapped errors
	// (see GoDBError).
	IoError
	// AmbiguousNameError: raised by findFieldInTd. IncompatibleTypesError:
	// raised by findFieldInTd for a missing field, by tuple encoding for an
	// overlong string, by HeapFile.insertTuple for a schema mismatch, and by
	// BufferPool when a catalog entry is not a heap file. MalformedDataError
	// and TypeMismatchError are not returned by any function in this module.
	AmbiguousNameError
	IncompatibleTypesError
	MalformedDataError
	TypeMismatchError
)

// GoDBError is the domain error kind raised by this module. I/O failures are
// not converted to a GoDBError: they are returned as the underlying error
// wrapped with github.com/pkg/errors.Wrap, so errors.Cause recovers the
// original cause, but errors.As finds no GoDBError and no IoError code.
type GoDBError struct {
	Code GoDBErrorCode
	Msg  string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (c GoDBErrorCode) String() string {
	switch c {
	case TransactionAbortedError:
		return "transaction aborted"
	case NoSpaceError:
		return "no space"
	case NotFoundError:
		return "not found"
	case InvalidPageError:
		return "invalid page"
	case IoError:
		return "io error"
	case AmbiguousNameError:
		return "ambiguous name"
	case IncompatibleTypesError:
		return "incompatible types"
	case MalformedDataError:
		return "malformed data"
	case TypeMismatchError:
		return "type mismatch"
	default:
		return "unknown error"
	}
}
