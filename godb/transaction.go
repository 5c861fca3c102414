package godb

import "github.com/google/uuid"

// TransactionID is an opaque, equality-comparable identifier for a
// transaction. It is backed by a UUID rather than a shared atomic counter so
// that concurrently-starting transactions never contend on a single counter
// cache line.
type TransactionID struct {
	id uuid.UUID
}

// NewTID allocates a fresh transaction identifier.
func NewTID() TransactionID {
	return TransactionID{id: uuid.New()}
}

func (t TransactionID) String() string {
	return t.id.String()
}
