package streamkit

import "context"

// FromBytes deserializes a record from the bytes produced by the
// matching ToBytes. It is used during the merge phase to reconstruct
// records from spilled chunks. It must not fail on any byte slice its
// counterpart produced in the same run; a failure aborts the whole
// operation with a ValidationError.
type FromBytes[E any] func([]byte) (E, error)

// ToBytes serializes a record for spilling to temporary storage. It
// must produce output that round-trips losslessly through the matching
// FromBytes for comparator purposes.
type ToBytes[E any] func(E) ([]byte, error)

// Compare is a three-way comparator over records: negative when a
// orders before b, zero when equal, positive when a orders after b. It
// must be a consistent total preorder. Records that compare equal may
// reorder across a chunk boundary; callers that need a stable sort
// must embed a tiebreaker such as the original index.
type Compare[E any] func(a, b E) int

// KeyFunc derives the deduplication key for a record.
type KeyFunc[E any] func(E) string

// Record is the interface the built-in deduplication key strategies
// operate on. Custom record types either implement it or supply a
// KeyFunc instead.
type Record interface {
	// ID returns the record's identifier (e.g. a sequence header).
	ID() string
	// Content returns the record's payload (e.g. the sequence itself).
	Content() string
}

// Sorter is implemented by the external sorter. Sort consumes the
// input stream and lazily delivers the sorted stream and any terminal
// error on the returned channels.
type Sorter[E any] interface {
	Sort(ctx context.Context) (<-chan E, <-chan error)
}
