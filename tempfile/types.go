package tempfile

import (
	"bufio"
	"io"
)

// Writer is the write side of a spill arena. Sections are written
// strictly in series: Write appends to the current section, Next seals
// it, and Save seals the last section and flips the arena into read
// mode. Close aborts the arena and removes any backing storage.
type Writer interface {
	io.Closer

	// Size returns the number of sections, counting the one currently
	// being written.
	Size() int

	// Write appends data to the current section.
	Write(p []byte) (int, error)

	// Next seals the current section and returns the arena offset at
	// which the next section begins.
	Next() (int64, error)

	// Save seals all sections and returns a Reader over them. The
	// Writer must not be used afterwards.
	Save() (Reader, error)
}

// Reader is the read side of a spill arena. Every section sealed by the
// Writer is independently readable, so a k-way merge can hold one
// cursor per section over a single file descriptor. Close removes the
// backing storage.
type Reader interface {
	io.Closer

	// Size returns the number of readable sections.
	Size() int

	// Section returns a buffered reader positioned at the start of
	// section i. i must be in [0, Size()).
	Section(i int) *bufio.Reader
}
