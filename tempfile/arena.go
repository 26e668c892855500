// Package tempfile implements the spill arena used by the external
// sorter. The virtual chunk files of one sort invocation are mapped to
// sections of a single physical temp file, written in series and read
// back concurrently, then removed from the filesystem when done. Using
// one real file keeps descriptor usage constant no matter how many
// chunks an invocation spills.
package tempfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// file IO buffer size for each section reader/writer
const bufferSize = 1 << 16 // 64k

// Arena is the disk-backed Writer implementation. The backing file is
// created with a pid-tagged prefix plus the random suffix supplied by
// os.CreateTemp, so concurrent invocations never collide.
type Arena struct {
	file      *os.File
	bufWriter *bufio.Writer
	sections  []int64
	dirty     bool
}

// NewArena creates a spill arena in dir. An empty dir selects the
// platform default temp directory.
func NewArena(dir string) (*Arena, error) {
	f, err := os.CreateTemp(dir, fmt.Sprintf("streamkit_%d_", os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Arena{
		file:      f,
		bufWriter: bufio.NewWriterSize(f, bufferSize),
		sections:  make([]int64, 0, 16),
	}, nil
}

// Name returns the path of the backing file.
func (a *Arena) Name() string {
	return a.file.Name()
}

// Size returns the number of sections, counting the in-progress one.
func (a *Arena) Size() int {
	return len(a.sections) + 1
}

// Write appends data to the current section.
func (a *Arena) Write(p []byte) (int, error) {
	if len(p) > 0 {
		a.dirty = true
	}
	return a.bufWriter.Write(p)
}

// Next seals the current section and records its end offset.
func (a *Arena) Next() (int64, error) {
	if err := a.bufWriter.Flush(); err != nil {
		return 0, err
	}
	pos, err := a.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	a.sections = append(a.sections, pos)
	a.dirty = false
	return pos, nil
}

// Save seals the final section if it holds data, syncs the file, and
// reopens it for sectioned reading. The Arena must not be written to
// afterwards.
func (a *Arena) Save() (Reader, error) {
	if a.dirty {
		if _, err := a.Next(); err != nil {
			return nil, err
		}
	}
	if err := a.file.Sync(); err != nil {
		return nil, err
	}
	if err := a.file.Close(); err != nil {
		return nil, err
	}
	return newArenaReader(a.file.Name(), a.sections)
}

// Close aborts the arena and removes the backing file. Irreversible.
func (a *Arena) Close() error {
	name := a.file.Name()
	err := a.file.Close()
	a.bufWriter = nil
	a.sections = nil
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}

// ArenaReader reads the sealed sections of an Arena. Each section gets
// its own buffered SectionReader over the shared descriptor, so cursors
// into different sections do not disturb each other.
type ArenaReader struct {
	file    *os.File
	readers []*bufio.Reader
}

func newArenaReader(filename string, sections []int64) (*ArenaReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	r := &ArenaReader{
		file:    f,
		readers: make([]*bufio.Reader, len(sections)),
	}
	offset := int64(0)
	for i, end := range sections {
		section := io.NewSectionReader(f, offset, end-offset)
		offset = end
		r.readers[i] = bufio.NewReaderSize(section, bufferSize)
	}
	return r, nil
}

// Name returns the path of the backing file.
func (r *ArenaReader) Name() string {
	return r.file.Name()
}

// Size returns the number of readable sections.
func (r *ArenaReader) Size() int {
	return len(r.readers)
}

// Section returns the buffered reader for section i.
func (r *ArenaReader) Section(i int) *bufio.Reader {
	if i < 0 || i >= len(r.readers) {
		panic("tempfile: section request out of range")
	}
	return r.readers[i]
}

// Close releases the descriptor and removes the backing file.
func (r *ArenaReader) Close() error {
	name := r.file.Name()
	r.readers = nil
	err := r.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
