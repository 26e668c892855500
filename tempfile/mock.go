package tempfile

import (
	"bufio"
	"bytes"
	"io"
)

// MemArena is an in-memory Writer for tests and benchmarks that need
// the sectioned arena behavior without filesystem I/O.
type MemArena struct {
	data     *bytes.Buffer
	sections []int
	dirty    bool
}

// NewMemArena creates an in-memory arena with an initial capacity of n
// bytes.
func NewMemArena(n int) *MemArena {
	return &MemArena{data: bytes.NewBuffer(make([]byte, 0, n))}
}

// Size returns the number of sections, counting the in-progress one.
func (m *MemArena) Size() int {
	return len(m.sections) + 1
}

// Write appends data to the current section.
func (m *MemArena) Write(p []byte) (int, error) {
	if len(p) > 0 {
		m.dirty = true
	}
	return m.data.Write(p)
}

// Next seals the current section.
func (m *MemArena) Next() (int64, error) {
	pos := m.data.Len()
	m.sections = append(m.sections, pos)
	m.dirty = false
	return int64(pos), nil
}

// Save seals the final section if it holds data and returns a Reader
// over the buffer.
func (m *MemArena) Save() (Reader, error) {
	if m.dirty {
		if _, err := m.Next(); err != nil {
			return nil, err
		}
	}
	return newMemReader(m.sections, m.data.Bytes()), nil
}

// Close discards the buffered data.
func (m *MemArena) Close() error {
	m.data = nil
	m.sections = nil
	return nil
}

type memReader struct {
	data    *bytes.Reader
	readers []*bufio.Reader
}

func newMemReader(sections []int, data []byte) *memReader {
	r := &memReader{
		data:    bytes.NewReader(data),
		readers: make([]*bufio.Reader, len(sections)),
	}
	offset := 0
	for i, end := range sections {
		section := io.NewSectionReader(r.data, int64(offset), int64(end-offset))
		offset = end
		r.readers[i] = bufio.NewReaderSize(section, bufferSize)
	}
	return r
}

func (r *memReader) Size() int {
	return len(r.readers)
}

func (r *memReader) Section(i int) *bufio.Reader {
	if i < 0 || i >= len(r.readers) {
		panic("tempfile: section request out of range")
	}
	return r.readers[i]
}

func (r *memReader) Close() error {
	r.readers = nil
	r.data = nil
	return nil
}
