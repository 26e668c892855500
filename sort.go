// Package streamkit implements memory-bounded streaming operations
// over record collections that exceed available memory: external
// sorting by an arbitrary comparator, streaming deduplication by a
// derived key, and top-N selection without a full sort. Records are
// opaque; callers supply a serialize/deserialize pair and a three-way
// comparator.
package streamkit

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/genotype-bio/streamkit/bheap"
	"github.com/genotype-bio/streamkit/tempfile"
)

// member pairs a decoded record with the serialized form produced on
// arrival, so each record is serialized exactly once: the bytes gate
// the chunk size and are later written verbatim to the spill arena.
type member[E any] struct {
	rec E
	raw []byte
}

// chunk is the in-memory buffer for one spill section. Its on-disk
// content is already sorted by the active comparator at write time.
type chunk[E any] struct {
	members []member[E]
	bytes   int64
}

// SortStats are the counters maintained across one Sort invocation.
// They are safe to read while the sort is running.
type SortStats struct {
	RecordsIn     uint64
	RecordsOut    uint64
	ChunksSpilled uint64
	BytesSpilled  uint64
}

type sortCounters struct {
	recordsIn     atomic.Uint64
	recordsOut    atomic.Uint64
	chunksSpilled atomic.Uint64
	bytesSpilled  atomic.Uint64
}

// ExternalSorter sorts a record stream larger than memory by splitting
// it into comparator-sorted chunks spilled to a temp-file arena and
// k-way merging them back into one sorted stream. Each invocation
// exclusively owns its arena, which is removed on every exit path.
type ExternalSorter[E any] struct {
	config    Config
	input     <-chan E
	fromBytes FromBytes[E]
	toBytes   ToBytes[E]
	cmp       Compare[E]

	buildCtx context.Context
	saveCtx  context.Context

	chunkChan     chan *chunk[E]
	saveChunkChan chan *chunk[E]
	outChan       chan E
	errChan       chan error

	newArena    func() (tempfile.Writer, error)
	arena       tempfile.Writer
	arenaReader tempfile.Reader
	singleChunk *chunk[E]

	chunkPool sync.Pool
	counters  sortCounters
}

// NewSorter creates an external sorter over the input channel.
// Configuration problems are reported here, before any resource is
// acquired. Call Sort to start the pipeline.
func NewSorter[E any](input <-chan E, fromBytes FromBytes[E], toBytes ToBytes[E], cmp Compare[E], config *Config) (*ExternalSorter[E], error) {
	if config != nil {
		if err := validateConfig(config); err != nil {
			return nil, err
		}
	}
	cfg := mergeConfig(config)
	s := &ExternalSorter[E]{
		config:        *cfg,
		input:         input,
		fromBytes:     fromBytes,
		toBytes:       toBytes,
		cmp:           cmp,
		chunkChan:     make(chan *chunk[E], cfg.ChanBuffSize),
		saveChunkChan: make(chan *chunk[E], cfg.NumSortWorkers*2),
		outChan:       make(chan E, cfg.SortedChanBuffSize),
		errChan:       make(chan error, 1),
	}
	s.newArena = func() (tempfile.Writer, error) {
		return tempfile.NewArena(s.config.TempDir)
	}
	s.chunkPool = sync.Pool{
		New: func() any {
			return &chunk[E]{members: make([]member[E], 0, 1024)}
		},
	}
	return s, nil
}

// NewSorterMock creates a sorter that spills to memory instead of
// disk, for tests and benchmarks without filesystem I/O. n sets the
// initial arena capacity in bytes.
func NewSorterMock[E any](input <-chan E, fromBytes FromBytes[E], toBytes ToBytes[E], cmp Compare[E], config *Config, n int) (*ExternalSorter[E], error) {
	s, err := NewSorter(input, fromBytes, toBytes, cmp, config)
	if err != nil {
		return nil, err
	}
	s.newArena = func() (tempfile.Writer, error) {
		return tempfile.NewMemArena(n), nil
	}
	return s, nil
}

// Stats returns a snapshot of the sort counters.
func (s *ExternalSorter[E]) Stats() SortStats {
	return SortStats{
		RecordsIn:     s.counters.recordsIn.Load(),
		RecordsOut:    s.counters.recordsOut.Load(),
		ChunksSpilled: s.counters.chunksSpilled.Load(),
		BytesSpilled:  s.counters.bytesSpilled.Load(),
	}
}

// Sort starts the pipeline and returns the sorted output channel and
// the error channel. Exactly one terminal error is delivered on
// failure; both channels are closed when the sort finishes either way.
// The context must outlive the drain of the output channel.
func (s *ExternalSorter[E]) Sort(ctx context.Context) (<-chan E, <-chan error) {
	go s.run(ctx)
	return s.outChan, s.errChan
}

func (s *ExternalSorter[E]) run(ctx context.Context) {
	var buildGroup, saveGroup *errgroup.Group
	saveGroup, s.saveCtx = errgroup.WithContext(ctx)
	// the build stage derives from the save context so that a spill
	// failure unblocks sort workers parked on saveChunkChan
	buildGroup, s.buildCtx = errgroup.WithContext(s.saveCtx)

	buildGroup.Go(s.buildChunks)
	for i := 0; i < s.config.NumSortWorkers; i++ {
		buildGroup.Go(s.sortChunks)
	}
	saveGroup.Go(s.saveChunks)

	buildErr := buildGroup.Wait()
	// the save worker drains saveChunkChan either way; close it so the
	// worker can finish before cleanup decisions are made
	close(s.saveChunkChan)
	saveErr := saveGroup.Wait()
	if err := primaryError(buildErr, saveErr); err != nil {
		s.fail(err)
		return
	}

	if s.singleChunk != nil {
		s.emitSingleChunk(ctx)
		return
	}
	if s.arenaReader == nil {
		// empty input: nothing was buffered or spilled
		close(s.outChan)
		close(s.errChan)
		return
	}
	s.merge(ctx)
}

// primaryError picks the error to report when both pipeline stages
// failed: a real failure beats the context error its cancellation
// caused in the other stage.
func primaryError(buildErr, saveErr error) error {
	if buildErr == nil {
		return saveErr
	}
	if saveErr != nil && errors.Is(buildErr, context.Canceled) && !errors.Is(saveErr, context.Canceled) {
		return saveErr
	}
	return buildErr
}

// fail releases any spill storage, then delivers err as the terminal
// error. Cleanup failures are logged, never allowed to mask err.
func (s *ExternalSorter[E]) fail(err error) {
	s.releaseSpill()
	s.errChan <- err
	close(s.errChan)
	close(s.outChan)
}

// releaseSpill removes the arena in whichever mode it is in.
func (s *ExternalSorter[E]) releaseSpill() {
	if s.arenaReader != nil {
		if cerr := s.arenaReader.Close(); cerr != nil {
			s.config.Logger.WithError(cerr).Warn("temp chunk cleanup failed")
		}
		s.arenaReader = nil
		s.arena = nil
		return
	}
	if s.arena != nil {
		if cerr := s.arena.Close(); cerr != nil {
			s.config.Logger.WithError(cerr).Warn("temp chunk cleanup failed")
		}
		s.arena = nil
	}
}

func (s *ExternalSorter[E]) getChunk() *chunk[E] {
	c := s.chunkPool.Get().(*chunk[E])
	c.members = c.members[:0]
	c.bytes = 0
	return c
}

func (s *ExternalSorter[E]) putChunk(c *chunk[E]) {
	if c != nil {
		s.chunkPool.Put(c)
	}
}

// buildChunks reads the input stream, serializing each record on
// arrival and cutting a chunk whenever the serialized size reaches
// ChunkSizeBytes. The final partial chunk is flushed the same way.
func (s *ExternalSorter[E]) buildChunks() error {
	defer close(s.chunkChan) // if this is not called on error, causes a deadlock

	inputIndex := -1
	for {
		c := s.getChunk()
		for c.bytes < s.config.ChunkSizeBytes {
			var rec E
			var ok bool
			select {
			case rec, ok = <-s.input:
			case <-s.buildCtx.Done():
				s.putChunk(c)
				return s.buildCtx.Err()
			}
			if !ok {
				break
			}
			inputIndex++
			raw, err := s.toBytes(rec)
			if err != nil {
				s.putChunk(c)
				return NewValidationError(err, "serialize record", -1, inputIndex, 0)
			}
			c.members = append(c.members, member[E]{rec: rec, raw: raw})
			c.bytes += int64(len(raw))
			s.counters.recordsIn.Add(1)
		}
		if len(c.members) == 0 {
			s.putChunk(c)
			return nil
		}
		full := c.bytes >= s.config.ChunkSizeBytes
		select {
		case s.chunkChan <- c:
		case <-s.buildCtx.Done():
			s.putChunk(c)
			return s.buildCtx.Err()
		}
		if !full {
			// input closed mid-chunk
			return nil
		}
	}
}

// sortChunks is a worker sorting buffered chunks in memory before the
// spill. In-memory parallelism here is invisible downstream: sections
// are still written in hand-off order and merged by the comparator.
func (s *ExternalSorter[E]) sortChunks() error {
	for {
		select {
		case c, more := <-s.chunkChan:
			if !more {
				return nil
			}
			if err := s.sortChunk(c); err != nil {
				s.putChunk(c)
				return err
			}
			select {
			case s.saveChunkChan <- c:
			case <-s.buildCtx.Done():
				s.putChunk(c)
				return s.buildCtx.Err()
			}
		case <-s.buildCtx.Done():
			return s.buildCtx.Err()
		}
	}
}

func (s *ExternalSorter[E]) sortChunk(c *chunk[E]) (err error) {
	defer func() {
		// a panicking comparator is a contract violation; surface it as
		// an error instead of tearing down the caller
		if r := recover(); r != nil {
			err = fmt.Errorf("comparator panic while sorting chunk: %v", r)
		}
	}()
	slices.SortFunc(c.members, func(a, b member[E]) int {
		return s.cmp(a.rec, b.rec)
	})
	return nil
}

// saveChunks receives sorted chunks and spills them to the arena. The
// arena is created lazily on the second chunk: a lone chunk stays in
// memory and never touches disk.
func (s *ExternalSorter[E]) saveChunks() error {
	var first *chunk[E]
	var ok bool
	select {
	case first, ok = <-s.saveChunkChan:
		if !ok {
			return nil
		}
	case <-s.saveCtx.Done():
		return s.saveCtx.Err()
	}

	var second *chunk[E]
	select {
	case second, ok = <-s.saveChunkChan:
		if !ok {
			// single chunk: keep it in memory
			s.singleChunk = first
			return nil
		}
	case <-s.saveCtx.Done():
		s.putChunk(first)
		return s.saveCtx.Err()
	}

	var err error
	s.arena, err = s.newArena()
	if err != nil {
		s.putChunk(first)
		s.putChunk(second)
		return NewResourceError(err, "create temp file", s.config.TempDir)
	}

	if err := s.saveChunk(first); err != nil {
		s.putChunk(second)
		return err
	}
	if err := s.saveChunk(second); err != nil {
		return err
	}

	for {
		select {
		case c, more := <-s.saveChunkChan:
			if !more {
				s.arenaReader, err = s.arena.Save()
				if err != nil {
					return NewResourceError(err, "finalize temp file", "")
				}
				s.arena = nil
				return nil
			}
			if err := s.saveChunk(c); err != nil {
				return err
			}
		case <-s.saveCtx.Done():
			return s.saveCtx.Err()
		}
	}
}

// saveChunk writes one sorted chunk as a sealed arena section, each
// record uvarint-length-prefixed.
func (s *ExternalSorter[E]) saveChunk(c *chunk[E]) error {
	var scratch [binary.MaxVarintLen64]byte
	for _, m := range c.members {
		n := binary.PutUvarint(scratch[:], uint64(len(m.raw)))
		if _, err := s.arena.Write(scratch[:n]); err != nil {
			s.putChunk(c)
			return NewResourceError(err, "write chunk header", "")
		}
		if _, err := s.arena.Write(m.raw); err != nil {
			s.putChunk(c)
			return NewResourceError(err, "write chunk record", "")
		}
		s.counters.bytesSpilled.Add(uint64(len(m.raw)))
	}
	if _, err := s.arena.Next(); err != nil {
		s.putChunk(c)
		return NewResourceError(err, "seal chunk", "")
	}
	s.counters.chunksSpilled.Add(1)
	s.putChunk(c)
	return nil
}

// emitSingleChunk outputs the lone sorted chunk directly from memory.
func (s *ExternalSorter[E]) emitSingleChunk(ctx context.Context) {
	defer close(s.errChan)
	defer close(s.outChan)

	c := s.singleChunk
	s.singleChunk = nil
	for _, m := range c.members {
		select {
		case s.outChan <- m.rec:
			s.counters.recordsOut.Add(1)
		case <-ctx.Done():
			s.errChan <- ctx.Err()
			return
		}
	}
	s.putChunk(c)
}

// cursor is the per-chunk read state during the merge: the current
// decoded record plus its position for error reporting. A cursor only
// advances after its previous record was consumed, naturally
// rate-limiting disk reads.
type cursor[E any] struct {
	head      E
	reader    *bufio.Reader
	fromBytes FromBytes[E]
	chunk     int
	index     int
}

// advance decodes the next record into head. It reports false at the
// end of the section. A decode failure is a ValidationError carrying
// the chunk and record position; the merge fails rather than
// substituting a sentinel record.
func (cu *cursor[E]) advance() (bool, error) {
	n, err := binary.ReadUvarint(cu.reader)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, NewResourceError(err, "read chunk record", "")
	}
	raw := make([]byte, int(n))
	if _, err := io.ReadFull(cu.reader, raw); err != nil {
		return false, NewResourceError(err, "read chunk record", "")
	}
	rec, err := cu.fromBytes(raw)
	if err != nil {
		return false, NewValidationError(err, "deserialize record", cu.chunk, cu.index, len(raw))
	}
	cu.head = rec
	cu.index++
	return true, nil
}

// merge streams the k-way merge of all sealed sections: a heap of
// cursors ordered by their current heads, popping the minimum and
// pulling the next record from the same section.
func (s *ExternalSorter[E]) merge(ctx context.Context) {
	defer close(s.errChan)
	defer close(s.outChan)
	defer s.releaseSpill()

	h := bheap.New(func(a, b *cursor[E]) int {
		return s.cmp(a.head, b.head)
	})

	for i := 0; i < s.arenaReader.Size(); i++ {
		cu := &cursor[E]{
			reader:    s.arenaReader.Section(i),
			fromBytes: s.fromBytes,
			chunk:     i,
			index:     -1,
		}
		ok, err := cu.advance()
		if err != nil {
			// release before the error is observable downstream
			s.releaseSpill()
			s.errChan <- err
			return
		}
		if ok {
			h.Push(cu)
		}
	}

	for h.Len() > 0 {
		cu := h.Peek()
		rec := cu.head
		ok, err := cu.advance()
		if err != nil {
			s.releaseSpill()
			s.errChan <- err
			return
		}
		if ok {
			h.PeekUpdate()
		} else {
			h.Pop()
		}
		select {
		case s.outChan <- rec:
			s.counters.recordsOut.Add(1)
		case <-ctx.Done():
			s.releaseSpill()
			s.errChan <- ctx.Err()
			return
		}
	}
}
