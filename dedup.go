package streamkit

import (
	"context"
	"strings"

	"github.com/genotype-bio/streamkit/bheap"
)

// topDuplicatesK is how many of the most-duplicated keys the stats
// report when duplicate tracking is enabled.
const topDuplicatesK = 10

// KeyStrategy selects one of the built-in deduplication keys. The
// built-ins operate on the Record interface; arbitrary record types
// inject a KeyFunc instead.
type KeyStrategy int

const (
	// KeyByBoth keys on ID and content together. The default.
	KeyByBoth KeyStrategy = iota
	// KeyByContent keys on the record payload only.
	KeyByContent
	// KeyByID keys on the record identifier only.
	KeyByID
	// KeyByAllFields keys on the full serialized record and requires
	// a ToBytes function in the options.
	KeyByAllFields
)

// DedupOptions configures a deduplicator. The zero value selects
// KeyByBoth over one million expected items at a 0.1% false-positive
// rate, case-sensitive, without duplicate tracking.
type DedupOptions[E any] struct {
	Strategy          KeyStrategy // built-in key strategy; ignored when Key is set
	Key               KeyFunc[E]  // user-supplied key derivation
	ToBytes           ToBytes[E]  // serializer, required by KeyByAllFields
	ExpectedItems     uint64      // sizing hint for the filter
	FalsePositiveRate float64     // target FPR for the probabilistic variant
	Scalable          bool        // grow the filter past ExpectedItems
	TrackDuplicates   bool        // keep a per-key duplicate histogram
	CaseInsensitive   bool        // fold keys before comparison
}

const (
	defaultExpectedItems     = 1_000_000
	defaultFalsePositiveRate = 0.001
)

// KeyCount is one entry of the duplicate histogram.
type KeyCount struct {
	Key   string
	Count uint64
}

// DedupStats summarizes one deduplication pass.
type DedupStats struct {
	// Processed, Unique and Duplicates always satisfy
	// Unique + Duplicates == Processed.
	Processed  uint64
	Unique     uint64
	Duplicates uint64
	// MemoryBytes estimates the memory held by the seen-set.
	MemoryBytes uint64
	// EstimatedFPR is the expected false-positive probability at the
	// current load; always zero for the exact variant.
	EstimatedFPR float64
	// TopDuplicates holds the most-duplicated keys, best first, when
	// duplicate tracking is enabled.
	TopDuplicates []KeyCount
}

// Deduplicator filters a record stream down to the first occurrence
// per derived key. Two implementations share the contract: the
// Bloom-filter-backed BloomDeduplicator (constant-ish memory, false
// positives allowed) and the ExactDeduplicator (memory proportional to
// the unique count, no false positives).
//
// A deduplicator's state is mutated only by its owning stream; no
// method is safe for concurrent use without external synchronization.
type Deduplicator[E any] interface {
	// Deduplicate lazily yields only first-occurrence records,
	// preserving their input order.
	Deduplicate(ctx context.Context, in <-chan E) (<-chan E, <-chan error)
	// Process runs the same traversal, discarding output and updating
	// stats only.
	Process(ctx context.Context, in <-chan E) error
	// IsUnique reports whether the record's key has not been seen.
	// It does not mark the key.
	IsUnique(rec E) (bool, error)
	// MarkSeen records the record's key without emitting anything.
	MarkSeen(rec E) error
	// Stats returns the counters accumulated so far.
	Stats() DedupStats
	// Merge folds another deduplicator's seen-state into this one.
	// Incompatible pairings return a MergeFilterError.
	Merge(other Deduplicator[E]) error
	// Reset clears seen-state and stats for reuse.
	Reset()
}

// resolveKeyFunc turns the configured strategy into a key derivation
// function, validating that the record type can support it.
func resolveKeyFunc[E any](opts *DedupOptions[E]) (func(E) (string, error), error) {
	var fn func(E) (string, error)
	switch {
	case opts.Key != nil:
		userKey := opts.Key
		fn = func(rec E) (string, error) { return userKey(rec), nil }
	case opts.Strategy == KeyByAllFields:
		if opts.ToBytes == nil {
			return nil, NewConfigurationError("Strategy", "KeyByAllFields", "requires a ToBytes serializer")
		}
		toBytes := opts.ToBytes
		fn = func(rec E) (string, error) {
			raw, err := toBytes(rec)
			if err != nil {
				return "", NewValidationError(err, "derive key", -1, -1, 0)
			}
			return string(raw), nil
		}
	default:
		var zero E
		if _, ok := any(zero).(Record); !ok {
			return nil, NewConfigurationError("Strategy", opts.Strategy,
				"built-in key strategies require the record type to implement Record; supply a Key function instead")
		}
		switch opts.Strategy {
		case KeyByBoth:
			fn = func(rec E) (string, error) {
				r := any(rec).(Record)
				return r.ID() + "\x1f" + r.Content(), nil
			}
		case KeyByContent:
			fn = func(rec E) (string, error) { return any(rec).(Record).Content(), nil }
		case KeyByID:
			fn = func(rec E) (string, error) { return any(rec).(Record).ID(), nil }
		default:
			return nil, NewConfigurationError("Strategy", opts.Strategy, "unknown key strategy")
		}
	}
	if opts.CaseInsensitive {
		inner := fn
		fn = func(rec E) (string, error) {
			key, err := inner(rec)
			if err != nil {
				return "", err
			}
			return strings.ToLower(key), nil
		}
	}
	return fn, nil
}

// dedupCore is the state shared by both deduplicator implementations:
// key derivation, counters, and the optional duplicate histogram.
type dedupCore[E any] struct {
	keyFn           func(E) (string, error)
	trackDuplicates bool

	processed  uint64
	unique     uint64
	duplicates uint64
	dupCounts  map[string]uint64
}

func newDedupCore[E any](opts *DedupOptions[E]) (dedupCore[E], error) {
	keyFn, err := resolveKeyFunc(opts)
	if err != nil {
		return dedupCore[E]{}, err
	}
	c := dedupCore[E]{
		keyFn:           keyFn,
		trackDuplicates: opts.TrackDuplicates,
	}
	if c.trackDuplicates {
		c.dupCounts = make(map[string]uint64)
	}
	return c, nil
}

// runStream is the single traversal behind Deduplicate and Process.
// testAndSet reports whether the key was unseen and marks it. A nil
// out channel discards survivors.
func (c *dedupCore[E]) runStream(ctx context.Context, in <-chan E, out chan<- E, testAndSet func(string) bool) error {
	for {
		var rec E
		var ok bool
		select {
		case rec, ok = <-in:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			return nil
		}
		key, err := c.keyFn(rec)
		if err != nil {
			return err
		}
		c.processed++
		if testAndSet(key) {
			c.unique++
			if out != nil {
				select {
				case out <- rec:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		} else {
			c.duplicates++
			if c.trackDuplicates {
				c.dupCounts[key]++
			}
		}
	}
}

func (c *dedupCore[E]) resetCounters() {
	c.processed = 0
	c.unique = 0
	c.duplicates = 0
	if c.trackDuplicates {
		c.dupCounts = make(map[string]uint64)
	}
}

func (c *dedupCore[E]) mergeCounters(o *dedupCore[E]) {
	c.processed += o.processed
	c.unique += o.unique
	c.duplicates += o.duplicates
	if c.trackDuplicates && o.dupCounts != nil {
		for k, v := range o.dupCounts {
			c.dupCounts[k] += v
		}
	}
}

// topDuplicates returns the most-duplicated keys best-first, keeping
// only a bounded heap of candidates while scanning the histogram.
func (c *dedupCore[E]) topDuplicates() []KeyCount {
	if len(c.dupCounts) == 0 {
		return nil
	}
	// root is the weakest kept entry; ties break on key for
	// deterministic output
	h := bheap.NewBounded(func(a, b KeyCount) int {
		if a.Count != b.Count {
			if a.Count < b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(b.Key, a.Key)
	}, topDuplicatesK)
	for k, v := range c.dupCounts {
		h.Add(KeyCount{Key: k, Count: v})
	}
	out := h.DrainSorted()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
