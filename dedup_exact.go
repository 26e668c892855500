package streamkit

import (
	"context"
)

// mapEntryOverhead approximates the per-entry bookkeeping cost of the
// seen-set map, for the stats memory estimate.
const mapEntryOverhead = 48

// ExactDeduplicator is the exact Deduplicator: every seen key is held
// in a set, so memory grows with the unique count but no record is
// ever misclassified.
type ExactDeduplicator[E any] struct {
	dedupCore[E]

	seen     map[string]struct{}
	keyBytes uint64
}

// NewExactDeduplicator creates an exact deduplicator. The filter
// sizing options are ignored; key options apply as for the
// probabilistic variant.
func NewExactDeduplicator[E any](opts *DedupOptions[E]) (*ExactDeduplicator[E], error) {
	if opts == nil {
		opts = &DedupOptions[E]{}
	}
	core, err := newDedupCore(opts)
	if err != nil {
		return nil, err
	}
	return &ExactDeduplicator[E]{
		dedupCore: core,
		seen:      make(map[string]struct{}),
	}, nil
}

func (d *ExactDeduplicator[E]) testAndSet(key string) bool {
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	d.keyBytes += uint64(len(key))
	return true
}

// Deduplicate lazily yields first-occurrence records in input order.
func (d *ExactDeduplicator[E]) Deduplicate(ctx context.Context, in <-chan E) (<-chan E, <-chan error) {
	out := make(chan E, 1)
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		defer close(out)
		if err := d.runStream(ctx, in, out, d.testAndSet); err != nil {
			errChan <- err
		}
	}()
	return out, errChan
}

// Process consumes the stream for its stats only.
func (d *ExactDeduplicator[E]) Process(ctx context.Context, in <-chan E) error {
	return d.runStream(ctx, in, nil, d.testAndSet)
}

// IsUnique reports whether the record's key has not been seen, without
// marking it. Never wrong.
func (d *ExactDeduplicator[E]) IsUnique(rec E) (bool, error) {
	key, err := d.keyFn(rec)
	if err != nil {
		return false, err
	}
	_, dup := d.seen[key]
	return !dup, nil
}

// MarkSeen records the record's key without streaming it.
func (d *ExactDeduplicator[E]) MarkSeen(rec E) error {
	key, err := d.keyFn(rec)
	if err != nil {
		return err
	}
	d.testAndSet(key)
	return nil
}

// Stats returns the counters accumulated so far. EstimatedFPR is
// always zero.
func (d *ExactDeduplicator[E]) Stats() DedupStats {
	return DedupStats{
		Processed:     d.processed,
		Unique:        d.unique,
		Duplicates:    d.duplicates,
		MemoryBytes:   d.keyBytes + uint64(len(d.seen))*mapEntryOverhead,
		TopDuplicates: d.topDuplicates(),
	}
}

// Merge unions another exact deduplicator's seen-set into this one.
// Probabilistic deduplicators cannot be merged into an exact one.
func (d *ExactDeduplicator[E]) Merge(other Deduplicator[E]) error {
	o, ok := other.(*ExactDeduplicator[E])
	if !ok {
		return NewMergeFilterError("cannot merge a probabilistic deduplicator into an exact one", nil)
	}
	for key := range o.seen {
		d.testAndSet(key)
	}
	d.mergeCounters(&o.dedupCore)
	return nil
}

// Reset clears the seen-set and stats for reuse.
func (d *ExactDeduplicator[E]) Reset() {
	d.seen = make(map[string]struct{})
	d.keyBytes = 0
	d.resetCounters()
}
