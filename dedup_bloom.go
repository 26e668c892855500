package streamkit

import (
	"context"
	"errors"

	"github.com/genotype-bio/streamkit/bloom"
)

// BloomDeduplicator is the probabilistic Deduplicator: membership is
// tracked in a Bloom filter, so memory stays bounded regardless of the
// unique count, at the cost of occasionally misclassifying a fresh
// record as a duplicate (never the reverse).
type BloomDeduplicator[E any] struct {
	dedupCore[E]

	filter   *bloom.Filter         // fixed variant
	scalable *bloom.ScalableFilter // scalable variant; exactly one is set
}

// NewBloomDeduplicator creates a probabilistic deduplicator.
// Configuration problems surface here, not during streaming.
func NewBloomDeduplicator[E any](opts *DedupOptions[E]) (*BloomDeduplicator[E], error) {
	if opts == nil {
		opts = &DedupOptions[E]{}
	}
	core, err := newDedupCore(opts)
	if err != nil {
		return nil, err
	}
	expected := opts.ExpectedItems
	if expected == 0 {
		expected = defaultExpectedItems
	}
	fpr := opts.FalsePositiveRate
	if fpr == 0 {
		fpr = defaultFalsePositiveRate
	}
	d := &BloomDeduplicator[E]{dedupCore: core}
	if opts.Scalable {
		d.scalable, err = bloom.NewScalable(expected, fpr)
	} else {
		d.filter, err = bloom.New(expected, fpr)
	}
	if err != nil {
		return nil, NewConfigurationError("FalsePositiveRate", fpr, err.Error())
	}
	return d, nil
}

// testAndSet reports whether key was unseen, marking it either way.
func (d *BloomDeduplicator[E]) testAndSet(key string) bool {
	if d.scalable != nil {
		if d.scalable.ContainsString(key) {
			return false
		}
		d.scalable.AddString(key)
		return true
	}
	if d.filter.ContainsString(key) {
		return false
	}
	d.filter.AddString(key)
	return true
}

// Deduplicate lazily yields first-occurrence records in input order.
func (d *BloomDeduplicator[E]) Deduplicate(ctx context.Context, in <-chan E) (<-chan E, <-chan error) {
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
func (d *BloomDeduplicator[E]) Process(ctx context.Context, in <-chan E) error {
	return d.runStream(ctx, in, nil, d.testAndSet)
}

// IsUnique reports whether the record's key has not been seen, without
// marking it. Subject to the filter's false-positive rate.
func (d *BloomDeduplicator[E]) IsUnique(rec E) (bool, error) {
	key, err := d.keyFn(rec)
	if err != nil {
		return false, err
	}
	if d.scalable != nil {
		return !d.scalable.ContainsString(key), nil
	}
	return !d.filter.ContainsString(key), nil
}

// MarkSeen records the record's key without streaming it.
func (d *BloomDeduplicator[E]) MarkSeen(rec E) error {
	key, err := d.keyFn(rec)
	if err != nil {
		return err
	}
	if d.scalable != nil {
		d.scalable.AddString(key)
	} else {
		d.filter.AddString(key)
	}
	return nil
}

// Stats returns the counters accumulated so far.
func (d *BloomDeduplicator[E]) Stats() DedupStats {
	s := DedupStats{
		Processed:     d.processed,
		Unique:        d.unique,
		Duplicates:    d.duplicates,
		TopDuplicates: d.topDuplicates(),
	}
	if d.scalable != nil {
		s.MemoryBytes = d.scalable.SizeBytes()
		s.EstimatedFPR = d.scalable.EstimatedFPR()
	} else {
		s.MemoryBytes = d.filter.SizeBytes()
		s.EstimatedFPR = d.filter.EstimatedFPR()
	}
	return s
}

// Merge bitwise-unions another Bloom deduplicator's filter into this
// one. Scalable filters and cross-implementation pairings cannot be
// merged.
func (d *BloomDeduplicator[E]) Merge(other Deduplicator[E]) error {
	o, ok := other.(*BloomDeduplicator[E])
	if !ok {
		return NewMergeFilterError("cannot merge an exact deduplicator into a probabilistic one", nil)
	}
	if d.scalable != nil || o.scalable != nil {
		return NewMergeFilterError("scalable filters cannot be merged", nil)
	}
	if err := d.filter.Union(o.filter); err != nil {
		if errors.Is(err, bloom.ErrIncompatible) {
			return NewMergeFilterError("filters sized differently", err)
		}
		return err
	}
	d.mergeCounters(&o.dedupCore)
	return nil
}

// Reset clears the filter and stats for reuse.
func (d *BloomDeduplicator[E]) Reset() {
	if d.scalable != nil {
		d.scalable.Reset()
	} else {
		d.filter.Reset()
	}
	d.resetCounters()
}
