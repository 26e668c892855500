package streamkit

import (
	"context"

	"github.com/genotype-bio/streamkit/bheap"
)

// TopN consumes the stream and returns the n best records under cmp,
// best (cmp-smallest) first: the same records a full sort would put in
// positions [0, n). It keeps a capacity-n heap ordered by the inverted
// comparator, so the root is always the worst record currently kept
// and each arrival costs at most O(log n). O(n) memory; far cheaper
// than a full sort when n is small relative to the stream.
//
// When the stream holds fewer than n records, every record is
// returned. n must be positive.
func TopN[E any](ctx context.Context, in <-chan E, n int, cmp Compare[E]) ([]E, error) {
	if n <= 0 {
		return nil, NewConfigurationError("n", n, "must be positive")
	}

	inverted := func(a, b E) int { return cmp(b, a) }
	h := bheap.NewBounded(inverted, n)

	for {
		var rec E
		var ok bool
		select {
		case rec, ok = <-in:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !ok {
			break
		}
		h.Add(rec)
	}

	// drain yields worst-first; reverse for best-first
	out := h.DrainSorted()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
