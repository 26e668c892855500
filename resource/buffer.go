package resource

import "fmt"

// gcHintMinFlush is the smallest flush size that triggers a GC hint
// afterwards; tiny flushes are not worth a collection.
const gcHintMinFlush = 10000

// FlushFunc receives the buffered batch. The slice is reused after the
// call returns; implementations must copy anything they retain.
type FlushFunc[E any] func(batch []E) error

// AdaptiveBuffer batches items and flushes when the batch reaches its
// size bound or the memory monitor signals pressure. It is the bridge
// between record-at-a-time producers and batch-oriented consumers when
// memory is tight.
type AdaptiveBuffer[E any] struct {
	items   []E
	maxSize int
	monitor *Monitor
	flush   FlushFunc[E]
}

// NewAdaptiveBuffer creates a buffer of at most maxSize items. monitor
// may be nil to disable pressure-driven flushing.
func NewAdaptiveBuffer[E any](maxSize int, monitor *Monitor, flush FlushFunc[E]) (*AdaptiveBuffer[E], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("resource: buffer size must be positive, got %d", maxSize)
	}
	if flush == nil {
		return nil, fmt.Errorf("resource: flush callback is required")
	}
	return &AdaptiveBuffer[E]{
		items:   make([]E, 0, maxSize),
		maxSize: maxSize,
		monitor: monitor,
		flush:   flush,
	}, nil
}

// Add appends item, flushing first the moment the batch is full or the
// monitor reports pressure.
func (b *AdaptiveBuffer[E]) Add(item E) error {
	b.items = append(b.items, item)
	if len(b.items) >= b.maxSize || (b.monitor != nil && b.monitor.UnderPressure()) {
		return b.Flush()
	}
	return nil
}

// Len returns the number of currently buffered items.
func (b *AdaptiveBuffer[E]) Len() int {
	return len(b.items)
}

// Flush hands the batch to the callback and clears the buffer. After a
// large flush the monitor is hinted to collect the freed batch.
func (b *AdaptiveBuffer[E]) Flush() error {
	if len(b.items) == 0 {
		return nil
	}
	n := len(b.items)
	if err := b.flush(b.items); err != nil {
		return err
	}
	b.items = b.items[:0]
	if b.monitor != nil && n >= gcHintMinFlush {
		b.monitor.GCHint()
	}
	return nil
}
