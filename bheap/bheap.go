// Package bheap provides a comparator-driven binary heap with an
// optional capacity bound. The unbounded form backs the k-way merge of
// the external sorter; the bounded form keeps the best N of a stream in
// O(total·log N) without sorting the whole input.
package bheap

// Heap built on the layout of container/heap
// https://golang.org/pkg/container/heap/#example__priorityQueue

import (
	"container/heap"
)

// Compare is a three-way comparator: negative when a orders before b,
// zero when equal, positive when a orders after b. It must be a
// consistent total preorder. Same semantics as cmp.Compare.
type Compare[E any] func(a, b E) int

type inner[E any] struct {
	items []E
	cmp   Compare[E]
}

func (h *inner[E]) Len() int           { return len(h.items) }
func (h *inner[E]) Less(i, j int) bool { return h.cmp(h.items[i], h.items[j]) < 0 }
func (h *inner[E]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *inner[E]) Push(x any) {
	h.items = append(h.items, x.(E))
}

func (h *inner[E]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	var zero E
	old[n-1] = zero // release reference
	h.items = old[:n-1]
	return item
}

// Heap is an array-backed binary heap whose root is always the minimum
// under the comparator. A capacity of 0 means unbounded.
type Heap[E any] struct {
	ih  inner[E]
	cap int
}

// New creates an unbounded heap ordered by cmp.
func New[E any](cmp Compare[E]) *Heap[E] {
	return &Heap[E]{ih: inner[E]{cmp: cmp}}
}

// NewBounded creates a heap that never holds more than capacity items.
// capacity must be positive.
func NewBounded[E any](cmp Compare[E], capacity int) *Heap[E] {
	if capacity <= 0 {
		panic("bheap: bounded heap capacity must be positive")
	}
	return &Heap[E]{
		ih:  inner[E]{items: make([]E, 0, capacity), cmp: cmp},
		cap: capacity,
	}
}

// Len returns the number of items currently held.
func (h *Heap[E]) Len() int {
	return h.ih.Len()
}

// Cap returns the capacity bound, or 0 when unbounded.
func (h *Heap[E]) Cap() int {
	return h.cap
}

// Push inserts item. On a bounded heap at capacity it panics; use Add
// for capped insertion.
func (h *Heap[E]) Push(item E) {
	if h.cap > 0 && h.ih.Len() >= h.cap {
		panic("bheap: push on full bounded heap")
	}
	heap.Push(&h.ih, item)
}

// Add performs capped insertion on a bounded heap: below capacity the
// item is pushed; at capacity the item replaces the root only when it
// orders strictly after it. With the heap ordered so that the root is
// the worst of the kept set (an inverted comparator for top-N), this
// keeps exactly the best Cap() items seen. Add reports whether the item
// was kept. On an unbounded heap Add behaves like Push and returns
// true.
func (h *Heap[E]) Add(item E) bool {
	if h.cap == 0 || h.ih.Len() < h.cap {
		heap.Push(&h.ih, item)
		return true
	}
	if h.ih.cmp(item, h.ih.items[0]) > 0 {
		h.ih.items[0] = item
		heap.Fix(&h.ih, 0)
		return true
	}
	return false
}

// Pop removes and returns the root.
func (h *Heap[E]) Pop() E {
	return heap.Pop(&h.ih).(E)
}

// Peek returns the root without removing it.
func (h *Heap[E]) Peek() E {
	return h.ih.items[0]
}

// PeekUpdate restores heap order after the root was mutated in place.
// The k-way merge uses this to advance a cursor without a pop/push
// pair.
func (h *Heap[E]) PeekUpdate() {
	heap.Fix(&h.ih, 0)
}

// DrainSorted removes every item, returning them root-first (ascending
// under the comparator). The heap is left empty and reusable.
func (h *Heap[E]) DrainSorted() []E {
	out := make([]E, 0, h.ih.Len())
	for h.ih.Len() > 0 {
		out = append(out, heap.Pop(&h.ih).(E))
	}
	return out
}
