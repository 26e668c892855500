package bheap_test

import (
	"cmp"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-bio/streamkit/bheap"
)

func TestPushPopOrdered(t *testing.T) {
	h := bheap.New(cmp.Compare[int])
	for i := 20; i > 0; i-- {
		h.Push(i)
	}
	require.Equal(t, 20, h.Len())

	for i := 1; h.Len() > 0; i++ {
		peeked := h.Peek()
		popped := h.Pop()
		require.Equal(t, peeked, popped, "Peek and Pop disagree")
		assert.Equal(t, i, popped)
	}
}

func TestPushPopDuplicates(t *testing.T) {
	h := bheap.New(cmp.Compare[int])
	for i := 0; i < 20; i++ {
		h.Push(7)
	}
	for h.Len() > 0 {
		assert.Equal(t, 7, h.Pop())
	}
}

func TestPeekUpdate(t *testing.T) {
	// simulate the merge loop: mutate the root cursor value in place,
	// then re-fix
	type cursor struct{ head int }
	h := bheap.New(func(a, b *cursor) int { return cmp.Compare(a.head, b.head) })
	a, b := &cursor{head: 1}, &cursor{head: 5}
	h.Push(a)
	h.Push(b)

	require.Equal(t, a, h.Peek())
	a.head = 10
	h.PeekUpdate()
	assert.Equal(t, b, h.Peek())
}

func TestBoundedAddKeepsBestN(t *testing.T) {
	const n = 5
	// keeping the n largest: min-heap root is the worst of the kept set
	h := bheap.NewBounded(cmp.Compare[int], n)

	rng := rand.New(rand.NewSource(42))
	input := rng.Perm(1000)
	for _, v := range input {
		h.Add(v)
	}
	require.Equal(t, n, h.Len())

	got := h.DrainSorted() // worst-first
	for i, j := 0, len(got)-1; i < j; i, j = i+1, j-1 {
		got[i], got[j] = got[j], got[i]
	}
	assert.Equal(t, []int{999, 998, 997, 996, 995}, got)
}

func TestBoundedAddReportsKept(t *testing.T) {
	h := bheap.NewBounded(cmp.Compare[int], 2)
	assert.True(t, h.Add(1))
	assert.True(t, h.Add(2))
	assert.True(t, h.Add(3))  // beats worst kept (1)
	assert.False(t, h.Add(0)) // discarded
	assert.False(t, h.Add(2)) // ties the root, not strictly better
	assert.Equal(t, 2, h.Len())
}

func TestBoundedPushPanicsAtCapacity(t *testing.T) {
	h := bheap.NewBounded(cmp.Compare[int], 1)
	h.Push(1)
	assert.Panics(t, func() { h.Push(2) })
}

func TestNewBoundedRejectsNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { bheap.NewBounded(cmp.Compare[int], 0) })
}

func TestDrainSortedLeavesHeapUsable(t *testing.T) {
	h := bheap.New(cmp.Compare[int])
	vals := []int{5, 3, 8, 1, 9, 2}
	for _, v := range vals {
		h.Push(v)
	}

	got := h.DrainSorted()
	want := append([]int(nil), vals...)
	sort.Ints(want)
	assert.Equal(t, want, got)
	assert.Equal(t, 0, h.Len())

	h.Push(4)
	h.Push(0)
	assert.Equal(t, 0, h.Pop())
	assert.Equal(t, 4, h.Pop())
}

func TestRandomizedHeapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := bheap.New(cmp.Compare[int])

	input := make([]int, 500)
	for i := range input {
		input[i] = rng.Intn(100)
		h.Push(input[i])
	}
	sort.Ints(input)

	for _, want := range input {
		assert.Equal(t, want, h.Pop())
	}
}
