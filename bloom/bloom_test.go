package bloom_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-bio/streamkit/bloom"
)

func randomKeys(rng *rand.Rand, n int, prefix string) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%016x-%d", prefix, rng.Uint64(), i)
	}
	return keys
}

func TestEstimateParameters(t *testing.T) {
	// n=1000, p=0.01 are the textbook values: m=9586, k=7
	m, k := bloom.EstimateParameters(1000, 0.01)
	assert.Equal(t, uint64(9586), m)
	assert.Equal(t, uint64(7), k)
}

func TestNewRejectsBadParameters(t *testing.T) {
	_, err := bloom.New(0, 0.01)
	assert.Error(t, err)

	for _, fpr := range []float64{0, -0.5, 1, 1.5} {
		_, err := bloom.New(1000, fpr)
		assert.Error(t, err, "fpr=%v", fpr)
	}
}

func TestNoFalseNegatives(t *testing.T) {
	f, err := bloom.New(1000, 0.01)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	keys := randomKeys(rng, 1000, "present")
	for _, k := range keys {
		f.AddString(k)
		// every key added so far must still test positive
	}
	for _, k := range keys {
		assert.True(t, f.ContainsString(k), "false negative for %q", k)
	}
	assert.Equal(t, uint64(1000), f.Count())
}

func TestFalsePositiveRateWithinBound(t *testing.T) {
	f, err := bloom.New(1000, 0.01)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for _, k := range randomKeys(rng, 1000, "member") {
		f.AddString(k)
	}

	falsePositives := 0
	for _, k := range randomKeys(rng, 10000, "fresh") {
		if f.ContainsString(k) {
			falsePositives++
		}
	}
	// expected ~100 at p=0.01; allow up to 3x the configured target
	assert.LessOrEqual(t, falsePositives, 300)
	assert.Greater(t, falsePositives, 0)
}

func TestEstimatedFPRTracksLoad(t *testing.T) {
	f, err := bloom.New(1000, 0.01)
	require.NoError(t, err)

	assert.Zero(t, f.EstimatedFPR())

	rng := rand.New(rand.NewSource(3))
	for _, k := range randomKeys(rng, 500, "load") {
		f.AddString(k)
	}
	half := f.EstimatedFPR()
	assert.Greater(t, half, 0.0)
	assert.Less(t, half, 0.01)

	for _, k := range randomKeys(rng, 500, "more") {
		f.AddString(k)
	}
	full := f.EstimatedFPR()
	assert.Greater(t, full, half)
	assert.InDelta(t, 0.01, full, 0.005)
}

func TestUnion(t *testing.T) {
	a, err := bloom.New(1000, 0.01)
	require.NoError(t, err)
	b, err := bloom.New(1000, 0.01)
	require.NoError(t, err)

	a.AddString("left-only")
	b.AddString("right-only")

	require.NoError(t, a.Union(b))
	assert.True(t, a.ContainsString("left-only"))
	assert.True(t, a.ContainsString("right-only"))
	assert.Equal(t, uint64(2), a.Count())
}

func TestUnionIncompatible(t *testing.T) {
	a, err := bloom.New(1000, 0.01)
	require.NoError(t, err)
	b, err := bloom.New(5000, 0.001)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Union(b), bloom.ErrIncompatible)
}

func TestReset(t *testing.T) {
	f, err := bloom.New(100, 0.01)
	require.NoError(t, err)

	f.AddString("gone-after-reset")
	require.True(t, f.ContainsString("gone-after-reset"))

	f.Reset()
	assert.False(t, f.ContainsString("gone-after-reset"))
	assert.Zero(t, f.Count())
	assert.Zero(t, f.FillRatio())
}

func TestScalableGrowsPastInitialCapacity(t *testing.T) {
	sf, err := bloom.NewScalable(100, 0.01)
	require.NoError(t, err)
	require.Equal(t, 1, sf.Slices())

	rng := rand.New(rand.NewSource(13))
	keys := randomKeys(rng, 1000, "scale")
	for _, k := range keys {
		sf.AddString(k)
	}

	// 100 → 200 → 400 → 800 capacity: four slices absorb 1000 keys
	assert.Equal(t, 4, sf.Slices())
	assert.Equal(t, uint64(1000), sf.Count())

	for _, k := range keys {
		assert.True(t, sf.ContainsString(k), "false negative for %q", k)
	}
}

func TestScalableCompoundFPRStaysNearTarget(t *testing.T) {
	sf, err := bloom.NewScalable(100, 0.01)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(17))
	for _, k := range randomKeys(rng, 2000, "member") {
		sf.AddString(k)
	}

	falsePositives := 0
	probes := randomKeys(rng, 10000, "fresh")
	for _, k := range probes {
		if sf.ContainsString(k) {
			falsePositives++
		}
	}
	// compound target is still ~1%; allow 3x
	assert.LessOrEqual(t, falsePositives, 300)
	assert.Less(t, sf.EstimatedFPR(), 0.03)
}

func TestScalableReset(t *testing.T) {
	sf, err := bloom.NewScalable(10, 0.01)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		sf.AddString(fmt.Sprintf("key-%d", i))
	}
	require.Greater(t, sf.Slices(), 1)

	sf.Reset()
	assert.Equal(t, 1, sf.Slices())
	assert.Zero(t, sf.Count())
	assert.False(t, sf.ContainsString("key-0"))
}

func TestCountingAddRemove(t *testing.T) {
	c, err := bloom.NewCounting(1000, 0.01)
	require.NoError(t, err)

	c.AddString("stays")
	c.AddString("goes")
	require.True(t, c.ContainsString("stays"))
	require.True(t, c.ContainsString("goes"))

	assert.True(t, c.RemoveString("goes"))
	assert.False(t, c.ContainsString("goes"))
	// unrelated key is unaffected by the removal
	assert.True(t, c.ContainsString("stays"))
	assert.Equal(t, uint64(1), c.Count())
}

func TestCountingRemoveAbsentKeyIsNoop(t *testing.T) {
	c, err := bloom.NewCounting(1000, 0.01)
	require.NoError(t, err)

	c.AddString("present")
	assert.False(t, c.RemoveString("never-added"))
	assert.True(t, c.ContainsString("present"))
	assert.Equal(t, uint64(1), c.Count())
}

func TestCountingDuplicateAdds(t *testing.T) {
	c, err := bloom.NewCounting(100, 0.01)
	require.NoError(t, err)

	c.AddString("twice")
	c.AddString("twice")

	require.True(t, c.RemoveString("twice"))
	// one removal of a doubly-added key must not clear membership
	assert.True(t, c.ContainsString("twice"))
	require.True(t, c.RemoveString("twice"))
	assert.False(t, c.ContainsString("twice"))
}
