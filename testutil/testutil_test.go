package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniform(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.Uniform(64, -1, 1)

	assert.Len(t, v, 64)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, -1.0)
		assert.Less(t, x, 1.0)
	}
}

func TestLaplace(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.Laplace(10000, 0.5)

	var sum, abs float64
	for _, x := range v {
		sum += x
		if x < 0 {
			abs -= x
		} else {
			abs += x
		}
	}
	// Mean 0, mean absolute deviation equals the scale.
	assert.InDelta(t, 0, sum/float64(len(v)), 0.05)
	assert.InDelta(t, 0.5, abs/float64(len(v)), 0.05)
}

func TestKeys(t *testing.T) {
	rng := NewRNG(4711)

	keys := rng.Keys(100, 100)

	require.Len(t, keys, 100)
	seen := map[int32]bool{}
	for _, k := range keys {
		assert.False(t, seen[k])
		assert.GreaterOrEqual(t, k, int32(0))
		assert.Less(t, k, int32(100))
		seen[k] = true
	}

	assert.Panics(t, func() { rng.Keys(3, 4) })
}

func TestSortPairs(t *testing.T) {
	keys := []int32{15, 3, 10}
	values := []float64{1, 2, 3}

	SortPairs(keys, values)

	assert.Equal(t, []int32{3, 10, 15}, keys)
	assert.Equal(t, []float64{2, 3, 1}, values)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Gaussian(10, 1)
	rng.Reset()
	v2 := rng.Gaussian(10, 1)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestSSE(t *testing.T) {
	assert.InDelta(t, 5.0, SSE([]float64{1, 2}, []float64{2, 4}), 1e-12)
}
