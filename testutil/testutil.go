package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/vecsketch/internal/sortutil"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Uniform returns n values in [lo, hi).
func (r *RNG) Uniform(n int, lo, hi float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + r.rand.Float64()*(hi-lo)
	}
	return out
}

// Gaussian returns n values drawn from N(0, std²).
func (r *RNG) Gaussian(n int, std float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.rand.NormFloat64() * std
	}
	return out
}

// Laplace returns n values from a zero-centred Laplace distribution with
// the given scale. Real gradients are closer to this than to a Gaussian.
func (r *RNG) Laplace(n int, scale float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		u := r.rand.Float64() - 0.5
		out[i] = -scale * math.Copysign(math.Log1p(-2*math.Abs(u)), u)
	}
	return out
}

// Keys returns n distinct keys in [0, dim), in random order.
// It panics if n > dim.
func (r *RNG) Keys(dim, n int) []int32 {
	if n > dim {
		panic("testutil: more keys than dimensions")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int32]struct{}, n)
	keys := make([]int32, 0, n)
	for len(keys) < n {
		k := int32(r.rand.Intn(dim)) //nolint:gosec // dim fits int32 in tests
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Sparse returns n distinct keys in [0, dim) with Laplace-distributed
// values.
func (r *RNG) Sparse(dim, n int, scale float64) ([]int32, []float64) {
	return r.Keys(dim, n), r.Laplace(n, scale)
}

// SortPairs sorts keys ascending and permutes values alongside.
func SortPairs(keys []int32, values []float64) {
	sortutil.SortByKey(keys, values)
}

// SSE returns the sum of squared differences. It panics on length mismatch.
func SSE(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("testutil: length mismatch")
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
