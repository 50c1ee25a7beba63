package quantization

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsketch/internal/wire"
	"github.com/hupe1980/vecsketch/resource"
)

func gradient(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = rng.NormFloat64() * 0.01
	}
	return values
}

func newQuantizer(t *testing.T, kind Kind, binNum int) *Quantizer {
	t.Helper()
	q, err := New(kind, binNum)
	require.NoError(t, err)
	return q
}

func TestNew(t *testing.T) {
	_, err := New(Kind(9), 16)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(Uniform, 1)
	assert.ErrorIs(t, err, ErrInvalidBinNum)

	q := newQuantizer(t, Quantile, 16)
	assert.Equal(t, 16, q.Requested())
	assert.False(t, q.Quantized())
	assert.Nil(t, q.Values())
	assert.ErrorIs(t, q.Scale(2), ErrNotQuantized)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Uniform ")
	require.NoError(t, err)
	assert.Equal(t, Uniform, k)

	k, err = ParseKind("quantile")
	require.NoError(t, err)
	assert.Equal(t, Quantile, k)
	assert.Equal(t, "quantile", k.String())

	_, err = ParseKind("kmeans")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestIndexOfBoundaries(t *testing.T) {
	// splits [-1, 0, 1] from uniform quantization of [-2, 2] into 4 bins.
	q := newQuantizer(t, Uniform, 4)
	require.NoError(t, q.Quantize([]float64{-2, 2}))
	require.Equal(t, []float64{-1, 0, 1}, q.Splits())

	tests := []struct {
		x    float64
		want int
	}{
		{-3, 0},
		{-1.5, 0},
		{-1, 1}, // a value on a split belongs to the upper bin
		{-0.5, 1},
		{0, 2},
		{0.5, 2},
		{1, 3},
		{5, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, q.IndexOf(tt.x), "IndexOf(%v)", tt.x)
	}
	assert.Equal(t, 2, q.ZeroIdx())
	assert.Equal(t, []int32{0, 3}, q.Bins())
}

func TestZeroIdxOutsideRange(t *testing.T) {
	q := newQuantizer(t, Uniform, 8)
	require.NoError(t, q.Quantize([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0, q.ZeroIdx())

	q = newQuantizer(t, Uniform, 8)
	require.NoError(t, q.Quantize([]float64{-4, -3, -2, -1}))
	assert.Equal(t, q.BinNum()-1, q.ZeroIdx())
}

func TestIndexOfMatchesLinearScan(t *testing.T) {
	values := gradient(1, 5000)
	for _, kind := range []Kind{Uniform, Quantile} {
		t.Run(kind.String(), func(t *testing.T) {
			q := newQuantizer(t, kind, 64)
			require.NoError(t, q.Quantize(values))

			for i, v := range values {
				want := 0
				for _, s := range q.Splits() {
					if s <= v {
						want++
					}
				}
				require.Equal(t, want, q.IndexOf(v))
				require.Equal(t, int32(want), q.Bins()[i])
			}
		})
	}
}

func TestUniformSplits(t *testing.T) {
	q := newQuantizer(t, Uniform, 5)
	require.NoError(t, q.Quantize([]float64{0, 10, 3}))
	assert.InDeltaSlice(t, []float64{2, 4, 6, 8}, q.Splits(), 1e-12)
	assert.Equal(t, 5, q.BinNum())
	assert.Equal(t, 0.0, q.Min())
	assert.Equal(t, 10.0, q.Max())
	assert.Equal(t, 3, q.N())
}

func TestQuantileCollapsesDuplicates(t *testing.T) {
	q := newQuantizer(t, Quantile, 16)
	require.NoError(t, q.Quantize([]float64{1, -2, 0.5}))

	assert.Equal(t, []float64{-2, 0.5, 1}, q.Splits())
	assert.Equal(t, 4, q.BinNum())
	assert.Equal(t, 16, q.Requested())
}

func TestDegenerateInput(t *testing.T) {
	for _, kind := range []Kind{Uniform, Quantile} {
		t.Run(kind.String()+"/constant", func(t *testing.T) {
			q := newQuantizer(t, kind, 32)
			require.NoError(t, q.Quantize([]float64{3, 3, 3}))
			assert.Equal(t, []float64{3}, q.Splits())
			assert.Equal(t, 2, q.BinNum())
			assert.Equal(t, []float64{3, 3}, q.Values())
		})

		t.Run(kind.String()+"/empty", func(t *testing.T) {
			q := newQuantizer(t, kind, 32)
			require.NoError(t, q.Quantize(nil))
			assert.Equal(t, 0, q.N())
			assert.Equal(t, 2, q.BinNum())
			assert.Empty(t, q.Bins())
		})
	}
}

func TestValues(t *testing.T) {
	q := newQuantizer(t, Uniform, 4)
	require.NoError(t, q.Quantize([]float64{-2, 2}))
	assert.Equal(t, []float64{-1.5, -0.5, 0.5, 1.5}, q.Values())
}

func TestRoundTripWithinHalfBin(t *testing.T) {
	values := gradient(2, 10000)
	q := newQuantizer(t, Uniform, 128)
	require.NoError(t, q.Quantize(values))

	reps := q.Values()
	edges := append(append([]float64{q.Min()}, q.Splits()...), q.Max())
	for i, v := range values {
		b := q.Bins()[i]
		width := edges[b+1] - edges[b]
		assert.LessOrEqual(t, math.Abs(reps[b]-v), width/2+1e-12)
	}
}

func TestSSEDecreasesWithBinNum(t *testing.T) {
	values := gradient(3, 20000)
	prev := math.Inf(1)
	for _, binNum := range []int{4, 16, 64, 256} {
		q := newQuantizer(t, Uniform, binNum)
		require.NoError(t, q.Quantize(values))
		reps := q.Values()

		var sse float64
		for i, v := range values {
			d := reps[q.Bins()[i]] - v
			sse += d * d
		}
		assert.Less(t, sse, prev, "binNum=%d", binNum)
		prev = sse
	}
}

func TestScale(t *testing.T) {
	q := newQuantizer(t, Uniform, 4)
	require.NoError(t, q.Quantize([]float64{-2, 2}))

	require.NoError(t, q.Scale(0.5))
	assert.Equal(t, []float64{-0.5, 0, 0.5}, q.Splits())
	assert.Equal(t, -1.0, q.Min())
	assert.Equal(t, 1.0, q.Max())
	assert.Equal(t, 2, q.IndexOf(0))

	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, q.Scale(f), ErrUnsupportedScale)
	}
}

func TestScaleKeepsRecordValid(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		factor float64
	}{
		{"overflow", []float64{-1e300, 1e300}, 1e10},
		{"underflow collapses splits", []float64{-4e-323, 4e-323}, 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQuantizer(t, Uniform, 4)
			require.NoError(t, q.Quantize(tt.values))
			splits := append([]float64(nil), q.Splits()...)
			lo, hi := q.Min(), q.Max()

			assert.ErrorIs(t, q.Scale(tt.factor), ErrUnsupportedScale)
			assert.Equal(t, splits, q.Splits())
			assert.Equal(t, lo, q.Min())
			assert.Equal(t, hi, q.Max())

			data, err := q.MarshalBinary()
			require.NoError(t, err)
			restored := newQuantizer(t, Uniform, 4)
			require.NoError(t, restored.UnmarshalBinary(data))
		})
	}
}

func TestParallelQuantizeMatchesSequential(t *testing.T) {
	rc, err := resource.NewController(resource.Config{MaxWorkers: 4})
	require.NoError(t, err)
	defer rc.Close()

	tests := []struct {
		name   string
		kind   Kind
		values []float64
	}{
		// The quantile summary is exact below its accuracy parameter.
		{"quantile", Quantile, gradient(4, 900)},
		{"uniform", Uniform, gradient(5, 50000)},
		{"uniform empty", Uniform, nil},
		{"uniform leading NaN span", Uniform, []float64{math.NaN(), math.NaN(), 5, 6, 7, 8}},
		{"uniform trailing NaN span", Uniform, []float64{-3, 1, 2, 4, math.NaN(), math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := newQuantizer(t, tt.kind, 64)
			require.NoError(t, seq.Quantize(tt.values))

			par := newQuantizer(t, tt.kind, 64)
			require.NoError(t, par.ParallelQuantize(context.Background(), rc, tt.values))

			assert.Equal(t, seq.Splits(), par.Splits())
			assert.Equal(t, seq.ZeroIdx(), par.ZeroIdx())
			assert.Equal(t, seq.Bins(), par.Bins())
			assert.Equal(t, seq.BinNum(), par.BinNum())
		})
	}
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestParallelQuantizeLargeQuantile(t *testing.T) {
	rc, err := resource.NewController(resource.Config{MaxWorkers: 8})
	require.NoError(t, err)

	values := gradient(6, 100000)
	q := newQuantizer(t, Quantile, 32)
	require.NoError(t, q.ParallelQuantize(context.Background(), rc, values))
	require.Equal(t, 32, q.BinNum())

	// Every bin should hold roughly n/binNum values.
	counts := make([]int, q.BinNum())
	for _, b := range q.Bins() {
		counts[b]++
	}
	expected := float64(len(values)) / float64(q.BinNum())
	for i := 1; i < len(counts)-1; i++ {
		assert.InDelta(t, expected, float64(counts[i]), expected*0.5, "bin %d", i)
	}
}

func TestParallelQuantizeErrors(t *testing.T) {
	q := newQuantizer(t, Uniform, 8)
	err := q.ParallelQuantize(context.Background(), nil, []float64{1})
	assert.ErrorIs(t, err, resource.ErrNoController)

	rc, err := resource.NewController(resource.Config{MaxWorkers: 2, MemoryLimitBytes: 16})
	require.NoError(t, err)
	err = q.ParallelQuantize(context.Background(), rc, make([]float64, 10))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	rc, err = resource.NewController(resource.Config{MaxWorkers: 2})
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	err = q.ParallelQuantize(context.Background(), rc, []float64{1, 2, 3})
	assert.ErrorIs(t, err, resource.ErrControllerClosed)
}

func TestRecordRoundTrip(t *testing.T) {
	for _, binNum := range []int{16, 1000, 70000} {
		values := gradient(int64(binNum), 3*binNum)
		q := newQuantizer(t, Uniform, binNum)
		require.NoError(t, q.Quantize(values))

		data, err := q.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, data, 1+q.MemoryBytes())

		var got Quantizer
		require.NoError(t, got.UnmarshalBinary(data))
		assert.Equal(t, q.Splits(), got.Splits())
		assert.Equal(t, q.Bins(), got.Bins())
		assert.Equal(t, q.ZeroIdx(), got.ZeroIdx())
		assert.Equal(t, q.Min(), got.Min())
		assert.Equal(t, q.Max(), got.Max())
		assert.Equal(t, q.N(), got.N())
		assert.Equal(t, q.Values(), got.Values())
	}
}

func TestRecordLayout(t *testing.T) {
	q := newQuantizer(t, Uniform, 4)
	require.NoError(t, q.Quantize([]float64{-2, 2}))

	w := wire.NewWriter(0)
	require.NoError(t, Encode(w, q))

	r := wire.NewReader(w.Bytes())
	assert.Equal(t, int32(4), r.Int32())
	assert.Equal(t, int32(2), r.Int32())
	assert.Equal(t, -1.0, r.Float64())
	assert.Equal(t, 0.0, r.Float64())
	assert.Equal(t, 1.0, r.Float64())
	assert.Equal(t, int32(2), r.Int32())
	assert.Equal(t, -2.0, r.Float64())
	assert.Equal(t, 2.0, r.Float64())
	assert.Equal(t, int32(2), r.Int32())
	assert.Equal(t, int8(-128), r.Int8())
	assert.Equal(t, int8(-125), r.Int8())
	require.NoError(t, r.Err())
}

func TestDecodeRejectsCorruption(t *testing.T) {
	q := newQuantizer(t, Uniform, 4)
	require.NoError(t, q.Quantize([]float64{-2, 2}))
	data, err := q.MarshalBinary()
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		var got Quantizer
		assert.Error(t, got.UnmarshalBinary(data[:len(data)-1]))
	})

	t.Run("trailing", func(t *testing.T) {
		var got Quantizer
		assert.ErrorIs(t, got.UnmarshalBinary(append(data, 0)), ErrCorruptRecord)
	})

	t.Run("bin out of range", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] = byte(int8(100)) // 100 + 128 >= binNum
		var got Quantizer
		assert.ErrorIs(t, got.UnmarshalBinary(bad), ErrCorruptRecord)
	})

	t.Run("unknown kind", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 7
		var got Quantizer
		assert.ErrorIs(t, got.UnmarshalBinary(bad), ErrUnknownKind)
	})

	t.Run("not quantized", func(t *testing.T) {
		_, err := newQuantizer(t, Uniform, 4).MarshalBinary()
		assert.ErrorIs(t, err, ErrNotQuantized)
	})
}
