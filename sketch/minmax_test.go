package sketch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsketch/internal/hash"
)

func newSketch(t *testing.T, rowNum, colNum int, zero int32, seed int64) *MinMaxSketch {
	t.Helper()
	s, err := NewMinMaxSketch(rowNum, colNum, zero, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return s
}

func dist(v, zero int32) int64 {
	d := int64(v) - int64(zero)
	if d < 0 {
		return -d
	}
	return d
}

// collisionFree reports whether key owns at least one of its cells among keys.
func collisionFree(s *MinMaxSketch, key int32, keys []int32) bool {
	for _, h := range s.Hashes() {
		cell := h.Hash(key)
		shared := false
		for _, other := range keys {
			if other != key && h.Hash(other) == cell {
				shared = true
				break
			}
		}
		if !shared {
			return true
		}
	}
	return false
}

func TestNewMinMaxSketch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewMinMaxSketch(0, 4, 0, rng)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewMinMaxSketch(2, 0, 0, rng)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewMinMaxSketch(hash.FamilySize+1, 4, 0, rng)
	assert.ErrorIs(t, err, hash.ErrHashCapacity)

	s := newSketch(t, 3, 8, 5, 1)
	assert.Equal(t, 3, s.RowNum())
	assert.Equal(t, 8, s.ColNum())
	assert.Equal(t, int32(5), s.ZeroValue())
	assert.Equal(t, 32, s.CellBits())

	kinds := make(map[hash.Kind]bool)
	for _, h := range s.Hashes() {
		assert.Equal(t, int32(8), h.Size())
		kinds[h.Kind()] = true
	}
	assert.Len(t, kinds, 3, "rows use distinct hash functions")
}

func TestFarthest(t *testing.T) {
	assert.Equal(t, int32(math.MinInt32), farthest(0))
	assert.Equal(t, int32(math.MinInt32), farthest(100))
	assert.Equal(t, int32(math.MaxInt32), farthest(-5))
}

func TestMinMaxSketch_UnknownKey(t *testing.T) {
	s := newSketch(t, 2, 16, 7, 1)
	assert.Equal(t, int32(7), s.Query(42))
}

func TestMinMaxSketch_InsertKeepsClosest(t *testing.T) {
	s := newSketch(t, 2, 1, 10, 1)

	// A single column makes every key share every cell.
	s.Insert(1, 14)
	assert.Equal(t, int32(14), s.Query(1))
	s.Insert(2, 8)
	assert.Equal(t, int32(8), s.Query(1))
	s.Insert(3, 20)
	assert.Equal(t, int32(8), s.Query(3))
}

func TestMinMaxSketch_Bias(t *testing.T) {
	const zero = 32
	rng := rand.New(rand.NewSource(7))
	s := newSketch(t, 2, 300, zero, 7)

	keys := make([]int32, 400)
	values := make([]int32, len(keys))
	for i := range keys {
		keys[i] = int32(i * 3)
		values[i] = rng.Int31n(64)
		s.Insert(keys[i], values[i])
	}

	exact := 0
	for i, k := range keys {
		got := s.Query(k)
		assert.LessOrEqual(t, dist(got, zero), dist(values[i], zero), "key %d", k)
		if collisionFree(s, k, keys) {
			assert.Equal(t, values[i], got, "key %d owns a cell", k)
			exact++
		}
	}
	assert.Positive(t, exact)
}

func TestMinMaxSketch_Record(t *testing.T) {
	s := newSketch(t, 3, 32, 4, 11)
	s.cellBits = 3
	for k := int32(0); k < 64; k++ {
		s.Insert(k*5, k%8)
	}

	data, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, s.MemoryBytes())

	var got MinMaxSketch
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, s.RowNum(), got.RowNum())
	assert.Equal(t, s.ColNum(), got.ColNum())
	assert.Equal(t, s.ZeroValue(), got.ZeroValue())
	assert.Equal(t, 3, got.CellBits())
	assert.Equal(t, s.Hashes(), got.Hashes())
	for k := int32(0); k < 64; k++ {
		assert.Equal(t, s.Query(k*5), got.Query(k*5))
	}

	t.Run("trailing bytes", func(t *testing.T) {
		var x MinMaxSketch
		assert.ErrorIs(t, x.UnmarshalBinary(append(data, 0)), ErrCorruptSketch)
	})

	t.Run("unknown hash kind", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[16] = 99
		var x MinMaxSketch
		err := x.UnmarshalBinary(bad)
		assert.ErrorIs(t, err, ErrCorruptSketch)
		assert.ErrorIs(t, err, hash.ErrUnknownKind)
	})

	t.Run("truncated", func(t *testing.T) {
		var x MinMaxSketch
		assert.ErrorIs(t, x.UnmarshalBinary(data[:len(data)-3]), ErrCorruptSketch)
	})

	t.Run("cells wider than cell width", func(t *testing.T) {
		narrow := newSketch(t, 3, 1024, 4, 11)
		narrow.cellBits = 2
		narrow.Insert(0, 0)
		narrow.Insert(5, 7)
		data, err := narrow.MarshalBinary()
		require.NoError(t, err)

		var x MinMaxSketch
		assert.ErrorIs(t, x.UnmarshalBinary(data), ErrCorruptSketch)
	})

	t.Run("too many rows", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[3] = byte(hash.FamilySize + 1)
		var x MinMaxSketch
		assert.ErrorIs(t, x.UnmarshalBinary(bad), ErrCorruptSketch)
	})
}

func TestMinMaxSketch_InsertInvalidatesEncoding(t *testing.T) {
	s := newSketch(t, 2, 4, 0, 3)
	before := s.MemoryBytes()
	require.NotNil(t, s.encoded)

	s.Insert(1, 1)
	assert.Nil(t, s.encoded)
	assert.NotEqual(t, before, s.MemoryBytes())
}
