package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	w := NewWriter(64)
	w.Int8(-3)
	w.Uint8(200)
	w.Bool(true)
	w.Int16(-1234)
	w.Int32(math.MinInt32)
	w.Uint64(math.MaxUint64)
	w.Float64(-2.5)
	w.Words([]uint64{1, 2, 3})
	w.Float64s([]float64{0.5, math.Inf(1)})
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	assert.Equal(t, int8(-3), r.Int8())
	assert.Equal(t, uint8(200), r.Uint8())
	assert.True(t, r.Bool())
	assert.Equal(t, int16(-1234), r.Int16())
	assert.Equal(t, int32(math.MinInt32), r.Int32())
	assert.Equal(t, uint64(math.MaxUint64), r.Uint64())
	assert.Equal(t, -2.5, r.Float64())
	assert.Equal(t, []uint64{1, 2, 3}, r.Words())
	assert.Equal(t, []float64{0.5, math.Inf(1)}, r.Float64s())
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestBigEndianLayout(t *testing.T) {
	w := NewWriter(4)
	w.Int32(0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, w.Bytes())
}

func TestReaderStickyError(t *testing.T) {
	r := NewReader([]byte{0, 0})
	assert.Equal(t, int32(0), r.Int32())
	require.ErrorIs(t, r.Err(), ErrShortRecord)

	// Later reads keep returning zero values and the first error.
	assert.Equal(t, int8(0), r.Int8())
	require.ErrorIs(t, r.Err(), ErrShortRecord)
}

func TestReaderRejectsBadLengths(t *testing.T) {
	t.Run("negative", func(t *testing.T) {
		w := NewWriter(4)
		w.Int32(-1)
		r := NewReader(w.Bytes())
		assert.Nil(t, r.Words())
		assert.ErrorIs(t, r.Err(), ErrShortRecord)
	})

	t.Run("beyond buffer", func(t *testing.T) {
		w := NewWriter(12)
		w.Int32(1000)
		w.Uint64(7)
		r := NewReader(w.Bytes())
		assert.Nil(t, r.Float64s())
		assert.ErrorIs(t, r.Err(), ErrShortRecord)
	})
}
