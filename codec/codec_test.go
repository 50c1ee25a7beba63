package codec

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/wire"
)

var allKinds = []Kind{Delta, AdaptiveDelta, Huffman}

// sortedKeys draws n non-decreasing keys with gaps below maxGap. It panics
// when the running key would leave the int32 range.
func sortedKeys(seed int64, n int, maxGap int32) []int32 {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]int32, n)
	var cur int64
	for i := range keys {
		cur += int64(rng.Int31n(maxGap))
		if cur > math.MaxInt32 {
			panic("codec: sorted keys overflow int32")
		}
		keys[i] = int32(cur)
	}
	return keys
}

func roundTrip(t *testing.T, c BinaryCodec) BinaryCodec {
	t.Helper()
	w := wire.NewWriter(0)
	Marshal(w, c)
	require.NoError(t, w.Err())
	assert.Equal(t, 1+c.SizeInBytes(), w.Len())

	r := wire.NewReader(w.Bytes())
	got, err := Unmarshal(r)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining())
	return got
}

func TestNew(t *testing.T) {
	for _, k := range allKinds {
		c, err := New(k)
		require.NoError(t, err)
		assert.Equal(t, k, c.Kind())
		assert.Equal(t, 0, c.Size())

		decoded, err := c.Decode()
		require.NoError(t, err)
		assert.Empty(t, decoded)
	}

	_, err := New(Kind(0))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	for _, k := range allKinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("lzma")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, Delta.Sorted())
	assert.False(t, Huffman.Sorted())
}

func TestSortedCodecsRoundTrip(t *testing.T) {
	inputs := map[string][]int32{
		"example":   {0, 5, 5, 300, 300, 70000},
		"empty":     {},
		"single":    {42},
		"zeros":     {0, 0, 0, 0},
		"max":       {0, math.MaxInt32},
		"dense":     sortedKeys(1, 5000, 3),
		"sparse":    sortedKeys(2, 1000, 1<<20),
		"wide":      sortedKeys(4, 4000, math.MaxInt32/4000),
		"mixed gap": append(sortedKeys(3, 100, 4), 1<<30),
	}
	for _, kind := range []Kind{Delta, AdaptiveDelta} {
		for name, in := range inputs {
			t.Run(kind.String()+"/"+name, func(t *testing.T) {
				c, err := Encode(kind, in)
				require.NoError(t, err)
				assert.Equal(t, len(in), c.Size())

				out, err := c.Decode()
				require.NoError(t, err)
				assert.Equal(t, len(in), len(out))
				if len(in) > 0 {
					assert.Equal(t, in, out)
				}

				out, err = roundTrip(t, c).Decode()
				require.NoError(t, err)
				if len(in) > 0 {
					assert.Equal(t, in, out)
				}
			})
		}
	}
}

func TestSortedCodecsRejectUnsorted(t *testing.T) {
	for _, kind := range []Kind{Delta, AdaptiveDelta} {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := Encode(kind, []int32{1, 2, 3})
			require.NoError(t, err)

			assert.ErrorIs(t, c.Encode([]int32{5, 4}), ErrUnsorted)
			assert.ErrorIs(t, c.Encode([]int32{-1}), ErrUnsorted)

			// The previous encoding survives a failed Encode.
			out, err := c.Decode()
			require.NoError(t, err)
			assert.Equal(t, []int32{1, 2, 3}, out)
		})
	}
}

func TestDeltaWidths(t *testing.T) {
	c := &DeltaCodec{}
	require.NoError(t, c.Encode([]int32{0, 5, 5, 300, 300, 70000}))

	// Widths 1,1,1,2,1,4 -> flags 0,0,0,1,0,3 at two bits each, LSB-first.
	assert.Equal(t, uint(12), c.flags.bits)
	assert.Equal(t, []uint64{1<<6 | 3<<10}, c.flags.words)
	// 8+8+8+16+8+32 delta bits.
	assert.Equal(t, uint(80), c.deltas.bits)
	require.Len(t, c.deltas.words, 2)
}

func TestAdaptiveChoosesIntervals(t *testing.T) {
	t.Run("small deltas use narrow intervals", func(t *testing.T) {
		c := &AdaptiveDeltaCodec{}
		require.NoError(t, c.Encode(sortedKeys(4, 2000, 4)))
		assert.GreaterOrEqual(t, c.NumIntervals(), 8)
	})

	t.Run("full width deltas use one interval", func(t *testing.T) {
		in := []int32{1 << 30, math.MaxInt32}
		c := &AdaptiveDeltaCodec{}
		require.NoError(t, c.Encode(in))
		assert.Equal(t, 1, c.NumIntervals())
		assert.False(t, c.Unary())
	})

	t.Run("cheaper than fixed bytes on dense keys", func(t *testing.T) {
		in := sortedKeys(5, 10000, 2)
		a, err := Encode(AdaptiveDelta, in)
		require.NoError(t, err)
		d, err := Encode(Delta, in)
		require.NoError(t, err)
		assert.Less(t, a.SizeInBytes(), d.SizeInBytes())
	})
}

func TestOptimalIntervals(t *testing.T) {
	var prob [32]float64
	// Every delta needs exactly 3 bits: with m=16 (b=2) two intervals are
	// needed, with m=8 (b=4) one.
	prob[2] = 1
	m, unary := optimalIntervals(&prob)
	// m=8: fixed 4+3=7, unary 5+1=6. m=16: fixed 4+4=8, unary 6+1=7.
	assert.Equal(t, 8, m)
	assert.True(t, unary)
}

func TestHuffmanExample(t *testing.T) {
	in := []int32{1, 1, 1, 2, 2, 3}
	c := &HuffmanCodec{}
	require.NoError(t, c.Encode(in))

	assert.Equal(t, []HuffmanItem{
		{Symbol: 1, Code: 0b0, Len: 1},
		{Symbol: 2, Code: 0b11, Len: 2},
		{Symbol: 3, Code: 0b10, Len: 2},
	}, c.Items())

	out, err := c.Decode()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Entropy bound: at most one extra bit per symbol over n*H.
	entropy := 0.0
	for _, p := range []float64{3.0 / 6, 2.0 / 6, 1.0 / 6} {
		entropy -= p * math.Log2(p)
	}
	assert.Equal(t, 9, c.BitLen())
	assert.LessOrEqual(t, float64(c.BitLen()), float64(len(in))*(entropy+1))
}

func TestHuffmanRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	zipf := rand.NewZipf(rng, 1.3, 1, 500)

	inputs := map[string][]int32{
		"single symbol": {7, 7, 7, 7},
		"one value":     {-3},
		"negative":      {-5, 3, -5, math.MinInt32, math.MaxInt32},
		"empty":         {},
	}
	skewed := make([]int32, 20000)
	for i := range skewed {
		skewed[i] = int32(zipf.Uint64()) - 100
	}
	inputs["zipf"] = skewed

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			c, err := Encode(Huffman, in)
			require.NoError(t, err)

			out, err := c.Decode()
			require.NoError(t, err)
			assert.Equal(t, len(in), len(out))
			if len(in) > 0 {
				assert.Equal(t, in, out)
			}

			got := roundTrip(t, c)
			out, err = got.Decode()
			require.NoError(t, err)
			if len(in) > 0 {
				assert.Equal(t, in, out)
			}
		})
	}

	t.Run("entropy bound", func(t *testing.T) {
		c := &HuffmanCodec{}
		require.NoError(t, c.Encode(skewed))

		counts := map[int32]float64{}
		for _, v := range skewed {
			counts[v]++
		}
		n := float64(len(skewed))
		var entropy float64
		for _, k := range counts {
			p := k / n
			entropy -= p * math.Log2(p)
		}
		assert.LessOrEqual(t, float64(c.BitLen()), n*(entropy+1))
	})
}

func TestHuffmanDeterministic(t *testing.T) {
	in := []int32{4, 3, 2, 1, 1, 2, 3, 4}
	a, err := Encode(Huffman, in)
	require.NoError(t, err)
	b, err := Encode(Huffman, slices.Clone(in))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHuffmanCorruption(t *testing.T) {
	c := &HuffmanCodec{}
	require.NoError(t, c.Encode([]int32{1, 1, 1, 2, 2, 3}))

	t.Run("missing code", func(t *testing.T) {
		bad := &HuffmanCodec{
			items: []HuffmanItem{{Symbol: 1, Code: 0, Len: 1}},
			stream: bitstream{words: []uint64{1}, bits: 1}, // no right child
			size:   1,
		}
		_, err := bad.Decode()
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("prefix conflict", func(t *testing.T) {
		bad := &HuffmanCodec{
			items: []HuffmanItem{{Symbol: 1, Code: 0, Len: 1}, {Symbol: 2, Code: 0b01, Len: 2}},
			size:  1,
		}
		_, err := bad.Decode()
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("duplicate code", func(t *testing.T) {
		bad := &HuffmanCodec{
			items: []HuffmanItem{{Symbol: 1, Code: 1, Len: 1}, {Symbol: 2, Code: 1, Len: 1}},
			size:  1,
		}
		_, err := bad.Decode()
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("leftover bits", func(t *testing.T) {
		bad := &HuffmanCodec{items: c.items, stream: bitstream{words: []uint64{math.MaxUint64}, bits: 64}, size: 2}
		_, err := bad.Decode()
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("truncated record", func(t *testing.T) {
		w := wire.NewWriter(0)
		Marshal(w, c)
		_, err := Unmarshal(wire.NewReader(w.Bytes()[:w.Len()-2]))
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("invalid length", func(t *testing.T) {
		w := wire.NewWriter(0)
		w.Int32(1)
		w.Int32(5)
		w.Int32(0)
		w.Int32(40)
		_, err := ReadRecord(wire.NewReader(w.Bytes()), Huffman)
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})
}

func TestRecordLayouts(t *testing.T) {
	t.Run("delta", func(t *testing.T) {
		c, err := Encode(Delta, []int32{1, 2})
		require.NoError(t, err)
		w := wire.NewWriter(0)
		WriteRecord(w, c)

		r := wire.NewReader(w.Bytes())
		assert.Equal(t, int32(2), r.Int32())
		assert.Equal(t, uint64(4), r.Uint64())
		assert.Equal(t, []uint64{0}, r.Words())
		assert.Equal(t, uint64(16), r.Uint64())
		assert.Equal(t, []uint64{1 | 1<<8}, r.Words())
		require.NoError(t, r.Err())
	})

	t.Run("adaptive", func(t *testing.T) {
		c, err := Encode(AdaptiveDelta, []int32{1, 2})
		require.NoError(t, err)
		w := wire.NewWriter(0)
		WriteRecord(w, c)

		r := wire.NewReader(w.Bytes())
		assert.Equal(t, int32(2), r.Int32())
		assert.Equal(t, int32(c.(*AdaptiveDeltaCodec).NumIntervals()), r.Int32())
		assert.Equal(t, c.(*AdaptiveDeltaCodec).Unary(), r.Bool())
		r.Uint64()
		r.Words()
		r.Uint64()
		r.Words()
		require.NoError(t, r.Err())
		assert.Equal(t, 0, r.Remaining())
	})

	t.Run("huffman", func(t *testing.T) {
		c, err := Encode(Huffman, []int32{9, 9})
		require.NoError(t, err)
		w := wire.NewWriter(0)
		WriteRecord(w, c)

		r := wire.NewReader(w.Bytes())
		assert.Equal(t, int32(1), r.Int32())
		assert.Equal(t, int32(9), r.Int32())
		assert.Equal(t, int32(0), r.Int32())
		assert.Equal(t, int32(1), r.Int32())
		assert.Equal(t, uint64(2), r.Uint64())
		assert.Equal(t, []uint64{0}, r.Words())
		assert.Equal(t, int32(2), r.Int32())
		require.NoError(t, r.Err())
	})

	t.Run("adaptive rejects bad interval count", func(t *testing.T) {
		w := wire.NewWriter(0)
		w.Int32(1)
		w.Int32(3)
		w.Bool(false)
		w.Uint64(0)
		w.Words(nil)
		w.Uint64(0)
		w.Words(nil)
		_, err := ReadRecord(wire.NewReader(w.Bytes()), AdaptiveDelta)
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("bit length disagrees with word count", func(t *testing.T) {
		w := wire.NewWriter(0)
		w.Int32(1)
		w.Uint64(65)
		w.Words([]uint64{1})
		w.Uint64(8)
		w.Words([]uint64{1})
		_, err := ReadRecord(wire.NewReader(w.Bytes()), Delta)
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})
}

// TestInflatedSizeRejected rewrites the element count of a valid record so
// the decoder runs past the encoded bits.
func TestInflatedSizeRejected(t *testing.T) {
	in := []int32{1, 1, 1, 2, 2, 3}
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := Encode(kind, in)
			require.NoError(t, err)

			switch x := c.(type) {
			case *DeltaCodec:
				x.size = 9
			case *AdaptiveDeltaCodec:
				x.size = 9
			case *HuffmanCodec:
				x.size = 9
			}
			_, err = c.Decode()
			require.ErrorIs(t, err, ErrCorruptCodec)
			assert.ErrorIs(t, err, bitio.ErrShortBuffer)
		})
	}

	t.Run("huffman record", func(t *testing.T) {
		c, err := Encode(Huffman, in)
		require.NoError(t, err)
		w := wire.NewWriter(0)
		WriteRecord(w, c)
		data := w.Bytes()
		// size is the trailing int32 of the record.
		data[len(data)-1] = 9

		got, err := ReadRecord(wire.NewReader(data), Huffman)
		require.NoError(t, err)
		_, err = got.Decode()
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})

	t.Run("delta record", func(t *testing.T) {
		c, err := Encode(Delta, in)
		require.NoError(t, err)
		w := wire.NewWriter(0)
		WriteRecord(w, c)
		data := w.Bytes()
		data[3] = 9

		_, err = ReadRecord(wire.NewReader(data), Delta)
		assert.ErrorIs(t, err, ErrCorruptCodec)
	})
}
