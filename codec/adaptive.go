package codec

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// AdaptiveDeltaCodec splits the 32-bit range into numIntervals intervals of
// 32/numIntervals bits and stores each delta in as many intervals as it
// needs. The interval count per delta is stored either as a fixed-width
// flag of log2(numIntervals) bits holding count-1, or as a unary flag of
// count ones followed by a zero. The configuration with the lowest expected
// bits per value on the actual input wins. Fields are MSB-first.
type AdaptiveDeltaCodec struct {
	size         int
	numIntervals int
	unary        bool
	flags        bitstream
	deltas       bitstream
}

var _ BinaryCodec = (*AdaptiveDeltaCodec)(nil)

// Kind returns AdaptiveDelta.
func (c *AdaptiveDeltaCodec) Kind() Kind { return AdaptiveDelta }

// Size returns the number of encoded values.
func (c *AdaptiveDeltaCodec) Size() int { return c.size }

// NumIntervals returns the chosen interval count.
func (c *AdaptiveDeltaCodec) NumIntervals() int { return c.numIntervals }

// Unary reports whether unary flags were chosen.
func (c *AdaptiveDeltaCodec) Unary() bool { return c.unary }

// SizeInBytes returns the record length.
func (c *AdaptiveDeltaCodec) SizeInBytes() int {
	// size, numIntervals, flagKind, flag stream, delta stream
	return 4 + 4 + 1 + c.flags.sizeInBytes() + c.deltas.sizeInBytes()
}

// optimalIntervals picks the interval count and flag kind that minimize the
// expected bits per value. prob[i] is the share of deltas needing i+1 bits.
func optimalIntervals(prob *[32]float64) (int, bool) {
	best := 32.0
	numIntervals, unary := 1, false
	for m := 2; m <= 16; m *= 2 {
		b := 32 / m
		var sum float64
		for i := 0; i < m; i++ {
			var p float64
			for j := 0; j < b; j++ {
				p += prob[i*b+j]
			}
			sum += float64(i+1) * p
		}

		fixed := sum*float64(b) + float64(bits.TrailingZeros(uint(m)))
		if fixed < best {
			best, numIntervals, unary = fixed, m, false
		}
		unaryCost := sum*float64(b+1) + 1
		if unaryCost < best {
			best, numIntervals, unary = unaryCost, m, true
		}
	}
	return numIntervals, unary
}

// Encode encodes a non-decreasing sequence of non-negative values.
func (c *AdaptiveDeltaCodec) Encode(values []int32) error {
	deltas := make([]uint32, len(values))
	needed := make([]int, len(values))
	var hist [32]float64
	var prev int64
	for i, v := range values {
		d := int64(v) - prev
		if d < 0 {
			return fmt.Errorf("%w: delta %d at index %d", ErrUnsorted, d, i)
		}
		deltas[i] = uint32(d)
		needed[i] = bitio.BitLen(deltas[i])
		hist[needed[i]-1]++
		prev = int64(v)
	}
	if len(values) > 0 {
		for i := range hist {
			hist[i] /= float64(len(values))
		}
	}

	numIntervals, unary := optimalIntervals(&hist)
	b := 32 / numIntervals
	flagBits := uint(bits.TrailingZeros(uint(numIntervals)))

	fw, dw := bitio.NewWriter(), bitio.NewWriter()
	for i, d := range deltas {
		k := (needed[i] + b - 1) / b
		if unary {
			fw.WriteMSB(1<<(k+1)-2, uint(k+1))
		} else {
			fw.WriteMSB(uint64(k-1), flagBits)
		}
		dw.WriteMSB(uint64(d), uint(k*b))
	}

	c.size = len(values)
	c.numIntervals = numIntervals
	c.unary = unary
	c.flags = streamOf(fw)
	c.deltas = streamOf(dw)
	return nil
}

// Decode returns the encoded sequence.
func (c *AdaptiveDeltaCodec) Decode() ([]int32, error) {
	if c.size == 0 {
		if c.flags.bits != 0 || c.deltas.bits != 0 {
			return nil, fmt.Errorf("%w: bits stored for an empty sequence", ErrCorruptCodec)
		}
		return []int32{}, nil
	}
	b := 32 / c.numIntervals
	flagBits := uint(bits.TrailingZeros(uint(c.numIntervals)))
	fr, dr := c.flags.reader(), c.deltas.reader()

	res := make([]int32, c.size)
	var prev int64
	for i := range res {
		var k int
		if c.unary {
			for fr.ReadBit() {
				k++
				if k > c.numIntervals {
					return nil, fmt.Errorf("%w: unary flag too long at index %d", ErrCorruptCodec, i)
				}
			}
			if err := fr.Err(); err != nil {
				return nil, fmt.Errorf("%w: flags: %w", ErrCorruptCodec, err)
			}
			if k == 0 {
				return nil, fmt.Errorf("%w: empty unary flag at index %d", ErrCorruptCodec, i)
			}
		} else {
			k = int(fr.ReadMSB(flagBits)) + 1
		}
		prev += int64(dr.ReadMSB(uint(k * b)))
		if prev > math.MaxInt32 {
			return nil, fmt.Errorf("%w: value overflow at index %d", ErrCorruptCodec, i)
		}
		res[i] = int32(prev)
	}
	if err := fr.Finish(); err != nil {
		return nil, fmt.Errorf("%w: flags: %w", ErrCorruptCodec, err)
	}
	if err := dr.Finish(); err != nil {
		return nil, fmt.Errorf("%w: deltas: %w", ErrCorruptCodec, err)
	}
	return res, nil
}

func (c *AdaptiveDeltaCodec) writeRecord(w *wire.Writer) {
	w.Len32(c.size)
	w.Int32(int32(max(c.numIntervals, 1)))
	w.Bool(c.unary)
	writeStream(w, c.flags)
	writeStream(w, c.deltas)
}

func (c *AdaptiveDeltaCodec) readRecord(r *wire.Reader) error {
	size := r.Len32()
	numIntervals := int(r.Int32())
	unary := r.Bool()
	if err := readErr(r); err != nil {
		return err
	}
	flags, err := readStream(r)
	if err != nil {
		return err
	}
	deltas, err := readStream(r)
	if err != nil {
		return err
	}
	switch numIntervals {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: invalid interval count %d", ErrCorruptCodec, numIntervals)
	}
	if unary && numIntervals == 1 {
		return fmt.Errorf("%w: unary flags need more than one interval", ErrCorruptCodec)
	}

	c.size = size
	c.numIntervals = numIntervals
	c.unary = unary
	c.flags = flags
	c.deltas = deltas
	return nil
}
