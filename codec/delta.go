package codec

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// DeltaCodec stores the differences between consecutive values, starting
// from an implicit 0. Each delta takes the smallest of 1, 2 or 4 bytes that
// holds it unsigned, and a 2-bit flag per element records width-1. Both bit
// arrays are LSB-first.
type DeltaCodec struct {
	size   int
	flags  bitstream
	deltas bitstream
}

var _ BinaryCodec = (*DeltaCodec)(nil)

// Kind returns Delta.
func (c *DeltaCodec) Kind() Kind { return Delta }

// Size returns the number of encoded values.
func (c *DeltaCodec) Size() int { return c.size }

// SizeInBytes returns the record length.
func (c *DeltaCodec) SizeInBytes() int {
	return 4 + c.flags.sizeInBytes() + c.deltas.sizeInBytes()
}

func byteWidth(delta int64) int {
	switch {
	case delta < 1<<8:
		return 1
	case delta < 1<<16:
		return 2
	default:
		return 4
	}
}

// Encode encodes a non-decreasing sequence of non-negative values.
func (c *DeltaCodec) Encode(values []int32) error {
	fw, dw := bitio.NewWriter(), bitio.NewWriter()
	var prev int64
	for i, v := range values {
		delta := int64(v) - prev
		if delta < 0 {
			return fmt.Errorf("%w: delta %d at index %d", ErrUnsorted, delta, i)
		}
		width := byteWidth(delta)
		fw.WriteLSB(uint64(width-1), 2)
		dw.WriteLSB(uint64(delta), uint(8*width))
		prev = int64(v)
	}

	c.size = len(values)
	c.flags = streamOf(fw)
	c.deltas = streamOf(dw)
	return nil
}

// Decode returns the encoded sequence.
func (c *DeltaCodec) Decode() ([]int32, error) {
	fr, dr := c.flags.reader(), c.deltas.reader()
	res := make([]int32, c.size)
	var prev int64
	for i := range res {
		width := fr.ReadLSB(2) + 1
		if width == 3 {
			return nil, fmt.Errorf("%w: invalid width flag at index %d", ErrCorruptCodec, i)
		}
		prev += int64(dr.ReadLSB(uint(8 * width)))
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

func (c *DeltaCodec) writeRecord(w *wire.Writer) {
	w.Len32(c.size)
	writeStream(w, c.flags)
	writeStream(w, c.deltas)
}

func (c *DeltaCodec) readRecord(r *wire.Reader) error {
	size := r.Len32()
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
	if flags.bits != 2*uint(size) {
		return fmt.Errorf("%w: %d flag bits for %d values", ErrCorruptCodec, flags.bits, size)
	}

	c.size = size
	c.flags = flags
	c.deltas = deltas
	return nil
}
