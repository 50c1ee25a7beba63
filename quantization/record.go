package quantization

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecsketch/internal/conv"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// binWidth returns the bytes used per persisted bin index.
func binWidth(binNum int) int {
	switch {
	case binNum <= 256:
		return 1
	case binNum <= 65536:
		return 2
	default:
		return 4
	}
}

// MemoryBytes returns the size of the persisted record.
func (q *Quantizer) MemoryBytes() int {
	// binNum, n, zeroIdx, binsLength (int32) + min, max (float64)
	return 4*4 + 2*8 + 8*len(q.splits) + binWidth(q.binNum)*len(q.bins)
}

// Encode writes the quantizer record:
//
//	binNum:int32 n:int32 splits:(binNum-1)*float64 zeroIdx:int32
//	min:float64 max:float64 binsLength:int32 bins:binsLength*{int8|int16|int32}
//
// Narrow bins are stored offset by the type minimum so the full unsigned
// range fits.
func Encode(w *wire.Writer, q *Quantizer) error {
	if !q.done {
		return ErrNotQuantized
	}
	binNum, err := conv.IntToInt32(q.binNum)
	if err != nil {
		return err
	}
	n, err := conv.IntToInt32(q.n)
	if err != nil {
		return err
	}

	w.Int32(binNum)
	w.Int32(n)
	for _, s := range q.splits {
		w.Float64(s)
	}
	w.Int32(int32(q.zeroIdx))
	w.Float64(q.min)
	w.Float64(q.max)
	w.Len32(len(q.bins))
	switch binWidth(q.binNum) {
	case 1:
		for _, b := range q.bins {
			w.Int8(int8(b + math.MinInt8))
		}
	case 2:
		for _, b := range q.bins {
			w.Int16(int16(b + math.MinInt16))
		}
	default:
		for _, b := range q.bins {
			w.Int32(b)
		}
	}
	return w.Err()
}

// Decode reads a record written by Encode.
func Decode(r *wire.Reader, kind Kind) (*Quantizer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}

	binNum := r.Len32()
	n := r.Len32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if binNum < 2 || !r.Fits(binNum-1, 8) {
		return nil, fmt.Errorf("%w: bin count %d", ErrCorruptRecord, binNum)
	}

	splits := make([]float64, binNum-1)
	for i := range splits {
		splits[i] = r.Float64()
	}
	zeroIdx := int(r.Int32())
	lo := r.Float64()
	hi := r.Float64()
	binsLen := r.Len32()
	if err := r.Err(); err != nil {
		return nil, err
	}

	width := binWidth(binNum)
	if !r.Fits(binsLen, width) {
		return nil, r.Err()
	}
	bins := make([]int32, binsLen)
	for i := range bins {
		switch width {
		case 1:
			bins[i] = int32(r.Int8()) - math.MinInt8
		case 2:
			bins[i] = int32(r.Int16()) - math.MinInt16
		default:
			bins[i] = r.Int32()
		}
		if bins[i] < 0 || int(bins[i]) >= binNum {
			return nil, fmt.Errorf("%w: bin %d out of range [0,%d)", ErrCorruptRecord, bins[i], binNum)
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	for i := 1; i < len(splits); i++ {
		if !(splits[i-1] < splits[i]) {
			return nil, fmt.Errorf("%w: splits not strictly increasing at %d", ErrCorruptRecord, i)
		}
	}
	if zeroIdx < 0 || zeroIdx >= binNum {
		return nil, fmt.Errorf("%w: zero index %d out of range", ErrCorruptRecord, zeroIdx)
	}

	return &Quantizer{
		kind:      kind,
		requested: binNum,
		binNum:    binNum,
		n:         n,
		splits:    splits,
		zeroIdx:   zeroIdx,
		min:       lo,
		max:       hi,
		bins:      bins,
		done:      true,
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. The record is preceded
// by the kind byte.
func (q *Quantizer) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(1 + q.MemoryBytes())
	w.Int8(int8(q.kind))
	if err := Encode(w, q); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (q *Quantizer) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	kind := Kind(r.Int8())
	if err := r.Err(); err != nil {
		return err
	}
	decoded, err := Decode(r, kind)
	if err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, r.Remaining())
	}
	*q = *decoded
	return nil
}
