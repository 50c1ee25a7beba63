package sketch

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/internal/conv"
	"github.com/hupe1980/vecsketch/internal/hash"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// Encode writes the sketch record. The table is stored as a Huffman record.
func Encode(w *wire.Writer, s *MinMaxSketch) error {
	table, err := s.tableCodec()
	if err != nil {
		return err
	}
	w.Len32(s.rowNum)
	w.Len32(s.colNum)
	w.Int32(s.zeroValue)
	w.Len32(s.cellBits)
	for _, h := range s.hashes {
		w.Int8(int8(h.Kind()))
		w.Int32(h.Seed())
	}
	codec.WriteRecord(w, table)
	return w.Err()
}

// Decode reads a record written by Encode.
func Decode(r *wire.Reader) (*MinMaxSketch, error) {
	rowNum := r.Len32()
	colNum := r.Len32()
	zeroValue := r.Int32()
	cellBits := r.Len32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	if err := checkShape(rowNum, colNum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	if cellBits < 1 || cellBits > 32 {
		return nil, fmt.Errorf("%w: cell width %d", ErrCorruptSketch, cellBits)
	}

	size, err := conv.IntToInt32(colNum)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	hashes := make([]hash.Func, rowNum)
	for i := range hashes {
		kind := hash.Kind(r.Int8())
		seed := r.Int32()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
		}
		h, err := hash.New(kind, seed, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
		}
		hashes[i] = h
	}

	c, err := codec.ReadRecord(r, codec.Huffman)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	table, err := c.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	if len(table) != rowNum*colNum {
		return nil, fmt.Errorf("%w: table has %d cells, want %d", ErrCorruptSketch, len(table), rowNum*colNum)
	}
	if err := checkSpread(table, zeroValue, cellBits); err != nil {
		return nil, err
	}

	return &MinMaxSketch{
		rowNum:    rowNum,
		colNum:    colNum,
		zeroValue: zeroValue,
		cellBits:  cellBits,
		hashes:    hashes,
		table:     table,
		encoded:   c.(*codec.HuffmanCodec),
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *MinMaxSketch) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(s.MemoryBytes())
	if err := Encode(w, s); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *MinMaxSketch) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	dec, err := Decode(r)
	if err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptSketch, r.Remaining())
	}
	*s = *dec
	return nil
}

// checkSpread verifies that the written cells span fewer than 2^cellBits
// consecutive values.
func checkSpread(table []int32, zeroValue int32, cellBits int) error {
	fill := farthest(zeroValue)
	lo, hi := int64(math.MaxInt32), int64(math.MinInt32)
	for _, v := range table {
		if v == fill {
			continue
		}
		lo = min(lo, int64(v))
		hi = max(hi, int64(v))
	}
	if lo <= hi && hi-lo >= int64(1)<<cellBits {
		return fmt.Errorf("%w: cells span [%d,%d], more than %d bits", ErrCorruptSketch, lo, hi, cellBits)
	}
	return nil
}
