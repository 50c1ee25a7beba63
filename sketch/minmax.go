package sketch

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/internal/hash"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// DefaultRowNum is the number of hash rows used when none is configured.
const DefaultRowNum = 2

var (
	// ErrInvalidShape is returned for non-positive or oversized dimensions.
	ErrInvalidShape = errors.New("sketch: invalid dimensions")

	// ErrCorruptSketch is returned when a persisted sketch is inconsistent.
	ErrCorruptSketch = errors.New("sketch: corrupt record")
)

// MinMaxSketch is a rowNum x colNum table of closest-to-zero values.
type MinMaxSketch struct {
	rowNum    int
	colNum    int
	zeroValue int32
	cellBits  int
	hashes    []hash.Func
	table     []int32

	// encoded caches the Huffman encoding of table; Insert clears it.
	encoded *codec.HuffmanCodec
}

// NewMinMaxSketch creates an empty sketch. rowNum distinct hash functions are
// drawn from the family using rng.
func NewMinMaxSketch(rowNum, colNum int, zeroValue int32, rng *rand.Rand) (*MinMaxSketch, error) {
	if err := checkShape(rowNum, colNum); err != nil {
		return nil, err
	}
	hashes, err := hash.Random(rng, rowNum, int32(colNum))
	if err != nil {
		return nil, err
	}

	table := make([]int32, rowNum*colNum)
	fill := farthest(zeroValue)
	for i := range table {
		table[i] = fill
	}

	return &MinMaxSketch{
		rowNum:    rowNum,
		colNum:    colNum,
		zeroValue: zeroValue,
		cellBits:  32,
		hashes:    hashes,
		table:     table,
	}, nil
}

func checkShape(rowNum, colNum int) error {
	if rowNum < 1 || colNum < 1 {
		return fmt.Errorf("%w: rowNum=%d colNum=%d", ErrInvalidShape, rowNum, colNum)
	}
	if rowNum > hash.FamilySize {
		return fmt.Errorf("%w: requested %d rows, only %d hash functions are available", hash.ErrHashCapacity, rowNum, hash.FamilySize)
	}
	if colNum > wire.MaxElements/rowNum {
		return fmt.Errorf("%w: %d x %d cells", ErrInvalidShape, rowNum, colNum)
	}
	return nil
}

// RowNum returns the number of hash rows.
func (s *MinMaxSketch) RowNum() int { return s.rowNum }

// ColNum returns the number of cells per row.
func (s *MinMaxSketch) ColNum() int { return s.colNum }

// ZeroValue returns the reference value distances are measured from.
func (s *MinMaxSketch) ZeroValue() int32 { return s.zeroValue }

// CellBits returns the number of bits a cell needs for the value range the
// sketch was sized for. It is 32 unless the sketch belongs to a band. The
// table itself is Huffman-coded, so CellBits does not size storage; Decode
// uses it to reject tables whose written cells span a wider range.
func (s *MinMaxSketch) CellBits() int { return s.cellBits }

// Hashes returns the hash functions, one per row.
func (s *MinMaxSketch) Hashes() []hash.Func { return s.hashes }

// Insert records value for key, keeping the value closest to zeroValue in
// every cell key hashes to.
func (s *MinMaxSketch) Insert(key, value int32) {
	d := s.distance(value)
	for i, h := range s.hashes {
		idx := i*s.colNum + int(h.Hash(key))
		if d < s.distance(s.table[idx]) {
			s.table[idx] = value
		}
	}
	s.encoded = nil
}

// Query returns the value farthest from zeroValue across key's cells.
// Cells never written are ignored, so an unknown key yields zeroValue.
func (s *MinMaxSketch) Query(key int32) int32 {
	fill := farthest(s.zeroValue)
	res := s.zeroValue
	for i, h := range s.hashes {
		v := s.table[i*s.colNum+int(h.Hash(key))]
		if v == fill {
			continue
		}
		if s.distance(v) > s.distance(res) {
			res = v
		}
	}
	return res
}

func (s *MinMaxSketch) distance(v int32) int64 {
	d := int64(v) - int64(s.zeroValue)
	if d < 0 {
		return -d
	}
	return d
}

// farthest returns the int32 with the largest distance from zero.
func farthest(zero int32) int32 {
	if int64(zero)-math.MinInt32 >= math.MaxInt32-int64(zero) {
		return math.MinInt32
	}
	return math.MaxInt32
}

func (s *MinMaxSketch) tableCodec() (*codec.HuffmanCodec, error) {
	if s.encoded != nil {
		return s.encoded, nil
	}
	c := &codec.HuffmanCodec{}
	if err := c.Encode(s.table); err != nil {
		return nil, err
	}
	s.encoded = c
	return c, nil
}

// MemoryBytes returns the size of the sketch record. If the table cannot be
// Huffman encoded the raw table size is reported and Encode fails.
func (s *MinMaxSketch) MemoryBytes() int {
	n := 16 + 5*s.rowNum
	c, err := s.tableCodec()
	if err != nil {
		return n + 4*len(s.table)
	}
	return n + c.SizeInBytes()
}
