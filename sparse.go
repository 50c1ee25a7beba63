package vecsketch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/vecsketch/internal/wire"
	"github.com/hupe1980/vecsketch/quantization"
	"github.com/hupe1980/vecsketch/resource"
	"github.com/hupe1980/vecsketch/sketch"
)

// sparseHeaderBytes covers kind, size, quantKind, binNum, groupNum, rowNum,
// colRatio and the value table length.
const sparseHeaderBytes = 1 + 4 + 1 + 4 + 4 + 4 + 8 + 4

// SparseCompressor quantizes the values of (key, value) pairs and stores
// each key's bin in a grouped min-max sketch. Keys themselves survive only
// in the per-band key codecs.
type SparseCompressor struct {
	opts      options
	quantKind quantization.Kind
	sketch    *sketch.GroupedMinMaxSketch
	values    []float64
}

var _ Compressor = (*SparseCompressor)(nil)

// NewSparse returns an empty sparse compressor.
func NewSparse(optFns ...Option) (*SparseCompressor, error) {
	c, err := New(Sparse, optFns...)
	if err != nil {
		return nil, err
	}
	return c.(*SparseCompressor), nil
}

// Kind implements Compressor.
func (c *SparseCompressor) Kind() CompressorKind { return Sparse }

// CompressSparse implements Compressor.
func (c *SparseCompressor) CompressSparse(keys []int32, values []float64) error {
	return c.compress(context.Background(), nil, keys, values, false, "compress sparse")
}

// ParallelCompressSparse implements Compressor. Quantization and per-band
// sketch construction both run on rc.
func (c *SparseCompressor) ParallelCompressSparse(ctx context.Context, rc *resource.Controller, keys []int32, values []float64) error {
	return c.compress(ctx, rc, keys, values, true, "parallel compress sparse")
}

// CompressDense treats the vector as pairs with keys 0..n-1.
func (c *SparseCompressor) CompressDense(values []float64) error {
	return c.compressDense(context.Background(), nil, values, false, "compress dense")
}

// ParallelCompressDense is CompressDense with the work spread over rc.
func (c *SparseCompressor) ParallelCompressDense(ctx context.Context, rc *resource.Controller, values []float64) error {
	return c.compressDense(ctx, rc, values, true, "parallel compress dense")
}

func (c *SparseCompressor) compressDense(ctx context.Context, rc *resource.Controller, values []float64, parallel bool, op string) error {
	keys, err := sequentialKeys(len(values))
	if err != nil {
		return c.opts.finishCompress(ctx, op, Sparse, len(values), time.Now(), c.MemoryBytes, err)
	}
	c.opts.logger.WarnContext(ctx, "sparse compressor given dense input, using sequential keys",
		"count", len(values),
	)
	return c.compress(ctx, rc, keys, values, parallel, op)
}

func (c *SparseCompressor) compress(ctx context.Context, rc *resource.Controller, keys []int32, values []float64, parallel bool, op string) (err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishCompress(ctx, op, Sparse, len(keys), start, c.MemoryBytes, err)
	}()

	if c.sketch != nil {
		return ErrAlreadyCompressed
	}
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", ErrLengthMismatch, len(keys), len(values))
	}

	q, err := quantization.New(c.opts.quantization, c.opts.binNum)
	if err != nil {
		return err
	}
	if parallel {
		err = q.ParallelQuantize(ctx, rc, values)
	} else {
		err = q.Quantize(values)
	}
	if err != nil {
		return err
	}
	if q.BinNum() < q.Requested() {
		c.opts.logger.LogReducedBins(ctx, q.Requested(), q.BinNum())
	}

	g, err := sketch.NewGroupedMinMaxSketch(c.opts.groupNum, c.opts.rowNum, c.opts.colRatio, q.BinNum(), int32(q.ZeroIdx()), //nolint:gosec // zeroIdx < binNum
		sketch.WithKeyCodec(c.opts.keyCodec),
		sketch.WithRand(c.opts.newRand()),
		sketch.WithLogger(c.opts.logger.Logger),
	)
	if err != nil {
		return err
	}
	if parallel {
		err = g.ParallelCreate(ctx, rc, keys, q.Bins())
	} else {
		err = g.Create(keys, q.Bins())
	}
	if err != nil {
		return err
	}

	c.quantKind = q.Kind()
	c.values = q.Values()
	c.sketch = g
	return nil
}

// DecompressSparse restores the keys in ascending order and looks up each
// key's bin in the sketch.
func (c *SparseCompressor) DecompressSparse() (keys []int32, values []float64, err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishDecompress(context.Background(), "decompress sparse", Sparse, len(values), start, err)
	}()

	if c.sketch == nil {
		return nil, nil, ErrNotCompressed
	}
	return c.restore()
}

func (c *SparseCompressor) restore() ([]int32, []float64, error) {
	keys, bins, err := c.sketch.Restore()
	if err != nil {
		return nil, nil, err
	}
	values := make([]float64, len(bins))
	for i, b := range bins {
		if b < 0 || int(b) >= len(c.values) {
			return nil, nil, fmt.Errorf("%w: bin %d outside value table of %d", ErrCorruptRecord, b, len(c.values))
		}
		values[i] = c.values[b]
	}
	return keys, values, nil
}

// DecompressDense scatters the restored pairs into maxKey+1 slots. Absent
// keys read as zero.
func (c *SparseCompressor) DecompressDense() (out []float64, err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishDecompress(context.Background(), "decompress dense", Sparse, len(out), start, err)
	}()

	if c.sketch == nil {
		return nil, ErrNotCompressed
	}
	keys, values, err := c.restore()
	if err != nil {
		return nil, err
	}
	return densify(keys, values)
}

// TimesBy multiplies the value table by x. Any finite factor is accepted
// since bins are not re-derived from the values.
func (c *SparseCompressor) TimesBy(x float64) error {
	if c.sketch == nil {
		return translateError("times by", ErrNotCompressed)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return translateError("times by", fmt.Errorf("%w: %v", quantization.ErrUnsupportedScale, x))
	}
	for i := range c.values {
		c.values[i] *= x
	}
	return nil
}

// Size returns the number of compressed keys.
func (c *SparseCompressor) Size() int {
	if c.sketch == nil {
		return 0
	}
	return c.sketch.Size()
}

// Sketch returns the grouped sketch, or nil before compression.
func (c *SparseCompressor) Sketch() *sketch.GroupedMinMaxSketch { return c.sketch }

// MemoryBytes returns the record length, or 0 before compression.
func (c *SparseCompressor) MemoryBytes() int {
	if c.sketch == nil {
		return 0
	}
	return sparseHeaderBytes + 8*len(c.values) + c.sketch.MemoryBytes()
}

// MarshalBinary writes the sparse record:
//
//	kind:uint8 size:int32 quantKind:int8 binNum:int32 groupNum:int32
//	rowNum:int32 colRatio:float64 values:int32+binNum*float64 grouped sketch
func (c *SparseCompressor) MarshalBinary() ([]byte, error) {
	if c.sketch == nil {
		return nil, translateError("marshal sparse", ErrNotCompressed)
	}
	g := c.sketch
	w := wire.NewWriter(c.MemoryBytes())
	w.Uint8(uint8(Sparse))
	w.Len32(g.Size())
	w.Int8(int8(c.quantKind))
	w.Len32(g.BinNum())
	w.Len32(g.GroupNum())
	w.Len32(g.RowNum())
	w.Float64(g.ColRatio())
	w.Float64s(c.values)
	if err := sketch.EncodeGrouped(w, g); err != nil {
		return nil, translateError("marshal sparse", err)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary implements Compressor. The receiver must be empty.
func (c *SparseCompressor) UnmarshalBinary(data []byte) error {
	if c.sketch != nil {
		return translateError("unmarshal sparse", ErrAlreadyCompressed)
	}
	if err := c.decode(data); err != nil {
		return translateError("unmarshal sparse", fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}
	return nil
}

func (c *SparseCompressor) decode(data []byte) error {
	r := wire.NewReader(data)
	if kind := CompressorKind(r.Uint8()); r.Err() == nil && kind != Sparse {
		return fmt.Errorf("record kind %s, want %s", kind, Sparse)
	}
	size := r.Len32()
	quantKind := quantization.Kind(r.Int8())
	binNum := r.Len32()
	groupNum := r.Len32()
	rowNum := r.Len32()
	colRatio := r.Float64()
	values := r.Float64s()
	if err := r.Err(); err != nil {
		return err
	}
	if !quantKind.Valid() {
		return fmt.Errorf("%w: %d", quantization.ErrUnknownKind, quantKind)
	}
	if len(values) != binNum {
		return fmt.Errorf("value table of %d entries for %d bins", len(values), binNum)
	}

	g, err := sketch.DecodeGrouped(r,
		sketch.WithKeyCodec(c.opts.keyCodec),
		sketch.WithLogger(c.opts.logger.Logger),
	)
	if err != nil {
		return err
	}
	switch {
	case g.Size() != size:
		return fmt.Errorf("size %d disagrees with sketch %d", size, g.Size())
	case g.BinNum() != binNum || g.GroupNum() != groupNum || g.RowNum() != rowNum:
		return fmt.Errorf("header (%d bins, %d groups, %d rows) disagrees with sketch (%d, %d, %d)",
			binNum, groupNum, rowNum, g.BinNum(), g.GroupNum(), g.RowNum())
	case g.ColRatio() != colRatio:
		return fmt.Errorf("column ratio %v disagrees with sketch %v", colRatio, g.ColRatio())
	case r.Remaining() != 0:
		return fmt.Errorf("%d trailing bytes", r.Remaining())
	}

	c.quantKind = quantKind
	c.values = values
	c.sketch = g
	return nil
}
