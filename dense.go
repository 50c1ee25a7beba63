package vecsketch

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecsketch/internal/wire"
	"github.com/hupe1980/vecsketch/quantization"
	"github.com/hupe1980/vecsketch/resource"
)

// denseHeaderBytes covers kind, size, quantKind and binNum.
const denseHeaderBytes = 1 + 4 + 1 + 4

// DenseCompressor quantizes every element of a vector and keeps one bin
// index per element.
type DenseCompressor struct {
	opts      options
	quantizer *quantization.Quantizer
}

var _ Compressor = (*DenseCompressor)(nil)

// NewDense returns an empty dense compressor.
func NewDense(optFns ...Option) (*DenseCompressor, error) {
	c, err := New(Dense, optFns...)
	if err != nil {
		return nil, err
	}
	return c.(*DenseCompressor), nil
}

// Kind implements Compressor.
func (c *DenseCompressor) Kind() CompressorKind { return Dense }

// CompressDense implements Compressor.
func (c *DenseCompressor) CompressDense(values []float64) error {
	return c.compress(context.Background(), nil, values, false, "compress dense")
}

// ParallelCompressDense implements Compressor.
func (c *DenseCompressor) ParallelCompressDense(ctx context.Context, rc *resource.Controller, values []float64) error {
	return c.compress(ctx, rc, values, true, "parallel compress dense")
}

// CompressSparse densifies the pairs into maxKey+1 slots, filling absent
// keys with zero, and compresses the result.
func (c *DenseCompressor) CompressSparse(keys []int32, values []float64) error {
	return c.compressSparse(context.Background(), nil, keys, values, false, "compress sparse")
}

// ParallelCompressSparse is CompressSparse with quantization spread over rc.
func (c *DenseCompressor) ParallelCompressSparse(ctx context.Context, rc *resource.Controller, keys []int32, values []float64) error {
	return c.compressSparse(ctx, rc, keys, values, true, "parallel compress sparse")
}

func (c *DenseCompressor) compressSparse(ctx context.Context, rc *resource.Controller, keys []int32, values []float64, parallel bool, op string) error {
	if c.quantizer != nil {
		return c.opts.finishCompress(ctx, op, Dense, len(values), time.Now(), c.MemoryBytes, ErrAlreadyCompressed)
	}
	dense, err := densify(keys, values)
	if err != nil {
		return c.opts.finishCompress(ctx, op, Dense, len(values), time.Now(), c.MemoryBytes, err)
	}
	c.opts.logger.WarnContext(ctx, "dense compressor given sparse input, densifying",
		"keys", len(keys),
		"slots", len(dense),
	)
	return c.compress(ctx, rc, dense, parallel, op)
}

func (c *DenseCompressor) compress(ctx context.Context, rc *resource.Controller, values []float64, parallel bool, op string) (err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishCompress(ctx, op, Dense, len(values), start, c.MemoryBytes, err)
	}()

	if c.quantizer != nil {
		return ErrAlreadyCompressed
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
	c.quantizer = q
	return nil
}

// DecompressDense implements Compressor.
func (c *DenseCompressor) DecompressDense() (out []float64, err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishDecompress(context.Background(), "decompress dense", Dense, len(out), start, err)
	}()

	if c.quantizer == nil {
		return nil, ErrNotCompressed
	}
	return c.restore(), nil
}

func (c *DenseCompressor) restore() []float64 {
	reps := c.quantizer.Values()
	bins := c.quantizer.Bins()
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = reps[b]
	}
	return out
}

// DecompressSparse returns keys 0..n-1 with the restored values.
func (c *DenseCompressor) DecompressSparse() (keys []int32, values []float64, err error) {
	start := time.Now()
	defer func() {
		err = c.opts.finishDecompress(context.Background(), "decompress sparse", Dense, len(values), start, err)
	}()

	if c.quantizer == nil {
		return nil, nil, ErrNotCompressed
	}
	values = c.restore()
	keys, err = sequentialKeys(len(values))
	if err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// TimesBy scales the quantizer bounds. Only positive finite factors keep
// the bin order intact and are accepted.
func (c *DenseCompressor) TimesBy(x float64) error {
	if c.quantizer == nil {
		return translateError("times by", ErrNotCompressed)
	}
	return translateError("times by", c.quantizer.Scale(x))
}

// Size returns the number of compressed elements.
func (c *DenseCompressor) Size() int {
	if c.quantizer == nil {
		return 0
	}
	return c.quantizer.N()
}

// MemoryBytes returns the record length, or 0 before compression.
func (c *DenseCompressor) MemoryBytes() int {
	if c.quantizer == nil {
		return 0
	}
	return denseHeaderBytes + c.quantizer.MemoryBytes()
}

// MarshalBinary writes the dense record:
//
//	kind:uint8 size:int32 quantKind:int8 binNum:int32 quantizer
func (c *DenseCompressor) MarshalBinary() ([]byte, error) {
	if c.quantizer == nil {
		return nil, translateError("marshal dense", ErrNotCompressed)
	}
	q := c.quantizer
	w := wire.NewWriter(c.MemoryBytes())
	w.Uint8(uint8(Dense))
	w.Len32(q.N())
	w.Int8(int8(q.Kind()))
	w.Len32(q.BinNum())
	if err := quantization.Encode(w, q); err != nil {
		return nil, translateError("marshal dense", err)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary implements Compressor. The receiver must be empty.
func (c *DenseCompressor) UnmarshalBinary(data []byte) error {
	if c.quantizer != nil {
		return translateError("unmarshal dense", ErrAlreadyCompressed)
	}
	q, err := decodeDense(data)
	if err != nil {
		return translateError("unmarshal dense", fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}
	c.quantizer = q
	return nil
}

func decodeDense(data []byte) (*quantization.Quantizer, error) {
	r := wire.NewReader(data)
	if kind := CompressorKind(r.Uint8()); r.Err() == nil && kind != Dense {
		return nil, fmt.Errorf("record kind %s, want %s", kind, Dense)
	}
	size := r.Len32()
	quantKind := quantization.Kind(r.Int8())
	binNum := r.Len32()
	if err := r.Err(); err != nil {
		return nil, err
	}

	q, err := quantization.Decode(r, quantKind)
	if err != nil {
		return nil, err
	}
	switch {
	case q.N() != size || len(q.Bins()) != size:
		return nil, fmt.Errorf("size %d disagrees with quantizer (%d values, %d bins)", size, q.N(), len(q.Bins()))
	case q.BinNum() != binNum:
		return nil, fmt.Errorf("bin count %d disagrees with quantizer %d", binNum, q.BinNum())
	case r.Remaining() != 0:
		return nil, fmt.Errorf("%d trailing bytes", r.Remaining())
	}
	return q, nil
}
