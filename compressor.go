package vecsketch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecsketch/frame"
	"github.com/hupe1980/vecsketch/internal/conv"
	"github.com/hupe1980/vecsketch/internal/wire"
	"github.com/hupe1980/vecsketch/resource"
	"github.com/hupe1980/vecsketch/sketch"
)

// CompressorKind identifies a compressor implementation. Its value is the
// first byte of every compressor record.
type CompressorKind uint8

const (
	// Dense quantizes every element of a vector.
	Dense CompressorKind = 1
	// Sparse quantizes the values of (key, value) pairs and stores the keys
	// in a grouped min-max sketch.
	Sparse CompressorKind = 2
)

// String returns the name of the kind.
func (k CompressorKind) String() string {
	switch k {
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return fmt.Sprintf("CompressorKind(%d)", uint8(k))
	}
}

// ParseCompressorKind parses a kind name as returned by String.
func ParseCompressorKind(s string) (CompressorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense":
		return Dense, nil
	case "sparse":
		return Sparse, nil
	default:
		return 0, &Error{Op: "parse", Kind: KindConfig, Err: fmt.Errorf("%w: %q", ErrUnknownCompressor, s)}
	}
}

// Compressor holds one compressed vector.
//
// A compressor is compressed exactly once; decompression may be repeated.
// Methods other than Compress*, UnmarshalBinary, Kind and Size return
// ErrNotCompressed until then. A Compressor is not safe for concurrent
// mutation; concurrent Decompress calls are safe.
type Compressor interface {
	// Kind returns the compressor kind.
	Kind() CompressorKind

	// CompressDense compresses a dense vector.
	CompressDense(values []float64) error
	// CompressSparse compresses a sparse vector given as distinct,
	// non-negative keys and their values.
	CompressSparse(keys []int32, values []float64) error
	// ParallelCompressDense is CompressDense with the work spread over rc.
	ParallelCompressDense(ctx context.Context, rc *resource.Controller, values []float64) error
	// ParallelCompressSparse is CompressSparse with the work spread over rc.
	ParallelCompressSparse(ctx context.Context, rc *resource.Controller, keys []int32, values []float64) error

	// DecompressDense restores a dense vector.
	DecompressDense() ([]float64, error)
	// DecompressSparse restores the keys in ascending order and their values.
	DecompressSparse() ([]int32, []float64, error)

	// TimesBy scales the restored values by x.
	TimesBy(x float64) error

	// Size returns the element count (dense) or the key count (sparse).
	Size() int
	// MemoryBytes returns the length of the compressor record.
	MemoryBytes() int

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// New returns an empty compressor of the given kind.
func New(kind CompressorKind, optFns ...Option) (Compressor, error) {
	o := applyOptions(optFns)
	if err := o.validate(); err != nil {
		return nil, translateError("new", err)
	}
	switch kind {
	case Dense:
		return &DenseCompressor{opts: o}, nil
	case Sparse:
		return &SparseCompressor{opts: o}, nil
	default:
		return nil, translateError("new", fmt.Errorf("%w: %d", ErrUnknownCompressor, kind))
	}
}

// Unmarshal decodes a compressor record of either kind.
func Unmarshal(data []byte, optFns ...Option) (Compressor, error) {
	if len(data) == 0 {
		return nil, translateError("unmarshal", fmt.Errorf("%w: empty record", ErrCorruptRecord))
	}
	kind := CompressorKind(data[0])
	if kind != Dense && kind != Sparse {
		return nil, translateError("unmarshal", fmt.Errorf("%w: %w: %d", ErrCorruptRecord, ErrUnknownCompressor, kind))
	}
	c, err := New(kind, optFns...)
	if err != nil {
		return nil, err
	}
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c as a frame with the given block compression, throttled by
// rc's IO limit. rc may be nil.
func Save(ctx context.Context, w io.Writer, rc *resource.Controller, c Compressor, compression frame.Compression) (int64, error) {
	record, err := c.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := frame.Write(ctx, w, rc, record, compression)
	return n, translateError("save", err)
}

// Load reads a frame written by Save and decodes the compressor in it.
func Load(ctx context.Context, r io.Reader, rc *resource.Controller, optFns ...Option) (Compressor, error) {
	record, _, err := frame.Read(ctx, r, rc)
	if err != nil {
		return nil, translateError("load", err)
	}
	return Unmarshal(record, optFns...)
}

// finishCompress translates err for op and reports the call to the logger
// and the metrics collector.
func (o *options) finishCompress(ctx context.Context, op string, kind CompressorKind, n int, start time.Time, memoryBytes func() int, err error) error {
	err = translateError(op, err)
	mb := 0
	if err == nil {
		mb = memoryBytes()
	}
	o.logger.LogCompress(ctx, kind, n, mb, err)
	o.metricsCollector.RecordCompress(kind, n, time.Since(start), err)
	return err
}

func (o *options) finishDecompress(ctx context.Context, op string, kind CompressorKind, n int, start time.Time, err error) error {
	err = translateError(op, err)
	o.logger.LogDecompress(ctx, kind, n, err)
	o.metricsCollector.RecordDecompress(kind, n, time.Since(start), err)
	return err
}

// densify scatters (key, value) pairs into a zero-filled vector of
// maxKey+1 slots.
func densify(keys []int32, values []float64) ([]float64, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys, %d values", ErrLengthMismatch, len(keys), len(values))
	}
	seen := roaring.New()
	for _, k := range keys {
		if k < 0 {
			return nil, fmt.Errorf("%w: %d", sketch.ErrNegativeKey, k)
		}
		if !seen.CheckedAdd(uint32(k)) {
			return nil, fmt.Errorf("%w: %d", sketch.ErrDuplicateKey, k)
		}
	}
	if seen.IsEmpty() {
		return []float64{}, nil
	}
	n := int(seen.Maximum()) + 1
	if n > wire.MaxElements {
		return nil, fmt.Errorf("%w: %d slots", ErrDensifyTooLarge, n)
	}
	out := make([]float64, n)
	for i, k := range keys {
		out[k] = values[i]
	}
	return out, nil
}

// sequentialKeys returns 0..n-1.
func sequentialKeys(n int) ([]int32, error) {
	if _, err := conv.LenToInt32(n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDensifyTooLarge, err)
	}
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i) //nolint:gosec // bounded above
	}
	return keys, nil
}
