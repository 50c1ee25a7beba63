package sketch

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/sortutil"
	"github.com/hupe1980/vecsketch/resource"
)

// Defaults for grouped sketches.
const (
	DefaultGroupNum = 8
	DefaultColRatio = 0.3
)

var (
	// ErrLengthMismatch is returned when keys and bins differ in length.
	ErrLengthMismatch = errors.New("sketch: keys and bins differ in length")

	// ErrDuplicateKey is returned when a key occurs more than once.
	ErrDuplicateKey = errors.New("sketch: duplicate key")

	// ErrNegativeKey is returned for keys below zero.
	ErrNegativeKey = errors.New("sketch: negative key")

	// ErrBinOutOfRange is returned for bins outside [0, binNum).
	ErrBinOutOfRange = errors.New("sketch: bin out of range")

	// ErrAlreadyBuilt is returned by a second Create.
	ErrAlreadyBuilt = errors.New("sketch: already built")

	// ErrNotBuilt is returned when a grouped sketch is read before Create.
	ErrNotBuilt = errors.New("sketch: not built")

	// ErrInvalidConfig is returned for invalid grouped sketch parameters.
	ErrInvalidConfig = errors.New("sketch: invalid configuration")
)

// GroupedOption configures a GroupedMinMaxSketch.
type GroupedOption func(*groupedOptions)

type groupedOptions struct {
	keyCodec codec.Kind
	rng      *rand.Rand
	logger   *slog.Logger
}

// WithKeyCodec sets the codec used for each band's sorted keys. It must be a
// sorted-input codec (Delta or AdaptiveDelta).
func WithKeyCodec(kind codec.Kind) GroupedOption {
	return func(o *groupedOptions) {
		o.keyCodec = kind
	}
}

// WithRand sets the source the per-band hash functions are drawn from.
func WithRand(rng *rand.Rand) GroupedOption {
	return func(o *groupedOptions) {
		o.rng = rng
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GroupedOption {
	return func(o *groupedOptions) {
		o.logger = l
	}
}

// GroupedMinMaxSketch stores keys exactly per band and their bins
// approximately in one MinMaxSketch per band.
type GroupedMinMaxSketch struct {
	groupNum  int
	rowNum    int
	colRatio  float64
	binNum    int
	zeroValue int32
	edges     []int

	keyCodec codec.Kind
	rng      *rand.Rand
	logger   *slog.Logger

	// sketches[i] and codecs[i] are both nil for an empty band.
	sketches []*MinMaxSketch
	codecs   []codec.BinaryCodec
	size     int
	built    bool
}

// NewGroupedMinMaxSketch validates the parameters and returns an unbuilt
// sketch. groupNum is clamped to binNum; zeroValue is the zero bin index.
func NewGroupedMinMaxSketch(groupNum, rowNum int, colRatio float64, binNum int, zeroValue int32, optFns ...GroupedOption) (*GroupedMinMaxSketch, error) {
	opts := groupedOptions{
		keyCodec: codec.Delta,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.rng == nil {
		opts.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // hash selection, not security
	}

	groupNum = min(groupNum, binNum)
	if err := validateGrouped(groupNum, rowNum, colRatio, binNum, zeroValue); err != nil {
		return nil, err
	}
	if !opts.keyCodec.Sorted() {
		return nil, fmt.Errorf("%w: key codec %s does not accept sorted keys", ErrInvalidConfig, opts.keyCodec)
	}

	return &GroupedMinMaxSketch{
		groupNum:  groupNum,
		rowNum:    rowNum,
		colRatio:  colRatio,
		binNum:    binNum,
		zeroValue: zeroValue,
		edges:     GroupEdges(int(zeroValue), binNum, groupNum),
		keyCodec:  opts.keyCodec,
		rng:       opts.rng,
		logger:    opts.logger,
	}, nil
}

func validateGrouped(groupNum, rowNum int, colRatio float64, binNum int, zeroValue int32) error {
	switch {
	case binNum < 1:
		return fmt.Errorf("%w: binNum %d", ErrInvalidConfig, binNum)
	case groupNum < 1:
		return fmt.Errorf("%w: groupNum %d", ErrInvalidConfig, groupNum)
	case math.IsNaN(colRatio) || math.IsInf(colRatio, 0) || colRatio <= 0:
		return fmt.Errorf("%w: colRatio %v", ErrInvalidConfig, colRatio)
	case zeroValue < 0 || int(zeroValue) >= binNum:
		return fmt.Errorf("%w: zero bin %d outside [0,%d)", ErrInvalidConfig, zeroValue, binNum)
	}
	return checkShape(rowNum, 1)
}

// GroupNum returns the effective number of bands.
func (g *GroupedMinMaxSketch) GroupNum() int { return g.groupNum }

// RowNum returns the number of hash rows per band sketch.
func (g *GroupedMinMaxSketch) RowNum() int { return g.rowNum }

// ColRatio returns the cells-per-key ratio.
func (g *GroupedMinMaxSketch) ColRatio() float64 { return g.colRatio }

// BinNum returns the size of the bin range.
func (g *GroupedMinMaxSketch) BinNum() int { return g.binNum }

// ZeroValue returns the zero bin index.
func (g *GroupedMinMaxSketch) ZeroValue() int32 { return g.zeroValue }

// Edges returns the exclusive upper bound of every band.
func (g *GroupedMinMaxSketch) Edges() []int { return g.edges }

// Size returns the number of stored keys.
func (g *GroupedMinMaxSketch) Size() int { return g.size }

// Built reports whether Create or ParallelCreate succeeded.
func (g *GroupedMinMaxSketch) Built() bool { return g.built }

// Band returns the sketch and key codec of band i; both are nil when the
// band holds no keys.
func (g *GroupedMinMaxSketch) Band(i int) (*MinMaxSketch, codec.BinaryCodec) {
	if !g.built || i < 0 || i >= g.groupNum {
		return nil, nil
	}
	return g.sketches[i], g.codecs[i]
}

// Create builds every band sequentially.
func (g *GroupedMinMaxSketch) Create(keys, bins []int32) error {
	start := time.Now()
	partKeys, partBins, seeds, err := g.prepare(keys, bins)
	if err != nil {
		return err
	}

	sketches := make([]*MinMaxSketch, g.groupNum)
	codecs := make([]codec.BinaryCodec, g.groupNum)
	for i := range g.groupNum {
		sketches[i], codecs[i], err = g.buildBand(i, partKeys[i], partBins[i], seeds[i])
		if err != nil {
			return err
		}
	}

	g.install(sketches, codecs, len(keys))
	g.logger.Debug("Grouped sketch created", "keys", len(keys), "groups", g.groupNum, "duration", time.Since(start))
	return nil
}

// ParallelCreate builds the bands concurrently on rc. The result is
// identical to Create with the same random source. The partition buffers are
// charged to rc's memory budget while the bands are built.
func (g *GroupedMinMaxSketch) ParallelCreate(ctx context.Context, rc *resource.Controller, keys, bins []int32) error {
	if rc == nil {
		return resource.ErrNoController
	}
	start := time.Now()
	partKeys, partBins, seeds, err := g.prepare(keys, bins)
	if err != nil {
		return err
	}

	reserve := int64(8 * len(keys))
	if err := rc.AcquireMemory(ctx, reserve); err != nil {
		return err
	}
	defer rc.ReleaseMemory(reserve)

	sketches := make([]*MinMaxSketch, g.groupNum)
	codecs := make([]codec.BinaryCodec, g.groupNum)
	err = rc.Run(ctx, g.groupNum, func(_ context.Context, i int) error {
		var err error
		sketches[i], codecs[i], err = g.buildBand(i, partKeys[i], partBins[i], seeds[i])
		return err
	})
	if err != nil {
		return err
	}

	g.install(sketches, codecs, len(keys))
	g.logger.Debug("Grouped sketch created", "keys", len(keys), "groups", g.groupNum, "workers", rc.Workers(), "duration", time.Since(start))
	return nil
}

// prepare validates the input, partitions it and draws one seed per band so
// sequential and parallel construction pick the same hash functions.
func (g *GroupedMinMaxSketch) prepare(keys, bins []int32) ([][]int32, [][]int32, []int64, error) {
	if g.built {
		return nil, nil, nil, ErrAlreadyBuilt
	}
	if len(keys) != len(bins) {
		return nil, nil, nil, fmt.Errorf("%w: %d keys, %d bins", ErrLengthMismatch, len(keys), len(bins))
	}

	seen := roaring.New()
	for i, k := range keys {
		if k < 0 {
			return nil, nil, nil, fmt.Errorf("%w: %d at %d", ErrNegativeKey, k, i)
		}
		if !seen.CheckedAdd(uint32(k)) {
			return nil, nil, nil, fmt.Errorf("%w: %d", ErrDuplicateKey, k)
		}
		if b := bins[i]; b < 0 || int(b) >= g.binNum {
			return nil, nil, nil, fmt.Errorf("%w: %d at %d, want [0,%d)", ErrBinOutOfRange, b, i, g.binNum)
		}
	}

	partKeys, partBins := partition(keys, bins, g.edges)
	seeds := make([]int64, g.groupNum)
	for i := range seeds {
		seeds[i] = g.rng.Int63()
	}
	return partKeys, partBins, seeds, nil
}

func (g *GroupedMinMaxSketch) buildBand(i int, keys, bins []int32, seed int64) (*MinMaxSketch, codec.BinaryCodec, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	sortutil.SortByKey(keys, bins)

	colNum := max(1, int(math.Ceil(float64(len(keys))*g.colRatio)))
	cellBits, err := bitio.CeilLog2(bandWidth(g.edges, i))
	if err != nil {
		return nil, nil, err
	}

	s, err := NewMinMaxSketch(g.rowNum, colNum, g.zeroValue, rand.New(rand.NewSource(seed))) //nolint:gosec // hash selection, not security
	if err != nil {
		return nil, nil, fmt.Errorf("band %d: %w", i, err)
	}
	s.cellBits = max(1, cellBits)
	for j, k := range keys {
		s.Insert(k, bins[j])
	}
	if _, err := s.tableCodec(); err != nil {
		return nil, nil, fmt.Errorf("band %d: %w", i, err)
	}

	c, err := codec.Encode(g.keyCodec, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("band %d: %w", i, err)
	}
	return s, c, nil
}

func (g *GroupedMinMaxSketch) install(sketches []*MinMaxSketch, codecs []codec.BinaryCodec, size int) {
	g.sketches = sketches
	g.codecs = codecs
	g.size = size
	g.built = true
}

// Restore decodes every band and returns all keys in ascending order with
// their sketched bins.
func (g *GroupedMinMaxSketch) Restore() ([]int32, []int32, error) {
	if !g.built {
		return nil, nil, ErrNotBuilt
	}

	streams := make([]stream, 0, g.groupNum)
	total := 0
	for i, c := range g.codecs {
		if c == nil {
			continue
		}
		keys, err := c.Decode()
		if err != nil {
			return nil, nil, fmt.Errorf("band %d: %w", i, err)
		}
		bins := make([]int32, len(keys))
		for j, k := range keys {
			bins[j] = g.sketches[i].Query(k)
		}
		streams = append(streams, stream{keys: keys, bins: bins})
		total += len(keys)
	}

	keys, bins := mergeStreams(streams, total)
	return keys, bins, nil
}

// KeySet returns the stored keys as a bitmap.
func (g *GroupedMinMaxSketch) KeySet() (*roaring.Bitmap, error) {
	if !g.built {
		return nil, ErrNotBuilt
	}
	bm := roaring.New()
	for i, c := range g.codecs {
		if c == nil {
			continue
		}
		keys, err := c.Decode()
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}
		for _, k := range keys {
			bm.Add(uint32(k)) //nolint:gosec // keys are validated non-negative
		}
	}
	return bm, nil
}

// MemoryBytes returns the size of the grouped record.
func (g *GroupedMinMaxSketch) MemoryBytes() int {
	n := 24 + 2*g.groupNum
	for i := range g.sketches {
		if g.sketches[i] != nil {
			n += g.sketches[i].MemoryBytes()
		}
		if g.codecs[i] != nil {
			n += 1 + g.codecs[i].SizeInBytes()
		}
	}
	return n
}

// stream is one band's keys and bins, both ascending by key.
type stream struct {
	keys []int32
	bins []int32
	pos  int
}

type streamHeap []*stream

func (h streamHeap) Len() int { return len(h) }
func (h streamHeap) Less(i, j int) bool {
	return h[i].keys[h[i].pos] < h[j].keys[h[j].pos]
}
func (h streamHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *streamHeap) Push(x any)   { *h = append(*h, x.(*stream)) }
func (h *streamHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// mergeStreams k-way merges sorted streams by key.
func mergeStreams(streams []stream, total int) ([]int32, []int32) {
	keys := make([]int32, 0, total)
	bins := make([]int32, 0, total)

	h := make(streamHeap, 0, len(streams))
	for i := range streams {
		if len(streams[i].keys) > 0 {
			h = append(h, &streams[i])
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		s := h[0]
		keys = append(keys, s.keys[s.pos])
		bins = append(bins, s.bins[s.pos])
		s.pos++
		if s.pos == len(s.keys) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return keys, bins
}
