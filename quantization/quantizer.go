// Package quantization discretizes real-valued vectors into a small alphabet
// of bin indices and maps bins back to representative values.
package quantization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/hupe1980/vecsketch/internal/quantile"
	"github.com/hupe1980/vecsketch/resource"
)

// DefaultBinNum is the default number of bins.
const DefaultBinNum = 256

var (
	// ErrUnknownKind is returned for an unrecognized quantization variant.
	ErrUnknownKind = errors.New("quantization: unknown quantization kind")

	// ErrInvalidBinNum is returned when fewer than two bins are requested.
	ErrInvalidBinNum = errors.New("quantization: bin count must be at least 2")

	// ErrUnsupportedScale is returned by Scale for factors that are not
	// strictly positive.
	ErrUnsupportedScale = errors.New("quantization: scale factor must be positive")

	// ErrNotQuantized is returned when an operation needs splits that have not
	// been computed yet.
	ErrNotQuantized = errors.New("quantization: quantizer has not been run")

	// ErrCorruptRecord is returned when a persisted quantizer is inconsistent.
	ErrCorruptRecord = errors.New("quantization: corrupt record")
)

// Kind selects how splits are derived from the data.
type Kind int8

const (
	// Uniform places splits at equal distances between min and max.
	Uniform Kind = iota
	// Quantile places splits at empirical quantiles so every bin holds about
	// the same number of values.
	Quantile
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Quantile:
		return "quantile"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool { return k == Uniform || k == Quantile }

// ParseKind parses a configuration name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform":
		return Uniform, nil
	case "quantile":
		return Quantile, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Quantizer maps reals to bin indices.
//
// Bin i covers the half-open interval [splits[i-1], splits[i]); a value equal
// to a split belongs to the upper bin. Values below the first split land in
// bin 0 and values at or above the last split land in bin BinNum()-1.
type Quantizer struct {
	kind      Kind
	requested int
	binNum    int
	n         int
	splits    []float64
	zeroIdx   int
	min       float64
	max       float64
	bins      []int32
	done      bool
}

// New creates a quantizer requesting binNum bins.
func New(kind Kind, binNum int) (*Quantizer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if binNum < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBinNum, binNum)
	}
	return &Quantizer{kind: kind, requested: binNum, binNum: binNum}, nil
}

// Kind returns the variant.
func (q *Quantizer) Kind() Kind { return q.kind }

// Requested returns the bin count asked for at construction.
func (q *Quantizer) Requested() int { return q.requested }

// BinNum returns the achieved bin count. It can be lower than Requested when
// duplicate splits were collapsed.
func (q *Quantizer) BinNum() int { return q.binNum }

// N returns the number of quantized values.
func (q *Quantizer) N() int { return q.n }

// Splits returns the bin boundaries. The slice must not be modified.
func (q *Quantizer) Splits() []float64 { return q.splits }

// ZeroIdx returns the bin containing 0.0, or the nearest bin when 0.0 lies
// outside the observed range.
func (q *Quantizer) ZeroIdx() int { return q.zeroIdx }

// Min returns the smallest observed value.
func (q *Quantizer) Min() float64 { return q.min }

// Max returns the largest observed value.
func (q *Quantizer) Max() float64 { return q.max }

// Bins returns the per-value bin indices of the last quantization. The slice
// must not be modified.
func (q *Quantizer) Bins() []int32 { return q.bins }

// Quantized reports whether splits have been computed.
func (q *Quantizer) Quantized() bool { return q.done }

// Quantize computes splits, zero index and bins for values.
func (q *Quantizer) Quantize(values []float64) error {
	var splits []float64
	lo, hi := 0.0, 0.0

	switch q.kind {
	case Uniform:
		lo, hi, _ = minMax(values)
		splits = uniformSplits(lo, hi, q.requested)
	case Quantile:
		s := quantile.New(quantile.DefaultK)
		for _, v := range values {
			s.Update(v)
		}
		lo, hi = s.Min(), s.Max()
		splits = quantileSplits(s, q.requested)
	}

	q.install(len(values), lo, hi, splits)
	bins := make([]int32, len(values))
	q.assign(values, bins, resource.Span{From: 0, To: len(values)})
	q.bins = bins
	return nil
}

// ParallelQuantize computes the same result as Quantize with the work split
// across the controller's workers: per-range min/max or quantile summaries
// merged in range order, then bin assignment over disjoint ranges.
func (q *Quantizer) ParallelQuantize(ctx context.Context, rc *resource.Controller, values []float64) error {
	if rc == nil {
		return resource.ErrNoController
	}

	working := int64(len(values)) * 4
	if err := rc.AcquireMemory(ctx, working); err != nil {
		return err
	}
	defer rc.ReleaseMemory(working)

	spans := resource.Split(len(values), rc.Workers())

	var splits []float64
	lo, hi := 0.0, 0.0

	switch q.kind {
	case Uniform:
		los := make([]float64, len(spans))
		his := make([]float64, len(spans))
		oks := make([]bool, len(spans))
		err := rc.Run(ctx, len(spans), func(_ context.Context, i int) error {
			los[i], his[i], oks[i] = minMax(values[spans[i].From:spans[i].To])
			return nil
		})
		if err != nil {
			return err
		}
		// Spans holding only NaN do not contribute.
		found := false
		for i, ok := range oks {
			if !ok {
				continue
			}
			if !found {
				lo, hi, found = los[i], his[i], true
				continue
			}
			lo, hi = min(lo, los[i]), max(hi, his[i])
		}
		splits = uniformSplits(lo, hi, q.requested)
	case Quantile:
		parts := make([]*quantile.Summary, len(spans))
		err := rc.Run(ctx, len(spans), func(_ context.Context, i int) error {
			s := quantile.New(quantile.DefaultK)
			for _, v := range values[spans[i].From:spans[i].To] {
				s.Update(v)
			}
			parts[i] = s
			return nil
		})
		if err != nil {
			return err
		}
		merged := quantile.New(quantile.DefaultK)
		for _, p := range parts {
			merged.Merge(p)
		}
		lo, hi = merged.Min(), merged.Max()
		splits = quantileSplits(merged, q.requested)
	}

	bins := make([]int32, len(values))
	q.install(len(values), lo, hi, splits)
	err := rc.Run(ctx, len(spans), func(_ context.Context, i int) error {
		q.assign(values, bins, spans[i])
		return nil
	})
	if err != nil {
		return err
	}
	q.bins = bins
	return nil
}

func (q *Quantizer) install(n int, lo, hi float64, splits []float64) {
	q.n = n
	q.min = lo
	q.max = hi
	q.splits = splits
	q.binNum = len(splits) + 1
	// Count of splits <= 0, which is IndexOf(0) under the upper-bin rule.
	q.zeroIdx = sort.Search(len(splits), func(i int) bool { return splits[i] > 0 })
	q.done = true
}

func (q *Quantizer) assign(values []float64, bins []int32, span resource.Span) {
	for i := span.From; i < span.To; i++ {
		bins[i] = int32(q.IndexOf(values[i]))
	}
}

// IndexOf returns the bin of x. The search is anchored at the zero bin:
// negative values are searched among the splits left of it, the rest among
// the splits right of it.
func (q *Quantizer) IndexOf(x float64) int {
	s := q.splits
	if len(s) == 0 || x < s[0] {
		return 0
	}
	if x >= s[len(s)-1] {
		return len(s)
	}

	// Splits below zeroIdx are <= 0, the rest are > 0.
	z := min(q.zeroIdx, len(s))
	if x < 0 {
		return sort.Search(z, func(i int) bool { return s[i] > x })
	}
	return z + sort.Search(len(s)-z, func(i int) bool { return s[z+i] > x })
}

// Values returns one representative value per bin: the midpoint of the bin's
// bounding splits, with min and max closing the two extreme bins.
func (q *Quantizer) Values() []float64 {
	if !q.done {
		return nil
	}
	s := q.splits
	res := make([]float64, q.binNum)
	last := len(s)
	res[0] = 0.5 * (q.min + s[0])
	for i := 1; i < last; i++ {
		res[i] = 0.5 * (s[i-1] + s[i])
	}
	res[last] = 0.5 * (s[last-1] + q.max)
	return res
}

// Scale multiplies min, max and every split by factor. Bin membership is
// preserved only for positive factors, so anything else is rejected. A
// factor that overflows the bounds or collapses two splits is rejected too,
// leaving the quantizer unchanged.
func (q *Quantizer) Scale(factor float64) error {
	if !q.done {
		return ErrNotQuantized
	}
	if !(factor > 0) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: %v", ErrUnsupportedScale, factor)
	}
	lo, hi := q.min*factor, q.max*factor
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("%w: %v overflows the value range", ErrUnsupportedScale, factor)
	}
	splits := make([]float64, len(q.splits))
	for i, s := range q.splits {
		splits[i] = s * factor
		if math.IsInf(splits[i], 0) {
			return fmt.Errorf("%w: %v overflows split %d", ErrUnsupportedScale, factor, i)
		}
		if i > 0 && !(splits[i-1] < splits[i]) {
			return fmt.Errorf("%w: %v collapses splits %d and %d", ErrUnsupportedScale, factor, i-1, i)
		}
	}
	q.min, q.max = lo, hi
	copy(q.splits, splits)
	return nil
}

// minMax ignores NaN. ok is false when no other value is present, and lo
// and hi are then 0.
func minMax(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func uniformSplits(lo, hi float64, binNum int) []float64 {
	splits := make([]float64, binNum-1)
	step := (hi - lo) / float64(binNum)
	for k := 1; k < binNum; k++ {
		splits[k-1] = lo + float64(k)*step
	}
	return unique(splits)
}

func quantileSplits(s *quantile.Summary, binNum int) []float64 {
	splits := s.Quantiles(binNum)
	if splits == nil {
		// Empty input: a single split at zero keeps the layout well formed.
		return []float64{0}
	}
	return unique(splits)
}

// unique drops repeated values from a non-decreasing slice in place.
func unique(sorted []float64) []float64 {
	return slices.Compact(sorted)
}
