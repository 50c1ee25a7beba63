package vecsketch

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/internal/hash"
	"github.com/hupe1980/vecsketch/quantization"
	"github.com/hupe1980/vecsketch/sketch"
)

type options struct {
	quantization     quantization.Kind
	binNum           int
	groupNum         int
	rowNum           int
	colRatio         float64
	keyCodec         codec.Kind
	seed             int64
	seeded           bool
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a compressor.
type Option func(*options)

// WithQuantization selects the quantizer variant. Defaults to Quantile.
func WithQuantization(kind quantization.Kind) Option {
	return func(o *options) {
		o.quantization = kind
	}
}

// WithBinNum sets the requested number of quantization bins. Defaults to
// 256. The quantile variant may achieve fewer.
func WithBinNum(binNum int) Option {
	return func(o *options) {
		o.binNum = binNum
	}
}

// WithGroupNum sets the number of bands of the sparse grouped sketch.
// Defaults to 8 and is clamped to the achieved bin count.
func WithGroupNum(groupNum int) Option {
	return func(o *options) {
		o.groupNum = groupNum
	}
}

// WithRowNum sets the number of hash rows per sketch. Defaults to 2.
func WithRowNum(rowNum int) Option {
	return func(o *options) {
		o.rowNum = rowNum
	}
}

// WithColRatio sets the sketch cells allocated per key. Defaults to 0.3.
// Higher ratios reduce collisions at the cost of space.
func WithColRatio(ratio float64) Option {
	return func(o *options) {
		o.colRatio = ratio
	}
}

// WithKeyCodec selects the codec for sparse keys: codec.Delta (default) or
// codec.AdaptiveDelta.
func WithKeyCodec(kind codec.Kind) Option {
	return func(o *options) {
		o.keyCodec = kind
	}
}

// WithSeed fixes the seed hash functions are drawn from, making sparse
// records reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecsketch.BasicMetricsCollector{}
//	c, _ := vecsketch.New(vecsketch.Dense, vecsketch.WithMetricsCollector(metrics))
//	// ... compress ...
//	stats := metrics.GetStats()
//	fmt.Printf("Compressed: %d, Avg latency: %dns\n", stats.CompressCount, stats.CompressAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecsketch.NewJSONLogger(slog.LevelInfo)
//	c, _ := vecsketch.New(vecsketch.Sparse, vecsketch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		quantization:     quantization.Quantile,
		binNum:           quantization.DefaultBinNum,
		groupNum:         sketch.DefaultGroupNum,
		rowNum:           sketch.DefaultRowNum,
		colRatio:         sketch.DefaultColRatio,
		keyCodec:         codec.Delta,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	switch {
	case !o.quantization.Valid():
		return fmt.Errorf("%w: %d", quantization.ErrUnknownKind, o.quantization)
	case o.binNum < 2:
		return fmt.Errorf("%w: %d", quantization.ErrInvalidBinNum, o.binNum)
	case o.groupNum < 1:
		return fmt.Errorf("%w: group count %d", ErrInvalidConfig, o.groupNum)
	case o.rowNum < 1 || o.rowNum > hash.FamilySize:
		return fmt.Errorf("%w: row count %d outside [1,%d]", ErrInvalidConfig, o.rowNum, hash.FamilySize)
	case math.IsNaN(o.colRatio) || math.IsInf(o.colRatio, 0) || o.colRatio <= 0:
		return fmt.Errorf("%w: column ratio %v", ErrInvalidConfig, o.colRatio)
	case !o.keyCodec.Sorted():
		return fmt.Errorf("%w: key codec %s needs sorted input support", ErrInvalidConfig, o.keyCodec)
	}
	return nil
}

// newRand returns the source for one sketch construction.
func (o *options) newRand() *rand.Rand {
	seed := o.seed
	if !o.seeded {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // hash selection, not security
}
