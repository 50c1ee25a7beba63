package vecsketch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    compressCounter   prometheus.Counter
//	    compressHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCompress(kind vecsketch.CompressorKind, n int, d time.Duration, err error) {
//	    p.compressCounter.Inc()
//	    p.compressHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordCompress is called after each compress operation.
	// elements is the number of values offered, err is nil if successful.
	RecordCompress(kind CompressorKind, elements int, duration time.Duration, err error)

	// RecordDecompress is called after each decompress operation.
	// elements is the number of values restored.
	RecordDecompress(kind CompressorKind, elements int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCompress(CompressorKind, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordDecompress(CompressorKind, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CompressCount        atomic.Int64
	CompressErrors       atomic.Int64
	CompressElements     atomic.Int64
	CompressTotalNanos   atomic.Int64
	DecompressCount      atomic.Int64
	DecompressErrors     atomic.Int64
	DecompressElements   atomic.Int64
	DecompressTotalNanos atomic.Int64
}

// RecordCompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompress(_ CompressorKind, elements int, duration time.Duration, err error) {
	b.CompressCount.Add(1)
	b.CompressTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CompressErrors.Add(1)
		return
	}
	b.CompressElements.Add(int64(elements))
}

// RecordDecompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecompress(_ CompressorKind, elements int, duration time.Duration, err error) {
	b.DecompressCount.Add(1)
	b.DecompressTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DecompressErrors.Add(1)
		return
	}
	b.DecompressElements.Add(int64(elements))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CompressCount:      b.CompressCount.Load(),
		CompressErrors:     b.CompressErrors.Load(),
		CompressElements:   b.CompressElements.Load(),
		CompressAvgNanos:   avgNanos(&b.CompressTotalNanos, &b.CompressCount),
		DecompressCount:    b.DecompressCount.Load(),
		DecompressErrors:   b.DecompressErrors.Load(),
		DecompressElements: b.DecompressElements.Load(),
		DecompressAvgNanos: avgNanos(&b.DecompressTotalNanos, &b.DecompressCount),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	n := count.Load()
	if n == 0 {
		return 0
	}
	return total.Load() / n
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CompressCount      int64
	CompressErrors     int64
	CompressElements   int64
	CompressAvgNanos   int64
	DecompressCount    int64
	DecompressErrors   int64
	DecompressElements int64
	DecompressAvgNanos int64
}
