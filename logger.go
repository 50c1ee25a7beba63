package vecsketch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecsketch-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithCompressor adds the compressor kind to the logger.
func (l *Logger) WithCompressor(kind CompressorKind) *Logger {
	return &Logger{
		Logger: l.Logger.With("compressor", kind.String()),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithBinNum adds a bin count field to the logger.
func (l *Logger) WithBinNum(binNum int) *Logger {
	return &Logger{
		Logger: l.Logger.With("bin_num", binNum),
	}
}

// LogCompress logs a compress operation.
func (l *Logger) LogCompress(ctx context.Context, kind CompressorKind, size, memoryBytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compress failed",
			"compressor", kind.String(),
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "compress completed",
			"compressor", kind.String(),
			"size", size,
			"memory_bytes", memoryBytes,
		)
	}
}

// LogDecompress logs a decompress operation.
func (l *Logger) LogDecompress(ctx context.Context, kind CompressorKind, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "decompress failed",
			"compressor", kind.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "decompress completed",
			"compressor", kind.String(),
			"size", size,
		)
	}
}

// LogReducedBins warns that the quantile quantizer collapsed repeated splits.
func (l *Logger) LogReducedBins(ctx context.Context, requested, achieved int) {
	l.WarnContext(ctx, "quantizer produced fewer bins than requested",
		"requested", requested,
		"achieved", achieved,
	)
}
