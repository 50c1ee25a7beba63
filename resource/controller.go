package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidParallelism is returned for a negative worker count.
	ErrInvalidParallelism = errors.New("resource: worker count must not be negative")

	// ErrNoController is returned when a parallel entry point is handed a
	// nil controller.
	ErrNoController = errors.New("resource: controller used before being configured")

	// ErrControllerClosed is returned by Run after Close.
	ErrControllerClosed = errors.New("resource: controller is closed")

	// ErrMemoryLimitExceeded is returned when a single reservation is larger
	// than the whole memory budget.
	ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers bounds the number of tasks running at once across every
	// Run call sharing the controller.
	// If 0, defaults to runtime.GOMAXPROCS(0).
	MaxWorkers int

	// MemoryLimitBytes is the hard limit for working-set reservations.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum throughput for rate-limited readers
	// and writers. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller is the execution context handed to every parallel entry point.
// It owns the worker slots, the memory budget and the IO limiter. A
// controller may be shared by concurrent compressions; Close is terminal.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	slots  *semaphore.Weighted
	closed atomic.Bool

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.MaxWorkers < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParallelism, cfg.MaxWorkers)
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	c := &Controller{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.MaxWorkers)),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c, nil
}

// Workers returns the configured worker count.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return c.cfg.MaxWorkers
}

// Run calls fn for every i in [0, n) with at most Workers() calls in flight.
// The first error cancels the context passed to the remaining calls and is
// returned once every started call has finished.
func (c *Controller) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if c == nil {
		return ErrNoController
	}
	if c.closed.Load() {
		return ErrControllerClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxWorkers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := c.slots.Acquire(gctx, 1); err != nil {
				return err
			}
			defer c.slots.Release(1)

			return fn(gctx, i)
		})
	}

	return g.Wait()
}

// Close marks the controller as shut down. Running tasks finish; later Run
// calls fail with ErrControllerClosed.
func (c *Controller) Close() error {
	if c == nil {
		return ErrNoController
	}
	if c.closed.Swap(true) {
		return ErrControllerClosed
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	return c != nil && c.closed.Load()
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
// A request larger than the whole limit fails immediately.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return fmt.Errorf("%w: requested %d bytes, limit %d", ErrMemoryLimitExceeded, bytes, c.cfg.MemoryLimitBytes)
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests above the burst; split them.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		chunk := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		bytes -= chunk
	}
	return nil
}
