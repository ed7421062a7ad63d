package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrLimitExceeded is returned when a query cannot be admitted without waiting
// and the controller is configured not to wait.
var ErrLimitExceeded = errors.New("resource limit exceeded")

// Config holds resource limits.
type Config struct {
	// MaxConcurrentQueries is the maximum number of queries executing at once.
	// If 0, concurrency is unlimited.
	MaxConcurrentQueries int64

	// QueriesPerSecond limits the rate at which queries are admitted.
	// If 0, unlimited.
	QueriesPerSecond float64

	// QueryBurst is the number of queries admitted at once before the rate
	// limit applies. Defaults to 1 when QueriesPerSecond is set.
	QueryBurst int

	// Wait makes admission block until a slot is free or the context is done.
	// Without it, a saturated controller rejects queries with ErrLimitExceeded.
	Wait bool

	// IOLimitBytesPerSec is the maximum snapshot IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces the query admission policy shared by all queries of a
// cache. A nil Controller admits everything.
type Controller struct {
	cfg Config

	querySem     *semaphore.Weighted // nil if unlimited
	queryLimiter *rate.Limiter       // nil if unlimited
	inFlight     atomic.Int64
	rejected     atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.QueriesPerSecond > 0 {
		burst := cfg.QueryBurst
		if burst <= 0 {
			burst = 1
		}
		c.queryLimiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireQuery admits a query. Every successful call must be paired with
// ReleaseQuery.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.queryLimiter != nil {
		if c.cfg.Wait {
			if err := c.queryLimiter.Wait(ctx); err != nil {
				return err
			}
		} else if !c.queryLimiter.Allow() {
			c.rejected.Add(1)
			return ErrLimitExceeded
		}
	}

	if c.querySem != nil {
		if c.cfg.Wait {
			if err := c.querySem.Acquire(ctx, 1); err != nil {
				return err
			}
		} else if !c.querySem.TryAcquire(1) {
			c.rejected.Add(1)
			return ErrLimitExceeded
		}
	}

	c.inFlight.Add(1)
	return nil
}

// ReleaseQuery releases a slot reserved by AcquireQuery.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	if c.querySem != nil {
		c.querySem.Release(1)
	}
	c.inFlight.Add(-1)
}

// InFlight returns the number of admitted queries that have not been released.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Rejected returns the number of queries rejected with ErrLimitExceeded.
func (c *Controller) Rejected() int64 {
	if c == nil {
		return 0
	}
	return c.rejected.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests above the burst, so large buffers are split.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
