// Package ratelimit provides sliding-window admission control.
//
// A SlidingWindowLimiter admits at most limit callers inside any trailing
// window. Grants are tracked as individual timestamps, so capacity frees up
// exactly when the oldest grant ages out rather than at fixed bucket
// boundaries. The limiter is safe for concurrent use; the check-and-append
// that records an admission is atomic under the limiter's mutex.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/orbit/pkg/errors"
)

// minWait is the smallest duration a saturated caller parks for before
// re-checking capacity. Avoids busy-looping when the computed wait rounds
// down to zero because clocks tie.
const minWait = 100 * time.Millisecond

// SlidingWindowLimiter admits or delays callers so that no more than limit
// admissions occur in any trailing window.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	grants []time.Time
	closed bool
	done   chan struct{}

	// waiters tracks callers parked inside Acquire so Shutdown can wait
	// for them to observe cancellation.
	waiters sync.WaitGroup

	// Stats
	admitted int64
	waits    int64
}

// Stats is a snapshot of limiter state for monitoring and debugging.
type Stats struct {
	Limit    int           `json:"limit"`
	Window   time.Duration `json:"window"`
	InWindow int           `json:"in_window"`
	Admitted int64         `json:"admitted"`
	Waits    int64         `json:"waits"`
}

// NewSlidingWindowLimiter creates a limiter admitting at most limit callers
// per trailing window. A nil logger falls back to a no-op logger.
func NewSlidingWindowLimiter(limit int, window time.Duration, logger *zap.Logger) *SlidingWindowLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		logger: logger.With(zap.String("component", "sliding_window_limiter")),
		grants: make([]time.Time, 0, limit),
		done:   make(chan struct{}),
	}
}

// TryAcquire admits the caller immediately if the window has spare capacity,
// recording the grant. Returns false without mutating grant state when the
// window is full or the limiter has been shut down.
func (l *SlidingWindowLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	now := time.Now()
	l.purgeLocked(now)

	if len(l.grants) < l.limit {
		l.grants = append(l.grants, now)
		atomic.AddInt64(&l.admitted, 1)
		return true
	}

	return false
}

// Acquire blocks until the caller is admitted, the context is canceled, or
// the limiter is shut down. The wait is a loop: parked callers re-check
// capacity after waking, since another caller may have taken the freed slot
// in the meantime.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	waited := false

	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return errors.New(errors.ErrorTypeCanceled, "limiter is shut down")
		}

		now := time.Now()
		l.purgeLocked(now)

		if len(l.grants) < l.limit {
			l.grants = append(l.grants, now)
			l.mu.Unlock()
			atomic.AddInt64(&l.admitted, 1)
			return nil
		}

		// Window full: wait until the oldest grant ages out. A limiter with
		// no grants and no capacity (limit <= 0) parks for a full window per
		// iteration until shutdown cancels it.
		wait := l.window
		if len(l.grants) > 0 {
			wait = l.grants[0].Add(l.window).Sub(now)
		}
		if wait < minWait {
			wait = minWait
		}
		done := l.done
		// Registered under the same lock as the closed check: once Shutdown
		// sets closed, no new waiter can slip in behind its drain.
		l.waiters.Add(1)
		l.mu.Unlock()

		if !waited {
			waited = true
			atomic.AddInt64(&l.waits, 1)
		}

		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			l.waiters.Done()
		case <-ctx.Done():
			timer.Stop()
			l.waiters.Done()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeCanceled, "acquire canceled")
		case <-done:
			timer.Stop()
			l.waiters.Done()
			return errors.New(errors.ErrorTypeCanceled, "limiter shut down while waiting")
		}
	}
}

// HasCapacity reports whether an admission would succeed right now.
// It purges expired grants but never admits.
func (l *SlidingWindowLimiter) HasCapacity() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.purgeLocked(time.Now())
	return len(l.grants) < l.limit
}

// TimeUntilNextSlot returns zero when the window has spare capacity,
// otherwise the duration until the oldest grant ages out. It never admits.
func (l *SlidingWindowLimiter) TimeUntilNextSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.purgeLocked(now)

	if len(l.grants) < l.limit {
		return 0
	}

	if len(l.grants) == 0 {
		return l.window
	}

	wait := l.grants[0].Add(l.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// InWindow returns the number of grants currently inside the window.
func (l *SlidingWindowLimiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeLocked(time.Now())
	return len(l.grants)
}

// Limit returns the configured admission limit.
func (l *SlidingWindowLimiter) Limit() int {
	return l.limit
}

// Window returns the configured window duration.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// GetStats returns a snapshot of limiter statistics.
func (l *SlidingWindowLimiter) GetStats() Stats {
	l.mu.Lock()
	l.purgeLocked(time.Now())
	inWindow := len(l.grants)
	l.mu.Unlock()

	return Stats{
		Limit:    l.limit,
		Window:   l.window,
		InWindow: inWindow,
		Admitted: atomic.LoadInt64(&l.admitted),
		Waits:    atomic.LoadInt64(&l.waits),
	}
}

// Shutdown cancels callers parked inside Acquire and waits up to timeout for
// them to observe the cancellation. A timeout is logged, never raised.
// Shutdown is idempotent; admissions after shutdown are refused.
func (l *SlidingWindowLimiter) Shutdown(timeout time.Duration) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		l.waiters.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(timeout):
		l.logger.Warn("limiter shutdown timed out waiting for parked callers",
			zap.Duration("timeout", timeout))
	}
}

// purgeLocked drops grants that have aged out of the trailing window.
// Callers must hold l.mu.
func (l *SlidingWindowLimiter) purgeLocked(now time.Time) {
	cutoff := now.Add(-l.window)

	expired := 0
	for expired < len(l.grants) && !l.grants[expired].After(cutoff) {
		expired++
	}

	if expired > 0 {
		l.grants = append(l.grants[:0], l.grants[expired:]...)
	}
}
