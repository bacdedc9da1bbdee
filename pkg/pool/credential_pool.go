// Package pool schedules concurrent callers onto a pool of interchangeable,
// individually rate-limited credentials.
//
// The pool keeps an ordered credential list and a rotation cursor. Each
// acquisition prefers a credential with immediate spare capacity; when every
// credential is saturated it falls back to the one whose window frees up
// soonest. Capacity is never released explicitly: a consumed slot ages out of
// its credential's sliding window on its own, even when the request that used
// it failed.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/orbit/pkg/clients"
	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/credential"
	"github.com/ajitpratap0/orbit/pkg/errors"
	"github.com/ajitpratap0/orbit/pkg/metrics"
	"github.com/ajitpratap0/orbit/pkg/ratelimit"
)

// shutdownGrace is the extra slack Shutdown allows beyond the caller's
// timeout for transport closes to finish after the limiters have drained.
const shutdownGrace = 250 * time.Millisecond

// CredentialPool holds an ordered list of credentials plus a rotation
// cursor. The cursor marks the currently preferred credential and is always
// a valid index. All methods are safe for concurrent use.
type CredentialPool struct {
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	creds  []*credential.Credential
	cursor int

	shutdownOnce sync.Once
}

// New constructs a pool from configuration: one credential per descriptor,
// each with its own sliding-window limiter sharing the pool-wide limit and
// window, and an authenticated transport handle over a shared base client.
// An empty credential list is a configuration error; no pool is created.
func New(cfg *config.PoolConfig, logger *zap.Logger) (*CredentialPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := clients.NewBaseClient(clients.FromTransportConfig(&cfg.Transport), logger)

	creds := make([]*credential.Credential, 0, len(cfg.Credentials))
	for _, cc := range cfg.Credentials {
		limiter := ratelimit.NewSlidingWindowLimiter(
			cfg.RateLimit.Limit,
			cfg.RateLimit.Window(),
			logger.With(zap.String("credential", cc.ID)),
		)

		cred, err := credential.FromConfig(cc, limiter, base)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	return NewFromCredentials(cfg.Name, creds, logger)
}

// NewFromCredentials constructs a pool around pre-built credentials. The
// slice order is significant: rotation starts from the first entry.
func NewFromCredentials(name string, creds []*credential.Credential, logger *zap.Logger) (*CredentialPool, error) {
	if len(creds) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "credential pool requires at least one credential")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CredentialPool{
		name:   name,
		logger: logger.With(zap.String("component", "credential_pool"), zap.String("pool", name)),
		creds:  creds,
	}, nil
}

// Size returns the number of credentials in the pool
func (p *CredentialPool) Size() int {
	return len(p.creds)
}

// Cursor returns the current rotation cursor
func (p *CredentialPool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Current returns the credential at the rotation cursor
func (p *CredentialPool) Current() *credential.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds[p.cursor]
}

// Rotate advances the cursor to the next credential. No-op with a single
// credential.
func (p *CredentialPool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateLocked()
}

func (p *CredentialPool) rotateLocked() {
	if len(p.creds) <= 1 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.creds)
	metrics.RotationsTotal.Inc()
}

// FindAvailable scans up to Size() credentials starting from the cursor and
// returns the first with immediate spare capacity, leaving the cursor on it.
// The scan only inspects; it never consumes capacity. When every credential
// is saturated the cursor is left untouched and nil is returned. The scan
// runs as one critical section so concurrent callers cannot interleave
// cursor moves mid-scan.
func (p *CredentialPool) FindAvailable() *credential.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.cursor
	for i := 0; i < len(p.creds); i++ {
		idx := (start + i) % len(p.creds)
		if p.creds[idx].Limiter().HasCapacity() {
			p.cursor = idx
			return p.creds[idx]
		}
	}

	return nil
}

// AcquireFor selects a credential for one outgoing request against the named
// resource and blocks until its limiter admits the caller. Preference order:
// a credential with immediate capacity, else the one whose next slot frees
// soonest (ties broken by lowest index). The returned credential's transport
// handle is what the caller performs the request with; the consumed slot
// ages out of the window on its own.
//
// Another caller may consume an observed free slot between selection and
// admission; the limiter's own blocking retry absorbs that race.
func (p *CredentialPool) AcquireFor(ctx context.Context, resource string) (*credential.Credential, error) {
	timer := metrics.NewTimer("acquire")

	mode := "immediate"
	cred := p.FindAvailable()
	if cred == nil {
		cred = p.selectSoonest()
		mode = "waited"
		metrics.SaturatedFallbacksTotal.Inc()
		p.logger.Debug("all credentials saturated, waiting for soonest slot",
			zap.String("resource", resource),
			zap.String("credential", cred.ID()),
			zap.Duration("projected_wait", cred.Limiter().TimeUntilNextSlot()))
	}

	if err := cred.Limiter().Acquire(ctx); err != nil {
		// Cancellation (context or shutdown) keeps its taxonomy: callers
		// must abandon, not retry.
		if errors.IsType(err, errors.ErrorTypeCanceled) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeRateLimit,
			fmt.Sprintf("acquire failed for resource %q", resource))
	}

	metrics.AdmissionsTotal.WithLabelValues(cred.ID(), mode).Inc()
	metrics.AdmissionWait.WithLabelValues(cred.ID()).Observe(timer.Stop().Seconds())

	return cred, nil
}

// selectSoonest picks the credential with the minimum projected wait, moving
// the cursor to it. Ties go to the lowest index.
func (p *CredentialPool) selectSoonest() *credential.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := 0
	bestWait := p.creds[0].Limiter().TimeUntilNextSlot()
	for i := 1; i < len(p.creds); i++ {
		if wait := p.creds[i].Limiter().TimeUntilNextSlot(); wait < bestWait {
			best, bestWait = i, wait
		}
	}

	p.cursor = best
	return p.creds[best]
}

// Shutdown tears the pool down within approximately the given timeout. Every
// credential is handled concurrently: its limiter's parked waiters are
// cancelled and its transport handle closed. Close failures are collected
// and logged as one aggregated warning, never returned; shutdown of the
// remaining credentials proceeds regardless. Shutdown is idempotent and
// never double-closes a transport.
func (p *CredentialPool) Shutdown(timeout time.Duration) {
	p.shutdownOnce.Do(func() {
		var wg sync.WaitGroup
		var failMu sync.Mutex
		var failures []error

		for _, cred := range p.creds {
			wg.Add(1)
			go func(c *credential.Credential) {
				defer wg.Done()

				c.Limiter().Shutdown(timeout)

				if err := c.Close(); err != nil {
					metrics.TransportCloseFailures.Inc()
					failMu.Lock()
					failures = append(failures, errors.Wrap(err, errors.ErrorTypeConnection,
						fmt.Sprintf("credential %q", c.ID())))
					failMu.Unlock()
				}
			}(cred)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout + shutdownGrace):
			p.logger.Warn("pool shutdown timed out", zap.Duration("timeout", timeout))
		}

		failMu.Lock()
		defer failMu.Unlock()
		if len(failures) > 0 {
			p.logger.Warn("transport close failures during pool shutdown",
				zap.Int("failed", len(failures)),
				zap.Int("credentials", len(p.creds)),
				zap.Errors("errors", failures))
		} else {
			p.logger.Info("credential pool shut down", zap.Int("credentials", len(p.creds)))
		}
	})
}
