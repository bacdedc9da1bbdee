package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/credential"
	"github.com/ajitpratap0/orbit/pkg/errors"
	"github.com/ajitpratap0/orbit/pkg/ratelimit"
	"github.com/ajitpratap0/orbit/pkg/testutil"
)

// mockTransport counts close invocations and optionally fails them.
type mockTransport struct {
	mu         sync.Mutex
	closeCalls int
	closeErr   error
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return m.closeErr
}

func (m *mockTransport) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// newTestPool builds a pool of n credentials with mock transports, all
// sharing the same limit and window.
func newTestPool(t *testing.T, n, limit int, window time.Duration) (*CredentialPool, []*credential.Credential, []*mockTransport) {
	t.Helper()

	creds := make([]*credential.Credential, n)
	transports := make([]*mockTransport, n)
	for i := 0; i < n; i++ {
		transports[i] = &mockTransport{}
		limiter := ratelimit.NewSlidingWindowLimiter(limit, window, testutil.TestLogger(t))
		creds[i] = credential.NewWithTransport(fmt.Sprintf("cred-%d", i), limiter, transports[i])
	}

	p, err := NewFromCredentials("test-pool", creds, testutil.TestLogger(t))
	require.NoError(t, err)
	return p, creds, transports
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := config.NewPoolConfig("empty")

	_, err := New(cfg, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewFromCredentials("empty", nil, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.NewPoolConfig("github")
	cfg.Credentials = []config.CredentialConfig{
		{ID: "a", Kind: config.CredentialKindBearer, Token: "tok-a"},
		{ID: "b", Kind: config.CredentialKindBasic, Username: "u", Password: "p"},
	}

	p, err := New(cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 0, p.Cursor())
	assert.Equal(t, "a", p.Current().ID())
	assert.Equal(t, "bearer", p.Current().Kind())
}

func TestRotate(t *testing.T) {
	p, creds, _ := newTestPool(t, 3, 1, time.Second)

	assert.Equal(t, creds[0], p.Current())
	p.Rotate()
	assert.Equal(t, 1, p.Cursor())
	p.Rotate()
	p.Rotate()
	assert.Equal(t, 0, p.Cursor(), "rotation wraps around")

	single, _, _ := newTestPool(t, 1, 1, time.Second)
	single.Rotate()
	assert.Equal(t, 0, single.Cursor(), "rotation is a no-op with one credential")
}

func TestFindAvailable(t *testing.T) {
	p, creds, _ := newTestPool(t, 3, 1, time.Minute)

	// Saturate credential 0; the scan should land on credential 1
	require.True(t, creds[0].Limiter().TryAcquire())

	found := p.FindAvailable()
	require.NotNil(t, found)
	assert.Equal(t, creds[1], found)
	assert.Equal(t, 1, p.Cursor())

	// The scan must only inspect, never admit
	assert.Equal(t, 0, creds[1].Limiter().InWindow())
}

func TestFindAvailableAllSaturated(t *testing.T) {
	p, creds, _ := newTestPool(t, 2, 1, time.Minute)
	require.True(t, creds[0].Limiter().TryAcquire())
	require.True(t, creds[1].Limiter().TryAcquire())

	p.Rotate() // cursor at 1
	assert.Nil(t, p.FindAvailable())
	assert.Equal(t, 1, p.Cursor(), "cursor is restored when nothing is available")
}

func TestAcquirePrefersIdleCredential(t *testing.T) {
	p, creds, _ := newTestPool(t, 2, 2, time.Second)
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	// Two admissions on credential 0 fill it
	require.NoError(t, creds[0].Limiter().Acquire(ctx))
	require.NoError(t, creds[0].Limiter().Acquire(ctx))

	start := time.Now()
	got, err := p.AcquireFor(ctx, "/api/items")
	require.NoError(t, err)

	assert.Equal(t, creds[1], got, "the idle credential must be preferred")
	assert.Equal(t, 1, p.Cursor())
	assert.Equal(t, 1, creds[1].Limiter().InWindow(), "the admission is recorded on the selected limiter")
	assert.Less(t, time.Since(start), 250*time.Millisecond, "preference must not wait")
}

func TestAcquireFallsBackToSoonest(t *testing.T) {
	window := 600 * time.Millisecond
	p, creds, _ := newTestPool(t, 2, 1, window)
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	// Saturate credential 1 first, then credential 0: credential 1's slot
	// frees up sooner, so the fallback must pick index 1.
	require.True(t, creds[1].Limiter().TryAcquire())
	time.Sleep(200 * time.Millisecond)
	require.True(t, creds[0].Limiter().TryAcquire())

	start := time.Now()
	got, err := p.AcquireFor(ctx, "/api/items")
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, creds[1], got, "fallback must select the soonest-available credential")
	assert.Equal(t, 1, p.Cursor())
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond, "fallback waits for the slot")
	assert.Less(t, elapsed, window)
}

func TestAcquireCanceled(t *testing.T) {
	p, creds, _ := newTestPool(t, 1, 1, time.Hour)
	require.True(t, creds[0].Limiter().TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := p.AcquireFor(ctx, "/api/items")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled),
		"a cancelled acquire surfaces as cancellation, not as a rate-limit condition")
	assert.False(t, errors.IsRetryable(err),
		"cancellation must not invite retries")
}

func TestShutdownBoundWithFailingClose(t *testing.T) {
	p, creds, transports := newTestPool(t, 2, 1, time.Hour)
	transports[0].closeErr = fmt.Errorf("socket already closed")

	// Saturate everything and park a caller so shutdown has a waiter to cancel
	require.True(t, creds[0].Limiter().TryAcquire())
	require.True(t, creds[1].Limiter().TryAcquire())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.AcquireFor(context.Background(), "/api/items")
		errCh <- err
	}()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	p.Shutdown(time.Second)
	assert.Less(t, time.Since(start), 2*time.Second, "shutdown must respect its bound")

	select {
	case err := <-errCh:
		require.Error(t, err, "the parked caller must be cancelled")
		assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled))
	case <-time.After(time.Second):
		t.Fatal("parked caller survived shutdown")
	}

	// The failing close must not prevent the other credential from closing
	assert.Equal(t, 1, transports[0].calls())
	assert.Equal(t, 1, transports[1].calls())
}

func TestShutdownIdempotent(t *testing.T) {
	p, _, transports := newTestPool(t, 2, 1, time.Second)

	p.Shutdown(time.Second)
	p.Shutdown(time.Second)

	assert.Equal(t, 1, transports[0].calls(), "transports must not be double-closed")
	assert.Equal(t, 1, transports[1].calls())
}
