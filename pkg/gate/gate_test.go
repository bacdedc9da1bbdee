package gate

import (
	"fmt"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orbit/pkg/credential"
	"github.com/ajitpratap0/orbit/pkg/metrics"
	"github.com/ajitpratap0/orbit/pkg/pool"
	"github.com/ajitpratap0/orbit/pkg/ratelimit"
	"github.com/ajitpratap0/orbit/pkg/testutil"
)

type noopTransport struct{}

func (noopTransport) Close() error { return nil }

func newTestGate(t *testing.T, n, limit int, window time.Duration, prefix string) (*RateLimitGate, *pool.CredentialPool, []*credential.Credential) {
	t.Helper()

	creds := make([]*credential.Credential, n)
	for i := 0; i < n; i++ {
		limiter := ratelimit.NewSlidingWindowLimiter(limit, window, testutil.TestLogger(t))
		creds[i] = credential.NewWithTransport(fmt.Sprintf("cred-%d", i), limiter, noopTransport{})
	}

	p, err := pool.NewFromCredentials("gate-test", creds, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(time.Second) })

	var applies Predicate
	if prefix != "" {
		applies = PathPrefixPredicate(prefix)
	}
	return New(p, applies, testutil.TestLogger(t)), p, creds
}

func TestPathPrefixPredicate(t *testing.T) {
	pred := PathPrefixPredicate("/api/")

	assert.True(t, pred("/api/items"))
	assert.True(t, pred("/api/"))
	assert.False(t, pred("/health"))
	assert.False(t, pred("/apiary"))
}

func TestGuardAdmits(t *testing.T) {
	g, p, creds := newTestGate(t, 2, 5, time.Second, "/api/")
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	lease, err := g.Guard(ctx, "/api/items")
	require.NoError(t, err)

	assert.False(t, lease.Bypassed())
	assert.Equal(t, "/api/items", lease.Resource())
	assert.Equal(t, creds[0], lease.Credential())
	assert.Equal(t, 1, creds[0].Limiter().InWindow())
	assert.Equal(t, 0, p.Cursor())
}

func TestGuardBypassesUnmatchedResources(t *testing.T) {
	g, p, creds := newTestGate(t, 1, 1, time.Hour, "/api/")
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	// Saturate the only credential: a bypass must still return immediately.
	require.True(t, creds[0].Limiter().TryAcquire())

	bypassesBefore := promtestutil.ToFloat64(metrics.BypassesTotal)

	start := time.Now()
	lease, err := g.Guard(ctx, "/health")
	require.NoError(t, err)

	assert.True(t, lease.Bypassed())
	assert.Nil(t, lease.Credential())
	assert.Nil(t, lease.Client())
	assert.Less(t, time.Since(start), 100*time.Millisecond, "bypass must not touch the pool")
	assert.Equal(t, 0, p.Cursor(), "bypass must not move the cursor")
	assert.Equal(t, 1, creds[0].Limiter().InWindow(), "bypass must not consume capacity")
	assert.Equal(t, bypassesBefore+1, promtestutil.ToFloat64(metrics.BypassesTotal),
		"bypasses are counted separately from admissions")
}

func TestNilPredicateThrottlesEverything(t *testing.T) {
	g, _, creds := newTestGate(t, 1, 5, time.Second, "")
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	lease, err := g.Guard(ctx, "/health")
	require.NoError(t, err)
	assert.False(t, lease.Bypassed())
	assert.Equal(t, 1, creds[0].Limiter().InWindow())
}

func TestWithPropagatesCallerErrors(t *testing.T) {
	g, _, creds := newTestGate(t, 1, 5, time.Second, "/api/")
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	sentinel := fmt.Errorf("upstream returned 502")
	err := g.With(ctx, "/api/items", func(l *Lease) error {
		assert.False(t, l.Bypassed())
		return sentinel
	})

	assert.Equal(t, sentinel, err, "caller errors pass through unchanged")
	assert.Equal(t, 1, creds[0].Limiter().InWindow(), "a failed request still consumed its slot")
}

func TestClientForCustomTransport(t *testing.T) {
	g, _, _ := newTestGate(t, 1, 5, time.Second, "/api/")
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	lease, err := g.Guard(ctx, "/api/items")
	require.NoError(t, err)
	assert.Nil(t, lease.Client(), "non-HTTP transport handles expose no client")
	assert.NotNil(t, lease.Credential())
}
