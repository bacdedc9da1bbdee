// Package gate provides the call-site facade over a credential pool: it
// decides per outgoing call whether rate limiting applies at all, and scopes
// an acquired credential to exactly one request.
package gate

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/orbit/pkg/credential"
	"github.com/ajitpratap0/orbit/pkg/metrics"
	"github.com/ajitpratap0/orbit/pkg/pool"
)

// Predicate decides whether an outgoing call against the given resource
// identifier is subject to throttling. Predicates must be pure.
type Predicate func(resource string) bool

// PathPrefixPredicate returns a predicate that throttles only resources
// beginning with the given prefix.
func PathPrefixPredicate(prefix string) Predicate {
	return func(resource string) bool {
		return strings.HasPrefix(resource, prefix)
	}
}

// RateLimitGate gates outgoing calls on a credential pool.
type RateLimitGate struct {
	pool    *pool.CredentialPool
	applies Predicate
	logger  *zap.Logger
}

// New creates a gate over the pool. A nil predicate throttles every resource.
func New(p *pool.CredentialPool, applies Predicate, logger *zap.Logger) *RateLimitGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitGate{
		pool:    p,
		applies: applies,
		logger:  logger.With(zap.String("component", "rate_limit_gate")),
	}
}

// Guard brackets one outgoing request. When the predicate rejects the
// resource it returns a bypass lease immediately: no pool interaction, no
// waiting, cursor untouched. Otherwise it acquires a credential from the
// pool, blocking until one admits the caller.
func (g *RateLimitGate) Guard(ctx context.Context, resource string) (*Lease, error) {
	if g.applies != nil && !g.applies(resource) {
		metrics.BypassesTotal.Inc()
		return &Lease{resource: resource, bypassed: true}, nil
	}

	cred, err := g.pool.AcquireFor(ctx, resource)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("request admitted",
		zap.String("resource", resource),
		zap.String("credential", cred.ID()))

	return &Lease{cred: cred, resource: resource}, nil
}

// With runs fn under a lease for the resource. Errors from fn propagate
// unchanged: a consumed slot stays consumed even when the request that used
// it failed, and the pool cursor is left wherever acquisition set it.
func (g *RateLimitGate) With(ctx context.Context, resource string, fn func(*Lease) error) error {
	lease, err := g.Guard(ctx, resource)
	if err != nil {
		return err
	}
	return fn(lease)
}

// Lease scopes an acquired credential (or a bypass) to one outgoing request.
// There is nothing to release on exit: admitted capacity ages out of the
// credential's window on its own.
type Lease struct {
	cred     *credential.Credential
	resource string
	bypassed bool
}

// Bypassed reports whether the gate skipped the pool for this resource
func (l *Lease) Bypassed() bool {
	return l.bypassed
}

// Resource returns the resource identifier the lease was issued for
func (l *Lease) Resource() string {
	return l.resource
}

// Credential returns the acquired credential, or nil for a bypass lease
func (l *Lease) Credential() *credential.Credential {
	return l.cred
}

// Client returns the acquired credential's HTTP client. Nil for bypass
// leases and non-HTTP transport handles; callers fall back to their own
// base client.
func (l *Lease) Client() *http.Client {
	if l.cred == nil {
		return nil
	}
	return l.cred.Client()
}
