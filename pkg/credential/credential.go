// Package credential pairs API secret material with a sliding-window limiter
// and an opaque transport handle. Credentials are the units of a pool:
// identity is immutable after construction and the limiter is the only
// mutable state. Secret material is never logged; only the credential ID and
// variant kind appear in logs and metrics.
package credential

import (
	"net/http"
	"sync"

	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/errors"
	"github.com/ajitpratap0/orbit/pkg/ratelimit"
)

// Transport is the opaque handle a credential exposes for performing
// requests. The pool never inspects it; it only passes it through to callers
// and closes it during shutdown.
type Transport interface {
	// Close releases resources held by the handle
	Close() error
}

// HTTPTransport wraps an authenticated HTTP client as a transport handle.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client as a transport handle
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Client returns the authenticated HTTP client
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// Close releases idle connections held by the client
func (t *HTTPTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	return nil
}

// Credential pairs one set of API secrets with one exclusively-owned
// limiter and one transport handle.
type Credential struct {
	id        string
	kind      string
	limiter   *ratelimit.SlidingWindowLimiter
	transport Transport

	closeOnce sync.Once
	closeErr  error
}

// New builds a credential whose transport handle is an HTTP client
// authenticated by the given secret, layered over the base client.
func New(id string, secret Secret, limiter *ratelimit.SlidingWindowLimiter, base *http.Client) *Credential {
	return &Credential{
		id:        id,
		kind:      secret.Kind(),
		limiter:   limiter,
		transport: NewHTTPTransport(secret.Client(base)),
	}
}

// NewWithTransport builds a credential around a caller-supplied transport
// handle. The handle stays opaque; it is only closed on shutdown.
func NewWithTransport(id string, limiter *ratelimit.SlidingWindowLimiter, transport Transport) *Credential {
	return &Credential{
		id:        id,
		kind:      "custom",
		limiter:   limiter,
		transport: transport,
	}
}

// FromConfig builds a credential from its configuration descriptor.
func FromConfig(cc config.CredentialConfig, limiter *ratelimit.SlidingWindowLimiter, base *http.Client) (*Credential, error) {
	secret, err := SecretFromConfig(cc)
	if err != nil {
		return nil, err
	}
	return New(cc.ID, secret, limiter, base), nil
}

// ID returns the credential's opaque identifier
func (c *Credential) ID() string {
	return c.id
}

// Kind returns a short label for the credential variant, safe to log
func (c *Credential) Kind() string {
	return c.kind
}

// Limiter returns the credential's exclusively-owned limiter
func (c *Credential) Limiter() *ratelimit.SlidingWindowLimiter {
	return c.limiter
}

// Transport returns the credential's transport handle
func (c *Credential) Transport() Transport {
	return c.transport
}

// Client returns the authenticated HTTP client when the transport handle is
// HTTP-backed, nil otherwise.
func (c *Credential) Client() *http.Client {
	if ht, ok := c.transport.(*HTTPTransport); ok {
		return ht.Client()
	}
	return nil
}

// Close closes the transport handle exactly once. Repeated calls return the
// first result without invoking the handle again.
func (c *Credential) Close() error {
	c.closeOnce.Do(func() {
		if c.transport == nil {
			return
		}
		if err := c.transport.Close(); err != nil {
			c.closeErr = errors.Wrap(err, errors.ErrorTypeConnection, "transport close failed")
		}
	})
	return c.closeErr
}
