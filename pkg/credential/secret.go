package credential

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/errors"
)

// Secret is the capability a credential variant exposes: it turns a base
// client into one that authenticates outgoing requests. Call sites work
// against this interface and never branch on the underlying variant.
type Secret interface {
	// Kind returns a short label for the variant, safe to log
	Kind() string
	// Client returns an HTTP client authenticating requests with this
	// secret, layered over the supplied base client. A nil base falls back
	// to default transport settings.
	Client(base *http.Client) *http.Client
}

// SecretFromConfig builds the secret variant a descriptor names.
func SecretFromConfig(cc config.CredentialConfig) (Secret, error) {
	switch cc.Kind {
	case config.CredentialKindBearer:
		return NewBearerToken(cc.Token), nil
	case config.CredentialKindBasic:
		return NewBasicAuthPair(cc.Username, cc.Password), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("unsupported credential kind %q", cc.Kind))
	}
}

// BearerToken authenticates requests with a static OAuth2 bearer token.
type BearerToken struct {
	token string
}

// NewBearerToken creates a bearer-token secret
func NewBearerToken(token string) BearerToken {
	return BearerToken{token: token}
}

// Kind returns "bearer"
func (BearerToken) Kind() string {
	return "bearer"
}

// Client returns an HTTP client that injects an Authorization: Bearer header
// via the oauth2 transport.
func (b BearerToken) Client(base *http.Client) *http.Client {
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.token})
	client := oauth2.NewClient(ctx, src)
	if base != nil {
		client.Timeout = base.Timeout
	}
	return client
}

// BasicAuthPair authenticates requests with HTTP basic authentication.
type BasicAuthPair struct {
	username string
	password string
}

// NewBasicAuthPair creates a basic-auth secret
func NewBasicAuthPair(username, password string) BasicAuthPair {
	return BasicAuthPair{username: username, password: password}
}

// Kind returns "basic"
func (BasicAuthPair) Kind() string {
	return "basic"
}

// Client returns an HTTP client that sets basic-auth credentials on every
// outgoing request.
func (p BasicAuthPair) Client(base *http.Client) *http.Client {
	next := http.RoundTripper(http.DefaultTransport)
	var timeout time.Duration
	if base != nil {
		if base.Transport != nil {
			next = base.Transport
		}
		timeout = base.Timeout
	}

	return &http.Client{
		Transport: &basicAuthTransport{
			next:     next,
			username: p.username,
			password: p.password,
		},
		Timeout: timeout,
	}
}

// basicAuthTransport injects basic-auth credentials without mutating the
// caller's request.
type basicAuthTransport struct {
	next     http.RoundTripper
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(clone)
}
