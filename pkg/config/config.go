// Package config provides the configuration system for Orbit.
// It defines a single PoolConfig structure describing a credential pool:
// the ordered credential descriptors, the sliding-window rate limit applied
// uniformly to every credential, and the transport settings each credential's
// HTTP handle is built from.
//
// Example usage:
//
//	cfg := config.NewPoolConfig("github-connector")
//	cfg.RateLimit.Limit = 30
//	cfg.RateLimit.WindowSeconds = 60
//	cfg.Credentials = append(cfg.Credentials, config.CredentialConfig{
//	    ID:    "primary",
//	    Kind:  config.CredentialKindBearer,
//	    Token: "${GITHUB_TOKEN}",
//	})
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/orbit/pkg/errors"
)

// Credential kinds accepted in CredentialConfig.Kind.
const (
	// CredentialKindBearer selects a bearer-token credential
	CredentialKindBearer = "bearer"
	// CredentialKindBasic selects a username/password credential
	CredentialKindBasic = "basic"
)

// PoolConfig describes one credential pool. Credential order is significant:
// the pool rotates through credentials deterministically starting from the
// first entry.
type PoolConfig struct {
	// Name identifies the pool instance in logs and metrics
	Name string `yaml:"name" json:"name"`

	// RateLimit is applied uniformly to every credential in the pool
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Credentials is the ordered, non-empty list of credential descriptors
	Credentials []CredentialConfig `yaml:"credentials" json:"credentials"`

	// ThrottlePrefix, when set, is the default path prefix below which
	// outgoing calls are subject to throttling. Callers may supply their
	// own predicate instead.
	ThrottlePrefix string `yaml:"throttle_prefix" json:"throttle_prefix"`

	// Transport configures the HTTP transport each credential handle uses
	Transport TransportConfig `yaml:"transport" json:"transport"`
}

// RateLimitConfig is a sliding-window limit: at most Limit admissions inside
// any trailing window of WindowSeconds. WindowSeconds is fractional so that
// sub-second windows can be expressed.
type RateLimitConfig struct {
	// Limit is the maximum admissions per window
	Limit int `yaml:"limit" json:"limit"`
	// WindowSeconds is the sliding window length in (fractional) seconds
	WindowSeconds float64 `yaml:"window_seconds" json:"window_seconds"`
}

// Window returns the configured window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds * float64(time.Second))
}

// CredentialConfig describes one credential. Secret fields support ${ENV}
// substitution when loaded through Load, so raw secrets can stay out of
// config files.
type CredentialConfig struct {
	// ID identifies the credential in logs and metrics; never the secret itself
	ID string `yaml:"id" json:"id"`
	// Kind selects the credential variant: "bearer" or "basic"
	Kind string `yaml:"kind" json:"kind"`
	// Token is the bearer token (kind "bearer" only)
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
	// Username for kind "basic"
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	// Password for kind "basic"
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// TransportConfig configures the HTTP transport behind each credential
type TransportConfig struct {
	// RequestTimeout bounds a single outgoing request
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// IdleConnTimeout closes idle connections after this duration
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	// MaxIdleConnsPerHost caps pooled idle connections per host
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	// EnableHTTP2 turns on HTTP/2 support
	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`
}

// NewPoolConfig creates a PoolConfig with production defaults. Credentials
// must still be supplied; a pool cannot be constructed without at least one.
func NewPoolConfig(name string) *PoolConfig {
	return &PoolConfig{
		Name: name,
		RateLimit: RateLimitConfig{
			Limit:         10,
			WindowSeconds: 1,
		},
		Transport: TransportConfig{
			RequestTimeout:      30 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
			EnableHTTP2:         true,
		},
	}
}

// Validate checks the configuration for consistency. An empty credential
// list is a configuration error: the pool is refused, never retried.
func (c *PoolConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "pool name is required")
	}

	if len(c.Credentials) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one credential is required")
	}

	if c.RateLimit.Limit <= 0 {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("rate limit must be positive, got %d", c.RateLimit.Limit))
	}

	if c.RateLimit.WindowSeconds <= 0 {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("rate limit window must be positive, got %gs", c.RateLimit.WindowSeconds))
	}

	seen := make(map[string]struct{}, len(c.Credentials))
	for i := range c.Credentials {
		if err := c.Credentials[i].validate(i); err != nil {
			return err
		}
		if _, dup := seen[c.Credentials[i].ID]; dup {
			return errors.New(errors.ErrorTypeConfig,
				fmt.Sprintf("duplicate credential id %q", c.Credentials[i].ID))
		}
		seen[c.Credentials[i].ID] = struct{}{}
	}

	return nil
}

func (cc *CredentialConfig) validate(index int) error {
	if cc.ID == "" {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("credential %d: id is required", index))
	}

	switch cc.Kind {
	case CredentialKindBearer:
		if cc.Token == "" {
			return errors.New(errors.ErrorTypeConfig,
				fmt.Sprintf("credential %q: bearer credential requires a token", cc.ID))
		}
	case CredentialKindBasic:
		if cc.Username == "" || cc.Password == "" {
			return errors.New(errors.ErrorTypeConfig,
				fmt.Sprintf("credential %q: basic credential requires username and password", cc.ID))
		}
	default:
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("credential %q: unsupported kind %q", cc.ID, cc.Kind))
	}

	return nil
}
