// Package clients provides HTTP transport construction for pool credentials
package clients

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/orbit/pkg/config"
)

// HTTPConfig configures the transport handle built for each credential
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DisableCompression  bool          `json:"disable_compression"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// TLS settings
	TLSMinVersion uint16 `json:"tls_min_version"`
}

// DefaultHTTPConfig returns production defaults
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		RequestTimeout:        30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
	}
}

// FromTransportConfig maps a pool-level transport configuration onto the
// HTTP defaults, keeping zero values at their defaults.
func FromTransportConfig(tc *config.TransportConfig) *HTTPConfig {
	cfg := DefaultHTTPConfig()
	if tc == nil {
		return cfg
	}

	if tc.RequestTimeout > 0 {
		cfg.RequestTimeout = tc.RequestTimeout
	}
	if tc.IdleConnTimeout > 0 {
		cfg.IdleConnTimeout = tc.IdleConnTimeout
	}
	if tc.MaxIdleConnsPerHost > 0 {
		cfg.MaxIdleConnsPerHost = tc.MaxIdleConnsPerHost
	}
	cfg.EnableHTTP2 = tc.EnableHTTP2

	return cfg
}

// NewTransport builds an HTTP transport from the configuration
func NewTransport(cfg *HTTPConfig, logger *zap.Logger) *http.Transport {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		DisableCompression:    cfg.DisableCompression,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: cfg.TLSMinVersion,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	return transport
}

// NewBaseClient builds the unauthenticated base client credential secrets
// layer their authentication over.
func NewBaseClient(cfg *HTTPConfig, logger *zap.Logger) *http.Client {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	return &http.Client{
		Transport: NewTransport(cfg, logger),
		Timeout:   cfg.RequestTimeout,
	}
}
