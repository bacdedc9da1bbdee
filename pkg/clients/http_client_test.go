package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/testutil"
)

func TestFromTransportConfig(t *testing.T) {
	tc := &config.TransportConfig{
		RequestTimeout:      5 * time.Second,
		MaxIdleConnsPerHost: 4,
		EnableHTTP2:         false,
	}

	cfg := FromTransportConfig(tc)

	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxIdleConnsPerHost)
	assert.False(t, cfg.EnableHTTP2)
	assert.Equal(t, 90*time.Second, cfg.IdleConnTimeout, "zero values keep the defaults")

	defaults := FromTransportConfig(nil)
	assert.Equal(t, DefaultHTTPConfig(), defaults)
}

func TestNewBaseClient(t *testing.T) {
	client := NewBaseClient(nil, testutil.TestLogger(t))
	require.NotNil(t, client)
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)
}

func TestNewTransportHTTP2(t *testing.T) {
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = true

	transport := NewTransport(cfg, testutil.TestLogger(t))
	require.NotNil(t, transport)
	assert.Contains(t, transport.TLSClientConfig.NextProtos, "h2")
}
