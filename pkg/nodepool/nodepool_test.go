package nodepool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

func healthyNode(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/node/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func sickNode(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func poolConfig(nodes ...string) *config.Config {
	return &config.Config{
		NodeURLs: nodes,
		CircuitBreaker: config.CircuitBreakerConfig{
			Threshold:      2,
			WindowDuration: time.Minute,
			ResetTimeout:   time.Minute,
		},
	}
}

func TestEndpointPrefersFirstHealthyNode(t *testing.T) {
	sick := sickNode(t)
	healthy := healthyNode(t)

	pool := New(poolConfig(sick.URL, healthy.URL), &logger.EmptyLogger{})
	node, err := pool.Endpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, node)
}

func TestEndpointAllNodesDown(t *testing.T) {
	sick := sickNode(t)

	pool := New(poolConfig(sick.URL), &logger.EmptyLogger{})
	_, err := pool.Endpoint(context.Background())
	assert.ErrorIs(t, err, models.ErrNodeUnreachable)
}

func TestReportedFailuresTripTheBreaker(t *testing.T) {
	healthy := healthyNode(t)
	pool := New(poolConfig(healthy.URL), &logger.EmptyLogger{})

	// Request-level failures accumulate even though health probes pass.
	pool.ReportFailure(healthy.URL)
	pool.ReportFailure(healthy.URL)

	_, err := pool.Endpoint(context.Background())
	assert.ErrorIs(t, err, models.ErrNodeUnreachable)

	statuses := pool.Statuses()
	assert.False(t, statuses[healthy.URL])
}

func TestHealthyProbeResetsBreaker(t *testing.T) {
	healthy := healthyNode(t)
	pool := New(poolConfig(healthy.URL), &logger.EmptyLogger{})

	pool.ReportFailure(healthy.URL)

	node, err := pool.Endpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, node)

	// One more single failure must not trip a freshly reset breaker.
	pool.ReportFailure(healthy.URL)
	_, err = pool.Endpoint(context.Background())
	assert.NoError(t, err)
}

func TestStatuses(t *testing.T) {
	sick := sickNode(t)
	healthy := healthyNode(t)
	pool := New(poolConfig(sick.URL, healthy.URL), &logger.EmptyLogger{})

	pool.ReportFailure(sick.URL)
	pool.ReportFailure(sick.URL)

	statuses := pool.Statuses()
	require.Len(t, statuses, 2)
	assert.False(t, statuses[sick.URL])
	assert.True(t, statuses[healthy.URL])
}
