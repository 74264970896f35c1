package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// staticEndpoints serves a fixed node URL and records failure reports.
type staticEndpoints struct {
	node string

	mu       sync.Mutex
	failures []string
}

func (e *staticEndpoints) Endpoint(context.Context) (string, error) { return e.node, nil }

func (e *staticEndpoints) ReportFailure(node string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, node)
}

func (e *staticEndpoints) failureCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.failures)
}

func newTestClient(handler http.Handler) (*Client, *staticEndpoints, func()) {
	server := httptest.NewServer(handler)
	endpoints := &staticEndpoints{node: server.URL}
	return NewClient(endpoints, &logger.EmptyLogger{}), endpoints, server.Close
}

func TestAccountInfo(t *testing.T) {
	t.Run("resolves a known address", func(t *testing.T) {
		client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/accounts/TADDR", r.URL.Path)
			_, _ = w.Write([]byte(`{"account":{"address":"TADDR","publicKey":"PUB"}}`))
		}))
		defer cleanup()

		account, err := client.AccountInfo(context.Background(), "TADDR")
		require.NoError(t, err)
		assert.Equal(t, "TADDR", account.Address)
		assert.Equal(t, "PUB", account.PublicKey)
	})

	t.Run("unknown address", func(t *testing.T) {
		client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer cleanup()

		_, err := client.AccountInfo(context.Background(), "TNOBODY")
		var resolution *models.AddressResolutionError
		require.ErrorAs(t, err, &resolution)
		assert.Equal(t, "TNOBODY", resolution.Address)
	})
}

func TestTransactionDecoding(t *testing.T) {
	body := `{
		"meta": {"hash": "HASH1", "height": "42"},
		"transaction": {
			"payload": "SERIALIZED",
			"transactions": [
				{"transaction": {
					"signerAddress": "TREQ",
					"recipientAddress": "TCOUNTER",
					"mosaics": [{"id": "72C0212E67A08BCE", "amount": "100000000"}],
					"message": "1700000000000"
				}}
			]
		}
	}`
	client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/partial/HASH1", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer cleanup()

	detail, err := client.Transaction(context.Background(), "HASH1", models.ScopePending)
	require.NoError(t, err)

	assert.Equal(t, "HASH1", detail.Hash)
	assert.Equal(t, uint64(42), detail.Height)
	assert.Equal(t, "SERIALIZED", detail.Payload)
	require.Len(t, detail.Inner, 1)
	assert.Equal(t, "TREQ", detail.Inner[0].SignerAddress)
	assert.Equal(t, "TCOUNTER", detail.Inner[0].Recipient)
	require.Len(t, detail.Inner[0].Mosaics, 1)
	assert.Equal(t, uint64(100_000_000), detail.Inner[0].Mosaics[0].Amount)
	assert.Equal(t, "1700000000000", detail.Inner[0].Message)
}

func TestSearchBonded(t *testing.T) {
	var query string
	client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data": [
			{"meta": {"hash": "NEW", "height": "0"}},
			{"meta": {"hash": "OLD", "height": "41"}}
		]}`))
	}))
	defer cleanup()

	summaries, err := client.SearchBonded(context.Background(), "TADDR", models.ScopePending, 100)
	require.NoError(t, err)

	assert.Contains(t, query, "address=TADDR")
	assert.Contains(t, query, "type=16961")
	assert.Contains(t, query, "pageSize=100")
	assert.Contains(t, query, "order=desc")

	require.Len(t, summaries, 2)
	assert.Equal(t, BundleSummary{Hash: "NEW", Height: 0}, summaries[0])
	assert.Equal(t, BundleSummary{Hash: "OLD", Height: 41}, summaries[1])
}

func TestAnnounceEndpoints(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]string
	}
	var calls []call
	client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]string
		_ = json.Unmarshal(raw, &body)
		calls = append(calls, call{method: r.Method, path: r.URL.Path, body: body})
		w.WriteHeader(http.StatusAccepted)
	}))
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, client.Announce(ctx, &SignedTransaction{Payload: "LOCKPAY"}))
	require.NoError(t, client.AnnounceBonded(ctx, &SignedTransaction{Payload: "BUNDLEPAY"}))
	require.NoError(t, client.AnnounceCosignature(ctx, &SignedCosignature{
		ParentHash: "PARENT", Signature: "SIG", SignerPublicKey: "PUB",
	}))

	require.Len(t, calls, 3)
	assert.Equal(t, call{"PUT", "/transactions", map[string]string{"payload": "LOCKPAY"}}, calls[0])
	assert.Equal(t, call{"PUT", "/transactions/partial", map[string]string{"payload": "BUNDLEPAY"}}, calls[1])
	assert.Equal(t, "/transactions/cosignature", calls[2].path)
	assert.Equal(t, "PARENT", calls[2].body["parentHash"])
}

func TestTransactionStatus(t *testing.T) {
	client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactionStatus/HASH1", r.URL.Path)
		_, _ = w.Write([]byte(`{"hash": "HASH1", "code": "Success", "group": "confirmed", "height": "42"}`))
	}))
	defer cleanup()

	status, err := client.TransactionStatus(context.Background(), "HASH1")
	require.NoError(t, err)
	assert.Equal(t, &TransactionStatus{
		Hash: "HASH1", Code: "Success", Group: "confirmed", Height: 42,
	}, status)
}

func TestChainAndBlocks(t *testing.T) {
	client, _, cleanup := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chain/info":
			_, _ = w.Write([]byte(`{"height": "1234"}`))
		case "/blocks/1234":
			_, _ = w.Write([]byte(`{"block": {"height": "1234", "timestamp": "987654321"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer cleanup()

	height, err := client.ChainHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), height)

	block, err := client.BlockByHeight(context.Background(), height)
	require.NoError(t, err)
	assert.Equal(t, &BlockInfo{Height: 1234, Timestamp: 987654321}, block)
}

func TestUnreachableNodeIsReported(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoints := &staticEndpoints{node: server.URL}
	client := NewClient(endpoints, &logger.EmptyLogger{})
	server.Close() // dead node from here on

	_, err := client.ChainHeight(context.Background())
	assert.ErrorIs(t, err, models.ErrNodeUnreachable)

	err = client.Announce(context.Background(), &SignedTransaction{Payload: "P"})
	assert.ErrorIs(t, err, models.ErrNodeUnreachable)

	assert.Equal(t, 2, endpoints.failureCount())
}

func TestNotFoundIsSentinel(t *testing.T) {
	client, endpoints, cleanup := newTestClient(http.NotFoundHandler())
	defer cleanup()

	_, err := client.TransactionStatus(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, endpoints.failureCount(), "a 404 is a node answer, not a node failure")
}
