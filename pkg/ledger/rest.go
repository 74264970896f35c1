package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// aggregateBondedType is the on-wire transaction type of bonded bundles.
const aggregateBondedType = 16961

// Endpoints hands out a base URL per request. Satisfied by nodepool.Pool.
type Endpoints interface {
	Endpoint(ctx context.Context) (string, error)
	ReportFailure(node string)
}

// Client implements Gateway over the node's REST and websocket APIs.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	logger     logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a REST gateway client backed by a node pool.
func NewClient(endpoints Endpoints, log logger.Logger) *Client {
	return &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: log,
	}
}

// Wire shapes of the node REST API. Heights and amounts come back as decimal
// strings.

type accountEnvelope struct {
	Account struct {
		Address   string `json:"address"`
		PublicKey string `json:"publicKey"`
	} `json:"account"`
}

type mosaicDTO struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type innerTransferDTO struct {
	SignerAddress    string      `json:"signerAddress"`
	SignerPublicKey  string      `json:"signerPublicKey"`
	RecipientAddress string      `json:"recipientAddress"`
	Mosaics          []mosaicDTO `json:"mosaics"`
	Message          string      `json:"message"`
}

type transactionEnvelope struct {
	Meta struct {
		Hash   string `json:"hash"`
		Height string `json:"height"`
	} `json:"meta"`
	Transaction struct {
		Transactions []struct {
			Transaction innerTransferDTO `json:"transaction"`
		} `json:"transactions"`
		Payload string `json:"payload"`
	} `json:"transaction"`
}

type searchEnvelope struct {
	Data []transactionEnvelope `json:"data"`
}

type statusEnvelope struct {
	Hash   string `json:"hash"`
	Code   string `json:"code"`
	Group  string `json:"group"`
	Height string `json:"height"`
}

type chainInfoEnvelope struct {
	Height string `json:"height"`
}

type blockEnvelope struct {
	Block struct {
		Height    string `json:"height"`
		Timestamp string `json:"timestamp"`
	} `json:"block"`
}

// AccountInfo resolves an address to its on-ledger account record.
func (c *Client) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	var envelope accountEnvelope
	err := c.get(ctx, "/accounts/"+address, &envelope)
	if errors.Is(err, ErrNotFound) {
		return nil, &models.AddressResolutionError{Address: address}
	}
	if err != nil {
		return nil, err
	}
	return &AccountInfo{
		Address:   envelope.Account.Address,
		PublicKey: envelope.Account.PublicKey,
	}, nil
}

// Transaction fetches a bonded bundle with inner-transaction detail.
func (c *Client) Transaction(ctx context.Context, hash string, group models.Scope) (*BundleDetail, error) {
	var envelope transactionEnvelope
	if err := c.get(ctx, fmt.Sprintf("/transactions/%s/%s", group, hash), &envelope); err != nil {
		return nil, err
	}
	return decodeBundle(&envelope)
}

// SearchBonded lists bonded bundles addressed to or from address, newest first.
func (c *Client) SearchBonded(ctx context.Context, address string, group models.Scope, pageSize int) ([]BundleSummary, error) {
	path := fmt.Sprintf("/transactions/%s?address=%s&type=%d&pageSize=%d&order=desc",
		group, address, aggregateBondedType, pageSize)

	var envelope searchEnvelope
	if err := c.get(ctx, path, &envelope); err != nil {
		return nil, err
	}

	summaries := make([]BundleSummary, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		height, _ := strconv.ParseUint(item.Meta.Height, 10, 64)
		summaries = append(summaries, BundleSummary{Hash: item.Meta.Hash, Height: height})
	}
	return summaries, nil
}

// Announce posts a signed transaction.
func (c *Client) Announce(ctx context.Context, tx *SignedTransaction) error {
	return c.put(ctx, "/transactions", map[string]string{"payload": tx.Payload})
}

// AnnounceBonded posts a signed bonded aggregate bundle.
func (c *Client) AnnounceBonded(ctx context.Context, tx *SignedTransaction) error {
	return c.put(ctx, "/transactions/partial", map[string]string{"payload": tx.Payload})
}

// AnnounceCosignature posts a detached cosignature.
func (c *Client) AnnounceCosignature(ctx context.Context, cosig *SignedCosignature) error {
	return c.put(ctx, "/transactions/cosignature", cosig)
}

// TransactionStatus fetches the node's status record for a hash.
func (c *Client) TransactionStatus(ctx context.Context, hash string) (*TransactionStatus, error) {
	var envelope statusEnvelope
	if err := c.get(ctx, "/transactionStatus/"+hash, &envelope); err != nil {
		return nil, err
	}
	height, _ := strconv.ParseUint(envelope.Height, 10, 64)
	return &TransactionStatus{
		Hash:   envelope.Hash,
		Code:   envelope.Code,
		Group:  envelope.Group,
		Height: height,
	}, nil
}

// ChainHeight returns the current chain height.
func (c *Client) ChainHeight(ctx context.Context) (uint64, error) {
	var envelope chainInfoEnvelope
	if err := c.get(ctx, "/chain/info", &envelope); err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(envelope.Height, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "malformed chain height")
	}
	return height, nil
}

// BlockByHeight fetches block metadata.
func (c *Client) BlockByHeight(ctx context.Context, height uint64) (*BlockInfo, error) {
	var envelope blockEnvelope
	if err := c.get(ctx, fmt.Sprintf("/blocks/%d", height), &envelope); err != nil {
		return nil, err
	}
	timestamp, err := strconv.ParseInt(envelope.Block.Timestamp, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed timestamp in block %d", height)
	}
	return &BlockInfo{Height: height, Timestamp: timestamp}, nil
}

func decodeBundle(envelope *transactionEnvelope) (*BundleDetail, error) {
	height, _ := strconv.ParseUint(envelope.Meta.Height, 10, 64)
	detail := &BundleDetail{
		Hash:    envelope.Meta.Hash,
		Height:  height,
		Payload: envelope.Transaction.Payload,
	}

	for _, wrapped := range envelope.Transaction.Transactions {
		inner := wrapped.Transaction
		transfer := InnerTransfer{
			SignerAddress:   inner.SignerAddress,
			SignerPublicKey: inner.SignerPublicKey,
			Recipient:       inner.RecipientAddress,
			Message:         inner.Message,
		}
		for _, m := range inner.Mosaics {
			amount, err := strconv.ParseUint(m.Amount, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed mosaic amount in %s", envelope.Meta.Hash)
			}
			transfer.Mosaics = append(transfer.Mosaics, Mosaic{ID: m.ID, Amount: amount})
		}
		detail.Inner = append(detail.Inner, transfer)
	}

	return detail, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	node, err := c.endpoints.Endpoint(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.endpoints.ReportFailure(node)
		return errors.Wrapf(models.ErrNodeUnreachable, "GET %s: %v", path, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("GET %s: unexpected status code %d, body: %s", path, resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return errors.Wrapf(err, "decode response for %s", path)
	}
	return nil
}

func (c *Client) put(ctx context.Context, path string, payload interface{}) error {
	node, err := c.endpoints.Endpoint(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, node+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.endpoints.ReportFailure(node)
		return errors.Wrapf(models.ErrNodeUnreachable, "PUT %s: %v", path, err)
	}
	defer func(respBody io.ReadCloser) {
		if err := respBody.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return errors.Errorf("PUT %s: unexpected status code %d, body: %s", path, resp.StatusCode, string(respBytes))
	}
	return nil
}
