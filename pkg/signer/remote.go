package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/builder"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// Pending item kinds understood by the signing bridge.
const (
	kindBundle   = "aggregateBonded"
	kindHashLock = "hashLock"
	kindCosign   = "cosignature"
)

// RemoteDevice speaks to a signing bridge over HTTP. It implements the same
// narrow set-pending / request-signature surface a browser signer extension
// exposes.
type RemoteDevice struct {
	baseURL    string
	httpClient *http.Client

	pendingKind string
	pending     interface{}
}

var _ Device = (*RemoteDevice)(nil)

// NewRemoteDevice creates a signer session against the bridge at baseURL.
func NewRemoteDevice(baseURL string) *RemoteDevice {
	return &RemoteDevice{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Signing waits on a human; allow plenty of time.
			Timeout: 2 * time.Minute,
		},
	}
}

type signRequest struct {
	Kind        string      `json:"kind"`
	Transaction interface{} `json:"transaction"`
}

type signError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d *RemoteDevice) SetBundle(bundle *builder.Bundle) error {
	if bundle == nil {
		return errors.New("nil bundle")
	}
	d.pendingKind = kindBundle
	d.pending = bundle
	return nil
}

func (d *RemoteDevice) SetHashLock(lock *builder.HashLock) error {
	if lock == nil {
		return errors.New("nil hash lock")
	}
	d.pendingKind = kindHashLock
	d.pending = lock
	return nil
}

func (d *RemoteDevice) SetCosignPayload(payload string) error {
	if payload == "" {
		return errors.New("empty cosign payload")
	}
	d.pendingKind = kindCosign
	d.pending = payload
	return nil
}

func (d *RemoteDevice) RequestSignature(ctx context.Context) (*ledger.SignedTransaction, error) {
	if d.pendingKind != kindBundle && d.pendingKind != kindHashLock {
		return nil, errors.Wrap(models.ErrSignerRejected, "no transaction staged")
	}

	var signed ledger.SignedTransaction
	if err := d.post(ctx, "/sign", &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}

func (d *RemoteDevice) RequestCosignature(ctx context.Context) (*ledger.SignedCosignature, error) {
	if d.pendingKind != kindCosign {
		return nil, errors.Wrap(models.ErrSignerRejected, "no cosign payload staged")
	}

	var cosig ledger.SignedCosignature
	if err := d.post(ctx, "/cosign", &cosig); err != nil {
		return nil, err
	}
	return &cosig, nil
}

func (d *RemoteDevice) post(ctx context.Context, path string, out interface{}) error {
	body, err := json.Marshal(signRequest{Kind: d.pendingKind, Transaction: d.pending})
	if err != nil {
		return errors.Wrap(err, "encode sign request")
	}

	// The staged item is consumed whether signing succeeds or not.
	d.pendingKind = ""
	d.pending = nil

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build sign request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(models.ErrSignerRejected, "signer unreachable: %v", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read signer response")
	}

	if resp.StatusCode != http.StatusOK {
		var failure signError
		if json.Unmarshal(respBytes, &failure) == nil && failure.Code == "cancelled" {
			return models.ErrSignerCancelled
		}
		return errors.Wrapf(models.ErrSignerRejected, "status %d: %s", resp.StatusCode, string(respBytes))
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return errors.Wrap(err, "decode signer response")
	}
	return nil
}
