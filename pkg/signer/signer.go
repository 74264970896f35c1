// Package signer is the facade over the external signer device. The device
// is a two-step surface: stage exactly one pending item, then request a
// signature over it. Two requests issued back-to-back without the mandated
// spacing are rejected by the device itself, not by this package.
package signer

import (
	"context"

	"github.com/mosaicswap/escrow-engine/pkg/builder"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
)

// Device is one logical signer session. A flow must hold a single session
// for all of its signature requests.
type Device interface {
	// SetBundle stages an unsigned escrow bundle for signing.
	SetBundle(bundle *builder.Bundle) error

	// SetHashLock stages an unsigned collateral lock for signing.
	SetHashLock(lock *builder.HashLock) error

	// SetCosignPayload stages the serialized form of a pending bundle for
	// cosigning.
	SetCosignPayload(payload string) error

	// RequestSignature signs the staged transaction. Fails with
	// models.ErrSignerCancelled when the user declines and
	// models.ErrSignerRejected on device errors.
	RequestSignature(ctx context.Context) (*ledger.SignedTransaction, error)

	// RequestCosignature signs the staged cosign payload.
	RequestCosignature(ctx context.Context) (*ledger.SignedCosignature, error)
}
