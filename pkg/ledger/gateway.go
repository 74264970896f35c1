// Package ledger is a typed facade over the external node's query, announce,
// and subscribe operations. It carries no protocol logic.
package ledger

import (
	"context"
	"errors"

	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// ErrNotFound means the node does not know the requested entity yet. For a
// freshly announced transaction this is a pending state, not a failure.
var ErrNotFound = errors.New("not found on ledger")

// AccountInfo is the ledger's view of an account.
type AccountInfo struct {
	Address   string
	PublicKey string
}

// TransactionStatus is the node's status record for a transaction hash.
type TransactionStatus struct {
	Hash   string
	Code   string
	Group  string
	Height uint64
}

// Mosaic is an asset id plus a minor-unit quantity.
type Mosaic struct {
	ID     string
	Amount uint64
}

// InnerTransfer is one transfer inside a bonded bundle.
type InnerTransfer struct {
	SignerAddress   string
	SignerPublicKey string
	Recipient       string
	Mosaics         []Mosaic
	Message         string
}

// BundleSummary is a search hit for a bonded bundle.
type BundleSummary struct {
	Hash   string
	Height uint64
}

// BundleDetail is a fully resolved bonded bundle, inner transfers included.
// Payload is the serialized form a cosigner signs over.
type BundleDetail struct {
	Hash    string
	Height  uint64
	Inner   []InnerTransfer
	Payload string
}

// SignedTransaction is a signed transaction as produced by the signer device.
type SignedTransaction struct {
	Payload         string `json:"payload"`
	Hash            string `json:"hash"`
	SignerPublicKey string `json:"signerPublicKey"`
}

// SignedCosignature is a detached cosignature over a pending bundle.
type SignedCosignature struct {
	ParentHash      string `json:"parentHash"`
	Signature       string `json:"signature"`
	SignerPublicKey string `json:"signerPublicKey"`
}

// BlockInfo carries the block fields history reconstruction needs.
type BlockInfo struct {
	Height    uint64
	Timestamp int64 // ms since the ledger epoch
}

// Subscription is a live event subscription for a single transaction hash.
// Close is safe to call more than once and from multiple goroutines.
type Subscription interface {
	// Notified delivers at most one notification for the watched hash.
	Notified() <-chan struct{}
	Close()
}

// Gateway is the full set of node operations the escrow engine consumes.
type Gateway interface {
	// AccountInfo resolves an address to its on-ledger account record.
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// Transaction fetches a bonded bundle with inner-transaction detail.
	Transaction(ctx context.Context, hash string, group models.Scope) (*BundleDetail, error)

	// SearchBonded lists bonded bundles addressed to or from address,
	// newest first, bounded by pageSize.
	SearchBonded(ctx context.Context, address string, group models.Scope, pageSize int) ([]BundleSummary, error)

	// Announce posts a signed transaction.
	Announce(ctx context.Context, tx *SignedTransaction) error

	// AnnounceBonded posts a signed bonded aggregate bundle.
	AnnounceBonded(ctx context.Context, tx *SignedTransaction) error

	// AnnounceCosignature posts a detached cosignature.
	AnnounceCosignature(ctx context.Context, cosig *SignedCosignature) error

	// TransactionStatus fetches the node's status record for a hash.
	TransactionStatus(ctx context.Context, hash string) (*TransactionStatus, error)

	// ChainHeight returns the current chain height.
	ChainHeight(ctx context.Context) (uint64, error)

	// BlockByHeight fetches block metadata.
	BlockByHeight(ctx context.Context, height uint64) (*BlockInfo, error)

	// SubscribeConfirmed watches for hash confirming on address.
	SubscribeConfirmed(ctx context.Context, address, hash string) (Subscription, error)

	// SubscribeBondedAdded watches for hash entering the partial pool.
	SubscribeBondedAdded(ctx context.Context, address, hash string) (Subscription, error)
}
