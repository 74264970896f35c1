// Package builder assembles the unsigned escrow bundle and its collateral
// lock. Construction is pure: no I/O, no clocks, identical inputs produce
// identical bundles.
package builder

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// MaxMessageLength bounds the free-text message carried by a transfer.
const MaxMessageLength = 1023

// Inner transfer positions. Reconstruction assigns semantic roles purely by
// position, so the order is part of the wire protocol.
const (
	PositionPayment = 0
	PositionAsset   = 1
	PositionFee     = 2
)

// Transfer is one unsigned inner transfer of an escrow bundle.
type Transfer struct {
	SignerPublicKey string `json:"signerPublicKey"`
	Recipient       string `json:"recipient"`
	MosaicID        string `json:"mosaicId"`
	Amount          uint64 `json:"amount"`
	Message         string `json:"message"`
}

// Bundle is an unsigned bonded aggregate of exactly three transfers:
// payment, asset transfer, service fee, in that order.
type Bundle struct {
	Inner [3]Transfer `json:"inner"`
}

// HashLock is the unsigned collateral lock posted ahead of a bundle.
type HashLock struct {
	MosaicID       string `json:"mosaicId"`
	Amount         uint64 `json:"amount"`
	DurationBlocks uint64 `json:"durationBlocks"`
	TargetHash     string `json:"targetHash"`
}

// Builder constructs bundles from explicit configuration.
type Builder struct {
	serviceAddress     string
	currencyMosaicID   string
	feeRate            float64
	lockStake          uint64
	lockDurationBlocks uint64
}

// New creates a Builder from the engine configuration.
func New(cfg *config.Config) *Builder {
	return &Builder{
		serviceAddress:     cfg.ServiceAddress,
		currencyMosaicID:   cfg.CurrencyMosaicID,
		feeRate:            cfg.FeeRate,
		lockStake:          cfg.LockStake,
		lockDurationBlocks: cfg.LockDurationBlocks,
	}
}

// ValidateTerms rejects terms before any ledger traffic happens.
func ValidateTerms(terms models.EscrowTerms) error {
	if !models.IsValidAddress(terms.RequesterAddress) {
		return fmt.Errorf("requester address %q is not a valid ledger address", terms.RequesterAddress)
	}
	if !models.IsValidAddress(terms.CounterpartyAddress) {
		return fmt.Errorf("counterparty address %q is not a valid ledger address", terms.CounterpartyAddress)
	}
	if terms.RequesterAddress == terms.CounterpartyAddress {
		return fmt.Errorf("requester and counterparty must differ")
	}
	if terms.MosaicID == "" {
		return fmt.Errorf("mosaic id is required")
	}
	if terms.Amount == 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	if terms.Price == 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if len(terms.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds %d bytes", MaxMessageLength)
	}
	return nil
}

// BuildBundle assembles the three-transfer escrow bundle. Both account
// lookups must already have resolved; expiration is the precomputed
// expiration instant in unix ms, recorded on the payment transfer for later
// display.
func (b *Builder) BuildBundle(
	terms models.EscrowTerms,
	requester *ledger.AccountInfo,
	counterparty *ledger.AccountInfo,
	expiration int64,
) (*Bundle, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	if requester == nil || requester.PublicKey == "" {
		return nil, &models.AddressResolutionError{Address: terms.RequesterAddress}
	}
	if counterparty == nil || counterparty.PublicKey == "" {
		return nil, &models.AddressResolutionError{Address: terms.CounterpartyAddress}
	}

	bundle := &Bundle{}
	bundle.Inner[PositionPayment] = Transfer{
		SignerPublicKey: requester.PublicKey,
		Recipient:       counterparty.Address,
		MosaicID:        b.currencyMosaicID,
		Amount:          terms.Price * models.PriceScale,
		Message:         strconv.FormatInt(expiration, 10),
	}
	bundle.Inner[PositionAsset] = Transfer{
		SignerPublicKey: counterparty.PublicKey,
		Recipient:       requester.Address,
		MosaicID:        terms.MosaicID,
		Amount:          terms.Amount,
		Message:         terms.Message,
	}
	bundle.Inner[PositionFee] = Transfer{
		SignerPublicKey: requester.PublicKey,
		Recipient:       b.serviceAddress,
		MosaicID:        b.currencyMosaicID,
		Amount:          b.feeAmount(terms.Price),
		Message:         models.ServiceDiscriminator,
	}
	return bundle, nil
}

// BuildHashLock assembles the collateral lock for a signed bundle.
func (b *Builder) BuildHashLock(signed *ledger.SignedTransaction) *HashLock {
	return &HashLock{
		MosaicID:       b.currencyMosaicID,
		Amount:         b.lockStake,
		DurationBlocks: b.lockDurationBlocks,
		TargetHash:     signed.Hash,
	}
}

// feeAmount converts price in major units to the service fee in minor units.
func (b *Builder) feeAmount(price uint64) uint64 {
	return uint64(math.Round(float64(price) * b.feeRate * models.PriceScale))
}
