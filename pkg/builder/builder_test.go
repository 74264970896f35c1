package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// testAddr pads a seed to a valid 39-character ledger address.
func testAddr(seed string) string {
	return (seed + strings.Repeat("A", models.AddressLength))[:models.AddressLength]
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceAddress:     testAddr("TSERVICE"),
		CurrencyMosaicID:   "72C0212E67A08BCE",
		FeeRate:            0.1,
		LockStake:          10_000_000,
		LockDurationBlocks: 480,
	}
}

func validTerms() models.EscrowTerms {
	return models.EscrowTerms{
		RequesterAddress:    testAddr("TREQ"),
		CounterpartyAddress: testAddr("TCOUNTER"),
		MosaicID:            "1234567890ABCDEF",
		Amount:              5,
		Price:               100,
		Message:             "m",
	}
}

func TestValidateTerms(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.EscrowTerms)
		wantErr string
	}{
		{
			name:   "valid terms",
			mutate: func(*models.EscrowTerms) {},
		},
		{
			name:    "zero amount",
			mutate:  func(terms *models.EscrowTerms) { terms.Amount = 0 },
			wantErr: "amount must be greater than 0",
		},
		{
			name:    "zero price",
			mutate:  func(terms *models.EscrowTerms) { terms.Price = 0 },
			wantErr: "price must be greater than 0",
		},
		{
			name:    "short requester address",
			mutate:  func(terms *models.EscrowTerms) { terms.RequesterAddress = "TSHORT" },
			wantErr: "not a valid ledger address",
		},
		{
			name:    "lowercase counterparty address",
			mutate:  func(terms *models.EscrowTerms) { terms.CounterpartyAddress = strings.ToLower(testAddr("TC")) },
			wantErr: "not a valid ledger address",
		},
		{
			name: "self trade",
			mutate: func(terms *models.EscrowTerms) {
				terms.CounterpartyAddress = terms.RequesterAddress
			},
			wantErr: "must differ",
		},
		{
			name:    "missing mosaic id",
			mutate:  func(terms *models.EscrowTerms) { terms.MosaicID = "" },
			wantErr: "mosaic id is required",
		},
		{
			name:    "oversized message",
			mutate:  func(terms *models.EscrowTerms) { terms.Message = strings.Repeat("x", MaxMessageLength+1) },
			wantErr: "message exceeds",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			terms := validTerms()
			tc.mutate(&terms)

			err := ValidateTerms(terms)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestBuildBundle(t *testing.T) {
	b := New(testConfig())
	terms := validTerms()

	requester := &ledger.AccountInfo{Address: terms.RequesterAddress, PublicKey: "REQPUB"}
	counterparty := &ledger.AccountInfo{Address: terms.CounterpartyAddress, PublicKey: "CPPUB"}

	bundle, err := b.BuildBundle(terms, requester, counterparty, 1700000000000)
	require.NoError(t, err)

	t.Run("payment transfer", func(t *testing.T) {
		payment := bundle.Inner[PositionPayment]
		assert.Equal(t, "REQPUB", payment.SignerPublicKey)
		assert.Equal(t, terms.CounterpartyAddress, payment.Recipient)
		assert.Equal(t, "72C0212E67A08BCE", payment.MosaicID)
		assert.Equal(t, uint64(100_000_000), payment.Amount)
		assert.Equal(t, "1700000000000", payment.Message)
	})

	t.Run("asset transfer", func(t *testing.T) {
		asset := bundle.Inner[PositionAsset]
		assert.Equal(t, "CPPUB", asset.SignerPublicKey)
		assert.Equal(t, terms.RequesterAddress, asset.Recipient)
		assert.Equal(t, terms.MosaicID, asset.MosaicID)
		assert.Equal(t, uint64(5), asset.Amount)
		assert.Equal(t, "m", asset.Message)
	})

	t.Run("fee transfer", func(t *testing.T) {
		fee := bundle.Inner[PositionFee]
		assert.Equal(t, "REQPUB", fee.SignerPublicKey)
		assert.Equal(t, testAddr("TSERVICE"), fee.Recipient)
		assert.Equal(t, "72C0212E67A08BCE", fee.MosaicID)
		// 100 * 0.1 = 10 major units on the wire
		assert.Equal(t, uint64(10_000_000), fee.Amount)
		assert.Equal(t, models.ServiceDiscriminator, fee.Message)
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := b.BuildBundle(terms, requester, counterparty, 1700000000000)
		require.NoError(t, err)
		assert.Equal(t, bundle, again)
	})
}

func TestBuildBundleUnresolvedAccounts(t *testing.T) {
	b := New(testConfig())
	terms := validTerms()
	resolved := &ledger.AccountInfo{Address: terms.RequesterAddress, PublicKey: "REQPUB"}

	tests := []struct {
		name         string
		requester    *ledger.AccountInfo
		counterparty *ledger.AccountInfo
	}{
		{name: "nil requester", requester: nil, counterparty: resolved},
		{name: "nil counterparty", requester: resolved, counterparty: nil},
		{
			name:         "requester without public key",
			requester:    &ledger.AccountInfo{Address: terms.RequesterAddress},
			counterparty: resolved,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.BuildBundle(terms, tc.requester, tc.counterparty, 0)
			require.Error(t, err)
			var resolution *models.AddressResolutionError
			assert.ErrorAs(t, err, &resolution)
		})
	}
}

func TestBuildHashLock(t *testing.T) {
	b := New(testConfig())

	lock := b.BuildHashLock(&ledger.SignedTransaction{Hash: "ABC123"})

	assert.Equal(t, "72C0212E67A08BCE", lock.MosaicID)
	assert.Equal(t, uint64(10_000_000), lock.Amount)
	assert.Equal(t, uint64(480), lock.DurationBlocks)
	assert.Equal(t, "ABC123", lock.TargetHash)
}
