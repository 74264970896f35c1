package models

// ServiceDiscriminator tags the fee transfer of every escrow bundle this
// protocol posts. Reconstruction matches it verbatim, so already-posted
// escrows become invisible if it ever changes.
const ServiceDiscriminator = "mosaic-escrow:v1"

// PriceScale converts between major currency units and on-wire minor units.
const PriceScale = 1_000_000

// Scope selects which transaction group a history search reads from.
type Scope string

const (
	// ScopePending covers bonded bundles still waiting for cosignatures.
	ScopePending Scope = "partial"
	// ScopeFinalized covers bundles that reached a block.
	ScopeFinalized Scope = "confirmed"
)

// EscrowTerms is the caller-supplied input for a new escrow. Immutable once
// submitted; validated before any ledger traffic happens.
type EscrowTerms struct {
	RequesterAddress    string `json:"requester_address"`
	CounterpartyAddress string `json:"counterparty_address"`
	MosaicID            string `json:"mosaic_id"`
	Amount              uint64 `json:"amount"`
	Price               uint64 `json:"price"` // major currency units
	Message             string `json:"message"`
}

// EscrowRecord is one escrow rebuilt from a bonded bundle on the ledger.
// Records are recomputed on every search and never persisted.
type EscrowRecord struct {
	RequesterAddress    string `json:"requester_address"`
	CounterpartyAddress string `json:"counterparty_address"`
	BlockTime           int64  `json:"block_time"` // unix ms, 0 while unconfirmed
	Expiration          int64  `json:"expiration"` // unix ms, from the payment payload
	MosaicID            string `json:"mosaic_id"`
	Amount              uint64 `json:"amount"`
	Price               uint64 `json:"price"` // major currency units
	Message             string `json:"message"`
	Hash                string `json:"hash"`
}
