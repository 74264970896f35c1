package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeUnreachable means no configured ledger node answered. Callers
	// must distinguish it from "searched, found nothing".
	ErrNodeUnreachable = errors.New("no ledger node reachable")

	// ErrSignerRejected means the signer device refused the request.
	ErrSignerRejected = errors.New("signer rejected the request")

	// ErrSignerCancelled means the user declined to sign.
	ErrSignerCancelled = errors.New("signing cancelled")
)

// AddressResolutionError reports an address the ledger does not know.
type AddressResolutionError struct {
	Address string
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("address %q unknown to the ledger", e.Address)
}

// ShapeMismatchError marks a bonded bundle that does not look like an escrow
// bundle. Searches skip these items; they are never fatal.
type ShapeMismatchError struct {
	Hash   string
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("bundle %s is not an escrow bundle: %s", e.Hash, e.Reason)
}
