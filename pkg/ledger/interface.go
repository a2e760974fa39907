// Package ledger tracks the per-owner permit nonce counter and the
// authorizations recorded when a nonce is consumed.
package ledger

import (
	"errors"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

var ErrLedgerClosed = errors.New("nonce ledger is closed")

// INonceLedger is the replay protection store. Every owner's counter starts
// at 0 and only ever moves forward by exactly 1. Implementations must be safe
// for concurrent use: two ConsumeNonce calls racing on the same (owner,
// nonce) must result in exactly one success.
type INonceLedger interface {
	// CurrentNonce returns the next nonce owner must sign over. Owners never
	// seen before have nonce 0.
	CurrentNonce(owner common.Address) (*big.Int, error)

	// ConsumeNonce atomically checks that nonce equals the current nonce of
	// owner, advances the counter by 1 and records auth. Returns an error
	// wrapping types.ErrNonceMismatch, with nothing written, when nonce is
	// not current. auth may be nil.
	ConsumeNonce(owner common.Address, nonce *big.Int, auth *types.Authorization) error

	// ListAuthorizations returns every authorization recorded for owner in
	// nonce order. Returns an empty slice for unknown owners.
	ListAuthorizations(owner common.Address) ([]*types.Authorization, error)

	// Close releases the backing store. Idempotent. After Close every other
	// operation returns ErrLedgerClosed.
	Close() error

	// HealthCheck returns nil if the backing store is usable
	HealthCheck() error
}
