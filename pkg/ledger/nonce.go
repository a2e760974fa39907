package ledger

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// MaxNonce is the largest value a uint256 nonce counter can hold
var MaxNonce = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidateConsume checks the arguments of ConsumeNonce that do not depend on
// stored state. Backends call it before touching storage.
func ValidateConsume(owner common.Address, nonce *big.Int, auth *types.Authorization) error {
	if nonce == nil || nonce.Sign() < 0 {
		return fmt.Errorf("%w: nonce must be a non-negative integer", types.ErrNonceMismatch)
	}
	if nonce.Cmp(MaxNonce) >= 0 {
		return fmt.Errorf("%w: nonce space exhausted for %s", types.ErrNonceMismatch, owner.Hex())
	}
	if auth != nil {
		if auth.Owner != owner {
			return fmt.Errorf("authorization owner %s does not match %s", auth.Owner.Hex(), owner.Hex())
		}
		if auth.Nonce == nil || auth.Nonce.Cmp(nonce) != 0 {
			return fmt.Errorf("authorization nonce does not match consumed nonce %s", nonce)
		}
	}
	return nil
}

// NonceMismatch builds the error returned when nonce is not current
func NonceMismatch(owner common.Address, expected, got *big.Int) error {
	return fmt.Errorf("%w: owner %s expected nonce %s, got %s", types.ErrNonceMismatch, owner.Hex(), expected, got)
}

// EncodeNonce returns the 32 byte big-endian encoding of n
func EncodeNonce(n *big.Int) []byte {
	return n.FillBytes(make([]byte, 32))
}

// DecodeNonce parses a 32 byte big-endian nonce
func DecodeNonce(b []byte) (*big.Int, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid nonce length: %d", len(b))
	}
	return new(big.Int).SetBytes(b), nil
}
