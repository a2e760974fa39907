package permit

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedData builds the eth_signTypedData_v4 payload for a permit so wallets
// sign exactly the digest this package computes. Integers are passed as
// decimal strings; apitypes mutates shared *big.Int values while hashing.
//
// apitypes omits empty domain strings from the encoded domain, so a domain
// with an empty name or version has no typed data form and is rejected.
func TypedData(domain *types.Domain, msg *types.PermitMessage) (*apitypes.TypedData, error) {
	if _, err := BuildDomainSeparator(domain); err != nil {
		return nil, err
	}
	if domain.Name == "" || domain.Version == "" {
		return nil, fmt.Errorf("%w: typed data requires a non-empty name and version", types.ErrInvalidDomain)
	}
	if _, err := HashPermit(msg); err != nil {
		return nil, err
	}

	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			PrimaryType: {
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"owner":    msg.Owner.Hex(),
			"spender":  msg.Spender.Hex(),
			"value":    msg.Value.String(),
			"nonce":    msg.Nonce.String(),
			"deadline": msg.Deadline.String(),
		},
	}, nil
}
