package permit

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// permitABI is the EIP-2612 permit entry point a relayer submits
const permitABI = `[{
	"type": "function",
	"name": "permit",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "owner", "type": "address"},
		{"name": "spender", "type": "address"},
		{"name": "value", "type": "uint256"},
		{"name": "deadline", "type": "uint256"},
		{"name": "v", "type": "uint8"},
		{"name": "r", "type": "bytes32"},
		{"name": "s", "type": "bytes32"}
	],
	"outputs": []
}]`

var parsedPermitABI abi.ABI

func init() {
	var err error
	parsedPermitABI, err = abi.JSON(strings.NewReader(permitABI))
	if err != nil {
		panic(fmt.Sprintf("invalid permit ABI: %v", err))
	}
}

// PermitABI returns the parsed ABI of the permit function
func PermitABI() *abi.ABI {
	return &parsedPermitABI
}

// EncodePermitCall ABI-encodes permit(owner, spender, value, deadline, v, r, s)
// including the 4 byte selector. The nonce is not part of the call; the token
// contract reads it from its own ledger.
func EncodePermitCall(msg *types.PermitMessage, sig *types.Signature) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is nil", types.ErrInvalidPermit)
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: signature is nil", types.ErrInvalidSignature)
	}
	if _, err := encodeUint256(msg.Value); err != nil {
		return nil, fmt.Errorf("%w: value %v", types.ErrInvalidPermit, err)
	}
	if _, err := encodeUint256(msg.Deadline); err != nil {
		return nil, fmt.Errorf("%w: deadline %v", types.ErrInvalidPermit, err)
	}

	data, err := parsedPermitABI.Pack("permit",
		msg.Owner,
		msg.Spender,
		msg.Value,
		msg.Deadline,
		sig.V,
		[32]byte(sig.R),
		[32]byte(sig.S),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack permit call: %w", err)
	}
	return data, nil
}
