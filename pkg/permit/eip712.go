// Package permit builds the EIP-712 domain separator, permit struct hash and
// final signable digest. Every function here is pure and safe for concurrent
// use.
package permit

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DomainType is the EIP-712 type string of the domain struct
	DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	// PermitType is the EIP-2612 type string of the permit struct. Field order
	// and widths must match the verifying contract exactly.
	PermitType = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"

	// PrimaryType is the primary type name used in typed data payloads
	PrimaryType = "Permit"
)

var (
	DomainTypeHash = crypto.Keccak256Hash([]byte(DomainType))
	PermitTypeHash = crypto.Keccak256Hash([]byte(PermitType))

	// digestPrefix is the EIP-191 version byte 0x01 prefix for structured data
	digestPrefix = []byte{0x19, 0x01}
)

// BuildDomainSeparator hashes the domain:
//
//	keccak256(DomainTypeHash || keccak256(name) || keccak256(version) || chainId || verifyingContract)
func BuildDomainSeparator(domain *types.Domain) (common.Hash, error) {
	if domain == nil {
		return common.Hash{}, fmt.Errorf("%w: domain is nil", types.ErrInvalidDomain)
	}
	if !utf8.ValidString(domain.Name) {
		return common.Hash{}, fmt.Errorf("%w: name is not valid UTF-8", types.ErrInvalidDomain)
	}
	if !utf8.ValidString(domain.Version) {
		return common.Hash{}, fmt.Errorf("%w: version is not valid UTF-8", types.ErrInvalidDomain)
	}
	chainID, err := encodeUint256(domain.ChainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: chainId %v", types.ErrInvalidDomain, err)
	}

	return crypto.Keccak256Hash(
		DomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(domain.Name)),
		crypto.Keccak256([]byte(domain.Version)),
		chainID,
		encodeAddress(domain.VerifyingContract),
	), nil
}

// HashPermit hashes the permit fields under PermitType
func HashPermit(msg *types.PermitMessage) (common.Hash, error) {
	if msg == nil {
		return common.Hash{}, fmt.Errorf("%w: message is nil", types.ErrInvalidPermit)
	}
	value, err := encodeUint256(msg.Value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: value %v", types.ErrInvalidPermit, err)
	}
	nonce, err := encodeUint256(msg.Nonce)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: nonce %v", types.ErrInvalidPermit, err)
	}
	deadline, err := encodeUint256(msg.Deadline)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: deadline %v", types.ErrInvalidPermit, err)
	}

	return crypto.Keccak256Hash(
		PermitTypeHash.Bytes(),
		encodeAddress(msg.Owner),
		encodeAddress(msg.Spender),
		value,
		nonce,
		deadline,
	), nil
}

// BuildDigest returns keccak256(0x19 0x01 || domainSeparator || structHash),
// the value that is signed and later recovered from.
func BuildDigest(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(digestPrefix, domainSeparator.Bytes(), structHash.Bytes())
}

// Digest composes BuildDomainSeparator, HashPermit and BuildDigest
func Digest(domain *types.Domain, msg *types.PermitMessage) (common.Hash, error) {
	domainSeparator, err := BuildDomainSeparator(domain)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := HashPermit(msg)
	if err != nil {
		return common.Hash{}, err
	}
	return BuildDigest(domainSeparator, structHash), nil
}

func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func encodeUint256(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("is nil")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("is negative")
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("exceeds 256 bits")
	}
	// U256Bytes truncates in place, hand it a copy
	return math.U256Bytes(new(big.Int).Set(v)), nil
}
