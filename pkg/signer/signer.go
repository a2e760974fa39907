// Package signer produces recoverable secp256k1 signatures over permit
// digests. Sign is the pure primitive; IPermitSigner abstracts where the key
// lives (memory, encrypted keystore, AWS KMS or a remote wallet).
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// secp256k1N is the order of the secp256k1 curve
	secp256k1N = crypto.S256().Params().N
	// secp256k1HalfN is the largest canonical s value
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

type IPermitSigner interface {
	// Address is the Ethereum address of the signing key
	Address() common.Address

	// SignDigest signs a 32 byte EIP-712 digest, returning v in {27, 28}
	SignDigest(ctx context.Context, digest common.Hash) (*types.Signature, error)
}

// ITypedDataSigner is implemented by signers that must see the full typed
// data rather than a bare digest, such as external wallets.
type ITypedDataSigner interface {
	IPermitSigner

	SignPermit(ctx context.Context, domain *types.Domain, msg *types.PermitMessage) (*types.Signature, common.Hash, error)
}

// Sign signs digest with a raw 32 byte secp256k1 private key. Nonces are
// derived deterministically (RFC 6979) so the same key and digest always give
// the same signature. The returned s is in the lower half of the curve order.
func Sign(digest common.Hash, privateKey []byte) (*types.Signature, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		// err never contains key material
		return nil, fmt.Errorf("%w: invalid private key: %v", types.ErrSigning, err)
	}
	return SignWithKey(digest, key)
}

// SignWithKey is Sign for an already parsed key
func SignWithKey(digest common.Hash, key *ecdsa.PrivateKey) (*types.Signature, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key is nil", types.ErrSigning)
	}
	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSigning, err)
	}
	return FromRecoverable(raw)
}

// FromRecoverable converts a 65 byte r || s || recoveryId signature into its
// canonical form: s flipped into the lower half (toggling the recovery id)
// and v shifted into {27, 28}.
func FromRecoverable(raw []byte) (*types.Signature, error) {
	if len(raw) != types.SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrSigning, types.SignatureLength, len(raw))
	}

	recID := raw[64]
	if recID >= 27 {
		recID -= 27
	}
	if recID > 1 {
		return nil, fmt.Errorf("%w: unexpected recovery id %d", types.ErrSigning, raw[64])
	}

	r := new(big.Int).SetBytes(raw[0:32])
	s := new(big.Int).SetBytes(raw[32:64])
	s, flipped := ToLowS(s)
	if flipped {
		recID ^= 1
	}

	sig := &types.Signature{V: recID + 27}
	r.FillBytes(sig.R[:])
	s.FillBytes(sig.S[:])
	return sig, nil
}

// ToLowS returns N - s when s is in the upper half of the curve order. The
// boolean reports whether s was flipped, in which case the recovery id must
// be toggled too.
func ToLowS(s *big.Int) (*big.Int, bool) {
	if s.Cmp(secp256k1HalfN) > 0 {
		return new(big.Int).Sub(secp256k1N, s), true
	}
	return s, false
}

// IsLowS reports whether s is canonical
func IsLowS(s *big.Int) bool {
	return s.Cmp(secp256k1HalfN) <= 0
}

// SignPermit computes the permit digest under domain and signs it. The
// digest is returned alongside the signature for callers that record it.
func SignPermit(ctx context.Context, s IPermitSigner, domain *types.Domain, msg *types.PermitMessage) (*types.Signature, common.Hash, error) {
	if ts, ok := s.(ITypedDataSigner); ok {
		return ts.SignPermit(ctx, domain, msg)
	}
	digest, err := permit.Digest(domain, msg)
	if err != nil {
		return nil, common.Hash{}, err
	}
	sig, err := s.SignDigest(ctx, digest)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return sig, digest, nil
}
