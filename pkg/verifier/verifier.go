// Package verifier reproduces the on-chain permit check off-chain: recover
// the signer, match it to the owner, enforce the nonce and the deadline, then
// consume the nonce.
package verifier

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VerifyRequest is everything VerifyAndConsume needs. Digest must already
// bind Owner, Spender, Value, Nonce and Deadline under the intended domain.
type VerifyRequest struct {
	Digest        common.Hash
	Signature     *types.Signature
	Owner         common.Address
	Spender       common.Address
	Value         *big.Int
	Nonce         *big.Int
	Deadline      *big.Int
	ReferenceTime uint64 // Unix seconds
}

// Recover returns the address that produced sig over digest. Only canonical
// signatures are accepted: v in {27, 28}, r and s in [1, N) and s <= N/2.
func Recover(digest common.Hash, sig *types.Signature) (common.Address, error) {
	if sig == nil {
		return common.Address{}, fmt.Errorf("%w: signature is nil", types.ErrInvalidSignature)
	}
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("%w: v must be 27 or 28, got %d", types.ErrInvalidSignature, sig.V)
	}

	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(sig.V-27, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: r or s out of range or s not canonical", types.ErrInvalidSignature)
	}

	raw := sig.Bytes()
	raw[64] = sig.V - 27
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recovery failed: %v", types.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyAndConsume runs the checks in order (signature, owner, nonce,
// deadline) and stops at the first failure with a *types.VerificationError.
// Only when all pass is the owner's nonce consumed, atomically with recording
// the returned authorization. Storage failures are returned as plain errors.
func VerifyAndConsume(l ledger.INonceLedger, req *VerifyRequest) (*types.Authorization, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	recovered, err := Recover(req.Digest, req.Signature)
	if err != nil {
		return nil, types.NewVerificationError(types.ErrInvalidSignature, err.Error())
	}

	// common.Address compares the raw 20 bytes, so checksum case never matters
	if recovered != req.Owner {
		return nil, types.NewVerificationError(types.ErrSignatureOwnerMismatch,
			fmt.Sprintf("recovered %s, expected %s", recovered.Hex(), req.Owner.Hex()))
	}

	current, err := l.CurrentNonce(req.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce for %s: %w", req.Owner.Hex(), err)
	}
	if current.Cmp(req.Nonce) != 0 {
		return nil, types.NewVerificationError(types.ErrNonceMismatch,
			fmt.Sprintf("expected nonce %s, got %s", current, req.Nonce))
	}

	if err := ledger.CheckDeadline(req.Deadline, req.ReferenceTime); err != nil {
		return nil, types.NewVerificationError(types.ErrExpiredPermit,
			fmt.Sprintf("deadline %s, reference time %d", req.Deadline, req.ReferenceTime))
	}

	auth := &types.Authorization{
		ID:           uuid.New(),
		Owner:        req.Owner,
		Spender:      req.Spender,
		Value:        new(big.Int).Set(req.Value),
		Nonce:        new(big.Int).Set(req.Nonce),
		Deadline:     new(big.Int).Set(req.Deadline),
		Digest:       req.Digest,
		AuthorizedAt: req.ReferenceTime,
	}

	// The nonce may have moved between the read above and here; the ledger's
	// compare-and-increment decides the winner.
	if err := l.ConsumeNonce(req.Owner, req.Nonce, auth); err != nil {
		if errors.Is(err, types.ErrNonceMismatch) {
			return nil, types.NewVerificationError(types.ErrNonceMismatch, err.Error())
		}
		return nil, fmt.Errorf("failed to consume nonce for %s: %w", req.Owner.Hex(), err)
	}

	return auth, nil
}

func validateRequest(req *VerifyRequest) error {
	if req == nil {
		return types.NewVerificationError(types.ErrInvalidPermit, "request is nil")
	}
	fields := []struct {
		name  string
		value *big.Int
	}{
		{"value", req.Value},
		{"nonce", req.Nonce},
		{"deadline", req.Deadline},
	}
	for _, f := range fields {
		if f.value == nil || f.value.Sign() < 0 || f.value.BitLen() > 256 {
			return types.NewVerificationError(types.ErrInvalidPermit, f.name+" must be a uint256")
		}
	}
	return nil
}

// Verifier binds VerifyAndConsume to one token deployment and one ledger
type Verifier struct {
	domain          *types.Domain
	domainSeparator common.Hash
	ledger          ledger.INonceLedger
	logger          *zap.Logger
}

func NewVerifier(domain *types.Domain, l ledger.INonceLedger, logger *zap.Logger) (*Verifier, error) {
	if l == nil {
		return nil, fmt.Errorf("nonce ledger cannot be nil")
	}
	sep, err := permit.BuildDomainSeparator(domain)
	if err != nil {
		return nil, err
	}

	d := *domain
	d.ChainID = new(big.Int).Set(domain.ChainID)

	logger.Sugar().Infow("Permit verifier ready",
		"name", d.Name,
		"version", d.Version,
		"chainId", d.ChainID.String(),
		"verifyingContract", d.VerifyingContract.Hex(),
		"domainSeparator", sep.Hex(),
	)

	return &Verifier{
		domain:          &d,
		domainSeparator: sep,
		ledger:          l,
		logger:          logger,
	}, nil
}

// Domain returns a copy of the bound domain
func (v *Verifier) Domain() *types.Domain {
	d := *v.domain
	d.ChainID = new(big.Int).Set(v.domain.ChainID)
	return &d
}

func (v *Verifier) DomainSeparator() common.Hash {
	return v.domainSeparator
}

func (v *Verifier) Ledger() ledger.INonceLedger {
	return v.ledger
}

// Digest returns the struct hash and digest of msg under the bound domain
func (v *Verifier) Digest(msg *types.PermitMessage) (common.Hash, common.Hash, error) {
	structHash, err := permit.HashPermit(msg)
	if err != nil {
		return common.Hash{}, common.Hash{}, err
	}
	return structHash, permit.BuildDigest(v.domainSeparator, structHash), nil
}

// VerifyPermit recomputes the digest of msg and runs VerifyAndConsume
func (v *Verifier) VerifyPermit(msg *types.PermitMessage, sig *types.Signature, referenceTime uint64) (*types.Authorization, error) {
	_, digest, err := v.Digest(msg)
	if err != nil {
		return nil, types.NewVerificationError(types.ErrInvalidPermit, err.Error())
	}

	auth, err := VerifyAndConsume(v.ledger, &VerifyRequest{
		Digest:        digest,
		Signature:     sig,
		Owner:         msg.Owner,
		Spender:       msg.Spender,
		Value:         msg.Value,
		Nonce:         msg.Nonce,
		Deadline:      msg.Deadline,
		ReferenceTime: referenceTime,
	})
	if err != nil {
		var verr *types.VerificationError
		if errors.As(err, &verr) {
			v.logger.Sugar().Debugw("Permit rejected",
				"owner", msg.Owner.Hex(),
				"nonce", msg.Nonce.String(),
				"check", verr.Check,
				"error", verr.Error(),
			)
		} else {
			v.logger.Sugar().Errorw("Permit verification failed", "owner", msg.Owner.Hex(), "error", err)
		}
		return nil, err
	}

	v.logger.Sugar().Infow("Permit authorized",
		"id", auth.ID.String(),
		"owner", auth.Owner.Hex(),
		"spender", auth.Spender.Hex(),
		"value", auth.Value.String(),
		"nonce", auth.Nonce.String(),
		"digest", auth.Digest.Hex(),
	)
	return auth, nil
}
