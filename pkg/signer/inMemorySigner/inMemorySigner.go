package inMemorySigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// InMemorySigner holds a raw secp256k1 key in process memory
type InMemorySigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewInMemorySigner loads a raw 32 byte private key
func NewInMemorySigner(privateKey []byte, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: error loading private key: %v", types.ErrSigning, err)
	}
	return NewInMemorySignerFromKey(key, logger), nil
}

// NewInMemorySignerFromHex loads a hex private key, with or without 0x prefix
func NewInMemorySignerFromHex(privateKeyHex string, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: error loading private key: %v", types.ErrSigning, err)
	}
	return NewInMemorySignerFromKey(key, logger), nil
}

func NewInMemorySignerFromKey(key *ecdsa.PrivateKey, logger *zap.Logger) *InMemorySigner {
	return &InMemorySigner{
		logger:     logger,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *InMemorySigner) Address() common.Address {
	return s.address
}

func (s *InMemorySigner) SignDigest(_ context.Context, digest common.Hash) (*types.Signature, error) {
	sig, err := signer.SignWithKey(digest, s.privateKey)
	if err != nil {
		return nil, err
	}
	s.logger.Sugar().Debugw("Signed digest",
		"address", s.address.Hex(),
		"digest", digest.Hex(),
	)
	return sig, nil
}

var _ signer.IPermitSigner = (*InMemorySigner)(nil)
