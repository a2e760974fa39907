// Package keystoreSigner signs with a key decrypted from a go-ethereum
// encrypted JSON keystore (the format geth, clef and most wallets export).
package keystoreSigner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/inMemorySigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewKeystoreSigner decrypts the keystore at path with password. Once
// decrypted the key is held in memory like any other in-memory signer.
func NewKeystoreSigner(path string, password string, logger *zap.Logger) (*inMemorySigner.InMemorySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}
	return NewKeystoreSignerFromJSON(data, password, logger)
}

func NewKeystoreSignerFromJSON(data []byte, password string, logger *zap.Logger) (*inMemorySigner.InMemorySigner, error) {
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt keystore: %v", types.ErrSigning, err)
	}

	logger.Sugar().Infow("Loaded keystore signer", "address", key.Address.Hex())
	return inMemorySigner.NewInMemorySignerFromKey(key.PrivateKey, logger), nil
}

// WriteKeystore generates a new key, encrypts it with password and writes it
// to dir using the standard UTC--<time>--<address> file name.
func WriteKeystore(dir string, password string, light bool) (common.Address, string, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to generate key: %w", err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to generate key id: %w", err)
	}
	key := &keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}

	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if light {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}
	data, err := keystore.EncryptKey(key, password, scryptN, scryptP)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to encrypt key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return common.Address{}, "", fmt.Errorf("failed to create keystore dir: %w", err)
	}
	path := filepath.Join(dir, keyFileName(key.Address))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return common.Address{}, "", fmt.Errorf("failed to write keystore: %w", err)
	}
	return key.Address, path, nil
}

func keyFileName(addr common.Address) string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05.000000000Z")
	return fmt.Sprintf("UTC--%s--%s", ts, strings.ToLower(addr.Hex()[2:]))
}
