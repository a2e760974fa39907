package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// OwnerPrivateKeyHex and SpenderPrivateKeyHex are throwaway development
	// keys. Never fund them.
	OwnerPrivateKeyHex   = "4a233a438a7a26729b1c578d2c4832af4906d56fdcdb93e1f3e49326862ec528"
	SpenderPrivateKeyHex = "e8bf741fada50a9a5d156631c5201c6d2c5dd38e168d246ea3cf1d313d9101bb"

	// HardhatPrivateKeyHex is the first default Hardhat/Anvil account
	HardhatPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	HardhatAddressHex    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	TestChainID      = 1337
	TestDeadline     = 9999999999
	TestReferenceNow = 1000000000
)

// TestVerifyingContract is the token contract address used by test domains
var TestVerifyingContract = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

// TestKey is a private key together with its raw bytes and address
type TestKey struct {
	PrivateKey *ecdsa.PrivateKey
	Bytes      []byte
	Address    common.Address
}

// LoadTestKey parses a hex private key, failing the test on error
func LoadTestKey(t testing.TB, keyHex string) *TestKey {
	t.Helper()
	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		t.Fatalf("failed to parse test key: %v", err)
	}
	return &TestKey{
		PrivateKey: pk,
		Bytes:      crypto.FromECDSA(pk),
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
}

// OwnerKey returns the owner development key
func OwnerKey(t testing.TB) *TestKey {
	return LoadTestKey(t, OwnerPrivateKeyHex)
}

// SpenderKey returns the spender development key
func SpenderKey(t testing.TB) *TestKey {
	return LoadTestKey(t, SpenderPrivateKeyHex)
}

// GenerateTestKey creates a fresh random key
func GenerateTestKey(t testing.TB) *TestKey {
	t.Helper()
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &TestKey{
		PrivateKey: pk,
		Bytes:      crypto.FromECDSA(pk),
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
}

// Hex returns the 0x-prefixed private key
func (k *TestKey) Hex() string {
	return hexutil.Encode(k.Bytes)
}

// CreateTestDomain returns the "Token"/"1" domain on chain 1337
func CreateTestDomain() *types.Domain {
	return &types.Domain{
		Name:              "Token",
		Version:           "1",
		ChainID:           big.NewInt(TestChainID),
		VerifyingContract: TestVerifyingContract,
	}
}

// CreateTestPermit returns a permit of value 100 with the given nonce
func CreateTestPermit(owner, spender common.Address, nonce int64) *types.PermitMessage {
	return &types.PermitMessage{
		Owner:    owner,
		Spender:  spender,
		Value:    big.NewInt(100),
		Nonce:    big.NewInt(nonce),
		Deadline: big.NewInt(TestDeadline),
	}
}
