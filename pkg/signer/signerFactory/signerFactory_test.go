package signerFactory

import (
	"context"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/keystoreSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/remoteSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewSigner(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("private key", func(t *testing.T) {
		s, release, err := NewSigner(ctx, &config.SignerConfig{PrivateKey: testutil.HardhatPrivateKeyHex}, logger)
		require.NoError(t, err)
		defer release()
		assert.Equal(t, common.HexToAddress(testutil.HardhatAddressHex), s.Address())
	})

	t.Run("keystore", func(t *testing.T) {
		addr, path, err := keystoreSigner.WriteKeystore(t.TempDir(), "hunter2", true)
		require.NoError(t, err)

		s, release, err := NewSigner(ctx, &config.SignerConfig{KeystorePath: path, KeystorePassword: "hunter2"}, logger)
		require.NoError(t, err)
		defer release()
		assert.Equal(t, addr, s.Address())

		_, _, err = NewSigner(ctx, &config.SignerConfig{KeystorePath: path, KeystorePassword: "wrong"}, logger)
		require.Error(t, err)
	})

	t.Run("remote", func(t *testing.T) {
		account := testutil.OwnerKey(t).Address
		s, release, err := NewSigner(ctx, &config.SignerConfig{RemoteSigner: &config.RemoteSignerConfig{
			Url:         "http://127.0.0.1:8550",
			FromAddress: account.Hex(),
		}}, logger)
		require.NoError(t, err)
		defer release()
		_, ok := s.(*remoteSigner.RemoteSigner)
		require.True(t, ok)
		assert.Equal(t, account, s.Address())
	})

	t.Run("invalid", func(t *testing.T) {
		_, release, err := NewSigner(ctx, &config.SignerConfig{}, logger)
		require.Error(t, err)
		release()

		_, _, err = NewSigner(ctx, nil, logger)
		require.Error(t, err)

		_, _, err = NewSigner(ctx, &config.SignerConfig{PrivateKey: "0x1234"}, logger)
		require.Error(t, err)
	})
}
