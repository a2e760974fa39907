package inMemorySigner

import (
	"context"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_InMemorySigner(t *testing.T) {
	logger := zaptest.NewLogger(t)
	key := testutil.LoadTestKey(t, testutil.HardhatPrivateKeyHex)
	digest := crypto.Keccak256Hash([]byte("digest"))

	t.Run("from hex", func(t *testing.T) {
		for _, h := range []string{testutil.HardhatPrivateKeyHex, "0x" + testutil.HardhatPrivateKeyHex} {
			s, err := NewInMemorySignerFromHex(h, logger)
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(testutil.HardhatAddressHex), s.Address())
		}
	})

	t.Run("matches Sign", func(t *testing.T) {
		s, err := NewInMemorySigner(key.Bytes, logger)
		require.NoError(t, err)

		sig, err := s.SignDigest(context.Background(), digest)
		require.NoError(t, err)

		expected, err := signer.Sign(digest, key.Bytes)
		require.NoError(t, err)
		assert.Equal(t, expected, sig)
	})

	t.Run("invalid keys", func(t *testing.T) {
		_, err := NewInMemorySigner(make([]byte, 32), logger)
		require.ErrorIs(t, err, types.ErrSigning)

		_, err = NewInMemorySignerFromHex("zz", logger)
		require.ErrorIs(t, err, types.ErrSigning)
	})
}
