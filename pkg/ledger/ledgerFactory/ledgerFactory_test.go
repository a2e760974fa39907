package ledgerFactory

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/badger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/memory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewLedger(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("memory", func(t *testing.T) {
		l, err := NewLedger(&config.LedgerConfig{Type: config.LedgerType_Memory}, logger)
		require.NoError(t, err)
		defer func() { _ = l.Close() }()
		_, ok := l.(*memory.MemoryLedger)
		assert.True(t, ok)
	})

	t.Run("badger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger")
		l, err := NewLedger(&config.LedgerConfig{Type: config.LedgerType_Badger, Path: path}, logger)
		require.NoError(t, err)
		defer func() { _ = l.Close() }()
		_, ok := l.(*badger.BadgerLedger)
		assert.True(t, ok)

		owner := testutil.OwnerKey(t).Address
		require.NoError(t, l.ConsumeNonce(owner, big.NewInt(0), nil))
		n, err := l.CurrentNonce(owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n.Int64())
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewLedger(&config.LedgerConfig{Type: config.LedgerType_Badger}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger.path")

		_, err = NewLedger(&config.LedgerConfig{Type: "sqlite"}, logger)
		require.Error(t, err)

		_, err = NewLedger(nil, logger)
		require.Error(t, err)
	})
}
