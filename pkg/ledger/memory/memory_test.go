package memory

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/ledgertest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryLedger(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.INonceLedger {
		return NewMemoryLedger(zaptest.NewLogger(t))
	})
}

func TestMemoryLedger_StoresCopies(t *testing.T) {
	l := NewMemoryLedger(zaptest.NewLogger(t))
	owner := common.HexToAddress("0x01")

	auth := ledgertest.NewAuthorization(owner, 0)
	require.NoError(t, l.ConsumeNonce(owner, big.NewInt(0), auth))

	// Mutating the caller's value after the fact does not leak in
	auth.Value.SetInt64(1)

	auths, err := l.ListAuthorizations(owner)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, int64(100), auths[0].Value.Int64())

	// Mutating a returned nonce does not affect the ledger
	n, err := l.CurrentNonce(owner)
	require.NoError(t, err)
	n.SetInt64(42)

	n, err = l.CurrentNonce(owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Int64())
}
