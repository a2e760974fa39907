// Package ledgertest holds the behavioural tests every INonceLedger backend
// must pass.
package ledgertest

import (
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty ledger. The suite closes it.
type Factory func(t *testing.T) ledger.INonceLedger

// NewAuthorization builds an authorization for owner at nonce
func NewAuthorization(owner common.Address, nonce int64) *types.Authorization {
	return &types.Authorization{
		ID:           uuid.New(),
		Owner:        owner,
		Spender:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:        big.NewInt(100),
		Nonce:        big.NewInt(nonce),
		Deadline:     big.NewInt(testutil.TestDeadline),
		Digest:       crypto.Keccak256Hash(owner.Bytes(), big.NewInt(nonce).Bytes()),
		AuthorizedAt: testutil.TestReferenceNow,
	}
}

// randomOwner keeps backends with shared state (redis) isolated between runs
func randomOwner(t *testing.T) common.Address {
	return testutil.GenerateTestKey(t).Address
}

func requireNonce(t *testing.T, l ledger.INonceLedger, owner common.Address, want int64) {
	t.Helper()
	n, err := l.CurrentNonce(owner)
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(want).Cmp(n), "nonce = %s, want %d", n, want)
}

// Run executes the full suite against the backend built by newLedger
func Run(t *testing.T, newLedger Factory) {
	t.Run("new owner starts at zero", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()

		requireNonce(t, l, randomOwner(t), 0)
	})

	t.Run("consume advances by exactly one", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		owner := randomOwner(t)

		for i := int64(0); i < 5; i++ {
			require.NoError(t, l.ConsumeNonce(owner, big.NewInt(i), NewAuthorization(owner, i)))
			requireNonce(t, l, owner, i+1)
		}
	})

	t.Run("stale and future nonces rejected without mutation", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		owner := randomOwner(t)

		require.NoError(t, l.ConsumeNonce(owner, big.NewInt(0), NewAuthorization(owner, 0)))

		err := l.ConsumeNonce(owner, big.NewInt(0), NewAuthorization(owner, 0))
		require.ErrorIs(t, err, types.ErrNonceMismatch)

		err = l.ConsumeNonce(owner, big.NewInt(5), NewAuthorization(owner, 5))
		require.ErrorIs(t, err, types.ErrNonceMismatch)

		requireNonce(t, l, owner, 1)
		auths, err := l.ListAuthorizations(owner)
		require.NoError(t, err)
		require.Len(t, auths, 1)
	})

	t.Run("owners are independent", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		a, b := randomOwner(t), randomOwner(t)

		require.NoError(t, l.ConsumeNonce(a, big.NewInt(0), nil))
		require.NoError(t, l.ConsumeNonce(a, big.NewInt(1), nil))

		requireNonce(t, l, a, 2)
		requireNonce(t, l, b, 0)
		require.NoError(t, l.ConsumeNonce(b, big.NewInt(0), nil))
		requireNonce(t, l, b, 1)
	})

	t.Run("authorizations listed in nonce order", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		owner := randomOwner(t)

		var expected []*types.Authorization
		for i := int64(0); i < 12; i++ {
			auth := NewAuthorization(owner, i)
			expected = append(expected, auth)
			require.NoError(t, l.ConsumeNonce(owner, big.NewInt(i), auth))
		}

		auths, err := l.ListAuthorizations(owner)
		require.NoError(t, err)
		require.Len(t, auths, len(expected))
		for i, auth := range auths {
			assert.Equal(t, expected[i].ID, auth.ID)
			assert.Equal(t, expected[i].Digest, auth.Digest)
			assert.Equal(t, 0, expected[i].Nonce.Cmp(auth.Nonce))
			assert.Equal(t, 0, expected[i].Value.Cmp(auth.Value))
		}

		// Returned values are copies
		auths[0].Value.SetInt64(0)
		again, err := l.ListAuthorizations(owner)
		require.NoError(t, err)
		assert.Equal(t, int64(100), again[0].Value.Int64())
	})

	t.Run("unknown owner has no authorizations", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()

		auths, err := l.ListAuthorizations(randomOwner(t))
		require.NoError(t, err)
		assert.Empty(t, auths)
	})

	t.Run("mismatched authorization rejected", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		owner := randomOwner(t)

		require.Error(t, l.ConsumeNonce(owner, big.NewInt(0), NewAuthorization(randomOwner(t), 0)))
		requireNonce(t, l, owner, 0)
	})

	t.Run("concurrent consumers have exactly one winner", func(t *testing.T) {
		l := newLedger(t)
		defer func() { _ = l.Close() }()
		owner := randomOwner(t)

		const workers = 16
		var wg sync.WaitGroup
		var wins, mismatches atomic.Int32
		start := make(chan struct{})

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := l.ConsumeNonce(owner, big.NewInt(0), NewAuthorization(owner, 0))
				if err == nil {
					wins.Add(1)
					return
				}
				if assert.ErrorIs(t, err, types.ErrNonceMismatch) {
					mismatches.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(workers-1), mismatches.Load())
		requireNonce(t, l, owner, 1)

		auths, err := l.ListAuthorizations(owner)
		require.NoError(t, err)
		assert.Len(t, auths, 1)
	})

	t.Run("health check", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.HealthCheck())
		require.NoError(t, l.Close())
		require.Error(t, l.HealthCheck())
	})

	t.Run("closed ledger rejects operations", func(t *testing.T) {
		l := newLedger(t)
		owner := randomOwner(t)
		require.NoError(t, l.Close())
		require.NoError(t, l.Close(), "close is idempotent")

		_, err := l.CurrentNonce(owner)
		require.ErrorIs(t, err, ledger.ErrLedgerClosed)

		err = l.ConsumeNonce(owner, big.NewInt(0), nil)
		require.ErrorIs(t, err, ledger.ErrLedgerClosed)

		_, err = l.ListAuthorizations(owner)
		require.ErrorIs(t, err, ledger.ErrLedgerClosed)
	})
}
