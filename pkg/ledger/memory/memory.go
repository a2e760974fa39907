package memory

import (
	"math/big"
	"sync"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MemoryLedger is an in-memory INonceLedger. Nonces are lost on restart, so
// a restarted process accepts every previously consumed permit again; use it
// for tests and offline tooling only.
type MemoryLedger struct {
	mu sync.RWMutex

	// owner -> next nonce
	nonces map[common.Address]*big.Int

	// owner -> authorizations in nonce order
	authorizations map[common.Address][]*types.Authorization

	closed bool
}

func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	logger.Sugar().Warnw("Using in-memory nonce ledger - consumed nonces are lost on restart",
		"hint", "set PERMIT_LEDGER_TYPE=badger or redis for production")

	return &MemoryLedger{
		nonces:         make(map[common.Address]*big.Int),
		authorizations: make(map[common.Address][]*types.Authorization),
	}
}

func (m *MemoryLedger) CurrentNonce(owner common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ledger.ErrLedgerClosed
	}

	return m.currentLocked(owner), nil
}

func (m *MemoryLedger) currentLocked(owner common.Address) *big.Int {
	if n, ok := m.nonces[owner]; ok {
		return new(big.Int).Set(n)
	}
	return new(big.Int)
}

func (m *MemoryLedger) ConsumeNonce(owner common.Address, nonce *big.Int, auth *types.Authorization) error {
	if err := ledger.ValidateConsume(owner, nonce, auth); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ledger.ErrLedgerClosed
	}

	current := m.currentLocked(owner)
	if current.Cmp(nonce) != 0 {
		return ledger.NonceMismatch(owner, current, nonce)
	}

	m.nonces[owner] = current.Add(current, big.NewInt(1))
	if auth != nil {
		m.authorizations[owner] = append(m.authorizations[owner], auth.Copy())
	}
	return nil
}

func (m *MemoryLedger) ListAuthorizations(owner common.Address) ([]*types.Authorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ledger.ErrLedgerClosed
	}

	stored := m.authorizations[owner]
	out := make([]*types.Authorization, 0, len(stored))
	for _, auth := range stored {
		out = append(out, auth.Copy())
	}
	return out, nil
}

func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nonces = nil
	m.authorizations = nil
	return nil
}

func (m *MemoryLedger) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ledger.ErrLedgerClosed
	}
	return nil
}

var _ ledger.INonceLedger = (*MemoryLedger)(nil)
