package badger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key layout:
//
//	nonce:<owner>          -> 32 byte big-endian next nonce
//	auth:<owner>:<nonce>   -> JSON Authorization, nonce as 64 hex chars so
//	                          prefix iteration yields nonce order
const (
	keyPrefixNonce       = "nonce:"
	keyPrefixAuth        = "auth:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	gcInterval = 5 * time.Minute
)

// BadgerLedger is a durable, disk-backed INonceLedger. Each ConsumeNonce is a
// single Badger transaction covering the nonce check, the advance and the
// authorization write.
type BadgerLedger struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup

	// mu guards closed; consumeMu serializes read-compare-write cycles so
	// concurrent consumers see each other's commits instead of conflicting
	mu        sync.RWMutex
	consumeMu sync.Mutex
	closed    bool
}

// NewBadgerLedger opens (or creates) the ledger at dataPath with SyncWrites
// enabled, so a consumed nonce survives a crash right after ConsumeNonce
// returns.
func NewBadgerLedger(dataPath string, logger *zap.Logger) (*BadgerLedger, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bl := &BadgerLedger{
		db:     db,
		logger: logger,
	}

	if err := bl.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bl.gcCancel = cancel
	bl.gcWg.Add(1)
	go bl.runGC(ctx)

	logger.Sugar().Infow("Badger nonce ledger initialized", "path", absPath)

	return bl, nil
}

func (b *BadgerLedger) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerLedger) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func nonceKey(owner common.Address) []byte {
	return []byte(keyPrefixNonce + strings.ToLower(owner.Hex()))
}

func authPrefix(owner common.Address) []byte {
	return []byte(keyPrefixAuth + strings.ToLower(owner.Hex()) + ":")
}

func authKey(owner common.Address, nonce *big.Int) []byte {
	return []byte(fmt.Sprintf("%s%064x", authPrefix(owner), nonce))
}

func readNonce(txn *badgerdb.Txn, owner common.Address) (*big.Int, error) {
	item, err := txn.Get(nonceKey(owner))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}

	var nonce *big.Int
	err = item.Value(func(val []byte) error {
		var decodeErr error
		nonce, decodeErr = ledger.DecodeNonce(val)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}
	return nonce, nil
}

func (b *BadgerLedger) CurrentNonce(owner common.Address) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ledger.ErrLedgerClosed
	}

	var nonce *big.Int
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		nonce, err = readNonce(txn, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	return nonce, nil
}

func (b *BadgerLedger) ConsumeNonce(owner common.Address, nonce *big.Int, auth *types.Authorization) error {
	if err := ledger.ValidateConsume(owner, nonce, auth); err != nil {
		return err
	}

	var authData []byte
	if auth != nil {
		var err error
		if authData, err = ledger.MarshalAuthorization(auth); err != nil {
			return err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ledger.ErrLedgerClosed
	}

	b.consumeMu.Lock()
	defer b.consumeMu.Unlock()

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		current, err := readNonce(txn, owner)
		if err != nil {
			return err
		}
		if current.Cmp(nonce) != 0 {
			return ledger.NonceMismatch(owner, current, nonce)
		}

		next := new(big.Int).Add(current, big.NewInt(1))
		if err := txn.Set(nonceKey(owner), ledger.EncodeNonce(next)); err != nil {
			return err
		}
		if authData != nil {
			return txn.Set(authKey(owner, nonce), authData)
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrNonceMismatch):
		return err
	case errors.Is(err, badgerdb.ErrConflict):
		// Another writer committed first; nothing of ours was written
		return fmt.Errorf("%w: concurrent update for %s", types.ErrNonceMismatch, owner.Hex())
	default:
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
}

func (b *BadgerLedger) ListAuthorizations(owner common.Address) ([]*types.Authorization, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ledger.ErrLedgerClosed
	}

	auths := make([]*types.Authorization, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = authPrefix(owner)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			auth, err := ledger.UnmarshalAuthorization(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal Authorization, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			auths = append(auths, auth)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}

	return auths, nil
}

func (b *BadgerLedger) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger nonce ledger closed")
	return nil
}

func (b *BadgerLedger) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ledger.ErrLedgerClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

var _ ledger.INonceLedger = (*BadgerLedger)(nil)
