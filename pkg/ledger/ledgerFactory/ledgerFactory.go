// Package ledgerFactory builds the configured INonceLedger backend
package ledgerFactory

import (
	"fmt"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/badger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/memory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/redis"
	"go.uber.org/zap"
)

func NewLedger(cfg *config.LedgerConfig, logger *zap.Logger) (ledger.INonceLedger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	switch cfg.Type {
	case config.LedgerType_Memory:
		return memory.NewMemoryLedger(logger), nil
	case config.LedgerType_Badger:
		return badger.NewBadgerLedger(cfg.Path, logger)
	case config.LedgerType_Redis:
		return redis.NewRedisLedger(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	}
	return nil, fmt.Errorf("unsupported ledger type %q", cfg.Type)
}
