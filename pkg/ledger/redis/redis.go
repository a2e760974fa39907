package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key layout. The owner is wrapped in a hash tag so every key touched by
// one ConsumeNonce lands in the same cluster slot.
//
//	permit:nonce:{owner}          -> decimal next nonce
//	permit:auth:{owner}:<nonce>   -> JSON Authorization
//	permit:auths:{owner}          -> list of auth keys in nonce order
const (
	keyPrefixNonce       = "permit:nonce:"
	keyPrefixAuth        = "permit:auth:"
	keyPrefixAuthIndex   = "permit:auths:"
	keySchemaVersion     = "permit:metadata:schema_version"
	currentSchemaVersion = "v1"

	operationTimeout = 5 * time.Second
)

// consumeScript performs the compare-and-increment and the authorization
// write as one atomic server-side step.
//
// KEYS[1] nonce key, KEYS[2] auth key, KEYS[3] auth index key
// ARGV[1] expected nonce, ARGV[2] next nonce, ARGV[3] auth JSON (may be empty)
//
// Returns {1, next} on success or {0, current} on mismatch.
var consumeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return {0, current}
end
redis.call('SET', KEYS[1], ARGV[2])
if ARGV[3] ~= '' then
	redis.call('SET', KEYS[2], ARGV[3])
	redis.call('RPUSH', KEYS[3], KEYS[2])
end
return {1, ARGV[2]}
`)

// RedisLedger is an INonceLedger shared by every process pointed at the same
// Redis, so horizontally scaled verifiers agree on each owner's nonce.
type RedisLedger struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key for multi-tenant setups, e.g.
	// "token-a:" gives "token-a:permit:nonce:{0x..}"
	KeyPrefix string
}

func NewRedisLedger(cfg *RedisConfig, logger *zap.Logger) (*RedisLedger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rl := &RedisLedger{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rl.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Preload so the first ConsumeNonce does not pay for EVAL fallback
	if err := consumeScript.Load(ctx, client).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to load consume script: %w", err)
	}

	logger.Sugar().Infow("Redis nonce ledger initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"keyPrefix", cfg.KeyPrefix,
	)

	return rl, nil
}

func (r *RedisLedger) prefixKey(key string) string {
	return r.keyPrefix + key
}

func ownerTag(owner common.Address) string {
	return "{" + strings.ToLower(owner.Hex()) + "}"
}

func (r *RedisLedger) nonceKey(owner common.Address) string {
	return r.prefixKey(keyPrefixNonce + ownerTag(owner))
}

func (r *RedisLedger) authKey(owner common.Address, nonce *big.Int) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixAuth, ownerTag(owner), nonce))
}

func (r *RedisLedger) authIndexKey(owner common.Address) string {
	return r.prefixKey(keyPrefixAuthIndex + ownerTag(owner))
}

func (r *RedisLedger) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// SETNX so concurrent first starts agree
	if err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisLedger) CurrentNonce(owner common.Address) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ledger.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.nonceKey(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	return parseNonce(val)
}

func parseNonce(val string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(val, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("corrupt nonce value %q", val)
	}
	return n, nil
}

func (r *RedisLedger) ConsumeNonce(owner common.Address, nonce *big.Int, auth *types.Authorization) error {
	if err := ledger.ValidateConsume(owner, nonce, auth); err != nil {
		return err
	}

	var authData string
	if auth != nil {
		data, err := ledger.MarshalAuthorization(auth)
		if err != nil {
			return err
		}
		authData = string(data)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ledger.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	next := new(big.Int).Add(nonce, big.NewInt(1))
	res, err := consumeScript.Run(ctx, r.client,
		[]string{r.nonceKey(owner), r.authKey(owner, nonce), r.authIndexKey(owner)},
		nonce.String(), next.String(), authData,
	).Slice()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("unexpected consume script result: %v", res)
	}

	ok, _ := res[0].(int64)
	if ok == 1 {
		return nil
	}

	currentStr, _ := res[1].(string)
	current, err := parseNonce(currentStr)
	if err != nil {
		return err
	}
	return ledger.NonceMismatch(owner, current, nonce)
}

func (r *RedisLedger) ListAuthorizations(owner common.Address) ([]*types.Authorization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ledger.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	keys, err := r.client.LRange(ctx, r.authIndexKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list authorization keys: %w", err)
	}

	auths := make([]*types.Authorization, 0, len(keys))
	if len(keys) == 0 {
		return auths, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch authorizations: %w", err)
	}

	for i, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Missing or unexpected authorization value", "key", keys[i])
			continue
		}

		auth, err := ledger.UnmarshalAuthorization([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal Authorization, skipping",
				"key", keys[i], "error", err)
			continue
		}
		auths = append(auths, auth)
	}

	return auths, nil
}

func (r *RedisLedger) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis nonce ledger closed")
	return nil
}

func (r *RedisLedger) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ledger.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}

var _ ledger.INonceLedger = (*RedisLedger)(nil)
