// Package redis implements the storage backend on Redis.
//
// Key layout (prefix defaults to "idbuilder"; the user key is wrapped in
// a hash-tag so related keys land on the same cluster slot):
//
//	idbuilder:seq:{<key>}      counter (INCRBY)
//	idbuilder:witness:{<key>}  reset witness
//	idbuilder:cfg:{<key>}      config JSON
//	idbuilder:token:{<key>}    token hash (hex)
//	idbuilder:lease:{<key>}    worker-id lease hash
//	idbuilder:lock:<name>      distributed lock (SET NX PX)
//	idbuilder:keys             sorted set of config keys (listing)
//	idbuilder:schema:version   schema version
//
// Counter advancement is a single server-side INCRBY, the reset CAS and
// worker-id leasing are Lua scripts, and the distributed lock is the
// standard SET NX PX pattern with owner-checked release.
package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// reserveScript materializes a missing sequence at the initial value,
// then advances it by the full span. Returns the new last value.
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[2])
end
return redis.call('INCRBY', KEYS[1], ARGV[1])
`)

// resetScript is the witness CAS: a no-op when the stored witness already
// matches, otherwise it rewrites counter and witness atomically.
var resetScript = redis.NewScript(`
if redis.call('GET', KEYS[2]) == ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

// lockScript renews the lock when already owned, otherwise attempts
// SET NX PX.
var lockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return 1
end
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
  return 1
end
return 0
`)

// unlockScript deletes the lock only if still owned.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// leaseScript scans the lease hash, renews a lease owned by the caller,
// drops expired entries, and otherwise grants the least-numbered free id.
// Hash fields are worker ids, values are "<fingerprint>|<expires_ms>".
// Returns the granted id or -1 when the pool is exhausted.
var leaseScript = redis.NewScript(`
local pool = tonumber(ARGV[1])
local fp = ARGV[2]
local now = tonumber(ARGV[3])
local exp = now + tonumber(ARGV[4])
local all = redis.call('HGETALL', KEYS[1])
local taken = {}
for i = 1, #all, 2 do
  local id = tonumber(all[i])
  local sep = string.find(all[i+1], '|', 1, true)
  local owner = string.sub(all[i+1], 1, sep - 1)
  local lapse = tonumber(string.sub(all[i+1], sep + 1))
  if lapse > now then
    if owner == fp then
      redis.call('HSET', KEYS[1], all[i], fp .. '|' .. exp)
      return id
    end
    taken[id] = true
  else
    redis.call('HDEL', KEYS[1], all[i])
  end
end
for id = 0, pool - 1 do
  if not taken[id] then
    redis.call('HSET', KEYS[1], id, fp .. '|' .. exp)
    return id
  end
end
return -1
`)

// Backend is the Redis storage backend.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Redis backend from cfg. The connection is verified by
// HealthCheck, not here.
func New(cfg storage.RedisConfig) *Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "idbuilder"
	}
	return &Backend{client: client, prefix: prefix}
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = "idbuilder"
	}
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) Close() error { return b.client.Close() }

// tagged builds a key carrying a cluster hash-tag for the user key.
func (b *Backend) tagged(kind, key string) string {
	return fmt.Sprintf("%s:%s:{%s}", b.prefix, kind, key)
}

func (b *Backend) plain(parts ...string) string {
	return b.prefix + ":" + strings.Join(parts, ":")
}

// isOverflow recognizes the INCRBY overflow reply.
func isOverflow(err error) bool {
	return err != nil && strings.Contains(err.Error(), "increment or decrement would overflow")
}

// ============================================================================
// Sequences
// ============================================================================

func (b *Backend) ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error) {
	if count < 1 || delta < 1 {
		return domain.Range{}, fmt.Errorf("redis: count and delta must be >= 1")
	}
	span := count * delta
	if span/count != delta {
		return domain.Range{}, storage.ErrExhausted
	}

	last, err := reserveScript.Run(ctx, b.client,
		[]string{b.tagged("seq", key)}, span, initial).Int64()
	if err != nil {
		if isOverflow(err) {
			return domain.Range{}, storage.ErrExhausted
		}
		return domain.Range{}, fmt.Errorf("redis reserve: %w", err)
	}
	return domain.Range{First: last - (count-1)*delta, Last: last, Delta: delta}, nil
}

func (b *Backend) GetSequence(ctx context.Context, key string) (domain.SequenceState, error) {
	pipe := b.client.Pipeline()
	cur := pipe.Get(ctx, b.tagged("seq", key))
	wit := pipe.Get(ctx, b.tagged("witness", key))
	_, _ = pipe.Exec(ctx)

	current, err := cur.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SequenceState{}, storage.ErrNotFound
		}
		return domain.SequenceState{}, fmt.Errorf("redis get sequence: %w", err)
	}

	witness, err := wit.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.SequenceState{}, fmt.Errorf("redis get witness: %w", err)
	}
	return domain.SequenceState{Key: key, Current: current, Witness: witness}, nil
}

func (b *Backend) ResetSequence(ctx context.Context, key string, newValue int64, witness string) (bool, error) {
	n, err := resetScript.Run(ctx, b.client,
		[]string{b.tagged("seq", key), b.tagged("witness", key)},
		newValue, witness).Int()
	if err != nil {
		return false, fmt.Errorf("redis reset: %w", err)
	}
	return n == 1, nil
}

// ============================================================================
// Configs
// ============================================================================

func (b *Backend) GetConfig(ctx context.Context, key string) (*domain.KeyConfig, error) {
	data, err := b.client.Get(ctx, b.tagged("cfg", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get config: %w", err)
	}
	var cfg domain.KeyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("corrupt config for %q: %w", key, err)
	}
	return &cfg, nil
}

func (b *Backend) PutConfig(ctx context.Context, cfg *domain.KeyConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.tagged("cfg", cfg.Key), data, 0)
	pipe.ZAdd(ctx, b.plain("keys"), redis.Z{Score: 0, Member: cfg.Key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put config: %w", err)
	}
	return nil
}

func (b *Backend) ListConfigs(ctx context.Context, from string, size int) ([]domain.ConfigSummary, string, bool, error) {
	min := "-"
	if from != "" {
		min = "(" + from
	}
	keys, err := b.client.ZRangeByLex(ctx, b.plain("keys"), &redis.ZRangeBy{
		Min: min, Max: "+", Offset: 0, Count: int64(size + 1),
	}).Result()
	if err != nil {
		return nil, "", false, fmt.Errorf("redis list configs: %w", err)
	}

	hasMore := len(keys) > size
	if hasMore {
		keys = keys[:size]
	}

	items := make([]domain.ConfigSummary, 0, len(keys))
	for _, key := range keys {
		cfg, err := b.GetConfig(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // index entry without blob; skip
			}
			return nil, "", false, err
		}
		items = append(items, domain.ConfigSummary{Key: cfg.Key, Type: cfg.Type})
	}

	cursor := ""
	if hasMore && len(items) > 0 {
		cursor = items[len(items)-1].Key
	}
	return items, cursor, hasMore, nil
}

// ============================================================================
// Tokens
// ============================================================================

func (b *Backend) PutToken(ctx context.Context, key string, hash []byte) error {
	if err := b.client.Set(ctx, b.tagged("token", key), hex.EncodeToString(hash), 0).Err(); err != nil {
		return fmt.Errorf("redis put token: %w", err)
	}
	return nil
}

func (b *Backend) GetToken(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.tagged("token", key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get token: %w", err)
	}
	hash, err := hex.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("corrupt token for %q: %w", key, err)
	}
	return hash, nil
}

// ============================================================================
// Worker leases
// ============================================================================

func (b *Backend) AcquireWorkerID(ctx context.Context, key string, poolSize int, fingerprint string, ttl time.Duration) (domain.WorkerLease, error) {
	now := time.Now()
	id, err := leaseScript.Run(ctx, b.client,
		[]string{b.tagged("lease", key)},
		poolSize, fingerprint, now.UnixMilli(), ttl.Milliseconds()).Int()
	if err != nil {
		return domain.WorkerLease{}, fmt.Errorf("redis lease: %w", err)
	}
	if id < 0 {
		return domain.WorkerLease{}, storage.ErrPoolExhausted
	}
	return domain.WorkerLease{
		Key:         key,
		WorkerID:    id,
		Fingerprint: fingerprint,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// ============================================================================
// Distributed lock
// ============================================================================

func (b *Backend) TryAcquireLock(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error) {
	n, err := lockScript.Run(ctx, b.client,
		[]string{b.plain("lock", lockKey)}, ownerID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return n == 1, nil
}

func (b *Backend) ReleaseLock(ctx context.Context, lockKey, ownerID string) error {
	if err := unlockScript.Run(ctx, b.client,
		[]string{b.plain("lock", lockKey)}, ownerID).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}

// ============================================================================
// Schema and health
// ============================================================================

func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	v, err := b.client.Get(ctx, b.plain("schema", "version")).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis schema version: %w", err)
	}
	return v, nil
}

func (b *Backend) SetSchemaVersion(ctx context.Context, version int) error {
	return b.client.Set(ctx, b.plain("schema", "version"), version, 0).Err()
}

// InitSchema is structural setup; Redis needs none beyond reachability.
func (b *Backend) InitSchema(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
