package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authinfo/internal/storage"
)

// tokenBucket refills rate tokens per window (ms) up to burst and takes n.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local n = tonumber(ARGV[5])

local per_token = window / rate
local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = burst
	ts = now
end

local elapsed = now - ts
if elapsed > 0 then
	tokens = math.min(burst, tokens + elapsed / per_token)
end

local allowed = 0
local retry = 0
if tokens >= n then
	tokens = tokens - n
	allowed = 1
else
	retry = math.ceil((n - tokens) * per_token)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, math.ceil((burst - tokens) * per_token) + window)

return {allowed, math.floor(tokens), retry}
`)

// Store implements storage.LimiterStore on Redis so limits are shared
// across replicas.
type Store struct {
	client redis.UniversalClient
	config *storage.LimiterStoreConfig
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client redis.UniversalClient, config *storage.LimiterStoreConfig) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}

	return &Store{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Allow checks if a request is allowed
func (s *Store) Allow(ctx context.Context, key string, limit storage.Limit) (storage.Result, error) {
	return s.AllowN(ctx, key, 1, limit)
}

// AllowN checks if n requests are allowed
func (s *Store) AllowN(ctx context.Context, key string, n int, limit storage.Limit) (storage.Result, error) {
	if limit.Rate <= 0 || limit.Window <= 0 {
		return storage.Result{}, errors.New("rate and window must be positive")
	}

	res, err := tokenBucket.Run(ctx, s.client, []string{s.key(key)},
		limit.Rate,
		limit.Burst,
		limit.Window.Milliseconds(),
		s.now().UnixMilli(),
		n,
	).Int64Slice()
	if err != nil {
		return storage.Result{}, fmt.Errorf("failed to execute rate limit script: %w", err)
	}
	if len(res) != 3 {
		return storage.Result{}, fmt.Errorf("invalid rate limit script result: %v", res)
	}

	return storage.Result{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Reset resets the bucket for a key
func (s *Store) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) key(key string) string {
	return s.config.KeyPrefix + key
}
