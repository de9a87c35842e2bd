package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"faucet-gateway/faucet/domain"
)

// slideWindowScript é a janela deslizante atômica sobre um sorted set.
// Score = instante em ms. Eventos com score < ARGV[5] (now-window) saem da janela.
// Requisições negadas não são registradas.
var slideWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. ARGV[5])
local count = redis.call("ZCARD", key)
if count < limit then
  redis.call("ZADD", key, ARGV[1], ARGV[4])
  redis.call("PEXPIRE", key, ARGV[2])
  return {1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {0, tonumber(oldest[2]) + window - now}
`)

var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var expireIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisQuotaStore implementa domain.QuotaStore sobre Redis.
type RedisQuotaStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisQuotaOption func(*RedisQuotaStore)

// WithQuotaPrefix isola as chaves (ex: vários faucets no mesmo Redis).
func WithQuotaPrefix(prefix string) RedisQuotaOption {
	return func(s *RedisQuotaStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisQuotaStore(rdb redis.UniversalClient, opts ...RedisQuotaOption) *RedisQuotaStore {
	s := &RedisQuotaStore{rdb: rdb}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.QuotaStore = (*RedisQuotaStore)(nil)

func (s *RedisQuotaStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisQuotaStore) SlideWindow(ctx context.Context, key string, rule domain.Rule, now time.Time) (domain.WindowResult, error) {
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
	res, err := slideWindowScript.Run(ctx, s.rdb, []string{s.key(key)},
		now.UnixMilli(), rule.Window.Milliseconds(), rule.Limit, member,
		now.Add(-rule.Window).UnixMilli()).Int64Slice()
	if err != nil {
		return domain.WindowResult{}, err
	}
	if len(res) != 2 {
		return domain.WindowResult{}, errors.New("sliding window: unexpected script response")
	}
	return domain.WindowResult{
		Allowed: res[0] == 1,
		ResetIn: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

func (s *RedisQuotaStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	// -2 (não existe) e -1 (sem expiração) viram 0.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisQuotaStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisQuotaStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(key), value, ttl).Result()
}

func (s *RedisQuotaStore) DeleteIfEquals(ctx context.Context, key, value string) error {
	return deleteIfEqualsScript.Run(ctx, s.rdb, []string{s.key(key)}, value).Err()
}

func (s *RedisQuotaStore) ExpireIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := expireIfEqualsScript.Run(ctx, s.rdb, []string{s.key(key)}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisQuotaStore) PushCapped(ctx context.Context, key, value string, max int) error {
	k := s.key(key)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, k, value)
	if max > 0 {
		pipe.LTrim(ctx, k, 0, int64(max-1))
	}
	_, err := pipe.Exec(ctx)
	return err
}
