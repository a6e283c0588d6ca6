package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	consumeStatusNotFound int64 = 0
	consumeStatusConsumed int64 = 1
	consumeStatusOK       int64 = 2
)

const consumeScript = `
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  return 0
end
if redis.call("HGET", KEYS[1], "consumed") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "consumed", "1")
return 2
`

var consumeLua = redis.NewScript(consumeScript)

// putScript writes the record hash and extends the owner index so it
// outlives its newest record.
const putScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "owner", ARGV[1], "exp", ARGV[2], "consumed", ARGV[5])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
redis.call("SADD", KEYS[2], ARGV[4])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[3]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
return 1
`

var putLua = redis.NewScript(putScript)

const consumeAllScript = `
local refs = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, ref in ipairs(refs) do
  local key = ARGV[1] .. ref
  local consumed = redis.call("HGET", key, "consumed")
  if not consumed then
    redis.call("SREM", KEYS[1], ref)
  elseif consumed == "0" then
    redis.call("HSET", key, "consumed", "1")
    revoked = revoked + 1
  end
end
return revoked
`

var consumeAllLua = redis.NewScript(consumeAllScript)

// RedisStore is a [Store] backed by Redis. Each record is a hash whose TTL
// matches the token expiry; an owner set indexes records for revocation.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. Keys are namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "crt"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) recordPrefix() string {
	return s.prefix + ":r:"
}

func (s *RedisStore) key(ref string) string {
	return s.recordPrefix() + ref
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ":o:" + ownerID
}

// Put implements [Store].
func (s *RedisStore) Put(ctx context.Context, rec Record, now time.Time) error {
	ttl := rec.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return ErrExpired
	}

	created, err := putLua.Run(ctx, s.redis,
		[]string{s.key(rec.Ref), s.ownerKey(rec.OwnerID)},
		rec.OwnerID,
		strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		ttl.Milliseconds(),
		rec.Ref,
		boolFlag(rec.Consumed),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created == 0 {
		return ErrDuplicate
	}
	return nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, ref string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(ref)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	owner, ok := fields["owner"]
	if !ok {
		return Record{}, ErrNotFound
	}
	expMillis, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return Record{
		Ref:       ref,
		OwnerID:   owner,
		ExpiresAt: time.UnixMilli(expMillis),
		Consumed:  fields["consumed"] == "1",
	}, nil
}

// Consume implements [Store]. Expiry is enforced by key TTL.
func (s *RedisStore) Consume(ctx context.Context, ref string, _ time.Time) error {
	status, err := consumeLua.Run(ctx, s.redis, []string{s.key(ref)}).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case consumeStatusOK:
		return nil
	case consumeStatusConsumed:
		return ErrAlreadyConsumed
	default:
		return ErrNotFound
	}
}

// ConsumeAll implements [Store].
func (s *RedisStore) ConsumeAll(ctx context.Context, ownerID string, _ time.Time) (int, error) {
	n, err := consumeAllLua.Run(ctx, s.redis, []string{s.ownerKey(ownerID)}, s.recordPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
