package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a cached task may be served after a
// write that failed to invalidate it.
const DefaultCacheTTL = 5 * time.Minute

// TaskCache holds single tasks keyed by owner and id. Get reports a miss
// with ok == false and a nil error.
//
// Every Delete bumps the key's version. A reader takes the version before
// it loads from the database and passes it to Set, which drops the write
// if a Delete happened in between, so a slow read can't put back a task
// that was updated or deleted meanwhile.
type TaskCache interface {
	Get(ctx context.Context, owner uuid.UUID, id int) (t Task, ok bool, err error)
	Version(ctx context.Context, owner uuid.UUID, id int) (int64, error)
	Set(ctx context.Context, t Task, version int64) error
	Delete(ctx context.Context, owner uuid.UUID, id int) error
}

// CacheKey includes the owner so that a hit can only ever be served back
// to the task's owner.
func CacheKey(owner uuid.UUID, id int) string {
	return fmt.Sprintf("task:%s:%d", owner, id)
}

func versionKey(owner uuid.UUID, id int) string {
	return CacheKey(owner, id) + ":gen"
}

// versionTTL must outlive any read in flight between Version and Set.
const versionTTL = 24 * time.Hour

// setIfVersion writes KEYS[1] only while KEYS[2] still holds ARGV[1]. A
// missing version key counts as 0.
var setIfVersion = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and checks the server answers.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	log.Println("Redis connection successful.")

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, owner uuid.UUID, id int) (Task, bool, error) {
	val, err := c.rdb.Get(ctx, CacheKey(owner, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Task{}, false, nil
		}
		return Task{}, false, err
	}
	var t Task
	if err := json.Unmarshal(val, &t); err != nil {
		return Task{}, false, fmt.Errorf("decode cached task: %w", err)
	}
	// A payload under this key for another owner is never served.
	if t.OwnerID != owner || t.ID != id {
		return Task{}, false, nil
	}
	return t, true, nil
}

func (c *RedisCache) Version(ctx context.Context, owner uuid.UUID, id int) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(owner, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, t Task, version int64) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	keys := []string{CacheKey(t.OwnerID, t.ID), versionKey(t.OwnerID, t.ID)}
	return setIfVersion.Run(ctx, c.rdb, keys, strconv.FormatInt(version, 10), data, c.ttl.Milliseconds()).Err()
}

func (c *RedisCache) Delete(ctx context.Context, owner uuid.UUID, id int) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(owner, id))
		pipe.Expire(ctx, versionKey(owner, id), versionTTL)
		pipe.Del(ctx, CacheKey(owner, id))
		return nil
	})
	return err
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// NopCache is used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID, int) (Task, bool, error) { return Task{}, false, nil }
func (NopCache) Version(context.Context, uuid.UUID, int) (int64, error)  { return 0, nil }
func (NopCache) Set(context.Context, Task, int64) error                  { return nil }
func (NopCache) Delete(context.Context, uuid.UUID, int) error            { return nil }
