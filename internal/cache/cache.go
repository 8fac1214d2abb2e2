package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/todaycapital/statementlens/pkg/models"
)

// ErrLockHeld is returned by TryLock when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, bool, error)
	SetReport(ctx context.Context, report *models.Report, ttl time.Duration) error
	DeleteReport(ctx context.Context, id uuid.UUID) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Locker grants short-lived exclusive locks by key.
type Locker interface {
	// TryLock acquires key without waiting, or returns ErrLockHeld. The lock
	// expires after ttl even if release is never called.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisCache implements Cache and Locker using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// cachedReport carries the owner, which Report hides from JSON.
type cachedReport struct {
	OwnerID uuid.UUID      `json:"ownerId"`
	Report  *models.Report `json:"report"`
}

func (c *RedisCache) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, bool, error) {
	raw, found, err := c.Get(ctx, ReportKey(id))
	if err != nil || !found {
		return nil, false, err
	}
	var cr cachedReport
	if err := json.Unmarshal(raw, &cr); err != nil || cr.Report == nil {
		// A corrupt entry is treated as a miss and will be overwritten.
		return nil, false, nil
	}
	cr.Report.OwnerID = cr.OwnerID
	return cr.Report, true, nil
}

func (c *RedisCache) SetReport(ctx context.Context, report *models.Report, ttl time.Duration) error {
	raw, err := json.Marshal(cachedReport{OwnerID: report.OwnerID, Report: report})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return c.Set(ctx, ReportKey(report.ID), raw, ttl)
}

func (c *RedisCache) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return c.Delete(ctx, ReportKey(id))
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// releaseScript deletes the lock only if it still holds our token, so an
// expired holder cannot remove a lock acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var (
	_ Cache  = (*RedisCache)(nil)
	_ Locker = (*RedisCache)(nil)
)
