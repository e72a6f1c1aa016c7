package principal

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "principal:version"

// Cache stores resolved principal snapshots in Redis. A global version is part
// of every key, so editing a role's permission set invalidates every snapshot
// with one INCR instead of scanning per-user keys. A nil cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{"principal", strconv.FormatInt(userID, 10), strconv.FormatInt(ver, 10)}, ":"), nil
}

// Get returns the cached snapshot for the user, or nil on miss.
func (c *Cache) Get(ctx context.Context, userID int64) (*Principal, error) {
	if !c.enabled() {
		return nil, nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Put stores the snapshot under the current version.
func (c *Cache) Put(ctx context.Context, p *Principal) error {
	if !c.enabled() || p == nil {
		return nil
	}
	key, err := c.key(ctx, p.UserID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Forget drops one user's snapshot, used after a role assignment.
func (c *Cache) Forget(ctx context.Context, userID int64) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// Bump invalidates every cached snapshot, used after role or permission-set
// mutations that affect an unknown set of users.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
