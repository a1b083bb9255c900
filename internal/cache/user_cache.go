package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	dom "userauth/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyUser = "user:"

// cachedUser is what gets written to Redis. It has no password field.
type cachedUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCache caches profile lookups by user id in Redis.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

// GetUser returns the cached user, or ok=false on a miss.
// The returned user never carries a password hash.
func (c *UserCache) GetUser(ctx context.Context, id int64) (dom.User, bool, error) {
	b, err := c.rdb.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return dom.User{}, false, nil
	}
	if err != nil {
		return dom.User{}, false, err
	}
	var cu cachedUser
	if err := json.Unmarshal(b, &cu); err != nil {
		return dom.User{}, false, err
	}
	return dom.User{
		ID:        cu.ID,
		Name:      cu.Name,
		Email:     cu.Email,
		CreatedAt: cu.CreatedAt,
		UpdatedAt: cu.UpdatedAt,
	}, true, nil
}

// SetUser stores u without its password hash.
func (c *UserCache) SetUser(ctx context.Context, u dom.User) error {
	b, err := json.Marshal(cachedUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, userKey(u.ID), b, c.ttl).Err()
}

// DeleteUser evicts the cached entry for id. A missing entry is not an error.
func (c *UserCache) DeleteUser(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, userKey(id)).Err()
}

func userKey(id int64) string {
	return keyUser + strconv.FormatInt(id, 10)
}
