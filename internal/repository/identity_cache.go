package repository

import (
	"context"
	"encoding/json"
	"time"

	"vidhub/internal/domain/models"
	redisapp "vidhub/internal/storage/redis"

	"github.com/google/uuid"
)

// IdentityCache fronts the per-request user lookup done by the auth
// middleware with a short-TTL redis cache. Cache problems degrade to a
// direct database read, never to a request failure.
type IdentityCache struct {
	client *redisapp.Client
	users  UserRepository
	ttl    time.Duration
}

func NewIdentityCache(client *redisapp.Client, users UserRepository, ttl time.Duration) *IdentityCache {
	return &IdentityCache{
		client: client,
		users:  users,
		ttl:    ttl,
	}
}

func (c *IdentityCache) Identity(ctx context.Context, userID uuid.UUID) (models.Identity, error) {
	key := identityKey(userID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var identity models.Identity
		if json.Unmarshal(raw, &identity) == nil {
			return identity, nil
		}
	}

	user, err := c.users.UserByID(ctx, userID)
	if err != nil {
		return models.Identity{}, err
	}

	identity := user.Identity()

	if raw, err := json.Marshal(identity); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}

	return identity, nil
}

// Invalidate drops the cached snapshot after a profile update so the next
// request observes the new fields.
func (c *IdentityCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	_ = c.client.Del(ctx, identityKey(userID)).Err()
}

func identityKey(userID uuid.UUID) string {
	return "identity:" + userID.String()
}
