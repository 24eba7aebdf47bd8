package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// identityCachePrefix is the Redis key prefix for subject to user id entries.
	identityCachePrefix = "identity:"
	// IdentityCacheTTL is the time-to-live for cached identities.
	IdentityCacheTTL = 5 * time.Minute
)

// GetUserID returns the cached user id for an identity provider subject.
// A miss, or a corrupted entry, returns ok=false with no error.
func (c *Cache) GetUserID(ctx context.Context, subject string) (primitive.ObjectID, bool, error) {
	raw, err := c.client.Get(ctx, identityCachePrefix+hashKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return primitive.NilObjectID, false, nil
		}
		return primitive.NilObjectID, false, fmt.Errorf("get identity: %w", err)
	}

	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false, nil //nolint:nilerr
	}
	return id, true, nil
}

// SetUserID caches the user id for subject.
func (c *Cache) SetUserID(ctx context.Context, subject string, userID primitive.ObjectID) error {
	return c.client.Set(ctx, identityCachePrefix+hashKey(subject), userID.Hex(), IdentityCacheTTL).Err()
}
