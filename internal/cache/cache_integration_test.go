package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/cache"
	"github.com/expensync/expensync/internal/testutil"
)

func TestIdentityCache_RoundTrip(t *testing.T) {
	c := cache.NewWithClient(testutil.NewRedisClient(t))
	ctx := context.Background()

	_, ok, err := c.GetUserID(ctx, "auth0|alice")
	require.NoError(t, err)
	assert.False(t, ok)

	id := primitive.NewObjectID()
	require.NoError(t, c.SetUserID(ctx, "auth0|alice", id))

	got, ok, err := c.GetUserID(ctx, "auth0|alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got)

	replaced := primitive.NewObjectID()
	require.NoError(t, c.SetUserID(ctx, "auth0|alice", replaced))
	got, _, err = c.GetUserID(ctx, "auth0|alice")
	require.NoError(t, err)
	assert.Equal(t, replaced, got)
}

func TestUserRateLimit_ExhaustsBurst(t *testing.T) {
	c := cache.NewWithClient(testutil.NewRedisClient(t))
	ctx := context.Background()
	user := testutil.UniqueID("user")

	for i := 0; i < 3; i++ {
		res, err := c.CheckUserRateLimit(ctx, user, 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
	}

	res, err := c.CheckUserRateLimit(ctx, user, 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}
