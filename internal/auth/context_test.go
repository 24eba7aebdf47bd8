package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, IdentityFromContext(ctx))
	assert.Equal(t, primitive.NilObjectID, UserIDFromContext(ctx))
	assert.Panics(t, func() { MustIdentityFromContext(ctx) })

	id := &Identity{UserID: primitive.NewObjectID(), Subject: "auth0|alice", Name: "Alice"}
	ctx = ContextWithIdentity(ctx, id)

	assert.Same(t, id, IdentityFromContext(ctx))
	assert.Equal(t, id.UserID, UserIDFromContext(ctx))
	assert.NotPanics(t, func() { MustIdentityFromContext(ctx) })
}
