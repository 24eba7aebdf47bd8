// Package auth verifies identity tokens and carries the resolved caller
// through request contexts.
package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the context key for storing Identity.
	identityContextKey contextKey = "identity"
)

// Identity is the authenticated caller resolved to an internal user.
type Identity struct {
	UserID  primitive.ObjectID
	Subject string
	Name    string
	Picture string
}

// ContextWithIdentity adds Identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves Identity from the context.
// Returns nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustIdentityFromContext retrieves Identity from the context.
// Panics if not present (use only when auth middleware has run).
func MustIdentityFromContext(ctx context.Context) *Identity {
	id := IdentityFromContext(ctx)
	if id == nil {
		panic("identity not found - ensure auth middleware is applied")
	}
	return id
}

// UserIDFromContext is a convenience function to get the user id from context.
// Returns the zero ObjectID if not authenticated.
func UserIDFromContext(ctx context.Context) primitive.ObjectID {
	id := IdentityFromContext(ctx)
	if id == nil {
		return primitive.NilObjectID
	}
	return id.UserID
}
