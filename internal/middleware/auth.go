package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/auth"
	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/service"
)

// AccessTokenQueryParam carries the token on websocket upgrades, where
// browsers cannot set an Authorization header.
const AccessTokenQueryParam = "access_token"

// UserResolver maps a verified external identity to an internal user.
type UserResolver interface {
	EnsureUser(ctx context.Context, identity service.ExternalIdentity) (*model.User, error)
}

// IdentityCache caches subject to user id lookups. Optional.
type IdentityCache interface {
	GetUserID(ctx context.Context, subject string) (primitive.ObjectID, bool, error)
	SetUserID(ctx context.Context, subject string, userID primitive.ObjectID) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger    *slog.Logger
	Validator auth.TokenValidator
	Users     UserResolver
	Cache     IdentityCache
	// AllowQueryToken accepts the token from the access_token query parameter.
	AllowQueryToken bool
}

// Auth returns a middleware that authenticates requests with a bearer
// identity token, resolves the caller to an internal user, and injects
// the identity into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logFailure := func(reason string, err error) {
				attrs := []any{
					slog.String("reason", reason),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(ctx)),
				}
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
				cfg.Logger.Warn("authentication failed", attrs...)
			}

			token := extractToken(r, cfg.AllowQueryToken)
			if token == "" {
				logFailure("missing_token", nil)
				writeAuthError(w, "Missing authorization token")
				return
			}

			claims, err := cfg.Validator.Validate(ctx, token)
			if err != nil {
				logFailure("invalid_token", err)
				writeAuthError(w, "Invalid authorization token")
				return
			}

			identity := &auth.Identity{
				Subject: claims.Subject,
				Name:    claims.Name,
				Picture: claims.Picture,
			}

			if cfg.Cache != nil {
				if id, ok, err := cfg.Cache.GetUserID(ctx, claims.Subject); err == nil && ok {
					identity.UserID = id
					cfg.Logger.Debug("authentication successful",
						slog.String("user_id", id.Hex()),
						slog.Bool("cache_hit", true),
						slog.String("request_id", GetRequestID(ctx)),
					)
					next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
					return
				}
			}

			user, err := cfg.Users.EnsureUser(ctx, service.ExternalIdentity{
				Subject: claims.Subject,
				Name:    claims.Name,
				Email:   claims.Email,
				Picture: claims.Picture,
			})
			if err != nil {
				if errors.Is(err, service.ErrValidation) {
					logFailure("unresolvable_identity", err)
					writeAuthError(w, "Invalid authorization token")
					return
				}
				cfg.Logger.Error("user resolution failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
				writeJSONMessage(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			identity.UserID = user.ID
			identity.Name = user.Name
			identity.Picture = user.Photo

			if cfg.Cache != nil {
				if err := cfg.Cache.SetUserID(ctx, claims.Subject, user.ID); err != nil {
					cfg.Logger.Warn("identity cache write failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(ctx)),
					)
				}
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", user.ID.Hex()),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(ctx)),
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
		})
	}
}

// extractToken reads "Authorization: Bearer <token>", falling back to the
// access_token query parameter when allowed.
func extractToken(r *http.Request, allowQuery bool) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if allowQuery {
		return r.URL.Query().Get(AccessTokenQueryParam)
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSONMessage(w, http.StatusUnauthorized, message)
}
