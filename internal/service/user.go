package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/repository"
)

const defaultUserName = "New user"

// UserService provisions users from verified identities and manages profiles.
type UserService struct {
	users  UserStore
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger.With("component", "user_service")}
}

// ExternalIdentity is what the identity provider tells us about a caller.
type ExternalIdentity struct {
	Subject string
	Name    string
	Email   string
	Picture string
}

// EnsureUser returns the user for identity, creating it on first sight.
func (s *UserService) EnsureUser(ctx context.Context, identity ExternalIdentity) (*model.User, error) {
	if identity.Subject == "" {
		return nil, invalid("sub", "is required")
	}

	user, err := s.users.GetUserByExternalID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now().UTC()
	user = &model.User{
		ID:             primitive.NewObjectID(),
		ExternalAuthID: identity.Subject,
		Name:           displayName(identity),
		Photo:          identity.Picture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Concurrent first request from the same identity won the insert.
			return s.users.GetUserByExternalID(ctx, identity.Subject)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user provisioned", "user_id", user.ID.Hex())
	return user, nil
}

// GetProfile returns a user by id.
func (s *UserService) GetProfile(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return lookupUser(ctx, s.users, id)
}

// UpdateProfile applies the supplied profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd model.UserProfileUpdate) (*model.User, error) {
	if upd.IsEmpty() {
		return nil, invalid("", "at least one field must be provided")
	}
	if upd.Name != nil {
		name, err := normalizeName("name", *upd.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if err := validatePhone(phone); err != nil {
			return nil, err
		}
		upd.Phone = &phone
	}
	if upd.Photo != nil {
		if err := validatePhoto(*upd.Photo); err != nil {
			return nil, err
		}
	}

	user, err := s.users.UpdateUserProfile(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

func displayName(identity ExternalIdentity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(identity.Email, "@"); ok && local != "" {
		return local
	}
	return defaultUserName
}
