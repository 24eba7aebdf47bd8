// Package dto defines request and response bodies for the HTTP API.
package dto

import (
	"time"

	"github.com/expensync/expensync/internal/model"
)

// UserSummary is the populated form of a user reference.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// ToUserSummary returns nil for a missing user.
func ToUserSummary(u *model.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID.Hex(), Name: u.Name, Photo: u.Photo}
}

// UserResponse is the profile of the calling user.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Photo     string    `json:"photo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToUserResponse converts a user to its response form.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID.Hex(),
		Name:      u.Name,
		Phone:     u.Phone,
		Photo:     u.Photo,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UpdateProfileRequest is the body for PUT /api/users/me.
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Photo *string `json:"photo"`
}

// ToUpdate converts the request to a model update.
func (r UpdateProfileRequest) ToUpdate() model.UserProfileUpdate {
	return model.UserProfileUpdate{Name: r.Name, Phone: r.Phone, Photo: r.Photo}
}
