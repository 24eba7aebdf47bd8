// Package model defines domain entities for the application.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a person known to the system, keyed by the identity provider subject.
type User struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	ExternalAuthID string             `bson:"external_auth_id" json:"-"`
	Name           string             `bson:"name" json:"name"`
	Phone          string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Photo          string             `bson:"photo,omitempty" json:"photo,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

// UserProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type UserProfileUpdate struct {
	Name  *string
	Phone *string
	Photo *string
}

// IsEmpty reports whether the update changes nothing.
func (u UserProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Phone == nil && u.Photo == nil
}
