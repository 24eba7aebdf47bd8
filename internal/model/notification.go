package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind names the entity a notification is about.
type NotificationKind string

const (
	KindExpense NotificationKind = "expense"
	KindList    NotificationKind = "list"
)

// IsValid reports whether k is a known kind.
func (k NotificationKind) IsValid() bool {
	return k == KindExpense || k == KindList
}

// NotificationAction names the mutation that produced a notification.
type NotificationAction string

const (
	ActionAdd    NotificationAction = "add"
	ActionUpdate NotificationAction = "update"
	ActionRemove NotificationAction = "remove"
)

// IsValid reports whether a is a known action.
func (a NotificationAction) IsValid() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionRemove:
		return true
	}
	return false
}

// Notification is an append-only record of a list or expense mutation.
// ListName is denormalized at write time so the feed survives list deletion.
type Notification struct {
	ID                 primitive.ObjectID `bson:"_id" json:"id"`
	RecipientUserID    primitive.ObjectID `bson:"recipient_user_id" json:"recipientUserId"`
	Kind               NotificationKind   `bson:"kind" json:"type"`
	Action             NotificationAction `bson:"action" json:"action"`
	ListID             primitive.ObjectID `bson:"list_id" json:"listId"`
	ListName           string             `bson:"list_name" json:"listName"`
	ActorName          string             `bson:"actor_name" json:"creatorName"`
	AvatarURL          string             `bson:"avatar_url" json:"avatarSrc"`
	ExpenseDescription string             `bson:"expense_description,omitempty" json:"expenseDescription,omitempty"`
	Price              *float64           `bson:"price,omitempty" json:"price,omitempty"`
	Timestamp          time.Time          `bson:"timestamp" json:"timestamp"`
}
