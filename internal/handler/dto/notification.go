package dto

import (
	"time"

	"github.com/expensync/expensync/internal/model"
)

// NotificationResponse is one feed entry.
type NotificationResponse struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	Action             string    `json:"action"`
	ListID             string    `json:"listId"`
	ListName           string    `json:"listName"`
	CreatorName        string    `json:"creatorName"`
	AvatarSrc          string    `json:"avatarSrc"`
	ExpenseDescription string    `json:"expenseDescription,omitempty"`
	Price              *float64  `json:"price,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// ToNotificationResponses converts a feed, never returning nil.
func ToNotificationResponses(notifications []*model.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, NotificationResponse{
			ID:                 n.ID.Hex(),
			Type:               string(n.Kind),
			Action:             string(n.Action),
			ListID:             n.ListID.Hex(),
			ListName:           n.ListName,
			CreatorName:        n.ActorName,
			AvatarSrc:          n.AvatarURL,
			ExpenseDescription: n.ExpenseDescription,
			Price:              n.Price,
			Timestamp:          n.Timestamp,
		})
	}
	return out
}
