// Package notify records list and expense mutations and broadcasts them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/broadcast"
	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/model"
)

// ErrPublish wraps a broadcast failure after the notification was persisted.
var ErrPublish = errors.New("notification publish failed")

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Publisher delivers real-time events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Event describes one mutation to notify about.
type Event struct {
	RecipientUserID    primitive.ObjectID
	Kind               model.NotificationKind
	Action             model.NotificationAction
	ListID             primitive.ObjectID
	ListName           string
	ActorName          string
	AvatarURL          string
	ExpenseDescription string
	Price              *float64
}

// Payload is the real-time message published on the notification topic.
type Payload struct {
	Type  model.NotificationKind `json:"type"`
	Props Props                  `json:"props"`
}

// Props carries the notification fields clients render.
type Props struct {
	ID                 string                   `json:"id"`
	ListID             string                   `json:"listId"`
	AvatarSrc          string                   `json:"avatarSrc"`
	ListName           string                   `json:"listName"`
	CreatorName        string                   `json:"creatorName"`
	Timestamp          time.Time                `json:"timestamp"`
	Action             model.NotificationAction `json:"action"`
	ExpenseDescription string                   `json:"expenseDescription,omitempty"`
	Price              *float64                 `json:"price,omitempty"`
}

// NewPayload builds the broadcast payload for a stored notification.
func NewPayload(n *model.Notification) Payload {
	return Payload{
		Type: n.Kind,
		Props: Props{
			ID:                 n.ID.Hex(),
			ListID:             n.ListID.Hex(),
			AvatarSrc:          n.AvatarURL,
			ListName:           n.ListName,
			CreatorName:        n.ActorName,
			Timestamp:          n.Timestamp,
			Action:             n.Action,
			ExpenseDescription: n.ExpenseDescription,
			Price:              n.Price,
		},
	}
}

// Emitter persists a notification, then publishes it.
type Emitter struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	recorder  metrics.Recorder
	now       func() time.Time
}

// NewEmitter creates an Emitter using the wall clock.
func NewEmitter(store Store, publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Emitter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Emitter{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "notify"),
		recorder:  recorder,
		now:       time.Now,
	}
}

// Emit persists and publishes one notification.
//
// A persist failure is logged and swallowed: Emit returns (nil, nil) and
// nothing is published. A publish failure is returned wrapped in ErrPublish
// even though the notification row already exists.
func (e *Emitter) Emit(ctx context.Context, ev Event) (*model.Notification, error) {
	if !ev.Kind.IsValid() {
		return nil, fmt.Errorf("invalid notification kind %q", ev.Kind)
	}
	if !ev.Action.IsValid() {
		return nil, fmt.Errorf("invalid notification action %q", ev.Action)
	}

	n := &model.Notification{
		ID:                 primitive.NewObjectID(),
		RecipientUserID:    ev.RecipientUserID,
		Kind:               ev.Kind,
		Action:             ev.Action,
		ListID:             ev.ListID,
		ListName:           ev.ListName,
		ActorName:          ev.ActorName,
		AvatarURL:          ev.AvatarURL,
		ExpenseDescription: ev.ExpenseDescription,
		Price:              ev.Price,
		Timestamp:          e.now().UTC(),
	}

	if err := e.store.CreateNotification(ctx, n); err != nil {
		e.recorder.IncNotificationPersistFailed()
		e.logger.Error("failed to persist notification",
			"error", err,
			"kind", ev.Kind,
			"action", ev.Action,
			"list_id", ev.ListID.Hex(),
		)
		return nil, nil
	}
	e.recorder.IncNotificationPersisted()

	if err := e.publisher.Publish(ctx, broadcast.TopicNotification, NewPayload(n)); err != nil {
		return n, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return n, nil
}
