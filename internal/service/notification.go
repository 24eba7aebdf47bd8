package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
)

// NotificationService serves per-user notification feeds.
type NotificationService struct {
	store NotificationStore
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// Feed returns the user's notifications, newest first.
func (s *NotificationService) Feed(ctx context.Context, userID primitive.ObjectID) ([]*model.Notification, error) {
	feed, err := s.store.ListNotificationsByRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return feed, nil
}

// Clear deletes every notification of the user.
func (s *NotificationService) Clear(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.store.DeleteNotificationsByRecipient(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	return n, nil
}
