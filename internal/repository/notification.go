package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/expensync/expensync/internal/model"
)

// CreateNotification appends a notification record.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	if _, err := r.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotificationsByRecipient returns a user's notifications, newest first.
func (r *Repository) ListNotificationsByRecipient(ctx context.Context, userID primitive.ObjectID) ([]*model.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.notifications.Find(ctx, bson.M{"recipient_user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cur.Close(ctx)

	out := []*model.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return out, nil
}

// DeleteNotificationsByRecipient bulk-deletes a user's notifications.
func (r *Repository) DeleteNotificationsByRecipient(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.notifications.DeleteMany(ctx, bson.M{"recipient_user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	return res.DeletedCount, nil
}
