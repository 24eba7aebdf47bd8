package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/expensync/expensync/internal/model"
)

// CreateList inserts a new list. Returns ErrDuplicate when the name is taken.
func (r *Repository) CreateList(ctx context.Context, list *model.ExpensesList) error {
	if list.ID.IsZero() {
		list.ID = primitive.NewObjectID()
	}
	// Stored as empty arrays so later $push/$pull never hit a null field.
	if list.ExpenseIDs == nil {
		list.ExpenseIDs = []primitive.ObjectID{}
	}
	if list.MemberUserIDs == nil {
		list.MemberUserIDs = []primitive.ObjectID{}
	}

	if _, err := r.lists.InsertOne(ctx, list); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create list: %w", err)
	}
	return nil
}

// GetListByID retrieves a list by id.
func (r *Repository) GetListByID(ctx context.Context, id primitive.ObjectID) (*model.ExpensesList, error) {
	var list model.ExpensesList
	if err := r.lists.FindOne(ctx, bson.M{"_id": id}).Decode(&list); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return &list, nil
}

// ListLists returns one page of lists ordered by creation time.
func (r *Repository) ListLists(ctx context.Context, offset, limit int, order model.SortOrder) ([]*model.ExpensesList, error) {
	dir := -1
	if order == model.SortAsc {
		dir = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.lists.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer cur.Close(ctx)

	lists := make([]*model.ExpensesList, 0, limit)
	if err := cur.All(ctx, &lists); err != nil {
		return nil, fmt.Errorf("failed to decode lists: %w", err)
	}
	return lists, nil
}

// CountLists returns the total number of lists.
func (r *Repository) CountLists(ctx context.Context) (int64, error) {
	n, err := r.lists.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count lists: %w", err)
	}
	return n, nil
}

// RenameList sets a new name and returns the updated list.
func (r *Repository) RenameList(ctx context.Context, id primitive.ObjectID, name string) (*model.ExpensesList, error) {
	var list model.ExpensesList
	err := r.lists.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": name, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&list)
	if err != nil {
		if mapped := mapWriteError(err); mapped == ErrNotFound || mapped == ErrDuplicate {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to rename list: %w", err)
	}
	return &list, nil
}

// DeleteList removes a list document. Expenses are not touched.
func (r *Repository) DeleteList(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.lists.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PushExpense appends expenseID to the list's expense references.
func (r *Repository) PushExpense(ctx context.Context, listID, expenseID primitive.ObjectID) error {
	res, err := r.lists.UpdateOne(ctx,
		bson.M{"_id": listID},
		bson.M{
			"$push": bson.M{"expense_ids": expenseID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to link expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PullExpense removes expenseID from the list's expense references.
func (r *Repository) PullExpense(ctx context.Context, listID, expenseID primitive.ObjectID) error {
	res, err := r.lists.UpdateOne(ctx,
		bson.M{"_id": listID},
		bson.M{
			"$pull": bson.M{"expense_ids": expenseID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to unlink expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
