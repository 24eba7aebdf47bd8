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

// CreateExpense inserts a new expense.
func (r *Repository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	if expense.ID.IsZero() {
		expense.ID = primitive.NewObjectID()
	}

	if _, err := r.expenses.InsertOne(ctx, expense); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpenseByID retrieves an expense by id.
func (r *Repository) GetExpenseByID(ctx context.Context, id primitive.ObjectID) (*model.Expense, error) {
	var expense model.Expense
	if err := r.expenses.FindOne(ctx, bson.M{"_id": id}).Decode(&expense); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &expense, nil
}

// GetExpensesByIDs returns the expenses that still exist among ids, in the
// order of ids. Missing ids are skipped.
func (r *Repository) GetExpensesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*model.Expense, error) {
	if len(ids) == 0 {
		return []*model.Expense{}, nil
	}

	cur, err := r.expenses.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find expenses: %w", err)
	}
	defer cur.Close(ctx)

	var found []*model.Expense
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}

	byID := make(map[primitive.ObjectID]*model.Expense, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}

	out := make([]*model.Expense, 0, len(found))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListExpenses returns expenses ordered by creation time, optionally
// restricted to one list.
func (r *Repository) ListExpenses(ctx context.Context, listID *primitive.ObjectID) ([]*model.Expense, error) {
	filter := bson.M{}
	if listID != nil {
		filter["list_id"] = *listID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.expenses.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer cur.Close(ctx)

	expenses := []*model.Expense{}
	if err := cur.All(ctx, &expenses); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpense applies the non-nil fields and returns the updated expense.
func (r *Repository) UpdateExpense(ctx context.Context, id primitive.ObjectID, upd model.ExpenseUpdate) (*model.Expense, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}

	var expense model.Expense
	err := r.expenses.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&expense)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	return &expense, nil
}

// DeleteExpense removes an expense and returns the deleted document.
func (r *Repository) DeleteExpense(ctx context.Context, id primitive.ObjectID) (*model.Expense, error) {
	var expense model.Expense
	if err := r.expenses.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&expense); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}
	return &expense, nil
}

// DeleteExpensesForList removes every expense referenced by ids or whose
// list_id is listID. Returns the number of deleted documents.
func (r *Repository) DeleteExpensesForList(ctx context.Context, listID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	filter := bson.M{"list_id": listID}
	if len(ids) > 0 {
		filter = bson.M{"$or": bson.A{
			bson.M{"_id": bson.M{"$in": ids}},
			bson.M{"list_id": listID},
		}}
	}

	res, err := r.expenses.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete list expenses: %w", err)
	}
	return res.DeletedCount, nil
}
