package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
)

// populateLists joins lists with their creators and the expenses that still
// exist. Stale expense ids are skipped.
func populateLists(ctx context.Context, store Store, lists []*model.ExpensesList) ([]*model.PopulatedList, error) {
	var expenseIDs []primitive.ObjectID
	for _, l := range lists {
		expenseIDs = append(expenseIDs, l.ExpenseIDs...)
	}

	expenses, err := store.GetExpensesByIDs(ctx, expenseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load list expenses: %w", err)
	}
	byID := make(map[primitive.ObjectID]*model.Expense, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
	}

	userIDs := make([]primitive.ObjectID, 0, len(lists)+len(expenses))
	for _, l := range lists {
		userIDs = append(userIDs, l.CreatorID)
	}
	for _, e := range expenses {
		userIDs = append(userIDs, e.CreatorID)
	}
	users, err := store.GetUsersByIDs(ctx, dedupe(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	out := make([]*model.PopulatedList, 0, len(lists))
	for _, l := range lists {
		p := &model.PopulatedList{
			List:     l,
			Creator:  users[l.CreatorID],
			Expenses: make([]*model.PopulatedExpense, 0, len(l.ExpenseIDs)),
		}
		for _, id := range l.ExpenseIDs {
			if e, ok := byID[id]; ok {
				p.Expenses = append(p.Expenses, &model.PopulatedExpense{Expense: e, Creator: users[e.CreatorID]})
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// populateExpenses joins expenses with their creators.
func populateExpenses(ctx context.Context, users UserStore, expenses []*model.Expense) ([]*model.PopulatedExpense, error) {
	ids := make([]primitive.ObjectID, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.CreatorID)
	}
	byID, err := users.GetUsersByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	out := make([]*model.PopulatedExpense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, &model.PopulatedExpense{Expense: e, Creator: byID[e.CreatorID]})
	}
	return out, nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
