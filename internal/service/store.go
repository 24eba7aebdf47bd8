package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/notify"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error)
	UpdateUserProfile(ctx context.Context, id primitive.ObjectID, upd model.UserProfileUpdate) (*model.User, error)
}

// ListStore persists expense lists.
type ListStore interface {
	CreateList(ctx context.Context, list *model.ExpensesList) error
	GetListByID(ctx context.Context, id primitive.ObjectID) (*model.ExpensesList, error)
	ListLists(ctx context.Context, offset, limit int, order model.SortOrder) ([]*model.ExpensesList, error)
	CountLists(ctx context.Context) (int64, error)
	RenameList(ctx context.Context, id primitive.ObjectID, name string) (*model.ExpensesList, error)
	DeleteList(ctx context.Context, id primitive.ObjectID) error
	PushExpense(ctx context.Context, listID, expenseID primitive.ObjectID) error
	PullExpense(ctx context.Context, listID, expenseID primitive.ObjectID) error
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *model.Expense) error
	GetExpenseByID(ctx context.Context, id primitive.ObjectID) (*model.Expense, error)
	GetExpensesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*model.Expense, error)
	ListExpenses(ctx context.Context, listID *primitive.ObjectID) ([]*model.Expense, error)
	UpdateExpense(ctx context.Context, id primitive.ObjectID, upd model.ExpenseUpdate) (*model.Expense, error)
	DeleteExpense(ctx context.Context, id primitive.ObjectID) (*model.Expense, error)
	DeleteExpensesForList(ctx context.Context, listID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
}

// NotificationStore reads and clears notification feeds.
type NotificationStore interface {
	ListNotificationsByRecipient(ctx context.Context, userID primitive.ObjectID) ([]*model.Notification, error)
	DeleteNotificationsByRecipient(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Transactor groups writes. Without transaction support fn runs directly.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is everything the mutation services need.
// *repository.Repository satisfies it.
type Store interface {
	UserStore
	ListStore
	ExpenseStore
	Transactor
}

// Emitter records and broadcasts a notification.
type Emitter interface {
	Emit(ctx context.Context, ev notify.Event) (*model.Notification, error)
}
