package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/notify"
	"github.com/expensync/expensync/internal/repository"
)

// ExpenseService handles expense business logic and keeps list references
// in step with expense writes.
type ExpenseService struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store Store, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder) *ExpenseService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ExpenseService{
		store:   store,
		emitter: emitter,
		logger:  logger.With("component", "expense_service"),
		metrics: recorder,
	}
}

// CreateExpenseInput defines input for creating an expense.
type CreateExpenseInput struct {
	Name        string
	Price       float64
	Description string
	Date        *time.Time
	ListID      primitive.ObjectID
	CreatorID   primitive.ObjectID
}

// CreateExpense stores an expense and links it to its list.
//
// Without transactions the insert and the link are two writes. When the
// link fails the expense is deleted again before the error is returned.
func (s *ExpenseService) CreateExpense(ctx context.Context, input CreateExpenseInput) (*model.Expense, error) {
	name, err := normalizeName("name", input.Name)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.ListID.IsZero() {
		return nil, invalid("listId", "is required")
	}

	creator, err := lookupUser(ctx, s.store, input.CreatorID)
	if err != nil {
		return nil, err
	}
	list, err := s.getList(ctx, input.ListID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expense := &model.Expense{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Price:       input.Price,
		Description: strings.TrimSpace(input.Description),
		Date:        input.Date,
		CreatorID:   creator.ID,
		ListID:      list.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created := false
	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.CreateExpense(ctx, expense); err != nil {
			return err
		}
		created = true
		return s.store.PushExpense(ctx, list.ID, expense.ID)
	})
	if err != nil {
		if created {
			s.compensateCreate(ctx, expense.ID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	s.metrics.IncMutation(string(model.KindExpense), string(model.ActionAdd))

	if err := s.notify(ctx, list, creator, expense, model.ActionAdd); err != nil {
		return nil, err
	}
	return expense, nil
}

// compensateCreate removes an expense whose list link failed. Inside a
// rolled-back transaction the expense is already gone.
func (s *ExpenseService) compensateCreate(ctx context.Context, id primitive.ObjectID) {
	_, err := s.store.DeleteExpense(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("failed to remove unlinked expense", "expense_id", id.Hex(), "error", err)
	}
}

// UpdateExpense applies a partial update. Invalid fields leave the stored
// expense unchanged.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id primitive.ObjectID, upd model.ExpenseUpdate, actorID primitive.ObjectID) (*model.Expense, error) {
	if upd.IsEmpty() {
		return nil, invalid("", "at least one field must be provided")
	}
	if upd.Name != nil {
		name, err := normalizeName("name", *upd.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.Price != nil {
		if err := validatePrice(*upd.Price); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}

	actor, err := lookupUser(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}

	expense, err := s.store.UpdateExpense(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	s.metrics.IncMutation(string(model.KindExpense), string(model.ActionUpdate))

	if err := s.notifyForList(ctx, expense.ListID, actor, expense, model.ActionUpdate); err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteExpense removes an expense and unlinks it from its stored list and
// from listID when that names a different list. The notification goes to
// the stored list, or to listID when the stored list is gone.
//
// Without transactions a failed unlink is returned after the expense is
// already gone; the stale id is skipped by list reads.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id, listID, actorID primitive.ObjectID) (*model.Expense, error) {
	actor, err := lookupUser(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}

	var deleted *model.Expense
	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		e, err := s.store.DeleteExpense(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrExpenseNotFound
			}
			return err
		}
		deleted = e

		for _, owner := range unlinkTargets(e, listID) {
			if err := s.store.PullExpense(ctx, owner, e.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to unlink expense: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}
	s.metrics.IncMutation(string(model.KindExpense), string(model.ActionRemove))

	list, err := s.firstList(ctx, unlinkTargets(deleted, listID))
	if err != nil {
		return nil, err
	}
	if list == nil {
		s.logger.Warn("expense has no list, skipping notification",
			"expense_id", deleted.ID.Hex(), "list_id", deleted.ListID.Hex())
		return deleted, nil
	}
	if err := s.notify(ctx, list, actor, deleted, model.ActionRemove); err != nil {
		return nil, err
	}
	return deleted, nil
}

// unlinkTargets returns the stored list of e followed by hint when hint is
// set and differs from it.
func unlinkTargets(e *model.Expense, hint primitive.ObjectID) []primitive.ObjectID {
	targets := []primitive.ObjectID{e.ListID}
	if !hint.IsZero() && hint != e.ListID {
		targets = append(targets, hint)
	}
	return targets
}

// firstList returns the first of ids that resolves to a list, or nil when
// none does.
func (s *ExpenseService) firstList(ctx context.Context, ids []primitive.ObjectID) (*model.ExpensesList, error) {
	for _, id := range ids {
		list, err := s.store.GetListByID(ctx, id)
		if err == nil {
			return list, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get list: %w", err)
		}
	}
	return nil, nil
}

// GetExpense returns an expense with its creator.
func (s *ExpenseService) GetExpense(ctx context.Context, id primitive.ObjectID) (*model.PopulatedExpense, error) {
	expense, err := s.store.GetExpenseByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	populated, err := populateExpenses(ctx, s.store, []*model.Expense{expense})
	if err != nil {
		return nil, err
	}
	return populated[0], nil
}

// ListExpenses returns all expenses, or those of one list when listID is set.
func (s *ExpenseService) ListExpenses(ctx context.Context, listID *primitive.ObjectID) ([]*model.PopulatedExpense, error) {
	expenses, err := s.store.ListExpenses(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return populateExpenses(ctx, s.store, expenses)
}

func (s *ExpenseService) getList(ctx context.Context, id primitive.ObjectID) (*model.ExpensesList, error) {
	list, err := s.store.GetListByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return list, nil
}

// notifyForList loads the owning list for its name and creator. An expense
// whose list no longer exists produces no notification.
func (s *ExpenseService) notifyForList(ctx context.Context, listID primitive.ObjectID, actor *model.User, expense *model.Expense, action model.NotificationAction) error {
	list, err := s.store.GetListByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("expense has no list, skipping notification",
				"expense_id", expense.ID.Hex(), "list_id", listID.Hex())
			return nil
		}
		return fmt.Errorf("failed to get list: %w", err)
	}
	return s.notify(ctx, list, actor, expense, action)
}

func (s *ExpenseService) notify(ctx context.Context, list *model.ExpensesList, actor *model.User, expense *model.Expense, action model.NotificationAction) error {
	description := expense.Description
	if description == "" {
		description = expense.Name
	}
	price := expense.Price

	_, err := s.emitter.Emit(ctx, notify.Event{
		RecipientUserID:    list.CreatorID,
		Kind:               model.KindExpense,
		Action:             action,
		ListID:             list.ID,
		ListName:           list.Name,
		ActorName:          actor.Name,
		AvatarURL:          actor.Photo,
		ExpenseDescription: description,
		Price:              &price,
	})
	if err != nil {
		return fmt.Errorf("expense %s: %w", action, err)
	}
	return nil
}
