package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/notify"
	"github.com/expensync/expensync/internal/repository"
)

// Pagination defaults for ListLists.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ListService handles expense list business logic.
type ListService struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewListService creates a new ListService.
func NewListService(store Store, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder) *ListService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ListService{
		store:   store,
		emitter: emitter,
		logger:  logger.With("component", "list_service"),
		metrics: recorder,
	}
}

// CreateList creates an empty list owned by creatorID.
func (s *ListService) CreateList(ctx context.Context, name string, creatorID primitive.ObjectID) (*model.ExpensesList, error) {
	name, err := normalizeName("name", name)
	if err != nil {
		return nil, err
	}

	creator, err := s.lookupUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	list := &model.ExpensesList{
		ID:            primitive.NewObjectID(),
		Name:          name,
		CreatorID:     creator.ID,
		ExpenseIDs:    []primitive.ObjectID{},
		MemberUserIDs: []primitive.ObjectID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateList(ctx, list); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrListNameTaken
		}
		return nil, fmt.Errorf("failed to create list: %w", err)
	}
	s.metrics.IncMutation(string(model.KindList), string(model.ActionAdd))

	if err := s.notify(ctx, list, creator, model.ActionAdd); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateList renames a list.
func (s *ListService) UpdateList(ctx context.Context, id primitive.ObjectID, newName string, actorID primitive.ObjectID) (*model.ExpensesList, error) {
	name, err := normalizeName("name", newName)
	if err != nil {
		return nil, err
	}

	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	list, err := s.store.RenameList(ctx, id, name)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrListNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrListNameTaken
		}
		return nil, fmt.Errorf("failed to rename list: %w", err)
	}
	s.metrics.IncMutation(string(model.KindList), string(model.ActionUpdate))

	if err := s.notify(ctx, list, actor, model.ActionUpdate); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteList removes a list and every expense that belongs to it.
//
// Without transactions the expense bulk delete and the list delete are two
// writes; a failure between them leaves the list with stale expense ids,
// which reads skip.
func (s *ListService) DeleteList(ctx context.Context, id, actorID primitive.ObjectID) (*model.ExpensesList, error) {
	list, err := s.getList(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		removed, err := s.store.DeleteExpensesForList(ctx, list.ID, list.ExpenseIDs)
		if err != nil {
			return err
		}
		if err := s.store.DeleteList(ctx, list.ID); err != nil {
			return err
		}
		s.logger.Debug("list deleted", "list_id", list.ID.Hex(), "expenses_removed", removed)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("failed to delete list: %w", err)
	}
	s.metrics.IncMutation(string(model.KindList), string(model.ActionRemove))

	if err := s.notify(ctx, list, actor, model.ActionRemove); err != nil {
		return nil, err
	}
	return list, nil
}

// GetList returns a list with its creator and expenses.
func (s *ListService) GetList(ctx context.Context, id primitive.ObjectID) (*model.PopulatedList, error) {
	list, err := s.getList(ctx, id)
	if err != nil {
		return nil, err
	}

	populated, err := populateLists(ctx, s.store, []*model.ExpensesList{list})
	if err != nil {
		return nil, err
	}
	return populated[0], nil
}

// ListListsInput defines input for listing lists.
type ListListsInput struct {
	Offset    int
	Limit     int
	SortOrder model.SortOrder
}

// ListLists returns one page of populated lists.
func (s *ListService) ListLists(ctx context.Context, input ListListsInput) (*model.ListPage, error) {
	if input.Offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}
	switch {
	case input.Limit <= 0:
		input.Limit = DefaultListLimit
	case input.Limit > MaxListLimit:
		input.Limit = MaxListLimit
	}
	if input.SortOrder != model.SortAsc {
		input.SortOrder = model.SortDesc
	}

	lists, err := s.store.ListLists(ctx, input.Offset, input.Limit, input.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	total, err := s.store.CountLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count lists: %w", err)
	}

	populated, err := populateLists(ctx, s.store, lists)
	if err != nil {
		return nil, err
	}

	return &model.ListPage{
		Lists:     populated,
		Offset:    input.Offset,
		Limit:     input.Limit,
		SortOrder: input.SortOrder,
		Total:     total,
	}, nil
}

func (s *ListService) getList(ctx context.Context, id primitive.ObjectID) (*model.ExpensesList, error) {
	list, err := s.store.GetListByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return list, nil
}

func (s *ListService) lookupUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return lookupUser(ctx, s.store, id)
}

// notify emits a list notification to the list creator.
func (s *ListService) notify(ctx context.Context, list *model.ExpensesList, actor *model.User, action model.NotificationAction) error {
	_, err := s.emitter.Emit(ctx, notify.Event{
		RecipientUserID: list.CreatorID,
		Kind:            model.KindList,
		Action:          action,
		ListID:          list.ID,
		ListName:        list.Name,
		ActorName:       actor.Name,
		AvatarURL:       actor.Photo,
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", action, err)
	}
	return nil
}

func lookupUser(ctx context.Context, users UserStore, id primitive.ObjectID) (*model.User, error) {
	if id.IsZero() {
		return nil, ErrUserNotFound
	}
	user, err := users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
