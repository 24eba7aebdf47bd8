package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/repository"
)

// MemStore is an in-memory stand-in for repository.Repository. It returns
// the same sentinel errors and copies documents in and out.
type MemStore struct {
	mu            sync.Mutex
	seq           int64
	users         map[primitive.ObjectID]model.User
	lists         map[primitive.ObjectID]model.ExpensesList
	listSeq       map[primitive.ObjectID]int64
	expenses      map[primitive.ObjectID]model.Expense
	notifications map[primitive.ObjectID]model.Notification
	failures      map[string]error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:         make(map[primitive.ObjectID]model.User),
		lists:         make(map[primitive.ObjectID]model.ExpensesList),
		listSeq:       make(map[primitive.ObjectID]int64),
		expenses:      make(map[primitive.ObjectID]model.Expense),
		notifications: make(map[primitive.ObjectID]model.Notification),
		failures:      make(map[string]error),
	}
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *MemStore) failure(method string) error {
	return s.failures[method]
}

// WithinTransaction runs fn directly; the memory store has no rollback.
func (s *MemStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ping succeeds unless a failure is injected.
func (s *MemStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("Ping")
}

// ---- users ----

func (s *MemStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateUser"); err != nil {
		return err
	}
	for _, u := range s.users {
		if u.ExternalAuthID == user.ExternalAuthID {
			return repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetUserByExternalID"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.ExternalAuthID == externalID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemStore) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetUsersByIDs"); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = &u
		}
	}
	return out, nil
}

func (s *MemStore) UpdateUserProfile(_ context.Context, id primitive.ObjectID, upd model.UserProfileUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateUserProfile"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Photo != nil {
		u.Photo = *upd.Photo
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return &u, nil
}

// ---- lists ----

func cloneList(l model.ExpensesList) *model.ExpensesList {
	l.ExpenseIDs = slices.Clone(l.ExpenseIDs)
	l.MemberUserIDs = slices.Clone(l.MemberUserIDs)
	if l.ExpenseIDs == nil {
		l.ExpenseIDs = []primitive.ObjectID{}
	}
	if l.MemberUserIDs == nil {
		l.MemberUserIDs = []primitive.ObjectID{}
	}
	return &l
}

func (s *MemStore) CreateList(_ context.Context, list *model.ExpensesList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateList"); err != nil {
		return err
	}
	for _, l := range s.lists {
		if l.Name == list.Name {
			return repository.ErrDuplicate
		}
	}
	if list.ID.IsZero() {
		list.ID = primitive.NewObjectID()
	}
	if list.ExpenseIDs == nil {
		list.ExpenseIDs = []primitive.ObjectID{}
	}
	if list.MemberUserIDs == nil {
		list.MemberUserIDs = []primitive.ObjectID{}
	}
	s.seq++
	s.listSeq[list.ID] = s.seq
	s.lists[list.ID] = *cloneList(*list)
	return nil
}

func (s *MemStore) GetListByID(_ context.Context, id primitive.ObjectID) (*model.ExpensesList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetListByID"); err != nil {
		return nil, err
	}
	l, ok := s.lists[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneList(l), nil
}

func (s *MemStore) ListLists(_ context.Context, offset, limit int, order model.SortOrder) ([]*model.ExpensesList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListLists"); err != nil {
		return nil, err
	}
	all := make([]model.ExpensesList, 0, len(s.lists))
	for _, l := range s.lists {
		all = append(all, l)
	}
	before := func(a, b model.ExpensesList) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return s.listSeq[a.ID] < s.listSeq[b.ID]
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	sort.Slice(all, func(i, j int) bool {
		if order == model.SortAsc {
			return before(all[i], all[j])
		}
		return before(all[j], all[i])
	})

	out := []*model.ExpensesList{}
	for i := offset; i < len(all) && len(out) < limit; i++ {
		out = append(out, cloneList(all[i]))
	}
	return out, nil
}

func (s *MemStore) CountLists(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CountLists"); err != nil {
		return 0, err
	}
	return int64(len(s.lists)), nil
}

func (s *MemStore) RenameList(_ context.Context, id primitive.ObjectID, name string) (*model.ExpensesList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("RenameList"); err != nil {
		return nil, err
	}
	l, ok := s.lists[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for otherID, other := range s.lists {
		if otherID != id && other.Name == name {
			return nil, repository.ErrDuplicate
		}
	}
	l.Name = name
	l.UpdatedAt = time.Now().UTC()
	s.lists[id] = l
	return cloneList(l), nil
}

func (s *MemStore) DeleteList(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteList"); err != nil {
		return err
	}
	if _, ok := s.lists[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.lists, id)
	delete(s.listSeq, id)
	return nil
}

func (s *MemStore) PushExpense(_ context.Context, listID, expenseID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("PushExpense"); err != nil {
		return err
	}
	l, ok := s.lists[listID]
	if !ok {
		return repository.ErrNotFound
	}
	l.ExpenseIDs = append(slices.Clone(l.ExpenseIDs), expenseID)
	s.lists[listID] = l
	return nil
}

func (s *MemStore) PullExpense(_ context.Context, listID, expenseID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("PullExpense"); err != nil {
		return err
	}
	l, ok := s.lists[listID]
	if !ok {
		return repository.ErrNotFound
	}
	l.ExpenseIDs = slices.DeleteFunc(slices.Clone(l.ExpenseIDs), func(id primitive.ObjectID) bool {
		return id == expenseID
	})
	s.lists[listID] = l
	return nil
}

// ---- expenses ----

func cloneExpense(e model.Expense) *model.Expense {
	if e.Date != nil {
		d := *e.Date
		e.Date = &d
	}
	return &e
}

func (s *MemStore) CreateExpense(_ context.Context, expense *model.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateExpense"); err != nil {
		return err
	}
	if expense.ID.IsZero() {
		expense.ID = primitive.NewObjectID()
	}
	s.expenses[expense.ID] = *cloneExpense(*expense)
	return nil
}

func (s *MemStore) GetExpenseByID(_ context.Context, id primitive.ObjectID) (*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetExpenseByID"); err != nil {
		return nil, err
	}
	e, ok := s.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneExpense(e), nil
}

func (s *MemStore) GetExpensesByIDs(_ context.Context, ids []primitive.ObjectID) ([]*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetExpensesByIDs"); err != nil {
		return nil, err
	}
	out := []*model.Expense{}
	for _, id := range ids {
		if e, ok := s.expenses[id]; ok {
			out = append(out, cloneExpense(e))
		}
	}
	return out, nil
}

func (s *MemStore) ListExpenses(_ context.Context, listID *primitive.ObjectID) ([]*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListExpenses"); err != nil {
		return nil, err
	}
	out := []*model.Expense{}
	for _, e := range s.expenses {
		if listID != nil && e.ListID != *listID {
			continue
		}
		out = append(out, cloneExpense(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) UpdateExpense(_ context.Context, id primitive.ObjectID, upd model.ExpenseUpdate) (*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateExpense"); err != nil {
		return nil, err
	}
	e, ok := s.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e = upd.Apply(e)
	e.UpdatedAt = time.Now().UTC()
	s.expenses[id] = e
	return cloneExpense(e), nil
}

func (s *MemStore) DeleteExpense(_ context.Context, id primitive.ObjectID) (*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteExpense"); err != nil {
		return nil, err
	}
	e, ok := s.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.expenses, id)
	return cloneExpense(e), nil
}

func (s *MemStore) DeleteExpensesForList(_ context.Context, listID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteExpensesForList"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range s.expenses {
		if e.ListID == listID || slices.Contains(ids, id) {
			delete(s.expenses, id)
			n++
		}
	}
	return n, nil
}

// ---- notifications ----

func (s *MemStore) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateNotification"); err != nil {
		return err
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemStore) ListNotificationsByRecipient(_ context.Context, userID primitive.ObjectID) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListNotificationsByRecipient"); err != nil {
		return nil, err
	}
	out := []*model.Notification{}
	for _, n := range s.notifications {
		if n.RecipientUserID == userID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemStore) DeleteNotificationsByRecipient(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteNotificationsByRecipient"); err != nil {
		return 0, err
	}
	var n int64
	for id, notif := range s.notifications {
		if notif.RecipientUserID == userID {
			delete(s.notifications, id)
			n++
		}
	}
	return n, nil
}

// ---- inspection helpers ----

// Notifications returns every stored notification in no particular order.
func (s *MemStore) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	return out
}

// ExpenseCount returns the number of stored expenses.
func (s *MemStore) ExpenseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}
