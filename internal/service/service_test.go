package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/broadcast"
	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/notify"
	"github.com/expensync/expensync/internal/service"
	"github.com/expensync/expensync/internal/testutil"
)

type capturePublisher struct {
	mu       sync.Mutex
	payloads []notify.Payload
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if topic != broadcast.TopicNotification {
		return errors.New("unexpected topic " + topic)
	}
	p.payloads = append(p.payloads, payload.(notify.Payload))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func (p *capturePublisher) last() notify.Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payloads[len(p.payloads)-1]
}

type env struct {
	store    *testutil.MemStore
	pub      *capturePublisher
	recorder *metrics.InMemoryRecorder
	lists    *service.ListService
	expenses *service.ExpenseService
	alice    *model.User
	bob      *model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := testutil.NewMemStore()
	pub := &capturePublisher{}
	rec := metrics.NewInMemory()
	logger := testutil.DiscardLogger()
	emitter := notify.NewEmitter(store, pub, logger, rec)

	alice := testutil.NewTestUser(t, "alice")
	bob := testutil.NewTestUser(t, "bob")
	require.NoError(t, store.CreateUser(context.Background(), alice))
	require.NoError(t, store.CreateUser(context.Background(), bob))

	return &env{
		store:    store,
		pub:      pub,
		recorder: rec,
		lists:    service.NewListService(store, emitter, logger, rec),
		expenses: service.NewExpenseService(store, emitter, logger, rec),
		alice:    alice,
		bob:      bob,
	}
}

func (e *env) createList(t *testing.T, name string) *model.ExpensesList {
	t.Helper()
	list, err := e.lists.CreateList(context.Background(), name, e.alice.ID)
	require.NoError(t, err)
	return list
}

func (e *env) createExpense(t *testing.T, listID primitive.ObjectID, name string, price float64) *model.Expense {
	t.Helper()
	expense, err := e.expenses.CreateExpense(context.Background(), service.CreateExpenseInput{
		Name:      name,
		Price:     price,
		ListID:    listID,
		CreatorID: e.bob.ID,
	})
	require.NoError(t, err)
	return expense
}

func TestCreateList_EmptySetsAndRoundTrip(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	list := e.createList(t, "  Trip ")
	assert.Equal(t, "Trip", list.Name)
	assert.Empty(t, list.ExpenseIDs)
	assert.Empty(t, list.MemberUserIDs)
	assert.Equal(t, e.alice.ID, list.CreatorID)

	got, err := e.lists.GetList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, got.List.ID)
	assert.Equal(t, "Trip", got.List.Name)
	assert.Equal(t, e.alice.ID, got.Creator.ID)
	assert.Equal(t, "0", got.Total().String())

	require.Equal(t, 1, e.pub.count())
	payload := e.pub.last()
	assert.Equal(t, model.KindList, payload.Type)
	assert.Equal(t, model.ActionAdd, payload.Props.Action)
	assert.Equal(t, list.ID.Hex(), payload.Props.ListID)
	assert.Equal(t, "alice", payload.Props.CreatorName)

	notifs := e.store.Notifications()
	require.Len(t, notifs, 1)
	assert.Equal(t, e.alice.ID, notifs[0].RecipientUserID)
	assert.Equal(t, notifs[0].ID.Hex(), payload.Props.ID)
}

func TestCreateList_DuplicateNameEmitsNothing(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.createList(t, "Trip")
	_, err := e.lists.CreateList(context.Background(), "Trip", e.bob.ID)

	require.ErrorIs(t, err, service.ErrListNameTaken)
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, 1, e.pub.count())
	assert.Len(t, e.store.Notifications(), 1)
}

func TestCreateList_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		creator func(e *env) primitive.ObjectID
		wantErr error
	}{
		{"empty", "", func(e *env) primitive.ObjectID { return e.alice.ID }, service.ErrValidation},
		{"whitespace", "   ", func(e *env) primitive.ObjectID { return e.alice.ID }, service.ErrValidation},
		{"too_short", "a", func(e *env) primitive.ObjectID { return e.alice.ID }, service.ErrValidation},
		{"too_long", strings.Repeat("a", 51), func(e *env) primitive.ObjectID { return e.alice.ID }, service.ErrValidation},
		{"unknown_creator", "Trip", func(*env) primitive.ObjectID { return primitive.NewObjectID() }, service.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			_, err := e.lists.CreateList(context.Background(), tt.input, tt.creator(e))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, e.pub.count())
		})
	}
}

func TestUpdateList(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	trip := e.createList(t, "Trip")
	e.createList(t, "Food")

	renamed, err := e.lists.UpdateList(ctx, trip.ID, "Holiday", e.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Holiday", renamed.Name)

	payload := e.pub.last()
	assert.Equal(t, model.ActionUpdate, payload.Props.Action)
	assert.Equal(t, "Holiday", payload.Props.ListName)
	assert.Equal(t, "bob", payload.Props.CreatorName)

	_, err = e.lists.UpdateList(ctx, trip.ID, "Food", e.bob.ID)
	require.ErrorIs(t, err, service.ErrConflict)

	_, err = e.lists.UpdateList(ctx, primitive.NewObjectID(), "Other", e.bob.ID)
	require.ErrorIs(t, err, service.ErrListNotFound)

	_, err = e.lists.UpdateList(ctx, trip.ID, "x", e.bob.ID)
	require.ErrorIs(t, err, service.ErrValidation)

	assert.Equal(t, 3, e.pub.count())
}

func TestCreateExpense_LinksBothWays(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	list := e.createList(t, "Trip")
	expense := e.createExpense(t, list.ID, "Taxi", 42)

	assert.Equal(t, list.ID, expense.ListID)

	stored, err := e.store.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ExpenseIDs, expense.ID)

	payload := e.pub.last()
	assert.Equal(t, model.KindExpense, payload.Type)
	assert.Equal(t, model.ActionAdd, payload.Props.Action)
	require.NotNil(t, payload.Props.Price)
	assert.Equal(t, 42.0, *payload.Props.Price)
	assert.Equal(t, "Taxi", payload.Props.ExpenseDescription)
	assert.Equal(t, "bob", payload.Props.CreatorName)

	// The list creator receives expense notifications.
	var recipients []primitive.ObjectID
	for _, n := range e.store.Notifications() {
		recipients = append(recipients, n.RecipientUserID)
	}
	assert.Equal(t, []primitive.ObjectID{e.alice.ID, e.alice.ID}, recipients)
	assert.Equal(t, uint64(1), e.recorder.Snapshot().Mutations["expense/add"])
}

func TestCreateExpense_Validation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")

	tests := []struct {
		name    string
		input   service.CreateExpenseInput
		wantErr error
	}{
		{"zero_price", service.CreateExpenseInput{Name: "Taxi", Price: 0, ListID: list.ID, CreatorID: e.bob.ID}, service.ErrValidation},
		{"negative_price", service.CreateExpenseInput{Name: "Taxi", Price: -5, ListID: list.ID, CreatorID: e.bob.ID}, service.ErrValidation},
		{"short_name", service.CreateExpenseInput{Name: "T", Price: 1, ListID: list.ID, CreatorID: e.bob.ID}, service.ErrValidation},
		{"missing_list", service.CreateExpenseInput{Name: "Taxi", Price: 1, CreatorID: e.bob.ID}, service.ErrValidation},
		{"unknown_list", service.CreateExpenseInput{Name: "Taxi", Price: 1, ListID: primitive.NewObjectID(), CreatorID: e.bob.ID}, service.ErrListNotFound},
		{"unknown_creator", service.CreateExpenseInput{Name: "Taxi", Price: 1, ListID: list.ID, CreatorID: primitive.NewObjectID()}, service.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.expenses.CreateExpense(ctx, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, e.store.ExpenseCount())
}

func TestCreateExpense_LinkFailureRemovesExpense(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	list := e.createList(t, "Trip")
	published := e.pub.count()

	e.store.FailOn("PushExpense", errors.New("write conflict"))
	_, err := e.expenses.CreateExpense(context.Background(), service.CreateExpenseInput{
		Name: "Taxi", Price: 42, ListID: list.ID, CreatorID: e.bob.ID,
	})

	require.Error(t, err)
	assert.Zero(t, e.store.ExpenseCount())
	assert.Equal(t, published, e.pub.count())
}

func TestListTotal(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	list := e.createList(t, "Trip")
	e.createExpense(t, list.ID, "Taxi", 10.50)
	e.createExpense(t, list.ID, "Bus", 5.25)

	got, err := e.lists.GetList(context.Background(), list.ID)
	require.NoError(t, err)
	require.Len(t, got.Expenses, 2)
	assert.Equal(t, "15.75", got.Total().String())
	assert.Equal(t, "Taxi", got.Expenses[0].Expense.Name)
	assert.Equal(t, e.bob.ID, got.Expenses[0].Creator.ID)
}

func TestUpdateExpense(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")
	expense := e.createExpense(t, list.ID, "Taxi", 42)

	desc := "airport run"
	updated, err := e.expenses.UpdateExpense(ctx, expense.ID, model.ExpenseUpdate{Description: &desc}, e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taxi", updated.Name)
	assert.Equal(t, 42.0, updated.Price)
	assert.Equal(t, "airport run", updated.Description)

	payload := e.pub.last()
	assert.Equal(t, model.ActionUpdate, payload.Props.Action)
	assert.Equal(t, "airport run", payload.Props.ExpenseDescription)

	_, err = e.expenses.UpdateExpense(ctx, primitive.NewObjectID(), model.ExpenseUpdate{Description: &desc}, e.alice.ID)
	require.ErrorIs(t, err, service.ErrExpenseNotFound)

	_, err = e.expenses.UpdateExpense(ctx, expense.ID, model.ExpenseUpdate{}, e.alice.ID)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestUpdateExpense_NonPositivePriceLeavesExpenseUnchanged(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")
	expense := e.createExpense(t, list.ID, "Taxi", 42)
	published := e.pub.count()

	for _, price := range []float64{0, -1} {
		p := price
		name := "Renamed"
		_, err := e.expenses.UpdateExpense(ctx, expense.ID, model.ExpenseUpdate{Name: &name, Price: &p}, e.alice.ID)
		require.ErrorIs(t, err, service.ErrValidation)
	}

	stored, err := e.store.GetExpenseByID(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taxi", stored.Name)
	assert.Equal(t, 42.0, stored.Price)
	assert.Equal(t, published, e.pub.count())
}

func TestDeleteExpense(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")
	taxi := e.createExpense(t, list.ID, "Taxi", 42)
	bus := e.createExpense(t, list.ID, "Bus", 3)

	deleted, err := e.expenses.DeleteExpense(ctx, taxi.ID, list.ID, e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, taxi.ID, deleted.ID)

	// Zero listID falls back to the stored list.
	_, err = e.expenses.DeleteExpense(ctx, bus.ID, primitive.NilObjectID, e.alice.ID)
	require.NoError(t, err)

	stored, err := e.store.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ExpenseIDs)

	payload := e.pub.last()
	assert.Equal(t, model.ActionRemove, payload.Props.Action)
	assert.Equal(t, "Trip", payload.Props.ListName)

	_, err = e.expenses.DeleteExpense(ctx, taxi.ID, list.ID, e.alice.ID)
	require.ErrorIs(t, err, service.ErrExpenseNotFound)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteExpense_UnknownListHintUsesStoredList(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")
	taxi := e.createExpense(t, list.ID, "Taxi", 42)
	published := e.pub.count()
	notifications := len(e.store.Notifications())

	_, err := e.expenses.DeleteExpense(ctx, taxi.ID, primitive.NewObjectID(), e.alice.ID)
	require.NoError(t, err)

	stored, err := e.store.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ExpenseIDs)

	require.Equal(t, published+1, e.pub.count())
	assert.Len(t, e.store.Notifications(), notifications+1)
	payload := e.pub.last()
	assert.Equal(t, model.ActionRemove, payload.Props.Action)
	assert.Equal(t, "Trip", payload.Props.ListName)
	assert.Equal(t, list.ID.Hex(), payload.Props.ListID)
}

func TestDeleteExpense_MismatchedHintUnlinksBothLists(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	trip := e.createList(t, "Trip")
	home := e.createList(t, "Home")
	taxi := e.createExpense(t, trip.ID, "Taxi", 42)
	require.NoError(t, e.store.PushExpense(ctx, home.ID, taxi.ID))

	_, err := e.expenses.DeleteExpense(ctx, taxi.ID, home.ID, e.alice.ID)
	require.NoError(t, err)

	for _, id := range []primitive.ObjectID{trip.ID, home.ID} {
		stored, err := e.store.GetListByID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, stored.ExpenseIDs)
	}
	assert.Equal(t, "Trip", e.pub.last().Props.ListName)
}

func TestDeleteList_Cascades(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	list := e.createList(t, "Trip")
	other := e.createList(t, "Food")
	taxi := e.createExpense(t, list.ID, "Taxi", 42)
	e.createExpense(t, list.ID, "Bus", 3)
	bread := e.createExpense(t, other.ID, "Bread", 2)

	deleted, err := e.lists.DeleteList(ctx, list.ID, e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, deleted.ID)

	_, err = e.lists.GetList(ctx, list.ID)
	require.ErrorIs(t, err, service.ErrListNotFound)
	_, err = e.expenses.GetExpense(ctx, taxi.ID)
	require.ErrorIs(t, err, service.ErrExpenseNotFound)
	_, err = e.expenses.GetExpense(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.store.ExpenseCount())

	payload := e.pub.last()
	assert.Equal(t, model.KindList, payload.Type)
	assert.Equal(t, model.ActionRemove, payload.Props.Action)

	_, err = e.lists.DeleteList(ctx, list.ID, e.alice.ID)
	require.ErrorIs(t, err, service.ErrListNotFound)
}

func TestMutation_PublishFailureFailsRequest(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.pub.err = broadcast.ErrNotInitialized

	_, err := e.lists.CreateList(context.Background(), "Trip", e.alice.ID)
	require.ErrorIs(t, err, notify.ErrPublish)
	assert.ErrorIs(t, err, broadcast.ErrNotInitialized)

	// The write itself committed.
	total, err := e.store.CountLists(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestMutation_PersistFailureStillSucceeds(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.store.FailOn("CreateNotification", errors.New("unavailable"))

	list, err := e.lists.CreateList(context.Background(), "Trip", e.alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Zero(t, e.pub.count())
}

func TestListLists_Pagination(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		e.createList(t, name)
		time.Sleep(time.Millisecond)
	}

	page, err := e.lists.ListLists(ctx, service.ListListsInput{})
	require.NoError(t, err)
	assert.Equal(t, service.DefaultListLimit, page.Limit)
	assert.Equal(t, model.SortDesc, page.SortOrder)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Lists, 3)
	assert.Equal(t, "three", page.Lists[0].List.Name)

	page, err = e.lists.ListLists(ctx, service.ListListsInput{Offset: 1, Limit: 1, SortOrder: model.SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Lists, 1)
	assert.Equal(t, "two", page.Lists[0].List.Name)
	assert.EqualValues(t, 3, page.Total)

	page, err = e.lists.ListLists(ctx, service.ListListsInput{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, service.MaxListLimit, page.Limit)

	_, err = e.lists.ListLists(ctx, service.ListListsInput{Offset: -1})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestListExpenses_FilterAndPopulate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	trip := e.createList(t, "Trip")
	food := e.createList(t, "Food")
	e.createExpense(t, trip.ID, "Taxi", 42)
	e.createExpense(t, food.ID, "Bread", 2)

	all, err := e.expenses.ListExpenses(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyTrip, err := e.expenses.ListExpenses(ctx, &trip.ID)
	require.NoError(t, err)
	require.Len(t, onlyTrip, 1)
	assert.Equal(t, "Taxi", onlyTrip[0].Expense.Name)
	assert.Equal(t, "bob", onlyTrip[0].Creator.Name)
}

func TestPayloadJSONShape(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	list := e.createList(t, "Trip")
	e.createExpense(t, list.ID, "Taxi", 42)

	data, err := json.Marshal(e.pub.last())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "expense", decoded["type"])
	props := decoded["props"].(map[string]any)
	for _, key := range []string{"id", "avatarSrc", "listName", "creatorName", "timestamp", "action", "price"} {
		assert.Contains(t, props, key)
	}
}
