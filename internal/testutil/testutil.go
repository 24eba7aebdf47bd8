// Package testutil provides shared helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewMongoRepository connects to TEST_MONGO_URI using a throwaway database
// that is dropped when the test ends. Skips when TEST_MONGO_URI is unset.
func NewMongoRepository(t testing.TB) *repository.Repository {
	t.Helper()
	uri := RequireEnv(t, "TEST_MONGO_URI")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("expensync_test_%d", time.Now().UnixNano())
	repo, err := repository.New(ctx, uri, repository.Options{
		Database:     dbName,
		Transactions: os.Getenv("TEST_MONGO_TRANSACTIONS") == "true",
	})
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = repo.Database().Drop(ctx)
		_ = repo.Close(ctx)
	})
	return repo
}

// NewRedisClient connects to TEST_REDIS_URL and flushes the database on
// cleanup. Skips when TEST_REDIS_URL is unset.
func NewRedisClient(t testing.TB) *redis.Client {
	t.Helper()
	url := RequireEnv(t, "TEST_REDIS_URL")

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	t.Cleanup(func() {
		_ = FlushRedis(context.Background(), client)
		_ = client.Close()
	})
	return client
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:             primitive.NewObjectID(),
		ExternalAuthID: UniqueID("auth0|" + name),
		Name:           name,
		Photo:          "https://example.com/" + name + ".png",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTestList creates a test list owned by creatorID.
func NewTestList(t testing.TB, name string, creatorID primitive.ObjectID) *model.ExpensesList {
	t.Helper()
	now := time.Now().UTC()
	return &model.ExpensesList{
		ID:            primitive.NewObjectID(),
		Name:          name,
		CreatorID:     creatorID,
		ExpenseIDs:    []primitive.ObjectID{},
		MemberUserIDs: []primitive.ObjectID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestExpense creates a test expense in listID.
func NewTestExpense(t testing.TB, name string, price float64, listID, creatorID primitive.ObjectID) *model.Expense {
	t.Helper()
	now := time.Now().UTC()
	return &model.Expense{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Price:     price,
		CreatorID: creatorID,
		ListID:    listID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UniqueName generates a unique name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
