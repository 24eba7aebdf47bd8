// Package repository provides the MongoDB document store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection         = "users"
	ListsCollection         = "expenses_lists"
	ExpensesCollection      = "expenses"
	NotificationsCollection = "notifications"
)

// Common repository errors.
var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Options tunes the store connection.
type Options struct {
	Database string
	// Transactions wraps multi-document writes in a Mongo transaction.
	// Requires a replica set or sharded cluster.
	Transactions bool
	MaxPoolSize  uint64
	MinPoolSize  uint64
}

// Repository provides database access methods.
type Repository struct {
	client        *mongo.Client
	db            *mongo.Database
	users         *mongo.Collection
	lists         *mongo.Collection
	expenses      *mongo.Collection
	notifications *mongo.Collection
	transactions  bool
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri string, opts Options) (*Repository, error) {
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return NewWithClient(client, opts), nil
}

// NewWithClient builds a Repository on an existing client.
func NewWithClient(client *mongo.Client, opts Options) *Repository {
	db := client.Database(opts.Database)
	return &Repository{
		client:        client,
		db:            db,
		users:         db.Collection(UsersCollection),
		lists:         db.Collection(ListsCollection),
		expenses:      db.Collection(ExpensesCollection),
		notifications: db.Collection(NotificationsCollection),
		transactions:  opts.Transactions,
	}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Database returns the underlying database.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Database() *mongo.Database {
	return r.db
}

// WithinTransaction runs fn inside a multi-document transaction when
// transactions are enabled. Otherwise fn runs directly and each write
// commits on its own.
func (r *Repository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.transactions {
		return fn(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the application relies on. It is
// idempotent and aggregates failures so every problem is reported at once.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	desired := map[*mongo.Collection][]mongo.IndexModel{
		r.users: {
			{Keys: bson.D{{Key: "external_auth_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_external_auth_id")},
		},
		r.lists: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_name")},
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("idx_created_at")},
		},
		r.expenses: {
			{Keys: bson.D{{Key: "list_id", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("idx_list_created")},
		},
		r.notifications: {
			{Keys: bson.D{{Key: "recipient_user_id", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetName("idx_recipient_timestamp")},
		},
	}

	var problems []string
	for coll, models := range desired {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			problems = append(problems, coll.Name()+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// mapWriteError converts driver errors into repository sentinels.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
