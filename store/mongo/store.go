package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/workflow"
)

// Collection name constants.
const (
	colWorkflows     = "chatflow_workflows"
	colConversations = "chatflow_conversations"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ workflow.Store     = (*Store)(nil)
	_ conversation.Store = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store.
// The caller owns the *mongo.Database lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store. The caller owns the db lifecycle -- the
// Store will not close it on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *mongo.Database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all chatflow collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("chatflow/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the *mongo.Database lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// openStatuses are the statuses a conversation can hold while its thread
// is still live.
var openStatuses = []string{
	string(conversation.StatusTriggered),
	string(conversation.StatusInProgress),
}

// migrationIndexes returns the index definitions for all chatflow collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colWorkflows: {
			// Candidate listing: tenant + published, ordered by creation.
			{Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "published", Value: 1},
				{Key: "created_at", Value: 1},
			}},
			{Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "created_at", Value: 1},
			}},
		},
		colConversations: {
			// At most one open conversation per thread key.
			{
				Keys: bson.D{{Key: "key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{
						"status": bson.M{"$in": openStatuses},
					}),
			},
			// Idle sweep index.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "updated_at", Value: 1},
			}},
			// Status breakdown index.
			{Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "workflow_id", Value: 1},
				{Key: "status", Value: 1},
			}},
		},
	}
}
