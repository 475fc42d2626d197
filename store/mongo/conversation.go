package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
)

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID id.ConversationID) (*conversation.Conversation, error) {
	col := s.db.Collection(colConversations)
	var m conversationModel
	err := col.FindOne(ctx, bson.M{"_id": conversationID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/mongo: get conversation: %w", err)
	}
	return fromConversationModel(&m)
}

// GetOpen fetches the open conversation for a thread key. The partial
// unique index on (key, open statuses) guarantees at most one match.
func (s *Store) GetOpen(ctx context.Context, key string) (*conversation.Conversation, error) {
	col := s.db.Collection(colConversations)

	var m conversationModel
	err := col.FindOne(ctx, bson.M{
		"key":    key,
		"status": bson.M{"$in": openStatuses},
	}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/mongo: get open conversation: %w", err)
	}
	return fromConversationModel(&m)
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	m := toConversationModel(c)
	_, err := s.db.Collection(colConversations).InsertOne(ctx, m)
	if err != nil {
		if isDuplicateKey(err) {
			return chatflow.ErrConversationAlreadyExists
		}
		return fmt.Errorf("chatflow/mongo: create conversation: %w", err)
	}
	return nil
}

// UpdateConversation persists c conditioned on the version the caller
// read. The replace is filtered on (_id, version), so a concurrent
// writer that bumped the version first makes this one miss and report a
// conflict.
func (s *Store) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	col := s.db.Collection(colConversations)

	readVersion := c.Version
	m := toConversationModel(c)
	m.Version = readVersion + 1
	m.UpdatedAt = now()

	res, err := col.ReplaceOne(ctx, bson.M{
		"_id":     m.ID,
		"version": readVersion,
	}, m)
	if err != nil {
		return fmt.Errorf("chatflow/mongo: update conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a missing document.
		n, countErr := col.CountDocuments(ctx, bson.M{"_id": m.ID})
		if countErr != nil {
			return fmt.Errorf("chatflow/mongo: update conversation: %w", countErr)
		}
		if n == 0 {
			return chatflow.ErrConversationNotFound
		}
		return chatflow.ErrVersionConflict
	}

	c.Version = m.Version
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// ListIdleBefore returns up to limit open conversations whose last
// update predates cutoff, oldest first.
func (s *Store) ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]*conversation.Conversation, error) {
	col := s.db.Collection(colConversations)

	filter := bson.M{
		"status":     bson.M{"$in": openStatuses},
		"updated_at": bson.M{"$lt": cutoff},
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: list idle: %w", err)
	}
	defer cursor.Close(ctx)

	var models []conversationModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("chatflow/mongo: list idle decode: %w", err)
	}

	out := make([]*conversation.Conversation, 0, len(models))
	for i := range models {
		c, convErr := fromConversationModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("chatflow/mongo: list idle convert: %w", convErr)
		}
		out = append(out, c)
	}
	return out, nil
}

// CountByStatus returns the status breakdown for one workflow.
func (s *Store) CountByStatus(ctx context.Context, tenantID string, workflowID id.WorkflowID) ([]conversation.StatusCount, error) {
	col := s.db.Collection(colConversations)

	pipeline := []bson.M{
		{"$match": bson.M{
			"tenant_id":   tenantID,
			"workflow_id": workflowID.String(),
		}},
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: count by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("chatflow/mongo: count by status decode: %w", err)
	}

	counts := make([]conversation.StatusCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, conversation.StatusCount{
			Status: conversation.Status(r.Status),
			Count:  r.Count,
		})
	}
	return counts, nil
}
