package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	m := toWorkflowModel(w)
	_, err := s.db.Collection(colWorkflows).InsertOne(ctx, m)
	if err != nil {
		if isDuplicateKey(err) {
			return chatflow.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("chatflow/mongo: create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	col := s.db.Collection(colWorkflows)
	var m workflowModel
	err := col.FindOne(ctx, bson.M{"_id": workflowID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, chatflow.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("chatflow/mongo: get workflow: %w", err)
	}
	return fromWorkflowModel(&m)
}

// UpdateWorkflow persists changes to an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	m := toWorkflowModel(w)
	m.UpdatedAt = now()
	col := s.db.Collection(colWorkflows)
	res, err := col.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("chatflow/mongo: update workflow: %w", err)
	}
	if res.MatchedCount == 0 {
		return chatflow.ErrWorkflowNotFound
	}
	return nil
}

// ListWorkflows returns all workflows belonging to a tenant, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, tenantID string) ([]*workflow.Workflow, error) {
	col := s.db.Collection(colWorkflows)

	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := col.Find(ctx, bson.M{"tenant_id": tenantID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: list workflows: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeWorkflows(ctx, cursor)
}

// ListPublished returns the published workflows eligible to serve the
// given channel identity, in deterministic candidate order.
func (s *Store) ListPublished(ctx context.Context, tenantID, channelIdentity string) ([]*workflow.Workflow, error) {
	col := s.db.Collection(colWorkflows)

	filter := bson.M{
		"tenant_id": tenantID,
		"published": true,
		// Unscoped workflows serve every identity of their tenant.
		"channel_identity": bson.M{"$in": []string{"", channelIdentity}},
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: list published: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeWorkflows(ctx, cursor)
}

// IncrementCounter atomically bumps a workflow statistic. $inc keeps
// concurrent engine instances from losing increments.
func (s *Store) IncrementCounter(ctx context.Context, workflowID id.WorkflowID, counter workflow.Counter) error {
	col := s.db.Collection(colWorkflows)

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": workflowID.String()},
		bson.M{"$inc": bson.M{string(counter): 1}},
	)
	if err != nil {
		return fmt.Errorf("chatflow/mongo: increment %s: %w", counter, err)
	}
	if res.MatchedCount == 0 {
		return chatflow.ErrWorkflowNotFound
	}
	return nil
}

// decodeWorkflows drains a cursor of workflow models into domain values.
func decodeWorkflows(ctx context.Context, cursor *mongod.Cursor) ([]*workflow.Workflow, error) {
	var models []workflowModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("chatflow/mongo: decode workflows: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(models))
	for i := range models {
		w, convErr := fromWorkflowModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("chatflow/mongo: convert workflow: %w", convErr)
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}
