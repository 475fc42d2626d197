package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	wID := w.ID.String()
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("chatflow/redis: encode workflow: %w", err)
	}

	ok, err := s.client.SetNX(ctx, workflowKey(wID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("chatflow/redis: create workflow: %w", err)
	}
	if !ok {
		return chatflow.ErrWorkflowAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, tenantWorkflowsKey(w.TenantID), goredis.Z{
		Score:  float64(w.CreatedAt.UnixNano()),
		Member: wID,
	})
	pipe.HSet(ctx, workflowCountersKey(wID),
		"conversation_count", w.ConversationCount,
		"completion_count", w.CompletionCount,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chatflow/redis: create workflow index: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	return s.getWorkflow(ctx, workflowID.String())
}

func (s *Store) getWorkflow(ctx context.Context, wID string) (*workflow.Workflow, error) {
	raw, err := s.client.Get(ctx, workflowKey(wID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, chatflow.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("chatflow/redis: get workflow: %w", err)
	}

	var w workflow.Workflow
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("chatflow/redis: decode workflow: %w", err)
	}

	// Counters are authoritative in their own hash.
	counters, err := s.client.HGetAll(ctx, workflowCountersKey(wID)).Result()
	if err != nil {
		return nil, fmt.Errorf("chatflow/redis: get workflow counters: %w", err)
	}
	if v, ok := counters["conversation_count"]; ok {
		w.ConversationCount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := counters["completion_count"]; ok {
		w.CompletionCount, _ = strconv.ParseInt(v, 10, 64)
	}

	return &w, nil
}

// UpdateWorkflow persists changes to an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	key := workflowKey(w.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("chatflow/redis: update workflow exists: %w", err)
	}
	if exists == 0 {
		return chatflow.ErrWorkflowNotFound
	}

	w.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("chatflow/redis: encode workflow: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("chatflow/redis: update workflow: %w", err)
	}
	return nil
}

// ListWorkflows returns all workflows belonging to a tenant, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, tenantID string) ([]*workflow.Workflow, error) {
	ids, err := s.client.ZRange(ctx, tenantWorkflowsKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("chatflow/redis: list workflows: %w", err)
	}

	var workflows []*workflow.Workflow
	for _, wID := range ids {
		w, getErr := s.getWorkflow(ctx, wID)
		if getErr != nil {
			if getErr == chatflow.ErrWorkflowNotFound {
				continue // index entry outlived the entity
			}
			return nil, getErr
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}

// ListPublished returns the published workflows eligible to serve the
// given channel identity, in creation order.
func (s *Store) ListPublished(ctx context.Context, tenantID, channelIdentity string) ([]*workflow.Workflow, error) {
	all, err := s.ListWorkflows(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var candidates []*workflow.Workflow
	for _, w := range all {
		if w.Published && w.MatchesChannel(channelIdentity) {
			candidates = append(candidates, w)
		}
	}
	return candidates, nil
}

// IncrementCounter atomically bumps a workflow statistic via HINCRBY.
func (s *Store) IncrementCounter(ctx context.Context, workflowID id.WorkflowID, counter workflow.Counter) error {
	wID := workflowID.String()

	exists, err := s.client.Exists(ctx, workflowKey(wID)).Result()
	if err != nil {
		return fmt.Errorf("chatflow/redis: increment exists: %w", err)
	}
	if exists == 0 {
		return chatflow.ErrWorkflowNotFound
	}

	if err := s.client.HIncrBy(ctx, workflowCountersKey(wID), string(counter), 1).Err(); err != nil {
		return fmt.Errorf("chatflow/redis: increment %s: %w", counter, err)
	}
	return nil
}
