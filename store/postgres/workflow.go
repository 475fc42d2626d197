package postgres

import (
	"context"
	"fmt"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	args, err := workflowArgs(w)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chatflow_workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return chatflow.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("chatflow/postgres: create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workflowColumns+`
		FROM chatflow_workflows
		WHERE id = $1
	`, workflowID.String())

	w, err := scanWorkflow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, chatflow.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("chatflow/postgres: get workflow: %w", err)
	}
	return w, nil
}

// UpdateWorkflow persists changes to an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	w.UpdatedAt = now()
	args, err := workflowArgs(w)
	if err != nil {
		return err
	}

	res, err := s.pool.Exec(ctx, `
		UPDATE chatflow_workflows SET
			tenant_id = $2, name = $3, description = $4, kind = $5, questions = $6,
			channel_identity = $7, trigger_keywords = $8, initial_message = $9,
			completion_message = $10, status = $11, published = $12, published_at = $13,
			conversation_count = $14, completion_count = $15, created_at = $16, updated_at = $17
		WHERE id = $1
	`, args...)
	if err != nil {
		return fmt.Errorf("chatflow/postgres: update workflow: %w", err)
	}
	if res.RowsAffected() == 0 {
		return chatflow.ErrWorkflowNotFound
	}
	return nil
}

// ListWorkflows returns all workflows belonging to a tenant, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, tenantID string) ([]*workflow.Workflow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workflowColumns+`
		FROM chatflow_workflows
		WHERE tenant_id = $1
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		w, scanErr := scanWorkflow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("chatflow/postgres: list workflows scan: %w", scanErr)
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list workflows: %w", err)
	}
	return workflows, nil
}

// ListPublished returns the published workflows eligible to serve the
// given channel identity, in deterministic candidate order.
func (s *Store) ListPublished(ctx context.Context, tenantID, channelIdentity string) ([]*workflow.Workflow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workflowColumns+`
		FROM chatflow_workflows
		WHERE tenant_id = $1
		  AND published = TRUE
		  AND channel_identity IN ('', $2)
		ORDER BY created_at ASC, id ASC
	`, tenantID, channelIdentity)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list published: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		w, scanErr := scanWorkflow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("chatflow/postgres: list published scan: %w", scanErr)
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list published: %w", err)
	}
	return workflows, nil
}

// IncrementCounter atomically bumps a workflow statistic. The increment
// happens SQL-side so concurrent engine instances never lose counts.
func (s *Store) IncrementCounter(ctx context.Context, workflowID id.WorkflowID, counter workflow.Counter) error {
	var column string
	switch counter {
	case workflow.CounterConversations:
		column = "conversation_count"
	case workflow.CounterCompletions:
		column = "completion_count"
	default:
		return fmt.Errorf("chatflow/postgres: unknown counter %q", counter)
	}

	res, err := s.pool.Exec(ctx, `
		UPDATE chatflow_workflows
		SET `+column+` = `+column+` + 1, updated_at = NOW()
		WHERE id = $1
	`, workflowID.String())
	if err != nil {
		return fmt.Errorf("chatflow/postgres: increment %s: %w", counter, err)
	}
	if res.RowsAffected() == 0 {
		return chatflow.ErrWorkflowNotFound
	}
	return nil
}
