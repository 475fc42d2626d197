package workflow

import (
	"context"

	"github.com/enromatics/chatflow/id"
)

// Store defines the persistence contract for workflows.
type Store interface {
	// CreateWorkflow persists a new workflow definition.
	CreateWorkflow(ctx context.Context, wf *Workflow) error

	// UpdateWorkflow replaces a stored workflow definition. The admin
	// layer calls this for edits and publish/unpublish flips. Returns
	// chatflow.ErrWorkflowNotFound when absent.
	UpdateWorkflow(ctx context.Context, wf *Workflow) error

	// GetWorkflow retrieves a workflow by ID. Returns
	// chatflow.ErrWorkflowNotFound when absent.
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*Workflow, error)

	// ListWorkflows returns all workflows for a tenant, ordered by
	// CreatedAt ascending, ID ascending.
	ListWorkflows(ctx context.Context, tenantID string) ([]*Workflow, error)

	// ListPublished returns the trigger candidates for a tenant and
	// channel identity: every published workflow of the tenant that is
	// either unscoped or scoped to exactly channelIdentity. The result
	// is ordered by CreatedAt ascending, ID ascending — matching walks
	// it front to back, so this order decides ties.
	ListPublished(ctx context.Context, tenantID, channelIdentity string) ([]*Workflow, error)

	// IncrementCounter atomically bumps one of the workflow's statistic
	// counters. Increments happen at the store boundary, never as a
	// read-modify-write in application code.
	IncrementCounter(ctx context.Context, workflowID id.WorkflowID, counter Counter) error
}
