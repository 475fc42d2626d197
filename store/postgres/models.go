package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// scanner abstracts pgx.Row and pgx.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// ── Workflow rows ─────────────────────────────────────────────────

const workflowColumns = `id, tenant_id, name, description, kind, questions,
	channel_identity, trigger_keywords, initial_message, completion_message,
	status, published, published_at, conversation_count, completion_count,
	created_at, updated_at`

func scanWorkflow(row scanner) (*workflow.Workflow, error) {
	var (
		w            workflow.Workflow
		rawID        string
		kind, status string
		questions    []byte
	)

	err := row.Scan(
		&rawID, &w.TenantID, &w.Name, &w.Description, &kind, &questions,
		&w.ChannelIdentity, &w.TriggerKeywords, &w.InitialMessage, &w.CompletionMessage,
		&status, &w.Published, &w.PublishedAt, &w.ConversationCount, &w.CompletionCount,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.ID, err = id.ParseWorkflowID(rawID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: parse workflow id %q: %w", rawID, err)
	}
	w.Kind = workflow.Kind(kind)
	w.Status = workflow.Status(status)

	if err := json.Unmarshal(questions, &w.Questions); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: decode questions: %w", err)
	}

	return &w, nil
}

func workflowArgs(w *workflow.Workflow) ([]any, error) {
	questions, err := json.Marshal(w.Questions)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: encode questions: %w", err)
	}

	return []any{
		w.ID.String(), w.TenantID, w.Name, w.Description, string(w.Kind), questions,
		w.ChannelIdentity, w.TriggerKeywords, w.InitialMessage, w.CompletionMessage,
		string(w.Status), w.Published, w.PublishedAt, w.ConversationCount, w.CompletionCount,
		w.CreatedAt, w.UpdatedAt,
	}, nil
}

// ── Conversation rows ─────────────────────────────────────────────

const conversationColumns = `id, key, tenant_id, workflow_id, sender_address,
	sender_profile_name, current_question_index, answers, extracted, status,
	started_at, completed_at, abandoned_at, last_inbound_id, source, version,
	created_at, updated_at`

func scanConversation(row scanner) (*conversation.Conversation, error) {
	var (
		c                  conversation.Conversation
		rawID, rawWorkflow string
		status             string
		answers, extracted []byte
	)

	err := row.Scan(
		&rawID, &c.Key, &c.TenantID, &rawWorkflow, &c.SenderAddress,
		&c.SenderProfileName, &c.CurrentQuestionIndex, &answers, &extracted, &status,
		&c.StartedAt, &c.CompletedAt, &c.AbandonedAt, &c.LastInboundID, &c.Source, &c.Version,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID, err = id.ParseConversationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: parse conversation id %q: %w", rawID, err)
	}
	c.WorkflowID, err = id.ParseWorkflowID(rawWorkflow)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: parse workflow id %q: %w", rawWorkflow, err)
	}
	c.Status = conversation.Status(status)

	if err := json.Unmarshal(answers, &c.Answers); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: decode answers: %w", err)
	}
	if err := json.Unmarshal(extracted, &c.Extracted); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: decode extracted: %w", err)
	}

	return &c, nil
}

func conversationArgs(c *conversation.Conversation) ([]any, error) {
	answers, err := json.Marshal(c.Answers)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: encode answers: %w", err)
	}
	extracted, err := json.Marshal(c.Extracted)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: encode extracted: %w", err)
	}

	return []any{
		c.ID.String(), c.Key, c.TenantID, c.WorkflowID.String(), c.SenderAddress,
		c.SenderProfileName, c.CurrentQuestionIndex, answers, extracted, string(c.Status),
		c.StartedAt, c.CompletedAt, c.AbandonedAt, c.LastInboundID, c.Source, c.Version,
		c.CreatedAt, c.UpdatedAt,
	}, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}
