package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
)

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID id.ConversationID) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chatflow_conversations
		WHERE id = $1
	`, conversationID.String())

	c, err := scanConversation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/postgres: get conversation: %w", err)
	}
	return c, nil
}

// GetOpen fetches the open conversation for a thread key. The partial
// unique index on open statuses guarantees at most one match.
func (s *Store) GetOpen(ctx context.Context, key string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chatflow_conversations
		WHERE key = $1
		  AND status IN ('triggered', 'in_progress')
	`, key)

	c, err := scanConversation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/postgres: get open conversation: %w", err)
	}
	return c, nil
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	args, err := conversationArgs(c)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chatflow_conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return chatflow.ErrConversationAlreadyExists
		}
		return fmt.Errorf("chatflow/postgres: create conversation: %w", err)
	}
	return nil
}

// UpdateConversation persists c conditioned on the version the caller
// read. The UPDATE is fenced on (id, version), so a concurrent writer
// that bumped the version first makes this one miss and report a
// conflict.
func (s *Store) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	readVersion := c.Version
	updatedAt := now()

	args, err := conversationArgs(c)
	if err != nil {
		return err
	}
	// Positions: $16 version (bumped), $18 updated_at, $19 read fence.
	args[15] = readVersion + 1
	args[17] = updatedAt
	args = append(args, readVersion)

	res, err := s.pool.Exec(ctx, `
		UPDATE chatflow_conversations SET
			key = $2, tenant_id = $3, workflow_id = $4, sender_address = $5,
			sender_profile_name = $6, current_question_index = $7, answers = $8,
			extracted = $9, status = $10, started_at = $11, completed_at = $12,
			abandoned_at = $13, last_inbound_id = $14, source = $15, version = $16,
			created_at = $17, updated_at = $18
		WHERE id = $1 AND version = $19
	`, args...)
	if err != nil {
		return fmt.Errorf("chatflow/postgres: update conversation: %w", err)
	}
	if res.RowsAffected() == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		checkErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM chatflow_conversations WHERE id = $1)`,
			c.ID.String(),
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("chatflow/postgres: update conversation: %w", checkErr)
		}
		if !exists {
			return chatflow.ErrConversationNotFound
		}
		return chatflow.ErrVersionConflict
	}

	c.Version = readVersion + 1
	c.UpdatedAt = updatedAt
	return nil
}

// ListIdleBefore returns up to limit open conversations whose last
// update predates cutoff, oldest first.
func (s *Store) ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]*conversation.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM chatflow_conversations
		WHERE status IN ('triggered', 'in_progress')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list idle: %w", err)
	}
	defer rows.Close()

	var out []*conversation.Conversation
	for rows.Next() {
		c, scanErr := scanConversation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("chatflow/postgres: list idle scan: %w", scanErr)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: list idle: %w", err)
	}
	return out, nil
}

// CountByStatus returns the status breakdown for one workflow.
func (s *Store) CountByStatus(ctx context.Context, tenantID string, workflowID id.WorkflowID) ([]conversation.StatusCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM chatflow_conversations
		WHERE tenant_id = $1 AND workflow_id = $2
		GROUP BY status
		ORDER BY status ASC
	`, tenantID, workflowID.String())
	if err != nil {
		return nil, fmt.Errorf("chatflow/postgres: count by status: %w", err)
	}
	defer rows.Close()

	var counts []conversation.StatusCount
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("chatflow/postgres: count by status scan: %w", err)
		}
		counts = append(counts, conversation.StatusCount{
			Status: conversation.Status(status),
			Count:  count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatflow/postgres: count by status: %w", err)
	}
	return counts, nil
}
