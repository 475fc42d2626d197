package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
)

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID id.ConversationID) (*conversation.Conversation, error) {
	return s.getConversation(ctx, conversationID.String())
}

func (s *Store) getConversation(ctx context.Context, cID string) (*conversation.Conversation, error) {
	raw, err := s.client.Get(ctx, conversationKey(cID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/redis: get conversation: %w", err)
	}

	var c conversation.Conversation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("chatflow/redis: decode conversation: %w", err)
	}
	return &c, nil
}

// GetOpen fetches the open conversation for a thread key.
func (s *Store) GetOpen(ctx context.Context, key string) (*conversation.Conversation, error) {
	cID, err := s.client.Get(ctx, openThreadKey(key)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, chatflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("chatflow/redis: get open pointer: %w", err)
	}

	c, err := s.getConversation(ctx, cID)
	if err != nil {
		return nil, err
	}
	if !c.Open() {
		// Stale pointer: the entity closed but the pointer outlived it.
		return nil, chatflow.ErrConversationNotFound
	}
	return c, nil
}

// CreateConversation persists a new conversation. An open conversation
// additionally claims the thread's open pointer; the create fails with
// ErrConversationAlreadyExists when another open conversation holds it.
func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	cID := c.ID.String()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("chatflow/redis: encode conversation: %w", err)
	}

	ok, err := s.client.SetNX(ctx, conversationKey(cID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("chatflow/redis: create conversation: %w", err)
	}
	if !ok {
		return chatflow.ErrConversationAlreadyExists
	}

	if c.Open() {
		if err := s.claimOpenThread(ctx, c.Key, cID); err != nil {
			// Roll the entity back so the reject leaves no trace.
			s.client.Del(ctx, conversationKey(cID))
			return err
		}
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, workflowConversationsKey(c.WorkflowID.String()), cID)
	if c.Open() {
		pipe.SAdd(ctx, openIDsKey, cID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chatflow/redis: create conversation index: %w", err)
	}
	return nil
}

// claimOpenThread takes the open pointer for a thread key. The pointer
// is written with SET NX so two concurrent creators cannot both win. A
// pointer left behind by a closed or deleted conversation is stale and
// gets overwritten; a pointer to a live open conversation rejects the
// claim with ErrConversationAlreadyExists. The stale-pointer takeover
// runs under WATCH so a racing claimer aborts rather than overwrites.
func (s *Store) claimOpenThread(ctx context.Context, key, cID string) error {
	ptrKey := openThreadKey(key)

	ok, err := s.client.SetNX(ctx, ptrKey, cID, 0).Result()
	if err != nil {
		return fmt.Errorf("chatflow/redis: claim open thread: %w", err)
	}
	if ok {
		return nil
	}

	txErr := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		holder, err := tx.Get(ctx, ptrKey).Result()
		if err != nil && err != goredis.Nil {
			return fmt.Errorf("chatflow/redis: read open thread: %w", err)
		}
		if err == nil && holder != cID {
			existing, getErr := s.getConversation(ctx, holder)
			if getErr == nil && existing.Open() {
				return chatflow.ErrConversationAlreadyExists
			}
			if getErr != nil && !errors.Is(getErr, chatflow.ErrConversationNotFound) {
				return getErr
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, ptrKey, cID, 0)
			return nil
		})
		return err
	}, ptrKey)

	if errors.Is(txErr, goredis.TxFailedErr) {
		return chatflow.ErrConversationAlreadyExists
	}
	return txErr
}

// UpdateConversation persists c conditioned on the version the caller
// read. The read-compare-write runs under WATCH on the entity key, so a
// concurrent writer aborts the transaction and the version check stays
// atomic.
func (s *Store) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	cID := c.ID.String()
	entityKey := conversationKey(cID)
	readVersion := c.Version

	txErr := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, entityKey).Result()
		if err != nil {
			if err == goredis.Nil {
				return chatflow.ErrConversationNotFound
			}
			return fmt.Errorf("chatflow/redis: update read: %w", err)
		}

		var stored conversation.Conversation
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("chatflow/redis: decode conversation: %w", err)
		}
		if stored.Version != readVersion {
			return chatflow.ErrVersionConflict
		}

		c.Version = readVersion + 1
		c.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("chatflow/redis: encode conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, entityKey, data, 0)
			if c.Open() {
				pipe.Set(ctx, openThreadKey(c.Key), cID, 0)
				pipe.SAdd(ctx, openIDsKey, cID)
			} else {
				pipe.Del(ctx, openThreadKey(c.Key))
				pipe.SRem(ctx, openIDsKey, cID)
			}
			return nil
		})
		return err
	}, entityKey)

	if txErr != nil {
		if errors.Is(txErr, goredis.TxFailedErr) {
			// Another writer touched the entity mid-transaction.
			c.Version = readVersion
			return chatflow.ErrVersionConflict
		}
		if errors.Is(txErr, chatflow.ErrVersionConflict) {
			c.Version = readVersion
		}
		return txErr
	}
	return nil
}

// ListIdleBefore returns up to limit open conversations whose last
// update predates cutoff, oldest first.
func (s *Store) ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]*conversation.Conversation, error) {
	ids, err := s.client.SMembers(ctx, openIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("chatflow/redis: list idle smembers: %w", err)
	}

	var out []*conversation.Conversation
	for _, cID := range ids {
		c, getErr := s.getConversation(ctx, cID)
		if getErr != nil {
			if errors.Is(getErr, chatflow.ErrConversationNotFound) {
				continue // index entry outlived the entity
			}
			return nil, getErr
		}
		if !c.Open() || !c.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].UpdatedAt.Before(out[k].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus returns the status breakdown for one workflow.
func (s *Store) CountByStatus(ctx context.Context, tenantID string, workflowID id.WorkflowID) ([]conversation.StatusCount, error) {
	ids, err := s.client.SMembers(ctx, workflowConversationsKey(workflowID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("chatflow/redis: count by status smembers: %w", err)
	}

	byStatus := make(map[conversation.Status]int64)
	for _, cID := range ids {
		c, getErr := s.getConversation(ctx, cID)
		if getErr != nil {
			if errors.Is(getErr, chatflow.ErrConversationNotFound) {
				continue
			}
			return nil, getErr
		}
		if c.TenantID != tenantID {
			continue
		}
		byStatus[c.Status]++
	}

	// Deterministic order for callers and tests.
	ordered := []conversation.Status{
		conversation.StatusTriggered,
		conversation.StatusInProgress,
		conversation.StatusCompleted,
		conversation.StatusAbandoned,
	}
	var counts []conversation.StatusCount
	for _, st := range ordered {
		if n := byStatus[st]; n > 0 {
			counts = append(counts, conversation.StatusCount{Status: st, Count: n})
		}
	}
	return counts, nil
}
