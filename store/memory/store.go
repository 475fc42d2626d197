// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// Ensure Store implements each subsystem store at compile time.
// We can't import store here (import cycle), so we verify per subsystem.
var (
	_ workflow.Store     = (*Store)(nil)
	_ conversation.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	workflows     map[string]*workflow.Workflow
	conversations map[string]*conversation.Conversation
	// openByKey indexes the single open conversation per thread key.
	openByKey map[string]string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		workflows:     make(map[string]*workflow.Workflow),
		conversations: make(map[string]*conversation.Conversation),
		openByKey:     make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow Store
// ──────────────────────────────────────────────────

// CreateWorkflow persists a new workflow definition.
func (m *Store) CreateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := wf.ID.String()
	if _, exists := m.workflows[key]; exists {
		return chatflow.ErrWorkflowAlreadyExists
	}
	cp := copyWorkflow(wf)
	m.workflows[key] = cp
	return nil
}

// UpdateWorkflow replaces a stored workflow definition.
func (m *Store) UpdateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := wf.ID.String()
	if _, exists := m.workflows[key]; !exists {
		return chatflow.ErrWorkflowNotFound
	}
	cp := copyWorkflow(wf)
	cp.UpdatedAt = time.Now().UTC()
	m.workflows[key] = cp
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (m *Store) GetWorkflow(_ context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return nil, chatflow.ErrWorkflowNotFound
	}
	return copyWorkflow(wf), nil
}

// ListWorkflows returns all workflows for a tenant, creation order.
func (m *Store) ListWorkflows(_ context.Context, tenantID string) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, wf := range m.workflows {
		if wf.TenantID != tenantID {
			continue
		}
		out = append(out, copyWorkflow(wf))
	}
	sortWorkflows(out)
	return out, nil
}

// ListPublished returns the trigger candidates for a tenant and channel
// identity, ordered by CreatedAt asc, ID asc.
func (m *Store) ListPublished(_ context.Context, tenantID, channelIdentity string) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, wf := range m.workflows {
		if wf.TenantID != tenantID || !wf.Published {
			continue
		}
		if !wf.MatchesChannel(channelIdentity) {
			continue
		}
		out = append(out, copyWorkflow(wf))
	}
	sortWorkflows(out)
	return out, nil
}

// IncrementCounter atomically bumps one of the workflow's counters.
func (m *Store) IncrementCounter(_ context.Context, workflowID id.WorkflowID, counter workflow.Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return chatflow.ErrWorkflowNotFound
	}
	switch counter {
	case workflow.CounterConversations:
		wf.ConversationCount++
	case workflow.CounterCompletions:
		wf.CompletionCount++
	}
	return nil
}

// ──────────────────────────────────────────────────
// Conversation Store
// ──────────────────────────────────────────────────

// GetConversation retrieves a conversation by ID.
func (m *Store) GetConversation(_ context.Context, conversationID id.ConversationID) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[conversationID.String()]
	if !ok {
		return nil, chatflow.ErrConversationNotFound
	}
	return copyConversation(c), nil
}

// GetOpen fetches the open conversation for a thread key.
func (m *Store) GetOpen(_ context.Context, key string) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cid, ok := m.openByKey[key]
	if !ok {
		return nil, chatflow.ErrConversationNotFound
	}
	c, ok := m.conversations[cid]
	if !ok || !c.Open() {
		return nil, chatflow.ErrConversationNotFound
	}
	return copyConversation(c), nil
}

// CreateConversation persists a new conversation.
func (m *Store) CreateConversation(_ context.Context, c *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.ID.String()
	if _, exists := m.conversations[key]; exists {
		return chatflow.ErrConversationAlreadyExists
	}
	cp := copyConversation(c)
	if cp.Open() {
		// One open conversation per thread key. A stale index entry
		// whose conversation already closed does not block the create.
		if openID, ok := m.openByKey[cp.Key]; ok {
			if cur, live := m.conversations[openID]; live && cur.Open() {
				return chatflow.ErrConversationAlreadyExists
			}
		}
	}
	m.conversations[key] = cp
	if cp.Open() {
		m.openByKey[cp.Key] = key
	}
	return nil
}

// UpdateConversation performs a compare-and-set write: it succeeds only
// if the stored version equals c.Version, then bumps the version by one
// both in the store and on c.
func (m *Store) UpdateConversation(_ context.Context, c *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.ID.String()
	stored, ok := m.conversations[key]
	if !ok {
		return chatflow.ErrConversationNotFound
	}
	if stored.Version != c.Version {
		return chatflow.ErrVersionConflict
	}

	c.Version++
	cp := copyConversation(c)
	cp.UpdatedAt = time.Now().UTC()
	c.UpdatedAt = cp.UpdatedAt
	m.conversations[key] = cp

	if cp.Open() {
		m.openByKey[cp.Key] = key
	} else if m.openByKey[cp.Key] == key {
		delete(m.openByKey, cp.Key)
	}
	return nil
}

// ListIdleBefore returns up to limit open conversations whose last
// update predates cutoff, oldest first.
func (m *Store) ListIdleBefore(_ context.Context, cutoff time.Time, limit int) ([]*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*conversation.Conversation
	for _, c := range m.conversations {
		if !c.Open() || !c.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, copyConversation(c))
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
func (m *Store) CountByStatus(_ context.Context, tenantID string, workflowID id.WorkflowID) ([]conversation.StatusCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[conversation.Status]int64)
	for _, c := range m.conversations {
		if c.TenantID != tenantID || c.WorkflowID.String() != workflowID.String() {
			continue
		}
		counts[c.Status]++
	}

	out := make([]conversation.StatusCount, 0, len(counts))
	for _, s := range []conversation.Status{
		conversation.StatusTriggered,
		conversation.StatusInProgress,
		conversation.StatusCompleted,
		conversation.StatusAbandoned,
	} {
		if n, ok := counts[s]; ok {
			out = append(out, conversation.StatusCount{Status: s, Count: n})
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

// Copies isolate callers from store-internal state and vice versa.

func copyWorkflow(wf *workflow.Workflow) *workflow.Workflow {
	cp := *wf
	cp.Questions = append([]workflow.Question(nil), wf.Questions...)
	for i := range cp.Questions {
		cp.Questions[i].Options = append([]string(nil), wf.Questions[i].Options...)
	}
	return &cp
}

func copyConversation(c *conversation.Conversation) *conversation.Conversation {
	cp := *c
	cp.Answers = append([]conversation.Answer(nil), c.Answers...)
	for i := range cp.Answers {
		cp.Answers[i].Choices = append([]string(nil), c.Answers[i].Choices...)
	}
	if c.Extracted.Custom != nil {
		cp.Extracted.Custom = make(map[string]string, len(c.Extracted.Custom))
		for k, v := range c.Extracted.Custom {
			cp.Extracted.Custom[k] = v
		}
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	if c.AbandonedAt != nil {
		t := *c.AbandonedAt
		cp.AbandonedAt = &t
	}
	return &cp
}

func sortWorkflows(ws []*workflow.Workflow) {
	sort.Slice(ws, func(i, k int) bool {
		if !ws[i].CreatedAt.Equal(ws[k].CreatedAt) {
			return ws[i].CreatedAt.Before(ws[k].CreatedAt)
		}
		return ws[i].ID.String() < ws[k].ID.String()
	})
}
