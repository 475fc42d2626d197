package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

func newWorkflow(tenantID string, published bool) *workflow.Workflow {
	return &workflow.Workflow{
		Entity:          chatflow.NewEntity(),
		ID:              id.NewWorkflowID(),
		TenantID:        tenantID,
		Name:            "admissions",
		TriggerKeywords: "admission, apply",
		Published:       published,
		Status:          workflow.StatusActive,
		Questions: []workflow.Question{
			{ID: id.NewQuestionID(), Order: 0, Text: "Your name?", Type: workflow.QuestionText, IsNameField: true},
			{ID: id.NewQuestionID(), Order: 1, Text: "Your mobile?", Type: workflow.QuestionText, IsMobileField: true},
		},
	}
}

func newConversation(tenantID string, wfID id.WorkflowID) *conversation.Conversation {
	return &conversation.Conversation{
		Entity:        chatflow.NewEntity(),
		ID:            id.NewConversationID(),
		Key:           conversation.Key(tenantID, "15550001111"),
		TenantID:      tenantID,
		WorkflowID:    wfID,
		SenderAddress: "15550001111",
		Status:        conversation.StatusTriggered,
		StartedAt:     time.Now().UTC(),
		Version:       1,
	}
}

// ──────────────────────────────────────────────────
// Workflow store
// ──────────────────────────────────────────────────

func TestCreateGetWorkflow(t *testing.T) {
	s := New()
	ctx := context.Background()
	wf := newWorkflow("t1", true)

	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.CreateWorkflow(ctx, wf); !errors.Is(err, chatflow.ErrWorkflowAlreadyExists) {
		t.Fatalf("expected ErrWorkflowAlreadyExists, got %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.Name != "admissions" || len(got.Questions) != 2 {
		t.Errorf("unexpected workflow: %+v", got)
	}

	_, err = s.GetWorkflow(ctx, id.NewWorkflowID())
	if !errors.Is(err, chatflow.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestUpdateWorkflow(t *testing.T) {
	s := New()
	ctx := context.Background()
	wf := newWorkflow("t1", false)

	if err := s.UpdateWorkflow(ctx, wf); !errors.Is(err, chatflow.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}

	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	wf.Published = true
	now := time.Now().UTC()
	wf.PublishedAt = &now
	if err := s.UpdateWorkflow(ctx, wf); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if !got.Published {
		t.Error("expected workflow to be published after update")
	}
}

func TestListPublished_FiltersAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	older := newWorkflow("t1", true)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newWorkflow("t1", true)
	draft := newWorkflow("t1", false)
	otherTenant := newWorkflow("t2", true)
	scoped := newWorkflow("t1", true)
	scoped.ChannelIdentity = "wa-other"

	for _, wf := range []*workflow.Workflow{newer, draft, otherTenant, scoped, older} {
		if err := s.CreateWorkflow(ctx, wf); err != nil {
			t.Fatalf("CreateWorkflow: %v", err)
		}
	}

	got, err := s.ListPublished(ctx, "t1", "wa-main")
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// CreatedAt ascending: older first.
	if got[0].ID.String() != older.ID.String() {
		t.Error("expected oldest workflow first")
	}
	if got[1].ID.String() != newer.ID.String() {
		t.Error("expected newer workflow second")
	}
}

func TestListPublished_ChannelScopedIncluded(t *testing.T) {
	s := New()
	ctx := context.Background()

	scoped := newWorkflow("t1", true)
	scoped.ChannelIdentity = "wa-main"
	if err := s.CreateWorkflow(ctx, scoped); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := s.ListPublished(ctx, "t1", "wa-main")
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exact-identity workflow to match, got %d", len(got))
	}
}

func TestIncrementCounter(t *testing.T) {
	s := New()
	ctx := context.Background()
	wf := newWorkflow("t1", true)
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	for range 3 {
		if err := s.IncrementCounter(ctx, wf.ID, workflow.CounterConversations); err != nil {
			t.Fatalf("IncrementCounter: %v", err)
		}
	}
	if err := s.IncrementCounter(ctx, wf.ID, workflow.CounterCompletions); err != nil {
		t.Fatalf("IncrementCounter: %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.ConversationCount != 3 {
		t.Errorf("ConversationCount = %d, want 3", got.ConversationCount)
	}
	if got.CompletionCount != 1 {
		t.Errorf("CompletionCount = %d, want 1", got.CompletionCount)
	}

	if err := s.IncrementCounter(ctx, id.NewWorkflowID(), workflow.CounterConversations); !errors.Is(err, chatflow.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Conversation store
// ──────────────────────────────────────────────────

func TestCreateGetOpenConversation(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newConversation("t1", id.NewWorkflowID())

	if _, err := s.GetOpen(ctx, c.Key); !errors.Is(err, chatflow.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}

	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.CreateConversation(ctx, c); !errors.Is(err, chatflow.ErrConversationAlreadyExists) {
		t.Fatalf("expected ErrConversationAlreadyExists, got %v", err)
	}

	open, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if open.ID.String() != c.ID.String() {
		t.Error("GetOpen returned wrong conversation")
	}

	byID, err := s.GetConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if byID.Key != c.Key {
		t.Error("GetConversation returned wrong conversation")
	}
}

func TestCreateConversation_SecondOpenSameKeyRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	wfID := id.NewWorkflowID()

	first := newConversation("t1", wfID)
	if err := s.CreateConversation(ctx, first); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	// Same thread key, different conversation: the open slot is taken.
	second := newConversation("t1", wfID)
	if err := s.CreateConversation(ctx, second); !errors.Is(err, chatflow.ErrConversationAlreadyExists) {
		t.Fatalf("expected ErrConversationAlreadyExists, got %v", err)
	}
	if _, err := s.GetConversation(ctx, second.ID); !errors.Is(err, chatflow.ErrConversationNotFound) {
		t.Fatalf("rejected conversation should not be stored, got %v", err)
	}

	open, err := s.GetOpen(ctx, first.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if open.ID.String() != first.ID.String() {
		t.Error("GetOpen should still return the first conversation")
	}

	// Once the holder closes, the key is free again.
	open.Abandon(time.Now().UTC())
	if err := s.UpdateConversation(ctx, open); err != nil {
		t.Fatalf("UpdateConversation: %v", err)
	}
	if err := s.CreateConversation(ctx, second); err != nil {
		t.Fatalf("CreateConversation after close: %v", err)
	}
}

func TestUpdateConversation_CAS(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newConversation("t1", id.NewWorkflowID())
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	// First writer reads and updates.
	first, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	// Second writer reads the same version.
	second, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}

	first.CurrentQuestionIndex = 1
	first.Status = conversation.StatusInProgress
	if err := s.UpdateConversation(ctx, first); err != nil {
		t.Fatalf("first UpdateConversation: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version = %d, want 2 after successful CAS", first.Version)
	}

	// Second writer's stale-version write must conflict.
	second.CurrentQuestionIndex = 1
	if err := s.UpdateConversation(ctx, second); !errors.Is(err, chatflow.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// After re-reading, the second writer can proceed.
	fresh, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if fresh.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1", fresh.CurrentQuestionIndex)
	}
	fresh.CurrentQuestionIndex = 2
	if err := s.UpdateConversation(ctx, fresh); err != nil {
		t.Fatalf("fresh UpdateConversation: %v", err)
	}
}

func TestUpdateConversation_ConcurrentWritersLoseAllButOne(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newConversation("t1", id.NewWorkflowID())
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	const writers = 10
	var wg sync.WaitGroup
	conflicts := make(chan error, writers)

	// All writers read the same pre-state, then race to write.
	snapshots := make([]*conversation.Conversation, writers)
	for i := range writers {
		snap, err := s.GetOpen(ctx, c.Key)
		if err != nil {
			t.Fatalf("GetOpen: %v", err)
		}
		snapshots[i] = snap
	}

	for i := range writers {
		wg.Add(1)
		go func(snap *conversation.Conversation) {
			defer wg.Done()
			snap.CurrentQuestionIndex++
			snap.Status = conversation.StatusInProgress
			conflicts <- s.UpdateConversation(ctx, snap)
		}(snapshots[i])
	}
	wg.Wait()
	close(conflicts)

	var okCount, conflictCount int
	for err := range conflicts {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, chatflow.ErrVersionConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 {
		t.Errorf("expected exactly 1 winning writer, got %d", okCount)
	}
	if conflictCount != writers-1 {
		t.Errorf("expected %d conflicts, got %d", writers-1, conflictCount)
	}

	// Exactly one increment applied.
	final, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if final.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1 (no lost or doubled update)", final.CurrentQuestionIndex)
	}
}

func TestTerminalConversationNotOpen(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newConversation("t1", id.NewWorkflowID())
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	open, err := s.GetOpen(ctx, c.Key)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	open.Abandon(time.Now().UTC())
	if err := s.UpdateConversation(ctx, open); err != nil {
		t.Fatalf("UpdateConversation: %v", err)
	}

	if _, err := s.GetOpen(ctx, c.Key); !errors.Is(err, chatflow.ErrConversationNotFound) {
		t.Fatalf("expected no open conversation after abandon, got %v", err)
	}

	// The terminal record itself is still fetchable by id.
	got, err := s.GetConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Status != conversation.StatusAbandoned {
		t.Errorf("Status = %s, want abandoned", got.Status)
	}
}

func TestListIdleBefore(t *testing.T) {
	s := New()
	ctx := context.Background()

	stale := newConversation("t1", id.NewWorkflowID())
	stale.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	fresh := newConversation("t1", id.NewWorkflowID())
	fresh.Key = conversation.Key("t1", "15550002222")
	fresh.SenderAddress = "15550002222"

	if err := s.CreateConversation(ctx, stale); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.CreateConversation(ctx, fresh); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	idle, err := s.ListIdleBefore(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListIdleBefore: %v", err)
	}
	if len(idle) != 1 {
		t.Fatalf("expected 1 idle conversation, got %d", len(idle))
	}
	if idle[0].ID.String() != stale.ID.String() {
		t.Error("expected the stale conversation")
	}
}

func TestCountByStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	wfID := id.NewWorkflowID()

	for i, status := range []conversation.Status{
		conversation.StatusCompleted,
		conversation.StatusCompleted,
		conversation.StatusAbandoned,
		conversation.StatusTriggered,
	} {
		c := newConversation("t1", wfID)
		c.Key = conversation.Key("t1", string(rune('a'+i)))
		c.Status = status
		if err := s.CreateConversation(ctx, c); err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
	}

	counts, err := s.CountByStatus(ctx, "t1", wfID)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}

	got := make(map[conversation.Status]int64)
	for _, sc := range counts {
		got[sc.Status] = sc.Count
	}
	if got[conversation.StatusCompleted] != 2 {
		t.Errorf("completed = %d, want 2", got[conversation.StatusCompleted])
	}
	if got[conversation.StatusAbandoned] != 1 {
		t.Errorf("abandoned = %d, want 1", got[conversation.StatusAbandoned])
	}
	if got[conversation.StatusTriggered] != 1 {
		t.Errorf("triggered = %d, want 1", got[conversation.StatusTriggered])
	}
}

func TestCopiesIsolateCallers(t *testing.T) {
	s := New()
	ctx := context.Background()
	wf := newWorkflow("t1", true)
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	got.Questions[0].Text = "mutated"

	again, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if again.Questions[0].Text == "mutated" {
		t.Error("store returned shared state; callers must get copies")
	}
}
