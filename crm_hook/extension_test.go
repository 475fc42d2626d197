package crmhook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/enromatics/chatflow/conversation"
	ch "github.com/enromatics/chatflow/crm_hook"
	"github.com/enromatics/chatflow/ext"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// ── Mock sink ────────────────────────────────────────

// mockSink captures leads for verification.
type mockSink struct {
	mu    sync.Mutex
	leads []*ch.Lead
}

func (m *mockSink) CreateLead(_ context.Context, lead *ch.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, lead)
	return nil
}

func (m *mockSink) last() *ch.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.leads) == 0 {
		return nil
	}
	return m.leads[len(m.leads)-1]
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

// ── Test helpers ─────────────────────────────────────

func newCompletedConversation() *conversation.Conversation {
	now := time.Now().UTC()
	c := &conversation.Conversation{
		ID:            id.NewConversationID(),
		Key:           conversation.Key("tenant_123", "15550001111"),
		TenantID:      "tenant_123",
		WorkflowID:    id.NewWorkflowID(),
		SenderAddress: "15550001111",
		Source:        "whatsapp",
		StartedAt:     now.Add(-5 * time.Minute),
	}
	c.RecordAnswer(workflow.Question{
		ID:          id.NewQuestionID(),
		Text:        "What is your name?",
		Type:        workflow.QuestionText,
		IsNameField: true,
	}, "Asha", now.Add(-4*time.Minute))
	c.RecordAnswer(workflow.Question{
		ID:            id.NewQuestionID(),
		Text:          "What is your mobile number?",
		Type:          workflow.QuestionText,
		IsMobileField: true,
	}, "9876500000", now.Add(-3*time.Minute))
	c.RecordAnswer(workflow.Question{
		ID:       id.NewQuestionID(),
		Text:     "Which grade?",
		Type:     workflow.QuestionText,
		CRMField: "grade",
	}, "Grade 9", now.Add(-2*time.Minute))
	c.Complete(now)
	return c
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink)
	if e.Name() != "crm-hook" {
		t.Errorf("expected name %q, got %q", "crm-hook", e.Name())
	}
}

func TestExtension_CompletedCreatesLead(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink)
	c := newCompletedConversation()

	if err := e.OnConversationCompleted(context.Background(), c); err != nil {
		t.Fatalf("OnConversationCompleted: %v", err)
	}

	lead := sink.last()
	if lead == nil {
		t.Fatal("no lead created")
	}
	if lead.TenantID != "tenant_123" {
		t.Errorf("TenantID: want %q, got %q", "tenant_123", lead.TenantID)
	}
	if lead.Name != "Asha" {
		t.Errorf("Name: want %q, got %q", "Asha", lead.Name)
	}
	if lead.Mobile != "9876500000" {
		t.Errorf("Mobile: want %q, got %q", "9876500000", lead.Mobile)
	}
	if lead.Custom["grade"] != "Grade 9" {
		t.Errorf("Custom[grade]: want %q, got %q", "Grade 9", lead.Custom["grade"])
	}
	if lead.Answers["What is your name?"] != "Asha" {
		t.Errorf("Answers[name question]: want %q, got %q", "Asha", lead.Answers["What is your name?"])
	}
	if lead.ConversationID != c.ID {
		t.Errorf("ConversationID: want %v, got %v", c.ID, lead.ConversationID)
	}
	if lead.WorkflowID != c.WorkflowID {
		t.Errorf("WorkflowID: want %v, got %v", c.WorkflowID, lead.WorkflowID)
	}
	if lead.Source != "whatsapp" {
		t.Errorf("Source: want %q, got %q", "whatsapp", lead.Source)
	}
	if lead.Partial {
		t.Error("completed conversation should not produce a partial lead")
	}
	if lead.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}
}

func TestExtension_WithSourceOverrides(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink, ch.WithSource("chatbot"))
	c := newCompletedConversation()

	if err := e.OnConversationCompleted(context.Background(), c); err != nil {
		t.Fatalf("OnConversationCompleted: %v", err)
	}
	if got := sink.last().Source; got != "chatbot" {
		t.Errorf("Source: want %q, got %q", "chatbot", got)
	}
}

func TestExtension_AbandonedSkippedByDefault(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink)

	c := newCompletedConversation()
	c.Status = conversation.StatusInProgress
	c.Abandon(time.Now().UTC())

	if err := e.OnConversationAbandoned(context.Background(), c); err != nil {
		t.Fatalf("OnConversationAbandoned: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("expected 0 leads (partial leads disabled), got %d", sink.count())
	}
}

func TestExtension_PartialLeads(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink, ch.WithPartialLeads())
	ctx := context.Background()

	// A thread abandoned before capturing a mobile stays invisible.
	noMobile := &conversation.Conversation{
		ID:       id.NewConversationID(),
		TenantID: "tenant_123",
	}
	noMobile.Abandon(time.Now().UTC())
	if err := e.OnConversationAbandoned(ctx, noMobile); err != nil {
		t.Fatalf("OnConversationAbandoned: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("expected 0 leads without a mobile, got %d", sink.count())
	}

	// One with a mobile becomes a partial lead.
	withMobile := newCompletedConversation()
	withMobile.Status = conversation.StatusInProgress
	withMobile.Abandon(time.Now().UTC())
	if err := e.OnConversationAbandoned(ctx, withMobile); err != nil {
		t.Fatalf("OnConversationAbandoned: %v", err)
	}
	lead := sink.last()
	if lead == nil {
		t.Fatal("expected a partial lead")
	}
	if !lead.Partial {
		t.Error("lead should be marked partial")
	}
	if lead.Mobile != "9876500000" {
		t.Errorf("Mobile: want %q, got %q", "9876500000", lead.Mobile)
	}
}

// ── SinkFunc adapter test ────────────────────────────

func TestSinkFunc(t *testing.T) {
	var captured *ch.Lead
	fn := ch.SinkFunc(func(_ context.Context, lead *ch.Lead) error {
		captured = lead
		return nil
	})

	e := ch.New(fn)
	if err := e.OnConversationCompleted(context.Background(), newCompletedConversation()); err != nil {
		t.Fatalf("OnConversationCompleted: %v", err)
	}
	if captured == nil {
		t.Fatal("SinkFunc was not called")
	}
	if captured.Name != "Asha" {
		t.Errorf("Name: want %q, got %q", "Asha", captured.Name)
	}
}

// ── Sink error handling test ─────────────────────────

func TestExtension_SinkError_DoesNotPropagate(t *testing.T) {
	failing := ch.SinkFunc(func(_ context.Context, _ *ch.Lead) error {
		return errors.New("crm backend down")
	})

	e := ch.New(failing)

	// Hook should NOT return an error — CRM failures must not block
	// the conversation pipeline.
	if err := e.OnConversationCompleted(context.Background(), newCompletedConversation()); err != nil {
		t.Fatalf("expected no error (sink failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	sink := &mockSink{}
	e := ch.New(sink, ch.WithPartialLeads())

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	c := newCompletedConversation()

	reg.EmitConversationCompleted(ctx, c)

	abandoned := newCompletedConversation()
	abandoned.Status = conversation.StatusInProgress
	abandoned.Abandon(time.Now().UTC())
	reg.EmitConversationAbandoned(ctx, abandoned)

	if sink.count() != 2 {
		t.Fatalf("expected 2 leads, got %d", sink.count())
	}
}
