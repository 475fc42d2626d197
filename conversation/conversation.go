// Package conversation defines the per-sender automation thread: its
// status state machine, the append-only answer log, extracted data, and
// the conversation store interface.
package conversation

import (
	"strings"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// Status represents the lifecycle state of a conversation.
//
//	(none) --trigger--> triggered --answer--> in_progress ... --last answer--> completed
//	triggered|in_progress --new trigger, same sender--> abandoned
//
// completed and abandoned are terminal.
type Status string

const (
	// StatusTriggered means a trigger matched and the first question was
	// issued; no answer has arrived yet.
	StatusTriggered Status = "triggered"
	// StatusInProgress means at least one answer has been recorded and
	// questions remain.
	StatusInProgress Status = "in_progress"
	// StatusCompleted means every question was answered.
	StatusCompleted Status = "completed"
	// StatusAbandoned means a newer trigger for the same sender
	// superseded this conversation before it completed.
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Key derives the thread key for a sender within a tenant. One logical
// thread exists per (tenant, sender) pair regardless of workflow, so a
// new trigger for the same sender always supersedes the old thread.
// The derivation is deterministic: the same inputs always name the same
// thread.
func Key(tenantID, senderAddress string) string {
	return tenantID + ":" + strings.TrimSpace(senderAddress)
}

// Answer is one recorded reply, shaped by the question type that
// prompted it: text and single-choice answers carry Text, multi-select
// answers carry Choices.
type Answer struct {
	QuestionID   id.QuestionID         `json:"question_id"`
	QuestionText string                `json:"question_text"`
	Type         workflow.QuestionType `json:"type"`

	Text    string   `json:"text,omitempty"`
	Choices []string `json:"choices,omitempty"`

	// CRMField carries the question's CRM mapping so downstream lead
	// creation never has to re-resolve the workflow definition.
	CRMField string `json:"crm_field,omitempty"`

	AnsweredAt time.Time `json:"answered_at"`
}

// NewAnswer records raw inbound text as an answer to q, applying the
// answer shape q's type dictates. Multi-select input is comma-split and
// trimmed; everything else is stored verbatim.
func NewAnswer(q workflow.Question, raw string, at time.Time) Answer {
	a := Answer{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Type:         q.Type,
		CRMField:     q.CRMField,
		AnsweredAt:   at,
	}

	if q.Type == workflow.QuestionMultiSelect {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				a.Choices = append(a.Choices, p)
			}
		}
		return a
	}

	a.Text = raw
	return a
}

// Value renders the answer as a single string regardless of shape.
func (a Answer) Value() string {
	if a.Type == workflow.QuestionMultiSelect {
		return strings.Join(a.Choices, ", ")
	}
	return a.Text
}

// ExtractedData holds the normalized fields pulled out of answers as
// flagged questions are answered.
type ExtractedData struct {
	Name   string            `json:"name,omitempty"`
	Mobile string            `json:"mobile,omitempty"`
	Email  string            `json:"email,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`
}

// SetCustom records a CRM-mapped answer value, allocating the map on
// first use. The well-known "email" field lands in Email.
func (e *ExtractedData) SetCustom(field, value string) {
	if field == "email" {
		e.Email = value
		return
	}
	if e.Custom == nil {
		e.Custom = make(map[string]string)
	}
	e.Custom[field] = value
}

// Conversation is one in-flight or finished run of a workflow against
// one sender. At most one conversation per thread key may be open at a
// time; the engine abandons the old one before creating a new one.
type Conversation struct {
	chatflow.Entity

	ID  id.ConversationID `json:"id"`
	Key string            `json:"key"`

	TenantID   string        `json:"tenant_id"`
	WorkflowID id.WorkflowID `json:"workflow_id"`

	SenderAddress     string `json:"sender_address"`
	SenderProfileName string `json:"sender_profile_name,omitempty"`

	// CurrentQuestionIndex is the index into the owning workflow's
	// question list the thread is waiting an answer for. Completion does
	// not advance it past the last question.
	CurrentQuestionIndex int `json:"current_question_index"`

	// Answers is append-only.
	Answers []Answer `json:"answers,omitempty"`

	Extracted ExtractedData `json:"extracted"`

	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`

	// LastInboundID is the provider message id of the last inbound this
	// conversation consumed. Repeats of the same id short-circuit, which
	// makes at-least-once channel delivery safe.
	LastInboundID string `json:"last_inbound_id,omitempty"`

	// Source tags where this conversation came from.
	Source string `json:"source,omitempty"`

	// Version is the optimistic concurrency token. Stores condition every
	// update on it; see Store.UpdateConversation.
	Version int64 `json:"version"`
}

// Open reports whether the conversation can still consume answers.
func (c *Conversation) Open() bool {
	return c.Status == StatusTriggered || c.Status == StatusInProgress
}

// RecordAnswer appends an answer and applies its extraction flags and
// CRM mapping to the conversation's extracted data.
func (c *Conversation) RecordAnswer(q workflow.Question, raw string, at time.Time) Answer {
	a := NewAnswer(q, raw, at)
	c.Answers = append(c.Answers, a)

	if q.IsNameField {
		c.Extracted.Name = a.Value()
	}
	if q.IsMobileField {
		c.Extracted.Mobile = a.Value()
	}
	if q.CRMField != "" {
		c.Extracted.SetCustom(q.CRMField, a.Value())
	}

	return a
}

// Complete transitions the conversation to completed at the given time.
func (c *Conversation) Complete(at time.Time) {
	c.Status = StatusCompleted
	t := at
	c.CompletedAt = &t
}

// Abandon transitions the conversation to abandoned at the given time.
func (c *Conversation) Abandon(at time.Time) {
	c.Status = StatusAbandoned
	t := at
	c.AbandonedAt = &t
}
