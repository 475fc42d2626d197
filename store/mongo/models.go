package mongo

import (
	"fmt"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/workflow"
)

// ── Workflow model ────────────────────────────────────────────────

type questionModel struct {
	ID            string   `bson:"id"`
	Order         int      `bson:"order"`
	Text          string   `bson:"text"`
	Description   string   `bson:"description,omitempty"`
	Type          string   `bson:"type"`
	Options       []string `bson:"options,omitempty"`
	Required      bool     `bson:"required"`
	IsNameField   bool     `bson:"is_name_field"`
	IsMobileField bool     `bson:"is_mobile_field"`
	CRMField      string   `bson:"crm_field,omitempty"`
	Placeholder   string   `bson:"placeholder,omitempty"`
	HelpText      string   `bson:"help_text,omitempty"`
}

type workflowModel struct {
	ID                string          `bson:"_id"`
	TenantID          string          `bson:"tenant_id"`
	Name              string          `bson:"name"`
	Description       string          `bson:"description,omitempty"`
	Kind              string          `bson:"kind"`
	Questions         []questionModel `bson:"questions"`
	ChannelIdentity   string          `bson:"channel_identity"`
	TriggerKeywords   string          `bson:"trigger_keywords"`
	InitialMessage    string          `bson:"initial_message,omitempty"`
	CompletionMessage string          `bson:"completion_message,omitempty"`
	Status            string          `bson:"status"`
	Published         bool            `bson:"published"`
	PublishedAt       *time.Time      `bson:"published_at,omitempty"`
	ConversationCount int64           `bson:"conversation_count"`
	CompletionCount   int64           `bson:"completion_count"`
	CreatedAt         time.Time       `bson:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at"`
}

func toWorkflowModel(w *workflow.Workflow) *workflowModel {
	questions := make([]questionModel, 0, len(w.Questions))
	for _, q := range w.Questions {
		questions = append(questions, questionModel{
			ID:            q.ID.String(),
			Order:         q.Order,
			Text:          q.Text,
			Description:   q.Description,
			Type:          string(q.Type),
			Options:       q.Options,
			Required:      q.Required,
			IsNameField:   q.IsNameField,
			IsMobileField: q.IsMobileField,
			CRMField:      q.CRMField,
			Placeholder:   q.Placeholder,
			HelpText:      q.HelpText,
		})
	}

	return &workflowModel{
		ID:                w.ID.String(),
		TenantID:          w.TenantID,
		Name:              w.Name,
		Description:       w.Description,
		Kind:              string(w.Kind),
		Questions:         questions,
		ChannelIdentity:   w.ChannelIdentity,
		TriggerKeywords:   w.TriggerKeywords,
		InitialMessage:    w.InitialMessage,
		CompletionMessage: w.CompletionMessage,
		Status:            string(w.Status),
		Published:         w.Published,
		PublishedAt:       w.PublishedAt,
		ConversationCount: w.ConversationCount,
		CompletionCount:   w.CompletionCount,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	parsedID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: parse workflow id %q: %w", m.ID, err)
	}

	questions := make([]workflow.Question, 0, len(m.Questions))
	for _, q := range m.Questions {
		qid, qErr := id.ParseQuestionID(q.ID)
		if qErr != nil {
			return nil, fmt.Errorf("chatflow/mongo: parse question id %q: %w", q.ID, qErr)
		}
		questions = append(questions, workflow.Question{
			ID:            qid,
			Order:         q.Order,
			Text:          q.Text,
			Description:   q.Description,
			Type:          workflow.QuestionType(q.Type),
			Options:       q.Options,
			Required:      q.Required,
			IsNameField:   q.IsNameField,
			IsMobileField: q.IsMobileField,
			CRMField:      q.CRMField,
			Placeholder:   q.Placeholder,
			HelpText:      q.HelpText,
		})
	}

	return &workflow.Workflow{
		Entity: chatflow.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                parsedID,
		TenantID:          m.TenantID,
		Name:              m.Name,
		Description:       m.Description,
		Kind:              workflow.Kind(m.Kind),
		Questions:         questions,
		ChannelIdentity:   m.ChannelIdentity,
		TriggerKeywords:   m.TriggerKeywords,
		InitialMessage:    m.InitialMessage,
		CompletionMessage: m.CompletionMessage,
		Status:            workflow.Status(m.Status),
		Published:         m.Published,
		PublishedAt:       m.PublishedAt,
		ConversationCount: m.ConversationCount,
		CompletionCount:   m.CompletionCount,
	}, nil
}

// ── Conversation model ────────────────────────────────────────────

type answerModel struct {
	QuestionID   string    `bson:"question_id"`
	QuestionText string    `bson:"question_text"`
	Type         string    `bson:"type"`
	Text         string    `bson:"text,omitempty"`
	Choices      []string  `bson:"choices,omitempty"`
	CRMField     string    `bson:"crm_field,omitempty"`
	AnsweredAt   time.Time `bson:"answered_at"`
}

type extractedModel struct {
	Name   string            `bson:"name,omitempty"`
	Mobile string            `bson:"mobile,omitempty"`
	Email  string            `bson:"email,omitempty"`
	Custom map[string]string `bson:"custom,omitempty"`
}

type conversationModel struct {
	ID                   string         `bson:"_id"`
	Key                  string         `bson:"key"`
	TenantID             string         `bson:"tenant_id"`
	WorkflowID           string         `bson:"workflow_id"`
	SenderAddress        string         `bson:"sender_address"`
	SenderProfileName    string         `bson:"sender_profile_name,omitempty"`
	CurrentQuestionIndex int            `bson:"current_question_index"`
	Answers              []answerModel  `bson:"answers,omitempty"`
	Extracted            extractedModel `bson:"extracted"`
	Status               string         `bson:"status"`
	StartedAt            time.Time      `bson:"started_at"`
	CompletedAt          *time.Time     `bson:"completed_at,omitempty"`
	AbandonedAt          *time.Time     `bson:"abandoned_at,omitempty"`
	LastInboundID        string         `bson:"last_inbound_id,omitempty"`
	Source               string         `bson:"source,omitempty"`
	Version              int64          `bson:"version"`
	CreatedAt            time.Time      `bson:"created_at"`
	UpdatedAt            time.Time      `bson:"updated_at"`
}

func toConversationModel(c *conversation.Conversation) *conversationModel {
	answers := make([]answerModel, 0, len(c.Answers))
	for _, a := range c.Answers {
		answers = append(answers, answerModel{
			QuestionID:   a.QuestionID.String(),
			QuestionText: a.QuestionText,
			Type:         string(a.Type),
			Text:         a.Text,
			Choices:      a.Choices,
			CRMField:     a.CRMField,
			AnsweredAt:   a.AnsweredAt,
		})
	}

	return &conversationModel{
		ID:                   c.ID.String(),
		Key:                  c.Key,
		TenantID:             c.TenantID,
		WorkflowID:           c.WorkflowID.String(),
		SenderAddress:        c.SenderAddress,
		SenderProfileName:    c.SenderProfileName,
		CurrentQuestionIndex: c.CurrentQuestionIndex,
		Answers:              answers,
		Extracted: extractedModel{
			Name:   c.Extracted.Name,
			Mobile: c.Extracted.Mobile,
			Email:  c.Extracted.Email,
			Custom: c.Extracted.Custom,
		},
		Status:        string(c.Status),
		StartedAt:     c.StartedAt,
		CompletedAt:   c.CompletedAt,
		AbandonedAt:   c.AbandonedAt,
		LastInboundID: c.LastInboundID,
		Source:        c.Source,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromConversationModel(m *conversationModel) (*conversation.Conversation, error) {
	parsedID, err := id.ParseConversationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: parse conversation id %q: %w", m.ID, err)
	}
	workflowID, err := id.ParseWorkflowID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("chatflow/mongo: parse workflow id %q: %w", m.WorkflowID, err)
	}

	answers := make([]conversation.Answer, 0, len(m.Answers))
	for _, a := range m.Answers {
		qid, qErr := id.ParseQuestionID(a.QuestionID)
		if qErr != nil {
			return nil, fmt.Errorf("chatflow/mongo: parse question id %q: %w", a.QuestionID, qErr)
		}
		answers = append(answers, conversation.Answer{
			QuestionID:   qid,
			QuestionText: a.QuestionText,
			Type:         workflow.QuestionType(a.Type),
			Text:         a.Text,
			Choices:      a.Choices,
			CRMField:     a.CRMField,
			AnsweredAt:   a.AnsweredAt,
		})
	}

	return &conversation.Conversation{
		Entity: chatflow.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   parsedID,
		Key:                  m.Key,
		TenantID:             m.TenantID,
		WorkflowID:           workflowID,
		SenderAddress:        m.SenderAddress,
		SenderProfileName:    m.SenderProfileName,
		CurrentQuestionIndex: m.CurrentQuestionIndex,
		Answers:              answers,
		Extracted: conversation.ExtractedData{
			Name:   m.Extracted.Name,
			Mobile: m.Extracted.Mobile,
			Email:  m.Extracted.Email,
			Custom: m.Extracted.Custom,
		},
		Status:        conversation.Status(m.Status),
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		AbandonedAt:   m.AbandonedAt,
		LastInboundID: m.LastInboundID,
		Source:        m.Source,
		Version:       m.Version,
	}, nil
}
