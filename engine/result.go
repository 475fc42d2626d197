package engine

import (
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/inbound"
	"github.com/enromatics/chatflow/workflow"
)

// Kind classifies what handling an inbound message did.
type Kind string

const (
	// KindNoOp means the message matched no trigger and belonged to no
	// open conversation, or was filtered before reaching the engine.
	KindNoOp Kind = "noop"
	// KindNewTrigger means a trigger matched and a new conversation was
	// created; the replies carry the first question.
	KindNewTrigger Kind = "new_trigger"
	// KindProgressed means an answer was recorded and the replies carry
	// the next question.
	KindProgressed Kind = "progressed"
	// KindCompleted means the final answer arrived (or the conversation
	// was closed defensively); extracted data is final.
	KindCompleted Kind = "completed"
)

// Result describes the outcome of handling one inbound message. The
// reply text is deterministic given the persisted pre-state and the
// inbound text.
type Result struct {
	Kind         Kind
	Conversation *conversation.Conversation
	Workflow     *workflow.Workflow

	// Replies holds outbound message texts in send order. Empty for NoOp.
	Replies []string
}

// OutboundReplies pairs the reply texts with the sender address and
// channel identity of the message that produced them.
func (r *Result) OutboundReplies(msg *inbound.Message) []*inbound.Reply {
	out := make([]*inbound.Reply, 0, len(r.Replies))
	for _, text := range r.Replies {
		out = append(out, &inbound.Reply{
			ChannelIdentity: msg.ChannelIdentity,
			To:              msg.SenderAddress,
			Text:            text,
		})
	}
	return out
}
