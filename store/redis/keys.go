package redis

// Redis key naming conventions for chatflow data.
// All keys are prefixed with "chatflow:" to avoid collisions.

const keyPrefix = "chatflow:"

// ── Workflow keys ──

// workflowKey returns the key for a workflow entity: chatflow:workflow:{id}
func workflowKey(id string) string { return keyPrefix + "workflow:" + id }

// workflowCountersKey returns the Hash holding a workflow's statistics:
// chatflow:workflow_counters:{id}. Counters live outside the entity JSON
// so HINCRBY can bump them atomically.
func workflowCountersKey(id string) string { return keyPrefix + "workflow_counters:" + id }

// tenantWorkflowsKey returns the Sorted Set of a tenant's workflow IDs,
// scored by creation time: chatflow:tenant_workflows:{tenantID}
func tenantWorkflowsKey(tenantID string) string {
	return keyPrefix + "tenant_workflows:" + tenantID
}

// ── Conversation keys ──

// conversationKey returns the key for a conversation entity: chatflow:conversation:{id}
func conversationKey(id string) string { return keyPrefix + "conversation:" + id }

// openThreadKey returns the key holding the open conversation ID for a
// thread: chatflow:open:{threadKey}
func openThreadKey(threadKey string) string { return keyPrefix + "open:" + threadKey }

// openIDsKey is the Set tracking open conversation IDs for the idle sweeper.
const openIDsKey = keyPrefix + "open_ids"

// workflowConversationsKey returns the Set of conversation IDs started by
// a workflow: chatflow:workflow_conversations:{workflowID}
func workflowConversationsKey(workflowID string) string {
	return keyPrefix + "workflow_conversations:" + workflowID
}
