package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/ext"
	"github.com/enromatics/chatflow/inbound"
	"github.com/enromatics/chatflow/workflow"
)

// meterName is the instrumentation scope name for chatflow observability.
const meterName = "github.com/enromatics/chatflow/observability"

// Compile-time interface checks.
var (
	_ ext.Extension              = (*MetricsExtension)(nil)
	_ ext.ConversationStarted    = (*MetricsExtension)(nil)
	_ ext.ConversationProgressed = (*MetricsExtension)(nil)
	_ ext.ConversationCompleted  = (*MetricsExtension)(nil)
	_ ext.ConversationAbandoned  = (*MetricsExtension)(nil)
	_ ext.MessageIgnored         = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters via OTel.
// Register it as a chatflow extension to automatically track
// conversation start, progression, completion, abandonment, and ignored
// message rates, partitioned by tenant.
type MetricsExtension struct {
	started    metric.Int64Counter
	progressed metric.Int64Counter
	completed  metric.Int64Counter
	abandoned  metric.Int64Counter
	ignored    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. Without a configured provider the instruments are
// noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a test MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	// On error the API returns noop instruments, so the extension
	// degrades gracefully.
	m.started, _ = meter.Int64Counter(
		"chatflow.conversation.started",
		metric.WithDescription("Total conversations started by trigger matches"),
		metric.WithUnit("{conversation}"),
	)
	m.progressed, _ = meter.Int64Counter(
		"chatflow.conversation.progressed",
		metric.WithDescription("Total answers recorded across conversations"),
		metric.WithUnit("{answer}"),
	)
	m.completed, _ = meter.Int64Counter(
		"chatflow.conversation.completed",
		metric.WithDescription("Total conversations completed"),
		metric.WithUnit("{conversation}"),
	)
	m.abandoned, _ = meter.Int64Counter(
		"chatflow.conversation.abandoned",
		metric.WithDescription("Total conversations abandoned"),
		metric.WithUnit("{conversation}"),
	)
	m.ignored, _ = meter.Int64Counter(
		"chatflow.message.ignored",
		metric.WithDescription("Total inbound messages that matched nothing"),
		metric.WithUnit("{message}"),
	)
	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func tenantAttrs(tenantID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tenant_id", tenantID))
}

// OnConversationStarted implements ext.ConversationStarted.
func (m *MetricsExtension) OnConversationStarted(ctx context.Context, c *conversation.Conversation, _ *workflow.Workflow) error {
	m.started.Add(ctx, 1, tenantAttrs(c.TenantID))
	return nil
}

// OnConversationProgressed implements ext.ConversationProgressed.
func (m *MetricsExtension) OnConversationProgressed(ctx context.Context, c *conversation.Conversation, _ conversation.Answer) error {
	m.progressed.Add(ctx, 1, tenantAttrs(c.TenantID))
	return nil
}

// OnConversationCompleted implements ext.ConversationCompleted.
func (m *MetricsExtension) OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error {
	m.completed.Add(ctx, 1, tenantAttrs(c.TenantID))
	return nil
}

// OnConversationAbandoned implements ext.ConversationAbandoned.
func (m *MetricsExtension) OnConversationAbandoned(ctx context.Context, c *conversation.Conversation) error {
	m.abandoned.Add(ctx, 1, tenantAttrs(c.TenantID))
	return nil
}

// OnMessageIgnored implements ext.MessageIgnored.
func (m *MetricsExtension) OnMessageIgnored(ctx context.Context, msg *inbound.Message) error {
	m.ignored.Add(ctx, 1, tenantAttrs(msg.TenantID))
	return nil
}
