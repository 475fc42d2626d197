package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/enromatics/chatflow/inbound"
)

// tracerName is the instrumentation scope name for chatflow tracing.
const tracerName = "github.com/enromatics/chatflow"

// Tracing returns middleware that wraps message handling in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: chatflow.tenant_id, chatflow.channel_identity,
// chatflow.sender, chatflow.message.type, chatflow.message.provider_id.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, msg *inbound.Message, next Handler) error {
		ctx, span := tracer.Start(ctx, "chatflow.message.handle",
			trace.WithAttributes(
				attribute.String("chatflow.tenant_id", msg.TenantID),
				attribute.String("chatflow.channel_identity", msg.ChannelIdentity),
				attribute.String("chatflow.sender", msg.SenderAddress),
				attribute.String("chatflow.message.type", string(msg.Type)),
				attribute.String("chatflow.message.provider_id", msg.ProviderMessageID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
