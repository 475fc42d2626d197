package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/enromatics/chatflow/inbound"
)

// meterName is the instrumentation scope name for chatflow metrics.
const meterName = "github.com/enromatics/chatflow"

// Metrics returns middleware that records per-message handling metrics
// using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - chatflow.message.duration (Float64Histogram): handling time in seconds,
//     with attributes: channel_identity, type, status ("ok" or "error")
//   - chatflow.message.handled (Int64Counter): total messages handled,
//     with attributes: channel_identity, type, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"chatflow.message.duration",
		metric.WithDescription("Duration of inbound message handling in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	handled, hErr := meter.Int64Counter(
		"chatflow.message.handled",
		metric.WithDescription("Total number of inbound messages handled"),
		metric.WithUnit("{message}"),
	)
	_ = hErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, msg *inbound.Message, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("channel_identity", msg.ChannelIdentity),
			attribute.String("type", string(msg.Type)),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		handled.Add(ctx, 1, attrs)

		return err
	}
}
