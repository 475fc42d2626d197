// Package engine wires all chatflow subsystems together and provides
// the primary application-level API for handling inbound messages.
//
// The engine package exists to break a fundamental import cycle: the
// root chatflow package defines Entity (imported by workflow,
// conversation, etc.) and therefore cannot import those packages back.
// Engine sits above all subsystem packages and below the application
// layer.
//
// # Building an Engine
//
//	a, err := chatflow.New(
//	    chatflow.WithStore(pgStore),
//	    chatflow.WithWriteRetryLimit(5),
//	)
//
//	eng, err := engine.Build(a,
//	    engine.WithResolver(routeResolver),
//	    engine.WithDeliverer(whatsappClient),
//	    engine.WithExtension(crmExtension),
//	    engine.WithMiddleware(middleware.Timeout(10*time.Second)),
//	    engine.WithThrottle(throttle.Config{
//	        ChannelIdentity: "wa-business-1",
//	        RateLimit:       50,
//	    }),
//	)
//
// # Handling Messages
//
// The webhook layer normalizes each provider event into an
// inbound.Message and hands it to the engine:
//
//	result, err := eng.HandleMessage(ctx, msg)
//
// The engine resolves the tenant route, matches triggers, advances the
// sender's conversation, and delivers any replies through the
// configured Deliverer. Concurrent messages for the same sender are
// serialized per thread key; writes are version-checked and retried on
// conflict.
//
// # Options
//
//   - [WithResolver] — set the channel identity → tenant route resolver
//   - [WithDeliverer] — set the outbound reply deliverer
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add a middleware to the handling chain
//   - [WithBackoff] — set the conflict retry backoff strategy
//   - [WithThrottle] — configure per-channel rate limits and concurrency
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
