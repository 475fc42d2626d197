package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/backoff"
	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/ext"
	"github.com/enromatics/chatflow/id"
	"github.com/enromatics/chatflow/inbound"
	"github.com/enromatics/chatflow/lock"
	mw "github.com/enromatics/chatflow/middleware"
	"github.com/enromatics/chatflow/observability"
	"github.com/enromatics/chatflow/throttle"
	"github.com/enromatics/chatflow/trigger"
	"github.com/enromatics/chatflow/workflow"
)

// Engine wraps an Automator with typed subsystem access.
// Use Build() to create one from an Automator.
type Engine struct {
	a      *chatflow.Automator
	cfg    chatflow.Config
	logger *slog.Logger

	extensions    *ext.Registry
	workflows     workflow.Store
	conversations conversation.Store

	resolver  inbound.Resolver
	deliverer inbound.Deliverer

	bo    backoff.Strategy
	mws   []mw.Middleware
	chain mw.Middleware
	locks *lock.Keyed

	// Throttle subsystem.
	throttleConfigs []throttle.Config
	throttleManager *throttle.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the resolver that maps channel identities to
// tenant routes. Without one, messages must arrive with TenantID
// already populated.
func WithResolver(r inbound.Resolver) Option {
	return func(eng *Engine) {
		eng.resolver = r
	}
}

// WithDeliverer sets the deliverer used to send replies back out.
// Without one, replies are returned on the Result but not sent.
func WithDeliverer(d inbound.Deliverer) Option {
	return func(eng *Engine) {
		eng.deliverer = d
	}
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the conflict retry backoff strategy for the engine.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithThrottle registers channel-level rate limiting and concurrency
// configurations. Channels not listed have no limits.
func WithThrottle(configs ...throttle.Config) Option {
	return func(eng *Engine) {
		eng.throttleConfigs = append(eng.throttleConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Automator.
// The Automator's store must implement workflow.Store and
// conversation.Store.
func Build(a *chatflow.Automator, opts ...Option) (*Engine, error) {
	logger := a.Logger()
	store := a.Store()

	if store == nil {
		return nil, chatflow.ErrNoStore
	}

	// Type-assert the store to get the workflow.Store interface.
	ws, ok := store.(workflow.Store)
	if !ok {
		return nil, fmt.Errorf("chatflow: store does not implement workflow.Store")
	}

	// Type-assert the store to get the conversation.Store interface.
	cs, ok := store.(conversation.Store)
	if !ok {
		return nil, fmt.Errorf("chatflow: store does not implement conversation.Store")
	}

	eng := &Engine{
		a:             a,
		cfg:           a.Config(),
		logger:        logger,
		extensions:    ext.NewRegistry(logger),
		workflows:     ws,
		conversations: cs,
		locks:         lock.NewKeyed(),
	}

	for _, opt := range opts {
		opt(eng)
	}

	// Default backoff strategy if none provided.
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/enromatics/chatflow")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/enromatics/chatflow")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/enromatics/chatflow/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Build default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(eng.cfg.HandleTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)
	eng.chain = mw.Chain(allMws...)

	// Create the throttle manager if channel configs were provided.
	if len(eng.throttleConfigs) > 0 {
		eng.throttleManager = throttle.NewManager(eng.throttleConfigs...)
	}

	// Wire back into the Automator so Close emits the shutdown hook.
	a.SetExtensions(eng.extensions)

	return eng, nil
}

// HandleMessage processes one inbound message end to end: it resolves
// the tenant route, applies throttling and the middleware chain, runs
// the conversation engine, and delivers any replies through the
// configured Deliverer.
//
// Delivery failures are logged but do not return an error: by that
// point the conversation state is already persisted, and the channel's
// own retry would re-process the message via the dedup guard.
func (eng *Engine) HandleMessage(ctx context.Context, msg *inbound.Message) (*Result, error) {
	if msg.TenantID == "" {
		if eng.resolver == nil {
			return nil, chatflow.ErrRouteNotFound
		}
		route, err := eng.resolver.Resolve(ctx, msg.ChannelIdentity)
		if err != nil {
			if errors.Is(err, chatflow.ErrRouteNotFound) {
				eng.logger.Debug("no route for channel identity",
					slog.String("channel_identity", msg.ChannelIdentity),
				)
				return &Result{Kind: KindNoOp}, nil
			}
			return nil, err
		}
		if !route.Enabled {
			return &Result{Kind: KindNoOp}, nil
		}
		msg.TenantID = route.TenantID
	}

	if eng.throttleManager != nil {
		if !eng.throttleManager.Acquire(msg.ChannelIdentity, msg.TenantID) {
			eng.logger.Warn("message throttled",
				slog.String("channel_identity", msg.ChannelIdentity),
				slog.String("tenant_id", msg.TenantID),
				slog.String("sender", msg.SenderAddress),
			)
			return &Result{Kind: KindNoOp}, nil
		}
		defer eng.throttleManager.Release(msg.ChannelIdentity, msg.TenantID)
	}

	var res *Result
	err := eng.chain(ctx, msg, func(ctx context.Context) error {
		var handleErr error
		res, handleErr = eng.handleInbound(ctx, msg)
		return handleErr
	})
	if err != nil {
		return nil, err
	}

	if eng.deliverer != nil {
		for _, reply := range res.OutboundReplies(msg) {
			if err := eng.deliverer.Deliver(ctx, reply); err != nil {
				eng.logger.Error("reply delivery failed",
					slog.String("channel_identity", reply.ChannelIdentity),
					slog.String("to", reply.To),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return res, nil
}

// handleInbound runs the conversation engine for one text message. The
// thread key lock serializes local writers; the store's version check
// fences external ones. On a version conflict the whole
// read-compute-write cycle is re-run against fresh state, up to the
// configured retry limit.
func (eng *Engine) handleInbound(ctx context.Context, msg *inbound.Message) (*Result, error) {
	// Only text participates in automation. Everything else passes
	// through untouched.
	if msg.Type != inbound.TypeText {
		return &Result{Kind: KindNoOp}, nil
	}

	key := conversation.Key(msg.TenantID, msg.SenderAddress)
	release, err := eng.locks.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 0; ; attempt++ {
		res, err := eng.handleLocked(ctx, msg, key)
		if err == nil || !errors.Is(err, chatflow.ErrVersionConflict) {
			return res, err
		}
		if attempt+1 >= eng.cfg.WriteRetryLimit {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(eng.bo.Delay(attempt + 1)):
		}
	}
}

// handleLocked performs one read-compute-write cycle. Priority order is
// deliberate: a trigger match always wins over continuing an open
// conversation, so re-triggering can interrupt an unresolved thread.
func (eng *Engine) handleLocked(ctx context.Context, msg *inbound.Message, key string) (*Result, error) {
	now := time.Now().UTC()

	open, err := eng.conversations.GetOpen(ctx, key)
	if err != nil {
		if !errors.Is(err, chatflow.ErrConversationNotFound) {
			return nil, err
		}
		open = nil
	}

	// Duplicate delivery: the channel re-sent a message this thread
	// already consumed.
	if open != nil && msg.ProviderMessageID != "" && open.LastInboundID == msg.ProviderMessageID {
		eng.logger.Debug("duplicate inbound message",
			slog.String("provider_message_id", msg.ProviderMessageID),
			slog.String("conversation_id", open.ID.String()),
		)
		return &Result{Kind: KindNoOp, Conversation: open}, nil
	}

	candidates, err := eng.workflows.ListPublished(ctx, msg.TenantID, msg.ChannelIdentity)
	if err != nil {
		return nil, err
	}

	if wf := trigger.Match(msg.Text, candidates); wf != nil {
		return eng.startConversation(ctx, msg, key, wf, open, now)
	}

	if open == nil {
		// Normal path, not a failure.
		eng.extensions.EmitMessageIgnored(ctx, msg)
		return &Result{Kind: KindNoOp}, nil
	}

	return eng.progressConversation(ctx, msg, open, now)
}

// startConversation abandons any open thread for the sender and creates
// a fresh conversation for the matched workflow.
func (eng *Engine) startConversation(ctx context.Context, msg *inbound.Message, key string, wf *workflow.Workflow, open *conversation.Conversation, now time.Time) (*Result, error) {
	if open != nil {
		open.Abandon(now)
		open.UpdatedAt = now
		if err := eng.conversations.UpdateConversation(ctx, open); err != nil {
			return nil, err
		}
		eng.extensions.EmitConversationAbandoned(ctx, open)
	}

	c := &conversation.Conversation{
		Entity:            chatflow.NewEntity(),
		ID:                id.NewConversationID(),
		Key:               key,
		TenantID:          msg.TenantID,
		WorkflowID:        wf.ID,
		SenderAddress:     msg.SenderAddress,
		SenderProfileName: msg.SenderProfileName,
		Status:            conversation.StatusTriggered,
		StartedAt:         now,
		LastInboundID:     msg.ProviderMessageID,
		Source:            msg.ChannelIdentity,
		Version:           1,
	}

	var replies []string
	if wf.InitialMessage != "" {
		replies = append(replies, wf.InitialMessage)
	}

	q, ok := wf.QuestionAt(0)
	if ok {
		replies = append(replies, renderQuestion(q))
	} else {
		// A published workflow without questions has nothing to ask.
		c.Complete(now)
		if wf.CompletionMessage != "" {
			replies = append(replies, wf.CompletionMessage)
		}
	}

	if err := eng.conversations.CreateConversation(ctx, c); err != nil {
		return nil, err
	}

	// Counters are analytics; a failed increment must not cost the
	// sender their reply.
	if err := eng.workflows.IncrementCounter(ctx, wf.ID, workflow.CounterConversations); err != nil {
		eng.logger.Warn("conversation counter increment failed",
			slog.String("workflow_id", wf.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	eng.extensions.EmitConversationStarted(ctx, c, wf)

	if !ok {
		if err := eng.workflows.IncrementCounter(ctx, wf.ID, workflow.CounterCompletions); err != nil {
			eng.logger.Warn("completion counter increment failed",
				slog.String("workflow_id", wf.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		eng.extensions.EmitConversationCompleted(ctx, c)
		return &Result{Kind: KindCompleted, Conversation: c, Workflow: wf, Replies: replies}, nil
	}

	return &Result{Kind: KindNewTrigger, Conversation: c, Workflow: wf, Replies: replies}, nil
}

// progressConversation records the message as the answer to the current
// question and either advances to the next question or completes.
func (eng *Engine) progressConversation(ctx context.Context, msg *inbound.Message, open *conversation.Conversation, now time.Time) (*Result, error) {
	wf, err := eng.workflows.GetWorkflow(ctx, open.WorkflowID)
	if err != nil {
		return nil, err
	}

	q, ok := wf.QuestionAt(open.CurrentQuestionIndex)
	if !ok {
		// The question list shrank after the conversation started.
		// Degrade to completed rather than failing: the channel has no
		// good way to surface an internal error.
		open.Complete(now)
		open.LastInboundID = msg.ProviderMessageID
		open.UpdatedAt = now
		if err := eng.conversations.UpdateConversation(ctx, open); err != nil {
			return nil, err
		}
		eng.extensions.EmitConversationCompleted(ctx, open)
		var replies []string
		if wf.CompletionMessage != "" {
			replies = append(replies, wf.CompletionMessage)
		}
		return &Result{Kind: KindCompleted, Conversation: open, Workflow: wf, Replies: replies}, nil
	}

	answer := open.RecordAnswer(q, msg.Text, now)
	open.LastInboundID = msg.ProviderMessageID
	open.UpdatedAt = now

	if wf.IsLastQuestion(open.CurrentQuestionIndex) {
		// Completion does not advance the index past the last question.
		open.Complete(now)
		if err := eng.conversations.UpdateConversation(ctx, open); err != nil {
			return nil, err
		}
		if err := eng.workflows.IncrementCounter(ctx, wf.ID, workflow.CounterCompletions); err != nil {
			eng.logger.Warn("completion counter increment failed",
				slog.String("workflow_id", wf.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		eng.extensions.EmitConversationProgressed(ctx, open, answer)
		eng.extensions.EmitConversationCompleted(ctx, open)
		var replies []string
		if wf.CompletionMessage != "" {
			replies = append(replies, wf.CompletionMessage)
		}
		return &Result{Kind: KindCompleted, Conversation: open, Workflow: wf, Replies: replies}, nil
	}

	open.CurrentQuestionIndex++
	open.Status = conversation.StatusInProgress
	next, _ := wf.QuestionAt(open.CurrentQuestionIndex)
	if err := eng.conversations.UpdateConversation(ctx, open); err != nil {
		return nil, err
	}
	eng.extensions.EmitConversationProgressed(ctx, open, answer)

	return &Result{
		Kind:         KindProgressed,
		Conversation: open,
		Workflow:     wf,
		Replies:      []string{renderQuestion(next)},
	}, nil
}

// renderQuestion formats a question as outbound text: the prompt, then
// numbered options for choice questions, then any help text.
func renderQuestion(q workflow.Question) string {
	var b strings.Builder
	b.WriteString(q.Text)
	if q.Description != "" {
		b.WriteString("\n")
		b.WriteString(q.Description)
	}
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	if q.HelpText != "" {
		b.WriteString("\n")
		b.WriteString(q.HelpText)
	}
	return b.String()
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Automator returns the underlying Automator.
func (eng *Engine) Automator() *chatflow.Automator { return eng.a }

// ThrottleManager returns the throttle manager, or nil if no channel
// configs were provided.
func (eng *Engine) ThrottleManager() *throttle.Manager { return eng.throttleManager }
