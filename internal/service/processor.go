package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/adapter/ws"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/domain/cost"
	"github.com/ConvoSphere/convosphere/internal/logger"
	"github.com/ConvoSphere/convosphere/internal/port/broadcast"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

// Pipeline states, carried in response metadata and error payloads.
const (
	StateBuilding       = "building"
	StateEnriching      = "enriching"
	StateDispatching    = "dispatching"
	StateToolExecuting  = "tool_executing"
	StateCostAccounting = "cost_accounting"
	StateCompleted      = "completed"
	StateFailed         = "failed"
)

// StageError is the terminal failure of one call. It preserves the
// partial state accumulated before the failing stage.
type StageError struct {
	State     string
	RequestID string
	Sources   []chat.Source
	Rounds    *ToolLoopResult
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chat request %s failed in %s: %v", e.RequestID, e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ChatProcessor composes the middleware pipeline behind the exposed
// entry points. Each call is independent; the registry and ledger are
// the only cross-call shared state.
type ChatProcessor struct {
	builder   *RequestBuilder
	registry  *ProviderRegistry
	rag       *RAGMiddleware
	tools     *ToolMiddleware
	costs     *CostService
	responses *ResponseHandler
	hub       broadcast.Broadcaster
	metrics   *otel.Metrics
	budget    config.Budget
}

// NewChatProcessor wires the pipeline. rag, tools, hub, and metrics
// may be nil; the corresponding stages become no-ops.
func NewChatProcessor(
	builder *RequestBuilder,
	registry *ProviderRegistry,
	rag *RAGMiddleware,
	tools *ToolMiddleware,
	costs *CostService,
	responses *ResponseHandler,
	hub broadcast.Broadcaster,
	metrics *otel.Metrics,
	budget config.Budget,
) *ChatProcessor {
	return &ChatProcessor{
		builder:   builder,
		registry:  registry,
		rag:       rag,
		tools:     tools,
		costs:     costs,
		responses: responses,
		hub:       hub,
		metrics:   metrics,
		budget:    budget,
	}
}

// Complete runs one non-streaming chat completion through the full
// pipeline. It returns either a finalized response or one documented
// typed error.
func (p *ChatProcessor) Complete(ctx context.Context, in Input) (*chat.Response, error) {
	start := time.Now()

	req, handle, err := p.prepare(&ctx, in)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartRequestSpan(ctx, req.ID, req.Provider, req.Model)
	defer span.End()

	sources := p.enrich(ctx, req)

	var usage chat.Usage
	var totalCost float64
	dispatch := p.dispatcher(handle, req.Provider, &usage, &totalCost)

	var loop *ToolLoopResult
	if req.ToolsEnabled && p.tools != nil {
		loop, err = p.tools.Run(ctx, *req, nil, dispatch)
	} else {
		loop = &ToolLoopResult{}
		loop.Result, err = dispatch(ctx, *req)
	}
	if err != nil {
		return nil, p.fail(ctx, req, sources, loop, err)
	}

	resp := p.responses.Finalize(req, loop, sources, usage, totalCost)
	resp.Metadata["final_state"] = StateCompleted
	p.completed(ctx, resp, start)
	return resp, nil
}

// Embed returns the embedding vector for the given text, bypassing the
// RAG and tool middleware. Embedding usage is still recorded when the
// model is priced.
func (p *ChatProcessor) Embed(ctx context.Context, text, model string) ([]float64, error) {
	handle, providerName, err := p.registry.Resolve("", model)
	if err != nil {
		return nil, err
	}

	vec, usage, err := handle.Embed(ctx, text, model)
	if err != nil {
		return nil, err
	}

	p.record(ctx, &chat.Request{Model: model, Provider: providerName}, usage)
	return vec, nil
}

// ProviderStatus reports last-known provider state.
func (p *ChatProcessor) ProviderStatus() map[string]ProviderStatus {
	return p.registry.Status()
}

// CostSummary reports a user's rolling usage.
func (p *ChatProcessor) CostSummary(ctx context.Context, userID string) (cost.Summary, error) {
	return p.costs.Summary(ctx, userID)
}

// prepare runs the Building stage: canonicalize, resolve the provider,
// and seed the request id into the context.
func (p *ChatProcessor) prepare(ctx *context.Context, in Input) (*chat.Request, provider.Handle, error) {
	req, err := p.builder.Build(in)
	if err != nil {
		p.countFailed(*ctx, StateBuilding)
		return nil, nil, err
	}
	*ctx = logger.WithRequestID(*ctx, req.ID)

	handle, providerName, err := p.registry.Resolve(req.Provider, req.Model)
	if err != nil {
		p.countFailed(*ctx, StateBuilding)
		return nil, nil, err
	}
	req.Provider = providerName

	if p.metrics != nil {
		p.metrics.RequestsStarted.Add(*ctx, 1, metric.WithAttributes(
			attribute.String("provider", providerName),
			attribute.String("model", req.Model),
		))
	}
	return req, handle, nil
}

// enrich runs the Enriching stage and the tool advertisement.
func (p *ChatProcessor) enrich(ctx context.Context, req *chat.Request) []chat.Source {
	var sources []chat.Source
	if req.RAGEnabled && p.rag != nil {
		sources = p.rag.Enrich(ctx, req)
	}
	if req.ToolsEnabled && p.tools != nil {
		p.tools.Advertise(ctx, req)
	}
	return sources
}

// dispatcher builds the per-round dispatch closure: budget re-check,
// provider call, cost recording. Records for completed rounds survive
// a later cancellation of the overall call.
func (p *ChatProcessor) dispatcher(handle provider.Handle, providerName string, usage *chat.Usage, totalCost *float64) DispatchFunc {
	round := 0
	return func(ctx context.Context, r chat.Request) (*provider.Result, error) {
		round++

		if err := p.costs.Authorize(ctx, r.UserID, p.estimate(&r)); err != nil {
			return nil, err
		}

		dctx, span := otel.StartDispatchSpan(ctx, providerName, round)
		res, err := handle.Complete(dctx, r)
		span.End()
		if err != nil {
			return nil, err
		}

		usage.TokensIn += res.Usage.TokensIn
		usage.TokensOut += res.Usage.TokensOut
		*totalCost += p.record(ctx, &r, res.Usage)
		return res, nil
	}
}

// estimate prices the outgoing request for budget enforcement. A
// missing pricing entry yields a zero estimate: the call may proceed.
func (p *ChatProcessor) estimate(req *chat.Request) float64 {
	inTokens := 0
	for _, m := range req.Messages {
		inTokens += estimateTokens(m.Content)
	}
	outTokens := req.Params.MaxTokens
	if outTokens <= 0 {
		outTokens = p.budget.ExpectedOutTokens
	}

	est, err := p.registry.EstimateCost(req.Provider, req.Model, inTokens, outTokens)
	if err != nil {
		if !errors.Is(err, domain.ErrPricingUnavailable) {
			slog.Warn("cost estimate failed", "request_id", req.ID, "error", err)
		}
		return 0
	}
	return est
}

// record prices reported usage and appends one cost record. Recording
// failures are logged, never fatal.
func (p *ChatProcessor) record(ctx context.Context, req *chat.Request, usage chat.Usage) float64 {
	actual, err := p.registry.EstimateCost(req.Provider, req.Model, usage.TokensIn, usage.TokensOut)
	if err != nil && !errors.Is(err, domain.ErrPricingUnavailable) {
		slog.Warn("cost pricing failed", "request_id", req.ID, "error", err)
	}

	rec := cost.Record{
		RequestID:      req.ID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Provider:       req.Provider,
		Model:          req.Model,
		TokensIn:       usage.TokensIn,
		TokensOut:      usage.TokensOut,
		CostUSD:        actual,
	}
	if err := p.costs.Record(ctx, rec); err != nil {
		slog.Error("cost record failed", "request_id", req.ID, "error", err)
	}
	return actual
}

// fail wraps a stage failure with the partial state accumulated so far
// and emits the failure event.
func (p *ChatProcessor) fail(ctx context.Context, req *chat.Request, sources []chat.Source, loop *ToolLoopResult, err error) error {
	state := StateDispatching
	if errors.Is(err, domain.ErrBudgetExceeded) {
		state = StateCostAccounting
	}

	p.countFailed(ctx, state)
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, ws.EventChatFailed, ws.ChatFailedEvent{
			RequestID: req.ID,
			UserID:    req.UserID,
			Error:     err.Error(),
		})
	}
	slog.Error("chat request failed", "request_id", req.ID, "state", state, "error", err)

	return &StageError{
		State:     state,
		RequestID: req.ID,
		Sources:   sources,
		Rounds:    loop,
		Err:       err,
	}
}

// completed emits terminal accounting for a successful call.
func (p *ChatProcessor) completed(ctx context.Context, resp *chat.Response, start time.Time) {
	if p.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("provider", resp.Provider),
			attribute.String("model", resp.Model),
		)
		p.metrics.RequestsCompleted.Add(ctx, 1, attrs)
		p.metrics.RequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, ws.EventChatCompleted, ws.ChatCompletedEvent{
			RequestID: resp.RequestID,
			Model:     resp.Model,
			Provider:  resp.Provider,
			CostUSD:   resp.CostUSD,
			ToolCalls: len(resp.ToolCalls),
		})
	}
	slog.Info("chat request completed",
		"request_id", resp.RequestID,
		"provider", resp.Provider,
		"model", resp.Model,
		"tokens_in", resp.Usage.TokensIn,
		"tokens_out", resp.Usage.TokensOut,
		"cost_usd", resp.CostUSD,
		"tool_calls", len(resp.ToolCalls),
	)
}

func (p *ChatProcessor) countFailed(ctx context.Context, state string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RequestsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
	))
}
