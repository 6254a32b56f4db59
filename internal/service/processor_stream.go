package service

import (
	"context"
	"time"

	"github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

// CompleteStream runs one streaming chat completion. Deltas are
// forwarded to the caller as they arrive; tool-call detection and cost
// accounting operate on the fully assembled text once the provider
// stream completes, since a directive may span chunk boundaries. The
// channel is closed after a terminal chunk carrying either the
// finalized response (Final=true) or an error.
func (p *ChatProcessor) CompleteStream(ctx context.Context, in Input) (<-chan chat.Chunk, error) {
	start := time.Now()

	req, handle, err := p.prepare(&ctx, in)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartRequestSpan(ctx, req.ID, req.Provider, req.Model)

	sources := p.enrich(ctx, req)

	var usage chat.Usage
	var totalCost float64
	dispatch := p.dispatcher(handle, req.Provider, &usage, &totalCost)

	// Budget gate before the streaming dispatch. The dispatcher re-checks
	// on every tool-loop round; the initial streamed round is gated here.
	if err := p.costs.Authorize(ctx, req.UserID, p.estimate(req)); err != nil {
		span.End()
		return nil, p.fail(ctx, req, sources, nil, err)
	}

	events, err := handle.CompleteStream(ctx, *req)
	if err != nil {
		span.End()
		return nil, p.fail(ctx, req, sources, nil, err)
	}

	out := make(chan chat.Chunk, 16)
	go func() {
		defer close(out)
		defer span.End()

		first, ok := p.forward(ctx, req, events, out, sources)
		if !ok {
			return
		}

		// Account the streamed round, then resolve any tool directives
		// with non-streaming follow-up dispatches.
		usage.TokensIn += first.Usage.TokensIn
		usage.TokensOut += first.Usage.TokensOut
		totalCost += p.record(ctx, req, first.Usage)

		var loop *ToolLoopResult
		var loopErr error
		if req.ToolsEnabled && p.tools != nil {
			loop, loopErr = p.tools.Run(ctx, *req, first, dispatch)
		} else {
			loop = &ToolLoopResult{Result: first}
		}
		if loopErr != nil {
			out <- chat.Chunk{RequestID: req.ID, Err: p.fail(ctx, req, sources, loop, loopErr)}
			return
		}

		resp := p.responses.Finalize(req, loop, sources, usage, totalCost)
		resp.Metadata["final_state"] = StateCompleted
		p.completed(ctx, resp, start)
		out <- chat.Chunk{RequestID: req.ID, Final: true, Response: resp}
	}()

	return out, nil
}

// forward relays provider stream events to the caller until the stream
// ends. Returns the assembled result, or ok=false after emitting a
// terminal error chunk.
func (p *ChatProcessor) forward(ctx context.Context, req *chat.Request, events <-chan provider.StreamEvent, out chan<- chat.Chunk, sources []chat.Source) (*provider.Result, bool) {
	for ev := range events {
		switch {
		case ev.Err != nil:
			out <- chat.Chunk{RequestID: req.ID, Err: p.fail(ctx, req, sources, nil, ev.Err)}
			return nil, false
		case ev.Done:
			return ev.Result, true
		case ev.Delta != "":
			select {
			case out <- chat.Chunk{RequestID: req.ID, Delta: ev.Delta}:
			case <-ctx.Done():
				return nil, false
			}
		}
	}
	// Stream closed without a terminal event: treat as cancellation.
	return nil, false
}
