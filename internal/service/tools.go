package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/domain/tool"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
	"github.com/ConvoSphere/convosphere/internal/port/toolexec"
)

// DispatchFunc performs one provider dispatch for the given request
// state. The tool middleware calls it once per loop round; the
// orchestrator supplies budget re-checks and cost recording inside.
type DispatchFunc func(ctx context.Context, req chat.Request) (*provider.Result, error)

// ToolLoopResult is the outcome of running the tool loop to quiescence.
type ToolLoopResult struct {
	Result      *provider.Result
	Invocations []tool.Invocation
	Truncated   bool
	Warnings    []string
}

// ToolMiddleware advertises tools on outgoing requests, detects
// tool-call directives in provider output, executes them through the
// external runtime, and re-dispatches until resolved or capped.
type ToolMiddleware struct {
	executor toolexec.Executor
	cfg      config.Tools
	metrics  *otel.Metrics
}

// NewToolMiddleware creates the middleware. metrics may be nil.
func NewToolMiddleware(e toolexec.Executor, cfg config.Tools, metrics *otel.Metrics) *ToolMiddleware {
	return &ToolMiddleware{executor: e, cfg: cfg, metrics: metrics}
}

// Advertise attaches the runtime's tool catalog to the request.
// Failures are logged and leave the request without tools; the call
// proceeds as a plain completion.
func (m *ToolMiddleware) Advertise(ctx context.Context, req *chat.Request) {
	if m.executor == nil {
		return
	}
	tools, err := m.executor.ListTools(ctx)
	if err != nil {
		slog.Warn("tools: list failed, proceeding without tools",
			"request_id", req.ID, "error", err)
		return
	}
	req.Tools = tools
}

// Run executes the tool loop: dispatch, scan for directives, execute
// each, fold results into the conversation, re-dispatch. Rounds are
// strictly sequential. The loop stops when a response carries no
// directive or the iteration cap is reached (Truncated=true).
//
// first, when non-nil, is a provider result already obtained by the
// caller (the streaming path) and replaces the round-zero dispatch.
func (m *ToolMiddleware) Run(ctx context.Context, req chat.Request, first *provider.Result, dispatch DispatchFunc) (*ToolLoopResult, error) {
	out := &ToolLoopResult{}

	res := first
	for round := 0; ; round++ {
		if res == nil {
			r, err := dispatch(ctx, req)
			if err != nil {
				return out, err
			}
			res = r
		}
		out.Result = res

		if len(req.Tools) == 0 {
			return out, nil
		}

		parsed := tool.Parse(res.Content)
		out.Warnings = append(out.Warnings, parsed.Warnings...)
		if len(parsed.Directives) == 0 {
			return out, nil
		}

		if round >= m.cfg.MaxIterations-1 {
			out.Truncated = true
			slog.Warn("tools: iteration cap reached, returning last response",
				"request_id", req.ID, "cap", m.cfg.MaxIterations)
			return out, nil
		}

		// Fold the assistant turn into history.
		req.Messages = append(req.Messages, chat.Message{
			Role:    chat.RoleAssistant,
			Content: res.Content,
		})
		res = nil

		for _, d := range parsed.Directives {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			inv := m.execute(ctx, req.ID, d, req.Tools)
			out.Invocations = append(out.Invocations, inv)

			content := inv.Result
			if inv.Status == tool.StatusFailed {
				// Execution errors feed back to the model as data.
				content = "tool error: " + inv.Error
			}
			req.Messages = append(req.Messages, chat.Message{
				Role:       chat.RoleTool,
				Content:    content,
				ToolCallID: inv.ID,
				ToolName:   inv.Name,
			})
		}
	}
}

// execute validates and runs one directive, recording duration and
// outcome. Never returns an error: failures become a failed invocation.
func (m *ToolMiddleware) execute(ctx context.Context, requestID string, d tool.Directive, tools []tool.Descriptor) tool.Invocation {
	inv := tool.Invocation{
		ID:   uuid.NewString(),
		Name: d.Name,
		Args: d.Args,
	}

	ctx, span := otel.StartToolSpan(ctx, inv.ID, inv.Name)
	defer span.End()

	desc, ok := findDescriptor(tools, d.Name)
	if !ok {
		inv.Status = tool.StatusFailed
		inv.Error = "unknown tool"
		m.count(ctx, inv)
		return inv
	}
	if err := desc.ValidateArgs(d.Args); err != nil {
		inv.Status = tool.StatusFailed
		inv.Error = err.Error()
		m.count(ctx, inv)
		return inv
	}

	execCtx := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := m.executor.Execute(execCtx, d.Name, d.Args)
	inv.Duration = time.Since(start)

	if err != nil {
		inv.Status = tool.StatusFailed
		inv.Error = err.Error()
	} else {
		inv.Status = tool.StatusSuccess
		inv.Result = result
	}

	slog.Info("tool executed",
		"request_id", requestID,
		"tool", inv.Name,
		"status", inv.Status,
		"duration_ms", inv.Duration.Milliseconds(),
	)
	m.count(ctx, inv)
	return inv
}

func (m *ToolMiddleware) count(ctx context.Context, inv tool.Invocation) {
	if m.metrics == nil {
		return
	}
	m.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", inv.Name),
		attribute.String("status", inv.Status),
	))
}

func findDescriptor(tools []tool.Descriptor, name string) (tool.Descriptor, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return tool.Descriptor{}, false
}
