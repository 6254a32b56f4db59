package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain/chat"
)

// ResponseHandler folds the accumulated pipeline state into the
// canonical response contract. Provider-specific error shapes are
// already normalized by the provider adapters; this handler owns the
// success shape.
type ResponseHandler struct{}

// NewResponseHandler creates the handler.
func NewResponseHandler() *ResponseHandler {
	return &ResponseHandler{}
}

// Finalize builds the canonical response from a finished tool loop.
func (h *ResponseHandler) Finalize(req *chat.Request, loop *ToolLoopResult, sources []chat.Source, usage chat.Usage, costUSD float64) *chat.Response {
	resp := &chat.Response{
		RequestID:   req.ID,
		Content:     loop.Result.Content,
		MessageType: chat.TypeText,
		Model:       req.Model,
		Provider:    req.Provider,
		Metadata:    map[string]string{},
		ToolCalls:   loop.Invocations,
		Sources:     sources,
		Usage:       usage,
		CostUSD:     costUSD,
		Truncated:   loop.Truncated,
		CreatedAt:   time.Now().UTC(),
	}

	if len(loop.Invocations) > 0 {
		resp.MessageType = chat.TypeToolResult
	}

	for k, v := range loop.Result.Metadata {
		resp.Metadata[k] = v
	}
	if len(loop.Warnings) > 0 {
		resp.Metadata["parse_warnings"] = strings.Join(loop.Warnings, "; ")
	}
	if len(sources) > 0 {
		resp.Metadata["rag_sources"] = strconv.Itoa(len(sources))
	}

	return resp
}
