// Package chat defines the canonical request/response types for the
// chat-completion pipeline.
package chat

import (
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain/tool"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ValidRole reports whether role is one of the four allowed values.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single turn in a conversation.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// GenParams holds generation parameters forwarded to the provider.
type GenParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// Request is the canonical chat request produced by the request builder.
// It is created per call and never persisted by this subsystem.
type Request struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	Provider string    `json:"provider,omitempty"`
	Params   GenParams `json:"params"`
	Stream   bool      `json:"stream,omitempty"`

	RAGEnabled   bool `json:"rag_enabled,omitempty"`
	ToolsEnabled bool `json:"tools_enabled,omitempty"`

	// Attribution for cost accounting.
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Tools advertised to the provider (populated by the tool middleware).
	Tools []tool.Descriptor `json:"tools,omitempty"`
}

// LastUserMessage returns the content of the most recent user turn, or
// empty when there is none.
func (r *Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Message types for Response.
const (
	TypeText       = "text"
	TypeToolResult = "tool_result"
	TypeError      = "error"
)

// Usage reports token consumption as counted by the provider.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Source identifies a retrieved passage cited in a response.
type Source struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Response is the normalized provider response. Built incrementally by
// the middleware chain, finalized by the orchestrator.
type Response struct {
	RequestID   string            `json:"request_id"`
	Content     string            `json:"content"`
	MessageType string            `json:"message_type"`
	Model       string            `json:"model"`
	Provider    string            `json:"provider"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ToolCalls   []tool.Invocation `json:"tool_calls,omitempty"`
	Sources     []Source          `json:"sources,omitempty"`
	Usage       Usage             `json:"usage"`
	CostUSD     float64           `json:"cost_usd"`
	Truncated   bool              `json:"truncated,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Chunk is one streaming delta. The terminal chunk carries Final=true
// and the fully assembled Response.
type Chunk struct {
	RequestID string    `json:"request_id"`
	Delta     string    `json:"delta,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Response  *Response `json:"response,omitempty"`
	Err       error     `json:"-"`
}
