package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
)

// Input is the loosely-specified caller request before normalization.
type Input struct {
	Messages       []chat.Message `json:"messages"`
	Model          string         `json:"model,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	TopP           *float64       `json:"top_p,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	RAGEnabled     bool           `json:"rag_enabled,omitempty"`
	ToolsEnabled   bool           `json:"tools_enabled,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// RequestBuilder normalizes caller input into a canonical chat.Request,
// applying configured defaults and validating invariants. All
// violations are batched into one ValidationError.
type RequestBuilder struct {
	defaults config.Defaults
}

// NewRequestBuilder creates a builder with the given defaults.
func NewRequestBuilder(defaults config.Defaults) *RequestBuilder {
	return &RequestBuilder{defaults: defaults}
}

// Build validates in and produces the canonical request with a fresh
// request id for tracing.
func (b *RequestBuilder) Build(in Input) (*chat.Request, error) {
	var violations []string

	if len(in.Messages) == 0 {
		violations = append(violations, "messages must not be empty")
	}
	for i, m := range in.Messages {
		if !chat.ValidRole(m.Role) {
			violations = append(violations, fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role))
		}
	}
	if in.Temperature != nil && (*in.Temperature < 0 || *in.Temperature > 2) {
		violations = append(violations, "temperature must be in [0, 2]")
	}
	if in.TopP != nil && (*in.TopP <= 0 || *in.TopP > 1) {
		violations = append(violations, "top_p must be in (0, 1]")
	}
	if in.MaxTokens < 0 {
		violations = append(violations, "max_tokens must be >= 0")
	}

	model := in.Model
	if model == "" {
		model = b.defaults.Model
	}
	if model == "" {
		violations = append(violations, "model is required and no default is configured")
	}

	if len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}

	providerName := in.Provider
	if providerName == "" {
		providerName = b.defaults.Provider
	}

	params := chat.GenParams{
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		TopP:        in.TopP,
	}
	if params.Temperature == nil && b.defaults.Temperature > 0 {
		t := b.defaults.Temperature
		params.Temperature = &t
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = b.defaults.MaxTokens
	}

	msgs := make([]chat.Message, len(in.Messages))
	copy(msgs, in.Messages)

	return &chat.Request{
		ID:             uuid.NewString(),
		Messages:       msgs,
		Model:          model,
		Provider:       providerName,
		Params:         params,
		Stream:         in.Stream,
		RAGEnabled:     in.RAGEnabled,
		ToolsEnabled:   in.ToolsEnabled,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
	}, nil
}
