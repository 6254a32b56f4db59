// Package openaicompat implements the provider port against any
// OpenAI-compatible chat completion API (OpenAI, Azure, LiteLLM,
// Ollama gateways).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/domain/tool"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
	"github.com/ConvoSphere/convosphere/internal/resilience"
)

// Client talks to one OpenAI-compatible provider endpoint.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a provider client. name identifies the provider in
// errors and cost records.
func NewClient(name, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type wireMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	StreamOpts  *streamOpts   `json:"stream_options,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage wireUsage `json:"usage"`
}

// Complete performs one non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req chat.Request) (*provider.Result, error) {
	body, err := json.Marshal(c.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	data, err := c.doRequest(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var cr completionResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, c.providerErr(domain.ErrProviderProtocol, "unparseable completion body")
	}
	if len(cr.Choices) == 0 {
		return nil, c.providerErr(domain.ErrProviderProtocol, "response carried no choices")
	}

	res := &provider.Result{
		Content: cr.Choices[0].Message.Content,
		Usage: chat.Usage{
			TokensIn:  cr.Usage.PromptTokens,
			TokensOut: cr.Usage.CompletionTokens,
		},
		Metadata: map[string]string{},
	}
	if cr.ID != "" {
		res.Metadata["provider_request_id"] = cr.ID
	}
	if fr := cr.Choices[0].FinishReason; fr != "" {
		res.Metadata["finish_reason"] = fr
	}
	return res, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text, model string) ([]float64, chat.Usage, error) {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"input": text,
	})
	if err != nil {
		return nil, chat.Usage{}, fmt.Errorf("marshal embedding request: %w", err)
	}

	data, err := c.doRequest(ctx, "/embeddings", body)
	if err != nil {
		return nil, chat.Usage{}, err
	}

	var er struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Usage wireUsage `json:"usage"`
	}
	if err := json.Unmarshal(data, &er); err != nil || len(er.Data) == 0 {
		return nil, chat.Usage{}, c.providerErr(domain.ErrProviderProtocol, "unparseable embedding body")
	}

	return er.Data[0].Embedding, chat.Usage{TokensIn: er.Usage.PromptTokens}, nil
}

// buildRequest converts the canonical request to the wire shape. Tool
// descriptors are rendered into a system preamble instructing the
// directive format, since directives travel as free-form text.
func (c *Client) buildRequest(req chat.Request, stream bool) completionRequest {
	msgs := make([]wireMessage, 0, len(req.Messages)+1)
	if len(req.Tools) > 0 {
		msgs = append(msgs, wireMessage{
			Role:    chat.RoleSystem,
			Content: toolPreamble(req.Tools),
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.ToolName,
			ToolCallID: m.ToolCallID,
		})
	}

	cr := completionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
		TopP:        req.Params.TopP,
		Stream:      stream,
	}
	if stream {
		cr.StreamOpts = &streamOpts{IncludeUsage: true}
	}
	return cr
}

// toolPreamble renders the advertised tools and the expected directive
// syntax for the model.
func toolPreamble(tools []tool.Descriptor) string {
	var sb strings.Builder
	sb.WriteString("You may call the following tools. To call one, emit exactly:\n")
	sb.WriteString("<tool_call>{\"name\": \"<tool>\", \"arguments\": {…}}</tool_call>\n\nTools:\n")
	for _, t := range tools {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		if t.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(t.Description)
		}
		if len(t.Params) > 0 {
			params, _ := json.Marshal(t.Params)
			sb.WriteString(" ")
			sb.Write(params)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		data, err := c.roundTrip(ctx, path, body, nil)
		if err != nil {
			return err
		}
		result = data
		return nil
	}

	if err := c.execute(call); err != nil {
		return nil, err
	}
	return result, nil
}

// roundTrip performs one HTTP POST. When sink is non-nil the raw body
// reader is handed to it (streaming); otherwise the body is read fully.
func (c *Client) roundTrip(ctx context.Context, path string, body []byte, sink func(io.ReadCloser) error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.providerErr(domain.ErrProviderUnavailable, "network failure")
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, c.mapStatus(resp.StatusCode, string(diag))
	}

	if sink != nil {
		return nil, sink(resp.Body)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.providerErr(domain.ErrProviderUnavailable, "truncated response body")
	}
	return data, nil
}

// execute runs call through the breaker when one is attached. An open
// circuit surfaces as provider unavailability.
func (c *Client) execute(call func() error) error {
	if c.breaker == nil {
		return call()
	}
	err := c.breaker.Execute(call)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return c.providerErr(domain.ErrProviderUnavailable, "circuit open")
	}
	return err
}

// mapStatus converts an HTTP failure into the canonical taxonomy. The
// diagnostic keeps the upstream body prefix but never credentials.
func (c *Client) mapStatus(status int, diag string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.providerErr(domain.ErrProviderAuth, fmt.Sprintf("status %d", status))
	case status == http.StatusTooManyRequests:
		return c.providerErr(domain.ErrProviderRateLimited, diag)
	case status >= 500:
		return c.providerErr(domain.ErrProviderUnavailable, fmt.Sprintf("status %d: %s", status, diag))
	default:
		return c.providerErr(domain.ErrProviderProtocol, fmt.Sprintf("status %d: %s", status, diag))
	}
}

func (c *Client) providerErr(kind error, diag string) error {
	return &domain.ProviderError{Provider: c.name, Kind: kind, Diagnostic: diag}
}
