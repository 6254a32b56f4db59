package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

// CompleteStream performs a streaming completion over SSE. Deltas are
// forwarded as they arrive; the terminal event carries the assembled
// result with usage as reported by the provider.
func (c *Client) CompleteStream(ctx context.Context, req chat.Request) (<-chan provider.StreamEvent, error) {
	body, err := json.Marshal(c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	out := make(chan provider.StreamEvent, 16)

	sink := func(rc io.ReadCloser) error {
		go c.consume(ctx, rc, out)
		return nil
	}

	openStream := func() error {
		_, err := c.roundTrip(ctx, "/chat/completions", body, sink)
		return err
	}
	if err := c.execute(openStream); err != nil {
		return nil, err
	}

	return out, nil
}

// consume reads SSE events until [DONE] or failure, then emits the
// terminal event and closes the channel.
func (c *Client) consume(ctx context.Context, rc io.ReadCloser, out chan<- provider.StreamEvent) {
	defer close(out)
	defer func() { _ = rc.Close() }()

	var content strings.Builder
	var usage wireUsage
	var finish string

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var sc streamChunk
		if err := json.Unmarshal([]byte(payload), &sc); err != nil {
			c.emit(ctx, out, provider.StreamEvent{
				Err: c.providerErr(domain.ErrProviderProtocol, "unparseable stream chunk"),
			})
			return
		}
		if sc.Usage != nil {
			usage = *sc.Usage
		}
		if len(sc.Choices) == 0 {
			continue
		}
		if fr := sc.Choices[0].FinishReason; fr != "" {
			finish = fr
		}
		if delta := sc.Choices[0].Delta.Content; delta != "" {
			content.WriteString(delta)
			if !c.emit(ctx, out, provider.StreamEvent{Delta: delta}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			c.emit(ctx, out, provider.StreamEvent{Err: ctx.Err()})
			return
		}
		c.emit(ctx, out, provider.StreamEvent{
			Err: c.providerErr(domain.ErrProviderUnavailable, "stream interrupted"),
		})
		return
	}

	res := &provider.Result{
		Content: content.String(),
		Usage: chat.Usage{
			TokensIn:  usage.PromptTokens,
			TokensOut: usage.CompletionTokens,
		},
		Metadata: map[string]string{},
	}
	if finish != "" {
		res.Metadata["finish_reason"] = finish
	}
	c.emit(ctx, out, provider.StreamEvent{Done: true, Result: res})
}

// emit sends an event unless the caller has gone away.
func (c *Client) emit(ctx context.Context, out chan<- provider.StreamEvent, ev provider.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
