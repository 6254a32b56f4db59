package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventCostAlert     = "cost.alert"
	EventChatCompleted = "chat.completed"
	EventChatFailed    = "chat.failed"
)

// CostAlertEvent is broadcast when a user's rolling spend crosses the
// configured soft threshold.
type CostAlertEvent struct {
	UserID       string  `json:"user_id"`
	Provider     string  `json:"provider"`
	DailyUSD     float64 `json:"daily_usd"`
	ThresholdUSD float64 `json:"threshold_usd"`
}

// ChatCompletedEvent is broadcast when a chat request finishes.
type ChatCompletedEvent struct {
	RequestID string  `json:"request_id"`
	UserID    string  `json:"user_id,omitempty"`
	Model     string  `json:"model"`
	Provider  string  `json:"provider"`
	CostUSD   float64 `json:"cost_usd"`
	ToolCalls int     `json:"tool_calls,omitempty"`
}

// ChatFailedEvent is broadcast when a chat request fails terminally.
type ChatFailedEvent struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	Error     string `json:"error"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
