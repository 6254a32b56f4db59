// Package broadcast defines the port for pushing real-time events
// (cost alerts, request lifecycle) to connected clients.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected clients. Fire and
// forget: failures are logged by implementations, never surfaced.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
