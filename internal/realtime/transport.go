package realtime

import (
	"context"
	"encoding/json"

	"github.com/bnema/dnd-campaign-cli/internal/events"
)

// Lifecycle events published by a Transport through On. Their payload is
// empty.
const (
	EventTransportDisconnect      = "disconnect"
	EventTransportReconnect       = "reconnect"
	EventTransportReconnectFailed = "reconnect_failed"
)

// Transport is a named-event socket. Implementations reconnect on their own
// after an unexpected drop and report it through the lifecycle events.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Emit(event string, payload any) error
	On(event string, handler func(payload json.RawMessage)) events.Subscription
	// Close stops reconnection and releases the socket. Safe on a transport
	// that was never connected.
	Close() error
}
