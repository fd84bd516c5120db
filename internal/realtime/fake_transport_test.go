package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bnema/dnd-campaign-cli/internal/events"
)

type emission struct {
	event   string
	payload json.RawMessage
}

type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	closed     int
	emitted    []emission
	handlers   map[string]*events.Broadcaster[json.RawMessage]

	// onEmit runs after an emission is recorded, outside the lock.
	onEmit func(event string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]*events.Broadcaster[json.RawMessage])}
}

// acceptingTransport answers every authenticate with auth-success.
func acceptingTransport() *fakeTransport {
	transport := newFakeTransport()
	transport.onEmit = func(event string) {
		if event == eventAuthenticate {
			go transport.deliver(eventAuthSuccess, map[string]any{})
		}
	}
	return transport
}

func (f *fakeTransport) setOnEmit(hook func(event string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEmit = hook
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.emitted = append(f.emitted, emission{event: event, payload: raw})
	hook := f.onEmit
	f.mu.Unlock()

	if hook != nil {
		hook(event)
	}
	return nil
}

func (f *fakeTransport) On(event string, handler func(json.RawMessage)) events.Subscription {
	return f.broadcaster(event).Subscribe(handler)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed++
	return nil
}

func (f *fakeTransport) deliver(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.broadcaster(event).Publish(raw)
}

func (f *fakeTransport) dropConnection() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.deliver(EventTransportDisconnect, nil)
}

func (f *fakeTransport) restoreConnection() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.deliver(EventTransportReconnect, nil)
}

func (f *fakeTransport) listeners(event string) int {
	return f.broadcaster(event).Len()
}

func (f *fakeTransport) emissions(event string) []emission {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []emission
	for _, e := range f.emitted {
		if e.event == event {
			matched = append(matched, e)
		}
	}
	return matched
}

func (f *fakeTransport) broadcaster(event string) *events.Broadcaster[json.RawMessage] {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.handlers[event]
	if !ok {
		b = events.NewBroadcaster[json.RawMessage]()
		f.handlers[event] = b
	}
	return b
}
