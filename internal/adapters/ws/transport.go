// Package ws implements the realtime transport over a WebSocket carrying
// {"event","data"} JSON envelopes.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/bnema/dnd-campaign-cli/internal/events"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/realtime"
)

const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second

	writeTimeout = 10 * time.Second
)

var ErrNotConnected = errors.New("websocket is not connected")

type Config struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
	Logger *slog.Logger

	// ReconnectAttempts bounds the dials made after an unexpected drop.
	ReconnectAttempts int
	// ReconnectDelay is the step of the linear backoff between dials.
	ReconnectDelay time.Duration
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stop     context.CancelFunc
	handlers map[string]*events.Broadcaster[json.RawMessage]

	writeMu sync.Mutex
}

var _ realtime.Transport = (*Transport)(nil)

func NewTransport(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("websocket url is required")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Transport{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]*events.Broadcaster[json.RawMessage]),
	}, nil
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	// A reconnect loop left over from a dropped connection must not outlive it.
	if t.stop != nil {
		t.stop()
	}
	lifetime, stop := context.WithCancel(context.Background())
	t.conn = conn
	t.stop = stop
	t.mu.Unlock()

	go t.readLoop(lifetime, conn)
	return nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *Transport) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	if err := conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (t *Transport) On(event string, handler func(json.RawMessage)) events.Subscription {
	t.mu.Lock()
	b, ok := t.handlers[event]
	if !ok {
		b = events.NewBroadcaster[json.RawMessage]()
		t.handlers[event] = b
	}
	t.mu.Unlock()
	return b.Subscribe(handler)
}

// Close sends a close frame and stops any reconnect in progress. The
// transport may be connected again afterwards.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn, stop := t.conn, t.stop
	t.conn, t.stop = nil, nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := t.cfg.Dialer.DialContext(ctx, t.cfg.URL, t.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}
	return conn, nil
}

func (t *Transport) readLoop(lifetime context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.dropped(lifetime, conn, err)
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			t.logger.Debug("ignore malformed websocket frame", "error", err)
			continue
		}
		t.publish(msg.Event, msg.Data)
	}
}

func (t *Transport) dropped(lifetime context.Context, conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.mu.Unlock()
	_ = conn.Close()

	if lifetime.Err() != nil {
		return
	}

	t.logger.Warn("websocket dropped", "error", cause)
	t.publish(realtime.EventTransportDisconnect, nil)
	go t.reconnect(lifetime)
}

func (t *Transport) reconnect(lifetime context.Context) {
	conn, err := backoff.Retry(lifetime, func() (*websocket.Conn, error) {
		return t.dial(lifetime)
	},
		backoff.WithBackOff(&linearBackOff{step: t.cfg.ReconnectDelay}),
		backoff.WithMaxTries(uint(t.cfg.ReconnectAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.logger.Debug("websocket reconnect failed", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		if lifetime.Err() != nil {
			return
		}
		t.logger.Warn("websocket reconnect gave up", "attempts", t.cfg.ReconnectAttempts, "error", err)
		t.publish(realtime.EventTransportReconnectFailed, nil)
		return
	}

	t.mu.Lock()
	if lifetime.Err() != nil || t.conn != nil {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(lifetime, conn)
	t.logger.Info("websocket reconnected")
	t.publish(realtime.EventTransportReconnect, nil)
}

func (t *Transport) publish(event string, data json.RawMessage) {
	t.mu.Lock()
	b := t.handlers[event]
	t.mu.Unlock()
	if b != nil {
		b.Publish(data)
	}
}

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
