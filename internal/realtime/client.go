// Package realtime keeps one authenticated game-session socket per client
// and turns its named events into typed subscriptions.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/events"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const (
	DefaultAuthTimeout  = 100 * time.Second
	DefaultDedupeWindow = 3 * time.Second

	authenticateFlightKey = "authenticate"
)

var (
	ErrAuthTimeout    = errors.New("realtime authentication timed out")
	ErrConnectionLost = errors.New("realtime connection lost")
	ErrDisconnected = errors.New("realtime client disconnected")
	ErrEmptyMessage = errors.New("chat message is empty")
)

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "realtime authentication rejected"
	}
	return "realtime authentication rejected: " + e.Reason
}

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

type Credentials struct {
	Token     string
	UserID    string
	SessionID string
}

type Config struct {
	AuthTimeout  time.Duration
	DedupeWindow time.Duration
	Clock        ports.Clock
	Logger       *slog.Logger
	// TokenSource supplies the access token for re-authentication after a
	// transport reconnect. The token given to Connect is reused when nil.
	TokenSource func() string
}

type handshake struct {
	cancel context.CancelFunc
}

type Client struct {
	transport   Transport
	timeout     time.Duration
	logger      *slog.Logger
	tokenSource func() string
	flights     singleflight.Group
	dedupe      *dedupeWindow

	mu          sync.Mutex
	state       State
	epoch       uint64
	credentials Credentials
	joined      map[string]struct{}
	inflight    *handshake

	steady    events.Group
	lifecycle events.Group

	chat           *events.Broadcaster[domain.ChatMessage]
	joinSuccess    *events.Broadcaster[SessionEvent]
	playerJoined   *events.Broadcaster[SessionEvent]
	playerLeft     *events.Broadcaster[SessionEvent]
	sessionStarted *events.Broadcaster[SessionEvent]
	reconnected    *events.Broadcaster[struct{}]
	connectionLost *events.Broadcaster[error]
}

func NewClient(transport Transport, cfg Config) *Client {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = DefaultDedupeWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	return &Client{
		transport:      transport,
		timeout:        cfg.AuthTimeout,
		logger:         cfg.Logger,
		tokenSource:    cfg.TokenSource,
		dedupe:         newDedupeWindow(cfg.DedupeWindow, cfg.Clock.Now),
		joined:         make(map[string]struct{}),
		chat:           events.NewBroadcaster[domain.ChatMessage](),
		joinSuccess:    events.NewBroadcaster[SessionEvent](),
		playerJoined:   events.NewBroadcaster[SessionEvent](),
		playerLeft:     events.NewBroadcaster[SessionEvent](),
		sessionStarted: events.NewBroadcaster[SessionEvent](),
		reconnected:    events.NewBroadcaster[struct{}](),
		connectionLost: events.NewBroadcaster[error](),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect shares one handshake among concurrent callers. The handshake
// survives a caller giving up but not a Disconnect.
func (c *Client) Connect(ctx context.Context, creds Credentials) error {
	if c.State() == StateAuthenticated && c.transport.Connected() {
		return nil
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	result := c.flights.DoChan(authenticateFlightKey, func() (any, error) {
		return nil, c.authenticate(epoch, creds)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-result:
		return res.Err
	}
}

func (c *Client) authenticate(epoch uint64, creds Credentials) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	current := &handshake{cancel: cancel}
	defer func() {
		cancel()
		c.mu.Lock()
		if c.inflight == current {
			c.inflight = nil
		}
		c.mu.Unlock()
	}()

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.state = StateConnecting
	c.inflight = current
	c.mu.Unlock()

	c.watchLifecycle()

	if !c.transport.Connected() {
		if err := c.transport.Connect(ctx); err != nil {
			c.fail(epoch)
			if ctx.Err() != nil {
				return c.abortReason(ctx)
			}
			return fmt.Errorf("open realtime transport: %w", err)
		}
	}

	outcome := make(chan error, 1)
	report := func(err error) {
		select {
		case outcome <- err:
		default:
		}
	}
	success := c.transport.On(eventAuthSuccess, func(json.RawMessage) { report(nil) })
	defer success.Unsubscribe()
	rejected := c.transport.On(eventAuthError, func(payload json.RawMessage) {
		var body authErrorPayload
		_ = json.Unmarshal(payload, &body)
		report(&AuthError{Reason: body.Message})
	})
	defer rejected.Unsubscribe()

	if !c.transition(epoch, StateAuthenticating) {
		return ErrDisconnected
	}

	err := c.transport.Emit(eventAuthenticate, authenticatePayload{
		Token:         creds.Token,
		UserID:        creds.UserID,
		GameSessionID: creds.SessionID,
	})
	if err != nil {
		c.fail(epoch)
		return fmt.Errorf("emit authenticate: %w", err)
	}

	select {
	case err := <-outcome:
		if err != nil {
			c.fail(epoch)
			return err
		}
	case <-ctx.Done():
		c.fail(epoch)
		return c.abortReason(ctx)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.state = StateAuthenticated
	c.credentials = creds
	_, alreadyJoined := c.joined[creds.SessionID]
	c.joined[creds.SessionID] = struct{}{}
	c.mu.Unlock()

	c.registerSteadyListeners()

	if !alreadyJoined {
		err := c.transport.Emit(eventPlayerJoin, playerPresencePayload{
			PlayerID:  creds.UserID,
			SessionID: creds.SessionID,
		})
		if err != nil {
			c.logger.Warn("player join failed", "session", creds.SessionID, "error", err)
		}
	}

	c.logger.Debug("realtime session authenticated", "session", creds.SessionID)
	return nil
}

func (c *Client) transition(epoch uint64, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.state = state
	return true
}

// abortReason tells a timed-out handshake from one cancelled by Disconnect.
func (c *Client) abortReason(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrDisconnected
	}
	return ErrAuthTimeout
}

func (c *Client) fail(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	c.steady.Unsubscribe()
}

func (c *Client) registerSteadyListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.steady.Len() > 0 {
		return
	}

	c.steady.Add(c.transport.On(eventChatMessageSent, c.handleChat))
	c.steady.Add(c.forward(eventJoinSuccess, c.joinSuccess))
	c.steady.Add(c.forward(eventPlayerJoined, c.playerJoined))
	c.steady.Add(c.forward(eventPlayerLeft, c.playerLeft))
	c.steady.Add(c.forward(eventSessionStarted, c.sessionStarted))
}

func (c *Client) forward(name string, to *events.Broadcaster[SessionEvent]) events.Subscription {
	return c.transport.On(name, func(payload json.RawMessage) {
		to.Publish(newSessionEvent(name, payload))
	})
}

func (c *Client) handleChat(payload json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("drop malformed chat message", "error", err)
		return
	}
	if c.dedupe.Seen(msg.DedupeKey()) {
		c.logger.Debug("drop duplicate chat message", "sender", msg.SenderID)
		return
	}
	c.chat.Publish(msg)
}

func (c *Client) watchLifecycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle.Len() > 0 {
		return
	}

	c.lifecycle.Add(c.transport.On(EventTransportDisconnect, func(json.RawMessage) {
		c.mu.Lock()
		if c.state != StateDisconnected {
			c.state = StateConnecting
		}
		c.mu.Unlock()
	}))
	c.lifecycle.Add(c.transport.On(EventTransportReconnect, func(json.RawMessage) {
		go c.reauthenticate()
	}))
	c.lifecycle.Add(c.transport.On(EventTransportReconnectFailed, func(json.RawMessage) {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.steady.Unsubscribe()
		c.logger.Warn("realtime reconnect attempts exhausted")
		c.connectionLost.Publish(ErrConnectionLost)
	}))
}

func (c *Client) reauthenticate() {
	c.mu.Lock()
	creds := c.credentials
	if c.state == StateAuthenticated {
		c.state = StateConnecting
	}
	c.mu.Unlock()

	if creds.Token == "" {
		return
	}
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			creds.Token = token
		}
	}

	if err := c.Connect(context.Background(), creds); err != nil {
		c.logger.Warn("realtime re-authentication failed", "error", err)
		c.connectionLost.Publish(fmt.Errorf("%w: %w", ErrConnectionLost, err))
		return
	}
	c.reconnected.Publish(struct{}{})
}

func (c *Client) SendMessage(text string) error {
	if c.State() != StateAuthenticated {
		return domain.ErrNotAuthenticated
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := c.transport.Emit(eventChatMessage, chatPayload{MessageContent: text}); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	wasAuthenticated := c.state == StateAuthenticated
	creds := c.credentials
	c.epoch++
	c.state = StateDisconnected
	c.credentials = Credentials{}
	c.joined = make(map[string]struct{})
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.flights.Forget(authenticateFlightKey)
	c.mu.Unlock()

	if wasAuthenticated && creds.SessionID != "" && c.transport.Connected() {
		err := c.transport.Emit(eventPlayerLeave, playerPresencePayload{
			PlayerID:  creds.UserID,
			SessionID: creds.SessionID,
		})
		if err != nil {
			c.logger.Debug("player leave failed", "session", creds.SessionID, "error", err)
		}
	}

	c.steady.Unsubscribe()
	c.lifecycle.Unsubscribe()
	c.chat.Clear()
	c.joinSuccess.Clear()
	c.playerJoined.Clear()
	c.playerLeft.Clear()
	c.sessionStarted.Clear()
	c.reconnected.Clear()
	c.connectionLost.Clear()
	c.dedupe.Reset()

	if err := c.transport.Close(); err != nil {
		c.logger.Debug("close realtime transport", "error", err)
	}
}

func (c *Client) OnChatMessage(handler func(domain.ChatMessage)) events.Subscription {
	return c.chat.Subscribe(handler)
}

func (c *Client) OnJoinSuccess(handler func(SessionEvent)) events.Subscription {
	return c.joinSuccess.Subscribe(handler)
}

func (c *Client) OnPlayerJoined(handler func(SessionEvent)) events.Subscription {
	return c.playerJoined.Subscribe(handler)
}

func (c *Client) OnPlayerLeft(handler func(SessionEvent)) events.Subscription {
	return c.playerLeft.Subscribe(handler)
}

func (c *Client) OnSessionStarted(handler func(SessionEvent)) events.Subscription {
	return c.sessionStarted.Subscribe(handler)
}

func (c *Client) OnReconnected(handler func()) events.Subscription {
	if handler == nil {
		return c.reconnected.Subscribe(nil)
	}
	return c.reconnected.Subscribe(func(struct{}) { handler() })
}

func (c *Client) OnConnectionLost(handler func(error)) events.Subscription {
	return c.connectionLost.Subscribe(handler)
}
