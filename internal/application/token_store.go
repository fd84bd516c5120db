package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/events"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const (
	accessTokenKey  = "accessToken"
	refreshTokenKey = "refreshToken"
	userKey         = "user"
)

// TokenStore persists every token mutation before announcing it to subscribers.
type TokenStore struct {
	store   ports.SecretStore
	changes *events.Broadcaster[domain.TokenPair]

	// writeMu orders mutations so notifications arrive in mutation order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	tokens  domain.TokenPair
	user    domain.User
	hasUser bool
}

func NewTokenStore(store ports.SecretStore) *TokenStore {
	return &TokenStore{
		store:   store,
		changes: events.NewBroadcaster[domain.TokenPair](),
	}
}

func (s *TokenStore) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	access, err := s.get(ctx, accessTokenKey)
	if err != nil {
		return err
	}
	refresh, err := s.get(ctx, refreshTokenKey)
	if err != nil {
		return err
	}

	var (
		user    domain.User
		hasUser bool
	)
	if access != "" {
		raw, err := s.get(ctx, userKey)
		if err != nil {
			return err
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &user); err != nil {
				return fmt.Errorf("decode cached user: %w", err)
			}
			hasUser = true
		}
	}

	s.mu.Lock()
	s.tokens = domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	s.user, s.hasUser = user, hasUser
	s.mu.Unlock()

	return nil
}

// SetTokens replaces the pair wholesale. An empty access token is a logout.
func (s *TokenStore) SetTokens(ctx context.Context, tokens domain.TokenPair) error {
	if tokens.Empty() {
		return s.ClearTokens(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Put(ctx, accessTokenKey, tokens.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if tokens.RefreshToken == "" {
		if err := s.store.Delete(ctx, refreshTokenKey); err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
	} else if err := s.store.Put(ctx, refreshTokenKey, tokens.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	s.changes.Publish(tokens)
	return nil
}

// ClearTokens always clears the in-memory session, even when persistence
// fails, so a broken backend can never keep a user logged in.
func (s *TokenStore) ClearTokens(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	for _, key := range []string{accessTokenKey, refreshTokenKey, userKey} {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	s.mu.Lock()
	s.tokens = domain.TokenPair{}
	s.user, s.hasUser = domain.User{}, false
	s.mu.Unlock()

	s.changes.Publish(domain.TokenPair{})
	return errors.Join(errs...)
}

func (s *TokenStore) SetUser(ctx context.Context, user domain.User) error {
	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Put(ctx, userKey, string(encoded)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}

	s.mu.Lock()
	s.user, s.hasUser = user, true
	s.mu.Unlock()

	return nil
}

func (s *TokenStore) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasUser
}

func (s *TokenStore) Tokens() domain.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *TokenStore) AccessToken() string {
	return s.Tokens().AccessToken
}

func (s *TokenStore) RefreshToken() string {
	return s.Tokens().RefreshToken
}

func (s *TokenStore) Subscribe(handler func(domain.TokenPair)) events.Subscription {
	return s.changes.Subscribe(handler)
}

func (s *TokenStore) get(ctx context.Context, key string) (string, error) {
	value, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}
