// Package auth talks to the backend's session endpoints: login, registration,
// token refresh and logout.
package auth

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

	"github.com/bnema/dnd-campaign-cli/internal/adapters/backend"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const (
	loginPath    = "/api/auth/login"
	refreshPath  = "/api/auth/refresh"
	registerPath = "/api/users/register"
	logoutPath   = "/api/users/logout"

	maxAuthResponseBytes = 1 << 20
)

type API struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

type sessionResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (a API) Login(ctx context.Context, emailOrUsername string, password string) (domain.AuthSession, error) {
	if strings.TrimSpace(emailOrUsername) == "" {
		return domain.AuthSession{}, errors.New("email or username is required")
	}
	if password == "" {
		return domain.AuthSession{}, errors.New("password is required")
	}

	var payload sessionResponse
	body := map[string]string{"emailOrUsername": emailOrUsername, "password": password}
	if err := a.post(ctx, "login", loginPath, "", body, &payload); err != nil {
		return domain.AuthSession{}, err
	}

	return toSession(payload)
}

func (a API) Register(ctx context.Context, registration domain.Registration) (domain.AuthSession, error) {
	if strings.TrimSpace(registration.Username) == "" || strings.TrimSpace(registration.Email) == "" {
		return domain.AuthSession{}, errors.New("username and email are required")
	}
	if registration.Password == "" {
		return domain.AuthSession{}, errors.New("password is required")
	}

	var payload sessionResponse
	if err := a.post(ctx, "register", registerPath, "", registration, &payload); err != nil {
		return domain.AuthSession{}, err
	}

	return toSession(payload)
}

// Refresh exchanges refreshToken for a new pair. When the backend does not
// rotate the refresh token, the one passed in is kept.
func (a API) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, errors.New("refresh token is required")
	}

	var payload refreshResponse
	if err := a.post(ctx, "refresh", refreshPath, "", map[string]string{"refreshToken": refreshToken}, &payload); err != nil {
		return domain.TokenPair{}, err
	}
	if payload.AccessToken == "" {
		return domain.TokenPair{}, errors.New("refresh response missing access token")
	}

	pair := domain.TokenPair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	return pair, nil
}

// Logout invalidates the session server-side. Callers treat failures as
// advisory and clear local state regardless.
func (a API) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return a.post(ctx, "logout", logoutPath, accessToken, nil, nil)
}

func (a API) post(ctx context.Context, op string, path string, bearer string, body any, out any) error {
	endpoint, err := backend.BuildURL(a.BaseURL, path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return backend.ClassifyTransportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: %w", op, backend.ReadHTTPError(resp))
	}
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}

	return nil
}

func (a API) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a API) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := a.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func toSession(payload sessionResponse) (domain.AuthSession, error) {
	if payload.AccessToken == "" {
		return domain.AuthSession{}, errors.New("session response missing access token")
	}

	return domain.AuthSession{
		Tokens: domain.TokenPair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken},
		User:   payload.User,
	}, nil
}
