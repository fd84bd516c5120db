package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
)

const (
	maxResponseBytes = 32 << 20
	refreshFlightKey = "refresh"
)

// TokenSource is the slice of the token store the client needs.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(ctx context.Context, tokens domain.TokenPair) error
	ClearTokens(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new pair. Connectivity failures
// must be reported as *NetworkError so they are not mistaken for rejection.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// RefreshGroup lets several clients share one in-flight refresh.
	RefreshGroup *singleflight.Group
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	refresher  Refresher
	logger     *slog.Logger
	flights    *singleflight.Group
}

func NewClient(cfg ClientConfig, tokens TokenSource, refresher Refresher) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	if refresher == nil {
		return nil, errors.New("refresher is required")
	}
	if _, err := BuildURL(cfg.BaseURL, "/"); err != nil {
		return nil, err
	}

	client := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		refresher:  refresher,
		logger:     cfg.Logger,
		flights:    cfg.RefreshGroup,
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = logging.Discard()
	}
	if client.flights == nil {
		client.flights = &singleflight.Group{}
	}

	return client, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req with the cached bearer token. A 401 triggers one coalesced
// refresh and a single retry; the retried outcome is returned unchanged.
// Non-2xx responses are returned as *HTTPError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	token := c.tokens.AccessToken()

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return checkStatus(resp)
	}

	c.logger.Debug("backend rejected access token", "method", req.Method, "path", req.Path)

	fresh, err := c.refreshAfter(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, req, fresh)
	if err != nil {
		return nil, err
	}
	return checkStatus(resp)
}

// DoJSON decodes a successful response body into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

// Ping reports whether the backend origin answers at all. Any HTTP status
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	endpoint, err := BuildURL(c.baseURL, "/")
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ClassifyTransportError(ctx, "ping backend", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()

	return nil
}

func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	endpoint, err := BuildURL(c.baseURL, req.Path)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, req.Path, err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", contentTypeJSON)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ClassifyTransportError(ctx, method+" "+req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, ClassifyTransportError(ctx, "read "+method+" "+req.Path+" response", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// refreshAfter returns an access token newer than stale, refreshing at most
// once across all concurrent callers.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	if current := c.tokens.AccessToken(); current != "" && current != stale {
		return current, nil
	}

	// The shared attempt must outlive any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	result := c.flights.DoChan(refreshFlightKey, func() (any, error) {
		return c.refresh(flightCtx, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	if current := c.tokens.AccessToken(); current != "" && current != stale {
		return current, nil
	}

	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		c.logger.Info("no refresh token available, clearing session")
		c.clearTokens(ctx)
		return "", domain.ErrAuthRequired
	}

	pair, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrBackendUnreachable) {
			return "", err
		}
		c.logger.Warn("token refresh rejected, clearing session", "error", err)
		c.clearTokens(ctx)
		return "", fmt.Errorf("%w: %w", domain.ErrAuthRequired, err)
	}

	if err := c.tokens.SetTokens(ctx, pair); err != nil {
		return "", fmt.Errorf("store refreshed tokens: %w", err)
	}
	c.logger.Debug("access token refreshed")

	return pair.AccessToken, nil
}

func (c *Client) clearTokens(ctx context.Context) {
	if err := c.tokens.ClearTokens(ctx); err != nil {
		c.logger.Warn("clear tokens after failed refresh", "error", err)
	}
}

func checkStatus(resp *Response) (*Response, error) {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newHTTPError(resp.StatusCode, resp.Body)
	}
	return resp, nil
}
