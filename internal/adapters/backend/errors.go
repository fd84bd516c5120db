package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const maxErrorBodyBytes = 64 << 10

// NetworkError reports a request that never reached the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, domain.ErrBackendUnreachable, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == domain.ErrBackendUnreachable
}

func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// HTTPError is a response the backend produced with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, e.Message)
}

func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ReadHTTPError consumes the response body and extracts a message from the
// common {"message": ...} or {"error": ...} shapes.
func ReadHTTPError(resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return newHTTPError(resp.StatusCode, body)
}

func newHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case strings.TrimSpace(parsed.Message) != "":
			httpErr.Message = strings.TrimSpace(parsed.Message)
		case strings.TrimSpace(parsed.Error) != "":
			httpErr.Message = strings.TrimSpace(parsed.Error)
		}
	}

	return httpErr
}

// ClassifyTransportError maps an error returned by http.Client.Do. Caller
// cancellation stays a context error; everything else means the request did
// not reach the server.
func ClassifyTransportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &NetworkError{Op: op, Err: err}
}
