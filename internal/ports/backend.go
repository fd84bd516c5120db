package ports

import (
	"context"
	"encoding/json"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

type CreationRequest struct {
	Data  json.RawMessage
	Files []domain.FileAttachment
	// IdempotencyKey is sent with replays so the backend can drop duplicates.
	IdempotencyKey string
}

// CreationBackend is the remote side of campaign and character creation.
// Implementations report connectivity failures distinctly from HTTP errors.
type CreationBackend interface {
	CreateCampaign(ctx context.Context, req CreationRequest) (json.RawMessage, error)
	CreateCharacter(ctx context.Context, req CreationRequest) (json.RawMessage, error)
}

type ConnectivityChecker interface {
	Online(ctx context.Context) bool
}
