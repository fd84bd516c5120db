package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const (
	campaignsPath  = "/api/campaigns"
	charactersPath = "/api/characters"

	idempotencyKeyHeader = "Idempotency-Key"
)

// CampaignsAPI posts campaign and character creations as multipart forms.
type CampaignsAPI struct {
	client *Client
}

var _ ports.CreationBackend = (*CampaignsAPI)(nil)

func NewCampaignsAPI(client *Client) *CampaignsAPI {
	return &CampaignsAPI{client: client}
}

func (a *CampaignsAPI) CreateCampaign(ctx context.Context, req ports.CreationRequest) (json.RawMessage, error) {
	return a.create(ctx, campaignsPath, req)
}

func (a *CampaignsAPI) CreateCharacter(ctx context.Context, req ports.CreationRequest) (json.RawMessage, error) {
	return a.create(ctx, charactersPath, req)
}

func (a *CampaignsAPI) create(ctx context.Context, path string, req ports.CreationRequest) (json.RawMessage, error) {
	httpReq, err := NewMultipartRequest(http.MethodPost, path, req.Data, req.Files)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" {
		httpReq.Header = http.Header{}
		httpReq.Header.Set(idempotencyKeyHeader, req.IdempotencyKey)
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(resp.Body), nil
}
