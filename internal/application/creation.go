package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

func submitCreation(ctx context.Context, backend ports.CreationBackend, kind domain.ActionType, req ports.CreationRequest) (json.RawMessage, error) {
	switch kind {
	case domain.ActionCreateCampaign:
		return backend.CreateCampaign(ctx, req)
	case domain.ActionCreateCharacter:
		return backend.CreateCharacter(ctx, req)
	default:
		return nil, fmt.Errorf("submit %q: %w", kind, domain.ErrUnknownActionType)
	}
}

type createdEntity struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
}

func cacheCreatedCharacter(ctx context.Context, cache ports.CharacterCache, logger *slog.Logger, body json.RawMessage, now time.Time) {
	if cache == nil || len(body) == 0 {
		return
	}

	var entity createdEntity
	if err := json.Unmarshal(body, &entity); err != nil {
		logger.Debug("character response is not an object, skipping cache", "error", err)
		return
	}
	id := strings.TrimSpace(entity.ID)
	if id == "" {
		id = strings.TrimSpace(entity.MongoID)
	}
	if id == "" {
		logger.Debug("character response has no id, skipping cache")
		return
	}

	if err := cache.SaveCharacter(ctx, domain.Character{ID: id, Data: body, UpdatedAt: now}); err != nil {
		logger.Warn("cache created character", "character_id", id, "error", err)
	}
}
