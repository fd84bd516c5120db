package ports

import (
	"context"
	"encoding/json"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

type Outbox interface {
	Enqueue(ctx context.Context, kind domain.ActionType, data json.RawMessage, files []domain.FileAttachment) (domain.PendingAction, error)
	ListPending(ctx context.Context) ([]domain.PendingAction, error)
	Remove(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, cause error) error
}

type ZoneImageStore interface {
	PutZoneImage(ctx context.Context, image domain.ZoneImage) error
	GetZoneImage(ctx context.Context, key domain.ZoneImageKey) (domain.ZoneImage, error)
	DeleteZoneImage(ctx context.Context, key domain.ZoneImageKey) error
	ListZoneImages(ctx context.Context, zoneID string) ([]domain.ZoneImage, error)
}

type CharacterCache interface {
	SaveCharacter(ctx context.Context, character domain.Character) error
	GetCharacter(ctx context.Context, id string) (domain.Character, error)
	ListCharacters(ctx context.Context) ([]domain.Character, error)
}
