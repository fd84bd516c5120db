package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

type CreationResult struct {
	Queued   bool
	Action   domain.PendingAction
	Response json.RawMessage
}

type CreationService struct {
	backend      ports.CreationBackend
	outbox       ports.Outbox
	characters   ports.CharacterCache
	connectivity ports.ConnectivityChecker
	clock        ports.Clock
	logger       *slog.Logger
}

func NewCreationService(backend ports.CreationBackend, outbox ports.Outbox, characters ports.CharacterCache, connectivity ports.ConnectivityChecker, clock ports.Clock, logger *slog.Logger) *CreationService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &CreationService{
		backend:      backend,
		outbox:       outbox,
		characters:   characters,
		connectivity: connectivity,
		clock:        clock,
		logger:       logger,
	}
}

func (s *CreationService) CreateCampaign(ctx context.Context, data json.RawMessage, files []domain.FileAttachment) (CreationResult, error) {
	return s.create(ctx, domain.ActionCreateCampaign, data, files)
}

func (s *CreationService) CreateCharacter(ctx context.Context, data json.RawMessage, files []domain.FileAttachment) (CreationResult, error) {
	return s.create(ctx, domain.ActionCreateCharacter, data, files)
}

// Only connectivity failures are queued. Rejections would fail again on replay.
func (s *CreationService) create(ctx context.Context, kind domain.ActionType, data json.RawMessage, files []domain.FileAttachment) (CreationResult, error) {
	if s.connectivity != nil && !s.connectivity.Online(ctx) {
		s.logger.Info("backend offline, saving creation locally", "type", kind)
		return s.enqueue(ctx, kind, data, files)
	}

	body, err := submitCreation(ctx, s.backend, kind, ports.CreationRequest{Data: data, Files: files})
	if err != nil {
		if errors.Is(err, domain.ErrBackendUnreachable) {
			s.logger.Info("backend unreachable, saving creation locally", "type", kind, "error", err)
			return s.enqueue(ctx, kind, data, files)
		}
		return CreationResult{}, err
	}

	if kind == domain.ActionCreateCharacter {
		cacheCreatedCharacter(ctx, s.characters, s.logger, body, s.clock.Now())
	}

	return CreationResult{Response: body}, nil
}

func (s *CreationService) enqueue(ctx context.Context, kind domain.ActionType, data json.RawMessage, files []domain.FileAttachment) (CreationResult, error) {
	action, err := s.outbox.Enqueue(ctx, kind, data, files)
	if err != nil {
		return CreationResult{}, fmt.Errorf("save %s for later sync: %w", kind, err)
	}
	return CreationResult{Queued: true, Action: action}, nil
}
