package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const drainFlightKey = "drain"

type DrainReport struct {
	Replayed []int64
	Failed   []int64
	Skipped  []int64
}

func (r DrainReport) Remaining() int {
	return len(r.Failed) + len(r.Skipped)
}

func (r DrainReport) Empty() bool {
	return len(r.Replayed) == 0 && r.Remaining() == 0
}

type SyncEngine struct {
	outbox     ports.Outbox
	backend    ports.CreationBackend
	characters ports.CharacterCache
	clock      ports.Clock
	logger     *slog.Logger
	flights    singleflight.Group
}

func NewSyncEngine(outbox ports.Outbox, backend ports.CreationBackend, characters ports.CharacterCache, clock ports.Clock, logger *slog.Logger) *SyncEngine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &SyncEngine{
		outbox:     outbox,
		backend:    backend,
		characters: characters,
		clock:      clock,
		logger:     logger,
	}
}

// Drain runs one replay pass. Concurrent callers share the pass in flight;
// the pass runs under the context of the caller that started it.
func (e *SyncEngine) Drain(ctx context.Context) (DrainReport, error) {
	result := e.flights.DoChan(drainFlightKey, func() (any, error) {
		return e.drain(ctx)
	})

	select {
	case <-ctx.Done():
		return DrainReport{}, ctx.Err()
	case res := <-result:
		report, _ := res.Val.(DrainReport)
		return report, res.Err
	}
}

func (e *SyncEngine) Run(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
			report, err := e.Drain(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Error("outbox drain failed", "error", err)
				continue
			}
			if !report.Empty() {
				e.logger.Info("outbox drained",
					"replayed", len(report.Replayed),
					"failed", len(report.Failed),
					"skipped", len(report.Skipped),
				)
			}
		}
	}
}

func (e *SyncEngine) drain(ctx context.Context) (DrainReport, error) {
	var report DrainReport

	actions, err := e.outbox.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending actions: %w", err)
	}

	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !action.Type.Valid() {
			e.logger.Warn("skipping pending action of unknown type", "action_id", action.ID, "type", action.Type)
			report.Skipped = append(report.Skipped, action.ID)
			continue
		}

		body, err := submitCreation(ctx, e.backend, action.Type, replayRequest(action))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			e.recordFailure(ctx, action, err)
			report.Failed = append(report.Failed, action.ID)
			continue
		}

		if err := e.outbox.Remove(ctx, action.ID); err != nil {
			// The backend already accepted it; the idempotency key covers the replay.
			e.logger.Error("remove replayed action", "action_id", action.ID, "error", err)
			report.Failed = append(report.Failed, action.ID)
			continue
		}
		report.Replayed = append(report.Replayed, action.ID)
		e.logger.Debug("replayed pending action", "action_id", action.ID, "type", action.Type)

		if action.Type == domain.ActionCreateCharacter {
			cacheCreatedCharacter(ctx, e.characters, e.logger, body, e.clock.Now())
		}
	}

	return report, nil
}

func (e *SyncEngine) recordFailure(ctx context.Context, action domain.PendingAction, cause error) {
	level := slog.LevelWarn
	if errors.Is(cause, domain.ErrAuthRequired) {
		level = slog.LevelError
	}
	e.logger.Log(ctx, level, "replay pending action failed",
		"action_id", action.ID,
		"type", action.Type,
		"attempts", action.Attempts+1,
		"error", cause,
	)

	if err := e.outbox.RecordFailure(ctx, action.ID, cause); err != nil {
		e.logger.Warn("record replay failure", "action_id", action.ID, "error", err)
	}
}

func replayRequest(action domain.PendingAction) ports.CreationRequest {
	files := make([]domain.FileAttachment, 0, len(action.Files))
	for _, file := range action.Files {
		files = append(files, file.Clone())
	}

	return ports.CreationRequest{
		Data:           action.Data,
		Files:          files,
		IdempotencyKey: action.IdempotencyKey,
	}
}
