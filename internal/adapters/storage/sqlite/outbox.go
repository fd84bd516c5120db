package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const maxLastErrorLength = 512

// Enqueue stores an action and copies of its attachments in one transaction.
func (s *Store) Enqueue(ctx context.Context, kind domain.ActionType, data json.RawMessage, files []domain.FileAttachment) (domain.PendingAction, error) {
	if err := s.ready(ctx); err != nil {
		return domain.PendingAction{}, err
	}
	if !kind.Valid() {
		return domain.PendingAction{}, fmt.Errorf("enqueue %q: %w", kind, domain.ErrUnknownActionType)
	}
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if !json.Valid(data) {
		return domain.PendingAction{}, errors.New("enqueue: payload is not valid JSON")
	}

	action := domain.PendingAction{
		Type:           kind,
		Data:           append(json.RawMessage(nil), data...),
		Files:          make([]domain.FileAttachment, 0, len(files)),
		IdempotencyKey: s.newKey(),
		EnqueuedAt:     s.clock.Now().UTC().Truncate(time.Millisecond),
	}
	for _, file := range files {
		action.Files = append(action.Files, file.Clone())
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("begin enqueue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
INSERT INTO pending_actions (action_type, payload_json, idempotency_key, enqueued_at)
VALUES (?, ?, ?, ?)
`, string(action.Type), []byte(action.Data), action.IdempotencyKey, toMillis(action.EnqueuedAt))
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("insert pending action: %w", err)
	}
	action.ID, err = result.LastInsertId()
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("read pending action id: %w", err)
	}

	for position, file := range action.Files {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO pending_action_files (action_id, position, name, mime_type, last_modified, content)
VALUES (?, ?, ?, ?, ?, ?)
`, action.ID, position, file.Name, file.MimeType, toMillis(file.LastModified), nonNilBytes(file.Content)); err != nil {
			return domain.PendingAction{}, fmt.Errorf("insert attachment %q: %w", file.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.PendingAction{}, fmt.Errorf("commit enqueue transaction: %w", err)
	}

	return action, nil
}

// ListPending returns every queued action in insertion order with its files
// in their original order.
func (s *Store) ListPending(ctx context.Context) ([]domain.PendingAction, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, action_type, payload_json, idempotency_key, attempt_count, last_error, enqueued_at
FROM pending_actions
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query pending actions: %w", err)
	}

	actions := make([]domain.PendingAction, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			action     domain.PendingAction
			actionType string
			payload    []byte
			enqueuedAt int64
		)
		if err := rows.Scan(&action.ID, &actionType, &payload, &action.IdempotencyKey, &action.Attempts, &action.LastError, &enqueuedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		action.Type = domain.ActionType(actionType)
		action.Data = json.RawMessage(payload)
		action.EnqueuedAt = fromMillis(enqueuedAt)
		index[action.ID] = len(actions)
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate pending actions: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close pending actions: %w", err)
	}
	if len(actions) == 0 {
		return actions, nil
	}

	fileRows, err := s.sqlDB.QueryContext(ctx, `
SELECT action_id, name, mime_type, last_modified, content
FROM pending_action_files
ORDER BY action_id ASC, position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query pending attachments: %w", err)
	}
	defer func() { _ = fileRows.Close() }()

	for fileRows.Next() {
		var (
			actionID     int64
			file         domain.FileAttachment
			lastModified int64
		)
		if err := fileRows.Scan(&actionID, &file.Name, &file.MimeType, &lastModified, &file.Content); err != nil {
			return nil, fmt.Errorf("scan pending attachment: %w", err)
		}
		file.LastModified = fromMillis(lastModified)

		i, ok := index[actionID]
		if !ok {
			// Action row removed between the two queries.
			continue
		}
		actions[i].Files = append(actions[i].Files, file)
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending attachments: %w", err)
	}

	return actions, nil
}

// Remove deletes an action and its attachments. Unknown ids are not an error.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_action_files WHERE action_id = ?`, id); err != nil {
		return fmt.Errorf("delete attachments of action %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending action %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove transaction: %w", err)
	}
	return nil
}

// RecordFailure bumps the attempt counter and keeps the latest error text.
func (s *Store) RecordFailure(ctx context.Context, id int64, cause error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if len(message) > maxLastErrorLength {
		message = message[:maxLastErrorLength]
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE pending_actions
SET attempt_count = attempt_count + 1, last_error = ?
WHERE id = ?
`, message, id); err != nil {
		return fmt.Errorf("record failure for action %d: %w", id, err)
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_actions`).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count pending actions: %w", err)
	}
	return count, nil
}

// SQLite stores a nil []byte as NULL, which the NOT NULL columns reject.
func nonNilBytes(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}
