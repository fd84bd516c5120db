package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

func (s *Store) SaveCharacter(ctx context.Context, character domain.Character) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(character.ID)
	if id == "" {
		return errors.New("character id is required")
	}
	if !json.Valid(character.Data) {
		return fmt.Errorf("character %s payload is not valid JSON", id)
	}

	updatedAt := character.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock.Now()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO characters (id, payload_json, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    payload_json = excluded.payload_json,
    updated_at = excluded.updated_at
`, id, []byte(character.Data), toMillis(updatedAt)); err != nil {
		return fmt.Errorf("save character %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetCharacter(ctx context.Context, id string) (domain.Character, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Character{}, err
	}
	id = strings.TrimSpace(id)

	character := domain.Character{ID: id}
	var (
		payload   []byte
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload_json, updated_at FROM characters WHERE id = ?`, id).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Character{}, fmt.Errorf("character %s: %w", id, domain.ErrCharacterNotFound)
		}
		return domain.Character{}, fmt.Errorf("get character %s: %w", id, err)
	}
	character.Data = json.RawMessage(payload)
	character.UpdatedAt = fromMillis(updatedAt)

	return character, nil
}

// ListCharacters returns cached characters, most recently updated first.
func (s *Store) ListCharacters(ctx context.Context) ([]domain.Character, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, payload_json, updated_at
FROM characters
ORDER BY updated_at DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	characters := make([]domain.Character, 0)
	for rows.Next() {
		var (
			character domain.Character
			payload   []byte
			updatedAt int64
		)
		if err := rows.Scan(&character.ID, &payload, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		character.Data = json.RawMessage(payload)
		character.UpdatedAt = fromMillis(updatedAt)
		characters = append(characters, character)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}

	return characters, nil
}
