package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

func (s *Store) PutZoneImage(ctx context.Context, image domain.ZoneImage) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := validateZoneKey(image.Key); err != nil {
		return err
	}

	updatedAt := image.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock.Now()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO zone_images (zone_id, image_index, name, mime_type, content, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (zone_id, image_index) DO UPDATE SET
    name = excluded.name,
    mime_type = excluded.mime_type,
    content = excluded.content,
    updated_at = excluded.updated_at
`, image.Key.ZoneID, image.Key.ImageIndex, image.Name, image.MimeType, nonNilBytes(image.Content), toMillis(updatedAt)); err != nil {
		return fmt.Errorf("put zone image %s: %w", image.Key, err)
	}
	return nil
}

func (s *Store) GetZoneImage(ctx context.Context, key domain.ZoneImageKey) (domain.ZoneImage, error) {
	if err := s.ready(ctx); err != nil {
		return domain.ZoneImage{}, err
	}
	if err := validateZoneKey(key); err != nil {
		return domain.ZoneImage{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT name, mime_type, content, updated_at
FROM zone_images
WHERE zone_id = ? AND image_index = ?
`, key.ZoneID, key.ImageIndex)

	image := domain.ZoneImage{Key: key}
	var updatedAt int64
	if err := row.Scan(&image.Name, &image.MimeType, &image.Content, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ZoneImage{}, fmt.Errorf("zone image %s: %w", key, domain.ErrZoneImageNotFound)
		}
		return domain.ZoneImage{}, fmt.Errorf("get zone image %s: %w", key, err)
	}
	image.UpdatedAt = fromMillis(updatedAt)

	return image, nil
}

func (s *Store) DeleteZoneImage(ctx context.Context, key domain.ZoneImageKey) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := validateZoneKey(key); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM zone_images WHERE zone_id = ? AND image_index = ?`, key.ZoneID, key.ImageIndex); err != nil {
		return fmt.Errorf("delete zone image %s: %w", key, err)
	}
	return nil
}

// ListZoneImages returns the images of one zone ordered by index.
func (s *Store) ListZoneImages(ctx context.Context, zoneID string) ([]domain.ZoneImage, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		return nil, errors.New("zone id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT image_index, name, mime_type, content, updated_at
FROM zone_images
WHERE zone_id = ?
ORDER BY image_index ASC
`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("query zone images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	images := make([]domain.ZoneImage, 0)
	for rows.Next() {
		image := domain.ZoneImage{Key: domain.ZoneImageKey{ZoneID: zoneID}}
		var updatedAt int64
		if err := rows.Scan(&image.Key.ImageIndex, &image.Name, &image.MimeType, &image.Content, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan zone image: %w", err)
		}
		image.UpdatedAt = fromMillis(updatedAt)
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zone images: %w", err)
	}

	return images, nil
}

func validateZoneKey(key domain.ZoneImageKey) error {
	if strings.TrimSpace(key.ZoneID) == "" {
		return errors.New("zone id is required")
	}
	if key.ImageIndex < 0 {
		return errors.New("image index must not be negative")
	}
	return nil
}
