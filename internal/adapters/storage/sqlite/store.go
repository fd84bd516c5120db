// Package sqlite persists the offline outbox, zone image blobs and the local
// character cache in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bnema/dnd-campaign-cli/internal/adapters/storage/sqlite/migrations"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const (
	storeDirMode = 0o700
	dsnPragmas   = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
)

var errNotConfigured = errors.New("storage is not configured")

type Store struct {
	sqlDB  *sql.DB
	clock  ports.Clock
	newKey func() string
}

var (
	_ ports.Outbox         = (*Store)(nil)
	_ ports.ZoneImageStore = (*Store)(nil)
	_ ports.CharacterCache = (*Store)(nil)
)

type Option func(*Store)

func WithClock(clock ports.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open creates the database file if needed and applies pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), storeDirMode); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", "file:"+cleanPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serialises writers; WAL keeps readers cheap.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{
		sqlDB:  sqlDB,
		clock:  ports.SystemClock{},
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return nil
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}
