// Package chain keeps session credentials in pass when it is usable and in the
// credentials file otherwise.
package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/dnd-campaign-cli/internal/adapters/credentials/file"
	passstore "github.com/bnema/dnd-campaign-cli/internal/adapters/credentials/pass"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

// Store writes to the preferred backend and reads through to the fallback.
// A value only the fallback holds is moved into the preferred backend the
// first time it is read, and a successful preferred write drops the fallback
// copy so an older token cannot shadow a newer one.
type Store struct {
	preferred ports.SecretStore
	fallback  ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPreferredStore = errors.New("preferred credential store is nil")
	errNilFallbackStore  = errors.New("fallback credential store is nil")
)

func NewStore(preferred ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if preferred == nil {
		return nil, errNilPreferredStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{preferred: preferred, fallback: fallback}, nil
}

// NewPassWithFileFallback is the default credentials backend of the CLI.
func NewPassWithFileFallback(filePath string) (*Store, error) {
	return NewStore(passstore.NewStore(), filestore.NewStore(filePath))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.preferred.Put(ctx, key, value)
	if err == nil {
		_ = s.fallback.Delete(ctx, key)
		return nil
	}
	if isCanceled(err) {
		return err
	}

	if fallbackErr := s.fallback.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("store %s: preferred backend: %w; fallback backend: %w", key, err, fallbackErr)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.preferred.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if isCanceled(err) {
		return "", err
	}

	value, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr != nil {
		return "", fmt.Errorf("load %s: preferred backend: %w; fallback backend: %w", key, err, fallbackErr)
	}

	// The preferred backend answered, it just did not have the key.
	if errors.Is(err, domain.ErrSecretNotFound) {
		s.promote(ctx, key, value)
	}
	return value, nil
}

// Delete clears both backends so a stale copy cannot resurface from the fallback.
func (s *Store) Delete(ctx context.Context, key string) error {
	preferredErr := s.preferred.Delete(ctx, key)
	if isCanceled(preferredErr) {
		return preferredErr
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	if preferredErr != nil && fallbackErr != nil {
		return fmt.Errorf("delete %s: preferred backend: %w; fallback backend: %w", key, preferredErr, fallbackErr)
	}
	return nil
}

func (s *Store) promote(ctx context.Context, key string, value string) {
	if err := s.preferred.Put(ctx, key, value); err != nil {
		return
	}
	_ = s.fallback.Delete(ctx, key)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
