package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(run runFunc) *Store {
	return &Store{prefix: DefaultPrefix, run: run}
}

func TestStorePutInsertsUnderPrefix(t *testing.T) {
	t.Parallel()

	called := false
	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		called = true
		assert.Equal(t, []string{"insert", "--multiline", "--force", "dnd/accessToken"}, args)
		assert.Equal(t, "jwt-value\n", input)
		return "", "", nil
	})

	require.NoError(t, store.Put(context.Background(), "accessToken", "jwt-value"))
	assert.True(t, called)
}

func TestStoreGetTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		assert.Equal(t, []string{"show", "dnd/refreshToken"}, args)
		assert.Empty(t, input)
		return "refresh-value\r\n", "", nil
	})

	value, err := store.Get(context.Background(), "refreshToken")
	require.NoError(t, err)
	assert.Equal(t, "refresh-value", value)
}

func TestStoreGetMapsMissingEntryToNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		return "", "Error: dnd/user is not in the password store.", errors.New("exit status 1")
	})

	_, err := store.Get(context.Background(), "user")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		return "", "gpg: decryption failed", errors.New("exit status 2")
	})

	_, err := store.Get(context.Background(), "accessToken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "dnd/accessToken")
	assert.ErrorContains(t, err, "gpg: decryption failed")
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		assert.Equal(t, []string{"rm", "--force", "dnd/user"}, args)
		return "", "Error: dnd/user is not in the password store.", errors.New("exit status 1")
	})

	require.NoError(t, store.Delete(context.Background(), "user"))
}

func TestStorePutRejectsMultilineValues(t *testing.T) {
	t.Parallel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		t.Fatal("pass must not run for a multi-line value")
		return "", "", nil
	})

	err := store.Put(context.Background(), "user", "line one\nline two")
	require.Error(t, err)
	assert.ErrorContains(t, err, "dnd/user")
}

func TestStoreEntryTrimsSlashes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dnd/accessToken", newTestStore(nil).entry(" /accessToken/ "))
	assert.Equal(t, "accessToken", (&Store{}).entry("accessToken"))
}

func TestStoreShortCircuitsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newTestStore(func(ctx context.Context, input string, args ...string) (string, string, error) {
		t.Fatal("pass must not run with a canceled context")
		return "", "", nil
	})

	require.ErrorIs(t, store.Put(ctx, "k", "v"), context.Canceled)
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Delete(ctx, "k"), context.Canceled)
}
