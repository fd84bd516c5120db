package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRoundTripsThroughLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Defaults()
	require.NoError(t, err)
	cfg.Backend.URL = "https://campaigns.example.com"
	cfg.Storage.Path = filepath.Join(dir, "dnd.db")
	cfg.Session.DedupeWindow = 4 * time.Second

	require.NoError(t, Write(path, cfg, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.Storage, loaded.Storage)
	assert.Equal(t, cfg.Session, loaded.Session)

	leftovers, err := filepath.Glob(filepath.Join(dir, "nested", ".config-*.toml.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteRefusesToOverwriteUnlessAsked(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 1\n"), 0o600))

	cfg, err := Defaults()
	require.NoError(t, err)

	require.ErrorIs(t, Write(path, cfg, false), ErrConfigExists)
	require.NoError(t, Write(path, cfg, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[backend]")
}

func TestEncodeIncludesSchemaVersion(t *testing.T) {
	t.Parallel()

	cfg, err := Defaults()
	require.NoError(t, err)

	data, err := Encode(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "auth_timeout")
	assert.Contains(t, string(data), "1m40s")
}
