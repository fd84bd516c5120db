// Package config resolves client settings from the TOML config file,
// DND_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "DND"
	appDir     = ".dnd"

	CredentialsBackendChain = "chain"
	CredentialsBackendFile  = "file"
)

const (
	keyVersion           = "version"
	keyBackendURL        = "backend.url"
	keyBackendSocketURL  = "backend.socket_url"
	keyBackendTimeout    = "backend.timeout"
	keyStoragePath       = "storage.path"
	keyCredentialsKind   = "credentials.backend"
	keyCredentialsPath   = "credentials.path"
	keyAuthTimeout       = "session.auth_timeout"
	keyDedupeWindow      = "session.dedupe_window"
	keyReconnectAttempts = "session.reconnect_attempts"
	keyReconnectDelay    = "session.reconnect_delay"
	keyProbeInterval     = "sync.probe_interval"
	keyLogLevel          = "log.level"
)

type Config struct {
	// File is the config file that was read, empty when none exists.
	File string

	Backend struct {
		URL       string
		SocketURL string
		Timeout   time.Duration
	}
	Storage struct {
		Path string
	}
	Credentials struct {
		Backend string
		Path    string
	}
	Session struct {
		AuthTimeout       time.Duration
		DedupeWindow      time.Duration
		ReconnectAttempts int
		ReconnectDelay    time.Duration
	}
	Sync struct {
		ProbeInterval time.Duration
	}
	Log struct {
		Level string
	}
}

// Dir is the per-user directory holding config, credentials and the database.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, appDir), nil
}

// DefaultPath is where Load looks when no explicit file is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault(keyVersion, currentSchemaVersion)
	v.SetDefault(keyBackendURL, "http://localhost:5000")
	v.SetDefault(keyBackendSocketURL, "ws://localhost:5000/ws")
	v.SetDefault(keyBackendTimeout, "30s")
	v.SetDefault(keyStoragePath, filepath.Join(dir, "dnd.db"))
	v.SetDefault(keyCredentialsKind, CredentialsBackendChain)
	v.SetDefault(keyCredentialsPath, filepath.Join(dir, "credentials.json"))
	v.SetDefault(keyAuthTimeout, "100s")
	v.SetDefault(keyDedupeWindow, "3s")
	v.SetDefault(keyReconnectAttempts, 5)
	v.SetDefault(keyReconnectDelay, "1s")
	v.SetDefault(keyProbeInterval, "10s")
	v.SetDefault(keyLogLevel, "info")
}

// Defaults returns the built-in configuration without reading any file or
// environment.
func Defaults() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	v := viper.New()
	setDefaults(v, dir)
	return decode(v)
}

// Load reads path, or ~/.dnd/config.toml when path is empty. A missing file
// is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	setDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := validateVersion(v.GetInt(keyVersion)); err != nil {
		return Config{}, err
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			cfg.File = used
		}
	}
	return cfg, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config

	cfg.Backend.URL = strings.TrimRight(v.GetString(keyBackendURL), "/")
	cfg.Backend.SocketURL = v.GetString(keyBackendSocketURL)
	cfg.Backend.Timeout = v.GetDuration(keyBackendTimeout)
	cfg.Credentials.Backend = strings.ToLower(v.GetString(keyCredentialsKind))
	cfg.Session.AuthTimeout = v.GetDuration(keyAuthTimeout)
	cfg.Session.DedupeWindow = v.GetDuration(keyDedupeWindow)
	cfg.Session.ReconnectAttempts = v.GetInt(keyReconnectAttempts)
	cfg.Session.ReconnectDelay = v.GetDuration(keyReconnectDelay)
	cfg.Sync.ProbeInterval = v.GetDuration(keyProbeInterval)
	cfg.Log.Level = v.GetString(keyLogLevel)

	var err error
	if cfg.Storage.Path, err = expandPath(v.GetString(keyStoragePath)); err != nil {
		return Config{}, err
	}
	if cfg.Credentials.Path, err = expandPath(v.GetString(keyCredentialsPath)); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend.url is empty")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is empty")
	}
	switch c.Credentials.Backend {
	case CredentialsBackendChain, CredentialsBackendFile:
	default:
		return fmt.Errorf("credentials.backend %q is not one of %s, %s", c.Credentials.Backend, CredentialsBackendChain, CredentialsBackendFile)
	}
	if c.Session.ReconnectAttempts < 0 {
		return errors.New("session.reconnect_attempts must not be negative")
	}
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}
