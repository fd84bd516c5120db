package config

import "fmt"

const currentSchemaVersion = 1

// fileSchema is the on-disk TOML layout. Durations are kept as Go duration
// strings so the file stays readable.
type fileSchema struct {
	Version     int               `toml:"version"`
	Backend     backendSchema     `toml:"backend"`
	Storage     storageSchema     `toml:"storage"`
	Credentials credentialsSchema `toml:"credentials"`
	Session     sessionSchema     `toml:"session"`
	Sync        syncSchema        `toml:"sync"`
	Log         logSchema         `toml:"log"`
}

type backendSchema struct {
	URL       string `toml:"url"`
	SocketURL string `toml:"socket_url"`
	Timeout   string `toml:"timeout"`
}

type storageSchema struct {
	Path string `toml:"path"`
}

type credentialsSchema struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type sessionSchema struct {
	AuthTimeout       string `toml:"auth_timeout"`
	DedupeWindow      string `toml:"dedupe_window"`
	ReconnectAttempts int    `toml:"reconnect_attempts"`
	ReconnectDelay    string `toml:"reconnect_delay"`
}

type syncSchema struct {
	ProbeInterval string `toml:"probe_interval"`
}

type logSchema struct {
	Level string `toml:"level"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func validateVersion(version int) error {
	if version > currentSchemaVersion {
		return fmt.Errorf("unsupported config schema version %d (current %d)", version, currentSchemaVersion)
	}
	return nil
}

func toSchema(cfg Config) fileSchema {
	return fileSchema{
		Version: currentSchemaVersion,
		Backend: backendSchema{
			URL:       cfg.Backend.URL,
			SocketURL: cfg.Backend.SocketURL,
			Timeout:   cfg.Backend.Timeout.String(),
		},
		Storage:     storageSchema{Path: cfg.Storage.Path},
		Credentials: credentialsSchema{Backend: cfg.Credentials.Backend, Path: cfg.Credentials.Path},
		Session: sessionSchema{
			AuthTimeout:       cfg.Session.AuthTimeout.String(),
			DedupeWindow:      cfg.Session.DedupeWindow.String(),
			ReconnectAttempts: cfg.Session.ReconnectAttempts,
			ReconnectDelay:    cfg.Session.ReconnectDelay.String(),
		},
		Sync: syncSchema{ProbeInterval: cfg.Sync.ProbeInterval.String()},
		Log:  logSchema{Level: cfg.Log.Level},
	}
}
