package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.textdeck/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	DefaultOwner   string `toml:"default_owner"`

	// RefreshIntervalMs is the background refresh period. Zero means the
	// engine default.
	RefreshIntervalMs int64 `toml:"refresh_interval_ms"`

	// ReadDebounceMs is the read-receipt quiet period. Zero means the
	// batcher default.
	ReadDebounceMs int64 `toml:"read_debounce_ms"`
}

// Load reads config from the given path. Returns an error if the file is
// missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
