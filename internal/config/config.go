// Package config loads the host process's configuration: where spaces
// live on disk, this peer's stable id, and the sync fabric's tunables.
// The chat/agent/provider layers are out of scope (§1) and keep their
// own configuration elsewhere.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// PeerConfig holds this process's stable peer identity (§4.A peerID).
type PeerConfig struct {
	ID string `yaml:"id"`
}

// SpacesConfig holds where on disk spaces are rooted (§5).
type SpacesConfig struct {
	RootDir string `yaml:"rootDir"`
}

// SyncConfig holds the op sync fabric's tunables (§4.F, §4.G).
type SyncConfig struct {
	FlushIntervalMS int  `yaml:"flushIntervalMs"`
	WatchEnabled    bool `yaml:"watchEnabled"`
}

// Config represents the complete application configuration.
type Config struct {
	Peer   PeerConfig   `yaml:"peer"`
	Spaces SpacesConfig `yaml:"spaces"`
	Sync   SyncConfig   `yaml:"sync"`
}

// Load reads configuration from configPath if given, applies defaults and
// environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Spaces: SpacesConfig{RootDir: defaultSpacesRoot()},
		Sync:   SyncConfig{FlushIntervalMS: 500, WatchEnabled: true},
	}

	if configPath != "" {
		if err := loadYAML(configPath, cfg); err != nil {
			// Config file is optional, just use defaults
			fmt.Printf("Using default config (no config file at %s)\n", configPath)
		}
	}

	if id := os.Getenv("SUPA_PEER_ID"); id != "" {
		cfg.Peer.ID = id
	}
	if root := os.Getenv("SUPA_SPACES_ROOT"); root != "" {
		cfg.Spaces.RootDir = root
	}
	if ms := os.Getenv("SUPA_FLUSH_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Sync.FlushIntervalMS = v
		}
	}

	if cfg.Peer.ID == "" {
		cfg.Peer.ID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadYAML loads a YAML file into a struct.
func loadYAML(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	return nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.Spaces.RootDir == "" {
		return fmt.Errorf("spaces root directory is required")
	}
	if c.Sync.FlushIntervalMS <= 0 {
		return fmt.Errorf("sync flush interval must be positive")
	}
	return nil
}

func defaultSpacesRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./spaces"
	}
	return home + "/.supa/spaces"
}
