package config

import (
	"testing"
)

func TestConfigValidation(t *testing.T) {
	// Test with empty config
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for empty config")
	}

	// Test with valid config
	cfg = &Config{
		Spaces: SpacesConfig{RootDir: "/tmp/supa-spaces"},
		Sync:   SyncConfig{FlushIntervalMS: 500, WatchEnabled: true},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestConfigValidationRejectsNonPositiveFlushInterval(t *testing.T) {
	cfg := &Config{
		Spaces: SpacesConfig{RootDir: "/tmp/supa-spaces"},
		Sync:   SyncConfig{FlushIntervalMS: 0},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for zero flush interval")
	}
}

func TestLoadAssignsPeerIDWhenMissing(t *testing.T) {
	t.Setenv("SUPA_PEER_ID", "")
	t.Setenv("SUPA_SPACES_ROOT", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Peer.ID == "" {
		t.Error("expected a peer id to be generated")
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SUPA_PEER_ID", "peer-env")
	t.Setenv("SUPA_SPACES_ROOT", dir)
	t.Setenv("SUPA_FLUSH_INTERVAL_MS", "250")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Peer.ID != "peer-env" {
		t.Errorf("expected peer id from env, got %s", cfg.Peer.ID)
	}
	if cfg.Spaces.RootDir != dir {
		t.Errorf("expected spaces root %s, got %s", dir, cfg.Spaces.RootDir)
	}
	if cfg.Sync.FlushIntervalMS != 250 {
		t.Errorf("expected flush interval 250, got %d", cfg.Sync.FlushIntervalMS)
	}
}
