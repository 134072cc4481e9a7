package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"AutoDJ-Go/pkg/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.Default()
	if cfg.Server.Address != ":4000" {
		t.Errorf("unexpected default address %q", cfg.Server.Address)
	}
	if cfg.Engine.TimeoutSeconds != 30 {
		t.Errorf("unexpected default timeout %d", cfg.Engine.TimeoutSeconds)
	}
	if len(cfg.Engine.NotFoundMarkers) == 0 {
		t.Error("default not_found_markers must not be empty")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
address = ":9999"

[engine]
command = "python3"
dataset = "/data/features.csv"
max_concurrent = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("file value not applied: %q", cfg.Server.Address)
	}
	if cfg.Engine.Dataset != "/data/features.csv" || cfg.Engine.MaxConcurrent != 2 {
		t.Errorf("engine settings not applied: %+v", cfg.Engine)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("DATABASE_PATH", "/tmp/env.db")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Spotify.ClientID != "env-id" {
		t.Errorf("env client id not applied: %q", cfg.Spotify.ClientID)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("env db path not applied: %q", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Spotify.ClientSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}
