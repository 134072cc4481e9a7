// Package config loads application configuration from a TOML file with
// embedded defaults. Secrets are never stored in the file; they come from
// environment variables which also override the corresponding file values,
// so deployments can keep a checked-in config and inject credentials at
// runtime.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Engine   EngineConfig   `toml:"engine"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `toml:"address"`
}

// SpotifyConfig contains Spotify API credentials and rate limiting.
type SpotifyConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURL       string  `toml:"redirect_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// EngineConfig describes how the external recommendation process is invoked
// and how its informal text output is interpreted.
type EngineConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Dataset string   `toml:"dataset"`

	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxConcurrent  int `toml:"max_concurrent"`

	// NotFoundMarkers and ErrorPrefix classify the engine's stdout. The
	// engine does not formally specify its markers, so these are an
	// adjustable allow-list rather than hardcoded assumptions.
	NotFoundMarkers []string `toml:"not_found_markers"`
	ErrorPrefix     string   `toml:"error_prefix"`
	StripExtensions []string `toml:"strip_extensions"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads the TOML file at path layered over the embedded defaults, then
// applies environment overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default returns the embedded default configuration.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("parse embedded default config: %v", err))
	}
	return &cfg
}

// applyEnv overlays environment variables onto the loaded values. Only
// settings that are secrets or routinely differ per deployment are exposed
// this way.
func (c *Config) applyEnv() {
	setIf(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setIf(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setIf(&c.Spotify.RedirectURL, "SPOTIFY_REDIRECT_URL")
	setIf(&c.Server.Address, "LISTEN_ADDRESS")
	setIf(&c.Database.Path, "DATABASE_PATH")
	setIf(&c.Engine.Dataset, "ENGINE_DATASET")
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	if c.Engine.Command == "" {
		return fmt.Errorf("engine.command must be set")
	}
	if c.Engine.Dataset == "" {
		return fmt.Errorf("engine.dataset must be set")
	}
	return nil
}

func setIf(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
