// Package config loads cord's TOML configuration.
//
// The file lives at <data dir>/config.toml. Missing keys keep their defaults,
// and a missing file yields [DefaultConfig].
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/cord/internal/atomicfile"
	"tools.zach/dev/cord/internal/paths"
)

// DefaultClientID is the Discord application that owns cord's presence assets.
const DefaultClientID = "1219918645770059796"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level configuration.
type Config struct {
	// Discord holds presence daemon settings.
	Discord DiscordConfig `toml:"discord"`
	// Relay holds activity file relay settings.
	Relay RelayConfig `toml:"relay"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Update holds release check settings.
	Update UpdateConfig `toml:"update"`
}

// DiscordConfig holds presence daemon settings.
type DiscordConfig struct {
	// ClientID is the Discord application ID sent in the handshake, as a
	// decimal string.
	ClientID string `toml:"client_id"`
}

// RelayConfig holds activity file relay settings.
type RelayConfig struct {
	// ActivityDir is the directory scanned for activity files. Empty means
	// <data dir>/activity.
	ActivityDir string `toml:"activity_dir"`
	// Pattern is the doublestar glob an activity file name must match.
	Pattern string `toml:"pattern"`
	// StaleMinutes is the age after which an activity file is ignored
	// (0 disables the check).
	StaleMinutes int `toml:"stale_minutes"`
	// PollIntervalSeconds is the fallback interval for rescanning activity files.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is how often a lost daemon connection is retried.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// UpdateConfig holds release check settings.
type UpdateConfig struct {
	// ManifestURL is the release manifest checked at startup. Empty disables
	// the check.
	ManifestURL string `toml:"manifest_url"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			ClientID: DefaultClientID,
		},
		Relay: RelayConfig{
			Pattern:                  paths.ActivityPattern,
			StaleMinutes:             30,
			PollIntervalSeconds:      5,
			ReconnectIntervalSeconds: 15,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml on top of the defaults and validates the
// result. A missing file is not an error.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("parse config: unknown keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if _, err := c.ClientID(); err != nil {
		return err
	}

	if !doublestar.ValidatePattern(c.Relay.Pattern) {
		return fmt.Errorf("invalid relay.pattern %q", c.Relay.Pattern)
	}
	if strings.ContainsAny(c.Relay.Pattern, `/\`) {
		return fmt.Errorf("relay.pattern %q must match file names, not paths", c.Relay.Pattern)
	}

	if c.Relay.StaleMinutes < 0 {
		return fmt.Errorf("stale_minutes must be >= 0, got %d", c.Relay.StaleMinutes)
	}
	if c.Relay.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Relay.PollIntervalSeconds)
	}
	if c.Relay.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Relay.ReconnectIntervalSeconds)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Update.ManifestURL != "" {
		u, err := url.Parse(c.Update.ManifestURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid update.manifest_url %q: must be an http(s) URL", c.Update.ManifestURL)
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// ClientID parses the configured application ID.
func (c *Config) ClientID() (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Discord.ClientID), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid discord.client_id %q: must be a positive decimal application ID", c.Discord.ClientID)
	}
	return id, nil
}

// ActivityDir returns the directory scanned for activity files.
func (c *Config) ActivityDir(dataDir string) string {
	if c.Relay.ActivityDir != "" {
		return c.Relay.ActivityDir
	}
	return paths.DataDir{Root: dataDir}.Activity()
}

// StaleAfter returns the maximum age of a usable activity file, or 0 when
// the check is disabled.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Relay.StaleMinutes) * time.Minute
}

// PollInterval returns the activity rescan interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Relay.PollIntervalSeconds) * time.Second
}

// ReconnectInterval returns the interval between reconnect attempts.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Relay.ReconnectIntervalSeconds) * time.Second
}
