// Package config loads the daemon's recognised configuration keys from a
// YAML file, with environment variable overrides. See SPEC_FULL.md §0.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ArchiveFilter selects which entry kinds an archive write retains.
type ArchiveFilter string

const (
	ArchiveEverything   ArchiveFilter = "everything"
	ArchiveWithoutTools ArchiveFilter = "without_tools"
	ArchiveMessagesOnly ArchiveFilter = "messages_only"
)

// ArchiveConfig controls archiving behavior.
type ArchiveConfig struct {
	Filter      ArchiveFilter `yaml:"filter"`
	AutoArchive bool          `yaml:"autoArchive"`
}

// Config is the full set of recognised configuration keys.
type Config struct {
	SocketPath              string        `yaml:"socket_path"`
	WSPort                  int           `yaml:"ws_port"`
	HTTPPort                int           `yaml:"http_port"`
	AutocompactThreshold    int           `yaml:"autocompact_threshold"`
	StaleSessionMinutes     int           `yaml:"stale_session_minutes"`
	CleanupIntervalMinutes  int           `yaml:"cleanup_interval_minutes"`
	Archive                 ArchiveConfig `yaml:"archive"`
	GlobalRoot              string        `yaml:"global_root"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		SocketPath:             defaultSocketPath(),
		WSPort:                 7428,
		HTTPPort:               0,
		AutocompactThreshold:   80,
		StaleSessionMinutes:    60,
		CleanupIntervalMinutes: 5,
		Archive: ArchiveConfig{
			Filter:      ArchiveEverything,
			AutoArchive: true,
		},
		GlobalRoot: defaultGlobalRoot(),
	}
}

// Load reads a YAML configuration file at path, falling back to defaults
// for any key the file omits. Unknown keys are ignored (yaml.v3's default
// behavior), matching §9's "loader ignores unknown keys" design note.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults (with environment
// overrides applied) when the file does not exist.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		applyEnvOverrides(cfg)
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("JACQUES_SOCKET_PATH"); ok {
		cfg.SocketPath = v
	}
	if v, ok := envInt("JACQUES_WS_PORT"); ok {
		cfg.WSPort = v
	}
	if v, ok := envInt("JACQUES_HTTP_PORT"); ok {
		cfg.HTTPPort = v
	}
	if v, ok := envInt("JACQUES_AUTOCOMPACT_THRESHOLD"); ok {
		cfg.AutocompactThreshold = v
	}
	if v, ok := envInt("JACQUES_STALE_SESSION_MINUTES"); ok {
		cfg.StaleSessionMinutes = v
	}
	if v, ok := envInt("JACQUES_CLEANUP_INTERVAL_MINUTES"); ok {
		cfg.CleanupIntervalMinutes = v
	}
	if v, ok := os.LookupEnv("JACQUES_ARCHIVE_FILTER"); ok {
		cfg.Archive.Filter = ArchiveFilter(v)
	}
	if v, ok := os.LookupEnv("JACQUES_ARCHIVE_AUTOARCHIVE"); ok {
		cfg.Archive.AutoArchive = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := os.LookupEnv("JACQUES_GLOBAL_ROOT"); ok {
		cfg.GlobalRoot = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func defaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/jacques.sock"
	}
	return home + "/.jacques/ingest.sock"
}

func defaultGlobalRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/jacques"
	}
	return home + "/.jacques"
}
