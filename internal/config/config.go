// Package config loads the client configuration from a TOML file, filling
// in defaults for anything missing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything the client needs at startup.
type Config struct {
	StateDir     string
	Backend      string // "file" or "sqlite"
	AuthorityURL string
	ProbeAddr    string
	ProbeEvery   time.Duration
	SyncRetry    time.Duration
	MetricsBind  string
	S3           S3Config
}

// S3Config is the optional attachment blob store. When Bucket is empty
// attachments are kept inline in the orders blob.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

const (
	defaultConfigPath = "~/.config/maintsync/config.toml"
	defaultStateDir   = "~/.local/share/maintsync"
	defaultBackend    = "file"
	defaultProbeAddr  = "1.1.1.1:443"
	defaultProbeEvery = 15 * time.Second
	defaultSyncRetry  = 30 * time.Second
	defaultMetrics    = "127.0.0.1:9189"
)

// Load locates and parses the config file, falling back to defaults when it
// does not exist.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var raw struct {
		StateDir     string `toml:"state_dir"`
		Backend      string `toml:"backend"`
		AuthorityURL string `toml:"authority_url"`
		ProbeAddr    string `toml:"probe_addr"`
		ProbeEvery   string `toml:"probe_every"`
		SyncRetry    string `toml:"sync_retry"`
		MetricsBind  string `toml:"metrics_bind"`
		S3           struct {
			Bucket   string `toml:"bucket"`
			Region   string `toml:"region"`
			Endpoint string `toml:"endpoint"`
			Prefix   string `toml:"prefix"`
		} `toml:"s3"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.StateDir); v != "" {
		cfg.StateDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.Backend); v != "" {
		if v != "file" && v != "sqlite" {
			return Config{}, fmt.Errorf("unknown backend %q", v)
		}
		cfg.Backend = v
	}
	if v := strings.TrimSpace(raw.AuthorityURL); v != "" {
		cfg.AuthorityURL = v
	}
	if v := strings.TrimSpace(raw.ProbeAddr); v != "" {
		cfg.ProbeAddr = v
	}
	if cfg.ProbeEvery, err = parseDuration(raw.ProbeEvery, cfg.ProbeEvery); err != nil {
		return Config{}, fmt.Errorf("probe_every: %w", err)
	}
	if cfg.SyncRetry, err = parseDuration(raw.SyncRetry, cfg.SyncRetry); err != nil {
		return Config{}, fmt.Errorf("sync_retry: %w", err)
	}
	if v := strings.TrimSpace(raw.MetricsBind); v != "" {
		cfg.MetricsBind = v
	}
	cfg.S3 = S3Config{
		Bucket:   strings.TrimSpace(raw.S3.Bucket),
		Region:   strings.TrimSpace(raw.S3.Region),
		Endpoint: strings.TrimSpace(raw.S3.Endpoint),
		Prefix:   strings.TrimSpace(raw.S3.Prefix),
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		StateDir:    mustExpand(defaultStateDir),
		Backend:     defaultBackend,
		ProbeAddr:   defaultProbeAddr,
		ProbeEvery:  defaultProbeEvery,
		SyncRetry:   defaultSyncRetry,
		MetricsBind: defaultMetrics,
	}
}

// TokenPath returns where the remote session token is cached.
func (c Config) TokenPath() string {
	return filepath.Join(c.StateDir, "token.json")
}

// SQLitePath returns the database location for the sqlite backend.
func (c Config) SQLitePath() string {
	return filepath.Join(c.StateDir, "maintsync.db")
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
