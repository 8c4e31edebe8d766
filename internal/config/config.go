// Package config loads modsync settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file inside Dir.
const FileName = "config.yaml"

// Dir returns the modsync config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/modsync if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "modsync"), nil
}

// Config is the full modsync configuration.
type Config struct {
	ModsPath   string     `yaml:"mods_path"`
	DBPath     string     `yaml:"db_path"`
	Listen     string     `yaml:"listen"`
	CurseForge CurseForge `yaml:"curseforge"`
	Cache      Cache      `yaml:"cache"`
	Matcher    Matcher    `yaml:"matcher"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Watch      Watch      `yaml:"watch"`
	Log        Log        `yaml:"log"`
}

// CurseForge configures the catalog client and search pacing.
type CurseForge struct {
	APIKey      string `yaml:"api_key"`
	GameID      int    `yaml:"game_id"`
	BaseURL     string `yaml:"base_url"`
	RateLimitMs int    `yaml:"rate_limit_ms"`
	PageSize    int    `yaml:"page_size"`
	MaxOffset   int    `yaml:"max_offset"`
}

// Cache configures resolution caching.
type Cache struct {
	TTLDays int `yaml:"ttl_days"`
}

// Matcher configures name matching.
type Matcher struct {
	FuzzyThreshold int `yaml:"fuzzy_threshold"`
}

// Scheduler configures periodic refreshes.
type Scheduler struct {
	Cron           string `yaml:"cron"`
	Timezone       string `yaml:"timezone"`
	RefreshOnStart bool   `yaml:"refresh_on_start"`
}

// Watch configures the mods directory watcher.
type Watch struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dbPath := "modsync.db"
	if dir, err := Dir(); err == nil {
		dbPath = filepath.Join(dir, "modsync.db")
	}
	return &Config{
		ModsPath: "/app/mods",
		DBPath:   dbPath,
		Listen:   ":8080",
		CurseForge: CurseForge{
			GameID:      70216,
			BaseURL:     "https://api.curseforge.com/v1",
			RateLimitMs: 350,
			PageSize:    50,
			MaxOffset:   10000,
		},
		Cache:   Cache{TTLDays: 7},
		Matcher: Matcher{FuzzyThreshold: 80},
		Scheduler: Scheduler{
			Cron:           "0 0 * * *",
			Timezone:       "UTC",
			RefreshOnStart: true,
		},
		Watch: Watch{Enabled: true, DebounceMs: 2000},
		Log:   Log{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path means Dir()/config.yaml. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"MODSYNC_MODS_PATH":    &c.ModsPath,
		"MODSYNC_DB":           &c.DBPath,
		"MODSYNC_LISTEN":       &c.Listen,
		"CURSEFORGE_API_KEY":   &c.CurseForge.APIKey,
		"MODSYNC_REFRESH_CRON": &c.Scheduler.Cron,
		"MODSYNC_TIMEZONE":     &c.Scheduler.Timezone,
		"MODSYNC_LOG_LEVEL":    &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("MODSYNC_RATE_LIMIT_MS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MODSYNC_RATE_LIMIT_MS %q: %w", v, err)
		}
		c.CurseForge.RateLimitMs = n
	}
	return nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ModsPath == "" {
		errs = append(errs, errors.New("mods_path must be set"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must be set"))
	}
	positive := []struct {
		name string
		v    int
	}{
		{"curseforge.game_id", c.CurseForge.GameID},
		{"curseforge.rate_limit_ms", c.CurseForge.RateLimitMs},
		{"curseforge.page_size", c.CurseForge.PageSize},
		{"curseforge.max_offset", c.CurseForge.MaxOffset},
		{"cache.ttl_days", c.Cache.TTLDays},
		{"watch.debounce_ms", c.Watch.DebounceMs},
	}
	for _, p := range positive {
		if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.v))
		}
	}
	if t := c.Matcher.FuzzyThreshold; t <= 0 || t >= 100 {
		errs = append(errs, fmt.Errorf("matcher.fuzzy_threshold must be between 1 and 99, got %d", t))
	}
	return errors.Join(errs...)
}

// RateLimit returns the delay between catalog queries.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.CurseForge.RateLimitMs) * time.Millisecond
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// Debounce returns the watcher quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
