// Package config loads cxburn settings and owns the pricing table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all cxburn configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Alerts     AlertsConfig     `toml:"alerts"`
	TUI        TUIConfig        `toml:"tui"`
	Appearance AppearanceConfig `toml:"appearance"`
	Pricing    PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultDays int    `toml:"default_days"`
	SessionsDir string `toml:"sessions_dir,omitempty"`
	CachePath   string `toml:"cache_path,omitempty"`
	Timezone    string `toml:"timezone,omitempty"`
	Workers     int    `toml:"workers,omitempty"`
}

// DaemonConfig holds background service settings.
type DaemonConfig struct {
	Addr         string   `toml:"addr"`
	Interval     Duration `toml:"interval"`
	Debounce     Duration `toml:"debounce"`
	Watch        bool     `toml:"watch"`
	EventsBuffer int      `toml:"events_buffer"`
}

// AlertsConfig holds rate-limit alert settings.
type AlertsConfig struct {
	Enabled    bool      `toml:"enabled"`
	Thresholds []float64 `toml:"thresholds"`
	LedgerPath string    `toml:"ledger_path,omitempty"`
}

// TUIConfig holds dashboard settings.
type TUIConfig struct {
	AutoRefresh     bool     `toml:"auto_refresh"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// AppearanceConfig holds theme preferences.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// PricingOverrides allows user-defined rates for specific tiers.
type PricingOverrides struct {
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-tier pricing overrides.
type ModelPricingOverride struct {
	InputPerMTok       *float64 `toml:"input_per_mtok,omitempty"`
	CachedInputPerMTok *float64 `toml:"cached_input_per_mtok,omitempty"`
	OutputPerMTok      *float64 `toml:"output_per_mtok,omitempty"`
}

// Duration wraps time.Duration so it reads and writes as "15s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultDays: 30,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			Interval:     Duration{60 * time.Second},
			Debounce:     Duration{750 * time.Millisecond},
			Watch:        true,
			EventsBuffer: 200,
		},
		Alerts: AlertsConfig{
			Enabled:    true,
			Thresholds: []float64{50, 25, 10},
		},
		TUI: TUIConfig{
			AutoRefresh:     true,
			RefreshInterval: Duration{30 * time.Second},
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cxburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cxburn")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CacheDir returns the XDG-compliant cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cxburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "cxburn")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config file at path, returning defaults if it doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // see LoadFrom
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// SessionsDir resolves the Codex sessions root: config, then $CODEX_HOME,
// then ~/.codex.
func SessionsDir(cfg Config) string {
	if cfg.General.SessionsDir != "" {
		return expandHome(cfg.General.SessionsDir)
	}
	if home := os.Getenv("CODEX_HOME"); home != "" {
		return filepath.Join(expandHome(home), "sessions")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex", "sessions")
}

// ScanCachePath resolves the scan cache file.
func ScanCachePath(cfg Config) string {
	if cfg.General.CachePath != "" {
		return expandHome(cfg.General.CachePath)
	}
	return filepath.Join(CacheDir(), "scan-cache.json")
}

// LedgerPath resolves the alert ledger database.
func LedgerPath(cfg Config) string {
	if cfg.Alerts.LedgerPath != "" {
		return expandHome(cfg.Alerts.LedgerPath)
	}
	return filepath.Join(CacheDir(), "alerts.db")
}

// Location resolves the configured timezone, defaulting to time.Local.
func Location(cfg Config) (*time.Location, error) {
	if cfg.General.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.General.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("loading timezone %q: %w", cfg.General.Timezone, err)
	}
	return loc, nil
}

// PricingTable builds the pricing table with the configured overrides.
func (c Config) PricingTable() *PricingTable {
	return NewPricingTable(c.Pricing.Overrides)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
