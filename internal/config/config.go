// Package config handles ferry configuration: a TOML file plus FERRY_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the ferry configuration.
type Config struct {
	AI     AIConfig     `toml:"ai"`
	Export ExportConfig `toml:"export"`
	Log    LogConfig    `toml:"log"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// AIConfig controls the assisted fallback.
type AIConfig struct {
	Enabled bool `toml:"enabled"`

	// Provider names the inference backend. Only "claude" (the claude CLI)
	// is supported.
	Provider string `toml:"provider"`
	Model    string `toml:"model"`

	// MinConfidence drops provider answers below this confidence.
	MinConfidence float64 `toml:"min_confidence"`

	// FallbackThreshold is the resolver confidence under which a result is
	// retried with assistance.
	FallbackThreshold float64 `toml:"fallback_threshold"`

	// RateLimitPerMinute caps provider calls; 0 disables the limit.
	RateLimitPerMinute int  `toml:"rate_limit_per_minute"`
	CacheEnabled       bool `toml:"cache_enabled"`

	// Timeout bounds a single provider call, as a Go duration ("60s").
	Timeout string `toml:"timeout"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	// Output is the bundle directory used when none is given. Empty means
	// "<vault name>-export" next to the vault.
	Output string `toml:"output"`

	// HistoryDB overrides <vault>/.ferry/history.db. "off" disables history.
	HistoryDB string `toml:"history_db"`

	RequireObsidianDir bool   `toml:"require_obsidian_dir"`
	PackageName        string `toml:"package_name"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `toml:"level"`

	// Format is one of console, json, pretty.
	Format string `toml:"format"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown code blocks.
	CodeTheme string `toml:"code_theme"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:           "claude",
			Model:              "haiku",
			MinConfidence:      0.6,
			FallbackThreshold:  0.7,
			RateLimitPerMinute: 60,
			CacheEnabled:       true,
			Timeout:            "60s",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads the configuration from path, or from DefaultPath when path is
// empty, then applies environment overrides. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadFrom(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom decodes the file at path over the defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("failed to parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// TimeoutDuration parses AI.Timeout. An empty value means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.AI.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.AI.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid ai.timeout %q: %w", c.AI.Timeout, err)
	}
	return d, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/ferry/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if xdgPath, err := XDGPath(); err == nil {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "ferry", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// XDGPath returns the XDG-style config path (~/.config/ferry/config.toml).
func XDGPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ferry", "config.toml"), nil
}

const defaultConfigText = `# ferry configuration

[ai]
# Ask the claude CLI to resolve wikilinks the index cannot.
enabled = false
provider = "claude"
model = "haiku"
min_confidence = 0.6
fallback_threshold = 0.7
rate_limit_per_minute = 60
cache_enabled = true
timeout = "60s"

[export]
# output = "/path/to/bundle"          # default: <vault>-export next to the vault
# history_db = "/path/to/history.db"   # "off" disables run history
require_obsidian_dir = false
# package_name = "my-vault"

[log]
level = "warn"       # trace, debug, info, warn, error
format = "console"   # console, json, pretty

# Optional UI accent color for headers/links in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
# code_theme = "monokai"
`

// CreateDefault writes a commented default config at path unless a file is
// already there. It returns true when a file was created.
func CreateDefault(path string) (bool, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigText), 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
