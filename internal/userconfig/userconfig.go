// Package userconfig persists pygr's optional, user-editable overrides
// (spec 4.A's "<root>/config/pygr.toml"), as distinct from the
// per-invocation environment overrides in internal/config. The CLI reads
// cache.url and sandbox.enabled from it; the other keys are stored and
// shown by "pygr config" but no command reads them.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/stefan-hacks/pygr/internal/log"
)

// Config is the on-disk shape of pygr.toml. Pointer fields are unset
// ("use the built-in default") when nil, distinguishing "not
// configured" from "configured to the zero value".
type Config struct {
	Telemetry bool              `toml:"telemetry"`
	Cache     CacheConfig       `toml:"cache"`
	Sandbox   SandboxConfig     `toml:"sandbox"`
	Build     BuildConfig       `toml:"build"`
	Secrets   map[string]string `toml:"secrets"`
}

// CacheConfig holds binary cache settings (spec 4.K). Only URL is read
// by the CLI.
type CacheConfig struct {
	URL     string `toml:"url"`
	Enabled *bool  `toml:"enabled"`
}

// SandboxConfig holds sandbox Runner settings (spec 4.E). Only Enabled
// is read by the CLI; the wrapper tool is chosen by probing PATH.
type SandboxConfig struct {
	Enabled *bool  `toml:"enabled"`
	Tool    string `toml:"tool"` // "bwrap", "unshare", or "" for auto-detect
}

// BuildConfig holds Builder settings (spec 4.F). No command reads them.
type BuildConfig struct {
	TimeoutSeconds *int `toml:"timeout_seconds"`
	Workers        *int `toml:"workers"`
}

// DefaultConfig returns a Config with every optional field unset, i.e.
// every setting deferring to its component's built-in default.
func DefaultConfig() *Config {
	return &Config{
		Telemetry: false,
		Secrets:   map[string]string{},
	}
}

// Load reads pygr.toml from path, returning DefaultConfig() if the file
// does not exist. A world- or group-readable file is still loaded, but
// logs a warning, since it may contain secrets.
func Load(path string) (*Config, error) {
	return loadFromPath(path)
}

func loadFromPath(path string) (*Config, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("userconfig: stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		log.Default().Warn("config file permissions are too open", "path", path, "mode", info.Mode().Perm())
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("userconfig: parse %s: %w", path, err)
	}
	if cfg.Secrets == nil {
		cfg.Secrets = map[string]string{}
	}
	return cfg, nil
}

// Save writes c to path atomically with owner-only permissions, since
// it may hold secrets (e.g. a cache auth token).
func (c *Config) Save(path string) error {
	return c.saveToPath(path)
}

func (c *Config) saveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("userconfig: create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pygr-toml-*")
	if err != nil {
		return fmt.Errorf("userconfig: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("userconfig: chmod temp file: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(c); err != nil {
		tmp.Close()
		return fmt.Errorf("userconfig: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("userconfig: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("userconfig: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("userconfig: rename into place: %w", err)
	}
	return nil
}

// CacheURL returns the configured cache base URL, or def if unset.
func (c *Config) CacheURL(def string) string {
	if c.Cache.URL == "" {
		return def
	}
	return c.Cache.URL
}

// CacheEnabled reports whether the binary cache fast path is enabled,
// defaulting to def when not configured.
func (c *Config) CacheEnabled(def bool) bool {
	if c.Cache.Enabled == nil {
		return def
	}
	return *c.Cache.Enabled
}

// SandboxEnabled reports whether builds run sandboxed by default,
// deferring to def when not configured.
func (c *Config) SandboxEnabled(def bool) bool {
	if c.Sandbox.Enabled == nil {
		return def
	}
	return *c.Sandbox.Enabled
}

// BuildTimeoutSeconds returns the configured per-package build
// timeout, or def when not configured.
func (c *Config) BuildTimeoutSeconds(def int) int {
	if c.Build.TimeoutSeconds == nil {
		return def
	}
	return *c.Build.TimeoutSeconds
}

// BuildWorkers returns the configured build worker pool size, or def
// when not configured.
func (c *Config) BuildWorkers(def int) int {
	if c.Build.Workers == nil {
		return def
	}
	return *c.Build.Workers
}

// Get returns the string form of a dotted setting key (e.g.
// "cache.url", "sandbox.enabled", "secrets.github_token"), and whether
// that key is recognized.
func (c *Config) Get(key string) (string, bool) {
	if name, ok := strings.CutPrefix(key, "secrets."); ok {
		v, ok := c.Secrets[name]
		return v, ok
	}
	switch strings.ToLower(key) {
	case "telemetry":
		return strconv.FormatBool(c.Telemetry), true
	case "cache.url":
		return c.Cache.URL, true
	case "cache.enabled":
		return optBoolString(c.Cache.Enabled), true
	case "sandbox.enabled":
		return optBoolString(c.Sandbox.Enabled), true
	case "sandbox.tool":
		return c.Sandbox.Tool, true
	case "build.timeout_seconds":
		return optIntString(c.Build.TimeoutSeconds), true
	case "build.workers":
		return optIntString(c.Build.Workers), true
	default:
		return "", false
	}
}

// Set assigns value to a dotted setting key, returning an error if the
// key is unrecognized or value cannot be parsed for that key's type.
func (c *Config) Set(key, value string) error {
	if name, ok := strings.CutPrefix(key, "secrets."); ok {
		if c.Secrets == nil {
			c.Secrets = map[string]string{}
		}
		c.Secrets[name] = value
		return nil
	}

	switch strings.ToLower(key) {
	case "telemetry":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("userconfig: %q is not a bool: %w", value, err)
		}
		c.Telemetry = b
	case "cache.url":
		c.Cache.URL = value
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("userconfig: %q is not a bool: %w", value, err)
		}
		c.Cache.Enabled = &b
	case "sandbox.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("userconfig: %q is not a bool: %w", value, err)
		}
		c.Sandbox.Enabled = &b
	case "sandbox.tool":
		c.Sandbox.Tool = value
	case "build.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("userconfig: %q is not an int: %w", value, err)
		}
		c.Build.TimeoutSeconds = &n
	case "build.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("userconfig: %q is not an int: %w", value, err)
		}
		c.Build.Workers = &n
	default:
		return fmt.Errorf("userconfig: unrecognized key %q", key)
	}
	return nil
}

// AvailableKeys returns every recognized setting key mapped to a short
// description, for "pygr config --help"-style introspection.
func AvailableKeys() map[string]string {
	return map[string]string{
		"telemetry":             "enable anonymous usage telemetry",
		"cache.url":             "binary cache base URL",
		"cache.enabled":         "enable the binary cache fast path",
		"sandbox.enabled":       "run builds inside a sandbox by default",
		"sandbox.tool":          "sandbox backend: bwrap, unshare, or empty for auto-detect",
		"build.timeout_seconds": "per-package build timeout, in seconds",
		"build.workers":         "build worker pool size",
		"secrets.*":             "arbitrary secret values (e.g. secrets.cache_token)",
	}
}

func optBoolString(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func optIntString(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
