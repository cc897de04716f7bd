package userconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Telemetry {
		t.Error("expected Telemetry to default to false")
	}
	if cfg.Secrets == nil {
		t.Error("expected Secrets to be initialized, not nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pygr.toml")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry {
		t.Error("expected default Telemetry=false when file missing")
	}
}

func TestLoadExistingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pygr.toml")

	err := os.WriteFile(path, []byte("telemetry = true\n\n[cache]\nurl = \"https://cache.example.org\"\n"), 0o600)
	if err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Telemetry {
		t.Error("expected Telemetry=true from file")
	}
	if cfg.Cache.URL != "https://cache.example.org" {
		t.Errorf("cache.url = %q", cfg.Cache.URL)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pygr.toml")

	if err := os.WriteFile(path, []byte("this is not valid toml [[["), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := loadFromPath(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "subdir", "pygr.toml")

	cfg := DefaultConfig()
	cfg.Cache.URL = "https://cache.example.org"
	enabled := true
	cfg.Sandbox.Enabled = &enabled

	if err := cfg.saveToPath(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.Cache.URL != "https://cache.example.org" {
		t.Errorf("cache.url = %q", loaded.Cache.URL)
	}
	if loaded.Sandbox.Enabled == nil || !*loaded.Sandbox.Enabled {
		t.Error("expected sandbox.enabled=true after save/load")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		key, value string
	}{
		{"telemetry", "true"},
		{"cache.url", "https://cache.example.org"},
		{"cache.enabled", "false"},
		{"sandbox.enabled", "true"},
		{"sandbox.tool", "bwrap"},
		{"build.timeout_seconds", "600"},
		{"build.workers", "4"},
		{"secrets.cache_token", "s3cr3t"},
	}
	for _, c := range cases {
		if err := cfg.Set(c.key, c.value); err != nil {
			t.Fatalf("Set(%q, %q): %v", c.key, c.value, err)
		}
		got, ok := cfg.Get(c.key)
		if !ok {
			t.Fatalf("Get(%q): key not recognized", c.key)
		}
		if got != c.value {
			t.Errorf("Get(%q) = %q, want %q", c.key, got, c.value)
		}
	}
}

func TestSetRejectsUnrecognizedKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("nonsense.key", "1"); err == nil {
		t.Error("expected an error for an unrecognized key")
	}
}

func TestSetRejectsBadBool(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("sandbox.enabled", "not-a-bool"); err == nil {
		t.Error("expected an error for a malformed bool")
	}
}

func TestGetUnsetOptionalFieldsAreEmpty(t *testing.T) {
	cfg := DefaultConfig()
	for _, key := range []string{"cache.enabled", "sandbox.enabled", "build.timeout_seconds", "build.workers"} {
		v, ok := cfg.Get(key)
		if !ok {
			t.Fatalf("Get(%q): key not recognized", key)
		}
		if v != "" {
			t.Errorf("Get(%q) = %q, want empty string for unset optional field", key, v)
		}
	}
}

func TestAccessorDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.CacheURL("https://default.example.org"); got != "https://default.example.org" {
		t.Errorf("CacheURL fallback = %q", got)
	}
	if got := cfg.CacheEnabled(true); !got {
		t.Error("CacheEnabled fallback = false, want true")
	}
	if got := cfg.SandboxEnabled(true); !got {
		t.Error("SandboxEnabled fallback = false, want true")
	}
	if got := cfg.BuildTimeoutSeconds(300); got != 300 {
		t.Errorf("BuildTimeoutSeconds fallback = %d, want 300", got)
	}
	if got := cfg.BuildWorkers(2); got != 2 {
		t.Errorf("BuildWorkers fallback = %d, want 2", got)
	}
}

func TestAvailableKeysCoversGetSet(t *testing.T) {
	cfg := DefaultConfig()
	for key := range AvailableKeys() {
		if key == "secrets.*" {
			continue
		}
		if _, ok := cfg.Get(key); !ok {
			t.Errorf("AvailableKeys lists %q but Get does not recognize it", key)
		}
	}
}
