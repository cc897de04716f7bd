package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(dir string)
		wantSystem string
	}{
		{"cargo", func(d string) { writeFile(t, d, "Cargo.toml", "[package]\n") }, "cargo"},
		{"go", func(d string) { writeFile(t, d, "go.mod", "module x\n") }, "go"},
		{"cmake", func(d string) { writeFile(t, d, "CMakeLists.txt", "") }, "cmake"},
		{"meson", func(d string) { writeFile(t, d, "meson.build", "") }, "meson"},
		{"make", func(d string) { writeFile(t, d, "Makefile", "") }, "make"},
		{"python-pyproject", func(d string) { writeFile(t, d, "pyproject.toml", "") }, "pip"},
		{"python-setup", func(d string) { writeFile(t, d, "setup.py", "") }, "pip"},
		{"gem", func(d string) { writeFile(t, d, "Gemfile", "") }, "gem"},
		{"just", func(d string) { writeFile(t, d, "Justfile", "") }, "just"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)
			desc, err := Detect(dir)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if desc.System != tt.wantSystem {
				t.Errorf("Detect() system = %q, want %q", desc.System, tt.wantSystem)
			}
		})
	}
}

func TestDetectNpmRequiresBinField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "x"}`)
	if _, err := Detect(dir); err == nil {
		t.Error("expected NoBuildSystem for package.json without a bin field")
	}

	writeFile(t, dir, "package.json", `{"name": "x", "bin": "./cli.js"}`)
	desc, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if desc.System != "npm" {
		t.Errorf("Detect() system = %q, want npm", desc.System)
	}
}

func TestDetectCargoWinsOverGo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "[package]\n")
	writeFile(t, dir, "go.mod", "module x\n")
	desc, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if desc.System != "cargo" {
		t.Errorf("Detect() system = %q, want cargo (higher priority)", desc.System)
	}
}

func TestDetectNoBuildSystem(t *testing.T) {
	dir := t.TempDir()
	if _, err := Detect(dir); err == nil {
		t.Error("expected NoBuildSystemError for an empty tree")
	}
}

func TestDescriptorTextIsDeterministic(t *testing.T) {
	d := Descriptor{System: "make", Build: []string{"make"}, Install: []string{"make install PREFIX={{prefix}}"}}
	if d.Text() != d.Text() {
		t.Error("Text() should be deterministic")
	}
}
