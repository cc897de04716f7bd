package syspm

import (
	"context"
	"os/exec"
	"testing"
)

func withFakeLookPath(t *testing.T, present map[string]bool) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if present[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = orig })
}

func withFakeRunQuery(t *testing.T, code int, err error) {
	t.Helper()
	orig := runQuery
	runQuery = func(ctx context.Context, binary string, args []string) (int, error) {
		return code, err
	}
	t.Cleanup(func() { runQuery = orig })
}

func TestDetectPrefersAptFirst(t *testing.T) {
	withFakeLookPath(t, map[string]bool{"apt": true, "dnf": true})
	m, ok := Detect()
	if !ok || m != APT {
		t.Errorf("Detect() = %q, %v; want apt, true", m, ok)
	}
}

func TestDetectFallsBackToPacman(t *testing.T) {
	withFakeLookPath(t, map[string]bool{"pacman": true})
	m, ok := Detect()
	if !ok || m != Pacman {
		t.Errorf("Detect() = %q, %v; want pacman, true", m, ok)
	}
}

func TestDetectNoneFound(t *testing.T) {
	withFakeLookPath(t, map[string]bool{})
	_, ok := Detect()
	if ok {
		t.Error("expected Detect to report no manager found")
	}
}

func TestIsAvailableHit(t *testing.T) {
	withFakeLookPath(t, map[string]bool{"dpkg-query": true})
	withFakeRunQuery(t, 0, nil)

	ok, err := IsAvailable(context.Background(), APT, "curl")
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if !ok {
		t.Error("expected curl to be reported available")
	}
}

func TestIsAvailableMiss(t *testing.T) {
	withFakeLookPath(t, map[string]bool{"dpkg-query": true})
	withFakeRunQuery(t, 1, nil)

	ok, err := IsAvailable(context.Background(), APT, "doesnotexist")
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if ok {
		t.Error("expected package to be reported unavailable")
	}
}

func TestInstallCommand(t *testing.T) {
	argv, err := InstallCommand(APT, "curl")
	if err != nil {
		t.Fatalf("InstallCommand: %v", err)
	}
	want := []string{"apt", "install", "-y", "curl"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestParseManagerRejectsUnknown(t *testing.T) {
	if _, err := ParseManager("brew"); err == nil {
		t.Error("expected an error for an unrecognized manager")
	}
}

func TestParseManagerAcceptsKnown(t *testing.T) {
	m, err := ParseManager(" APT ")
	if err != nil {
		t.Fatalf("ParseManager: %v", err)
	}
	if m != APT {
		t.Errorf("ParseManager = %q, want apt", m)
	}
}
