// Package syspm is the thin system package manager adapter spec §1
// names as an external collaborator: the core only calls a small set
// of operations (which PM is present, whether it already has a
// package, how to ask it to install one) and never embeds PM-specific
// logic anywhere else.
package syspm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Manager identifies one of the system package managers spec §1 names.
type Manager string

const (
	APT    Manager = "apt"
	DNF    Manager = "dnf"
	Pacman Manager = "pacman"
	Zypper Manager = "zypper"
	APK    Manager = "apk"
)

// probe describes how to query and install through one Manager.
type probe struct {
	manager    Manager
	binary     string
	queryArgs  func(name string) []string
	installArgs func(name string) []string
	// hit reports whether the query command's exit code means "present".
	hit func(exitCode int) bool
}

var probes = []probe{
	{
		manager:    APT,
		binary:     "dpkg-query",
		queryArgs:  func(name string) []string { return []string{"-W", "-f=${Status}", name} },
		installArgs: func(name string) []string { return []string{"install", "-y", name} },
		hit:        func(code int) bool { return code == 0 },
	},
	{
		manager:    DNF,
		binary:     "rpm",
		queryArgs:  func(name string) []string { return []string{"-q", name} },
		installArgs: func(name string) []string { return []string{"install", "-y", name} },
		hit:        func(code int) bool { return code == 0 },
	},
	{
		manager:    Pacman,
		binary:     "pacman",
		queryArgs:  func(name string) []string { return []string{"-Q", name} },
		installArgs: func(name string) []string { return []string{"-S", "--noconfirm", name} },
		hit:        func(code int) bool { return code == 0 },
	},
	{
		manager:    Zypper,
		binary:     "rpm",
		queryArgs:  func(name string) []string { return []string{"-q", name} },
		installArgs: func(name string) []string { return []string{"install", "-y", name} },
		hit:        func(code int) bool { return code == 0 },
	},
	{
		manager:    APK,
		binary:     "apk",
		queryArgs:  func(name string) []string { return []string{"info", "-e", name} },
		installArgs: func(name string) []string { return []string{"add", name} },
		hit:        func(code int) bool { return code == 0 },
	},
}

// lookPath is overridable in tests.
var lookPath = exec.LookPath

// runQuery is overridable in tests so IsAvailable can be exercised
// without a real package database.
var runQuery = func(ctx context.Context, binary string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// frontendOf maps a Manager to the binary the user invokes to install
// (distinct from the query binary on Debian/RPM systems, where
// querying goes through dpkg/rpm directly but installing goes through
// apt/dnf).
func frontendOf(m Manager) string { return string(m) }

// Detect returns the first manager whose frontend binary is on PATH,
// in the priority order apt, dnf, pacman, zypper, apk (spec §1's
// enumeration order).
func Detect() (Manager, bool) {
	for _, p := range probes {
		if _, err := lookPath(frontendOf(p.manager)); err == nil {
			return p.manager, true
		}
	}
	return "", false
}

// IsAvailable reports whether name is already installed via m (spec
// §8 scenario 1: "system PM apt reports curl available").
func IsAvailable(ctx context.Context, m Manager, name string) (bool, error) {
	p, ok := lookupProbe(m)
	if !ok {
		return false, fmt.Errorf("syspm: unknown manager %q", m)
	}
	if _, err := lookPath(p.binary); err != nil {
		return false, fmt.Errorf("syspm: %s not found: %w", p.binary, err)
	}

	code, err := runQuery(ctx, p.binary, p.queryArgs(name))
	if err != nil {
		return false, fmt.Errorf("syspm: query %s: %w", name, err)
	}
	return p.hit(code), nil
}

// InstallCommand returns the argv a caller should run (typically under
// an elevation wrapper the CLI supplies) to install name via m. syspm
// itself never escalates privileges.
func InstallCommand(m Manager, name string) ([]string, error) {
	p, ok := lookupProbe(m)
	if !ok {
		return nil, fmt.Errorf("syspm: unknown manager %q", m)
	}
	return append([]string{string(m)}, p.installArgs(name)...), nil
}

func lookupProbe(m Manager) (probe, bool) {
	for _, p := range probes {
		if p.manager == m {
			return p, true
		}
	}
	return probe{}, false
}

// ParseManager validates a manager name parsed from a declarative
// state "system:PM:NAME" entry (spec §3).
func ParseManager(s string) (Manager, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range probes {
		if string(p.manager) == s {
			return p.manager, nil
		}
	}
	return "", fmt.Errorf("syspm: unrecognized package manager %q", s)
}
