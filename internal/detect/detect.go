// Package detect implements the Build-Type Detector (spec 4.D):
// inspecting a source tree and emitting a canonical build descriptor.
//
// The original dispatches across build systems with duck-typed checks;
// spec §9 calls for re-architecting that as a tagged set of build-system
// variants, each a pure function (source_tree, prefix) -> command list.
// Detect is additive: adding a build system means adding one detector
// to the detectors slice, in priority order.
package detect

import (
	"fmt"
	"os"
	"path/filepath"
)

// Descriptor is the canonical, deterministic text form of a detected
// build system, contributing to the build fingerprint (spec 4.D).
type Descriptor struct {
	// System names the detected build system, e.g. "cargo", "go",
	// "no-build-system".
	System string
	// Commands are the build commands, with {{prefix}} already the only
	// templated token (spec 4.D/4.F).
	Build   []string
	Install []string
}

// Text renders a canonical, stable serialization of the descriptor for
// hashing into the build fingerprint.
func (d Descriptor) Text() string {
	s := "system:" + d.System + "\n"
	for _, c := range d.Build {
		s += "build:" + c + "\n"
	}
	for _, c := range d.Install {
		s += "install:" + c + "\n"
	}
	return s
}

// NoBuildSystemError is returned when no detector matches (spec 4.D,
// error kind NoBuildSystem).
type NoBuildSystemError struct{ Dir string }

func (e *NoBuildSystemError) Error() string {
	return fmt.Sprintf("no recognized build system in %s; consider writing a recipe", e.Dir)
}

// detector is a pure function from a source tree's root to a
// descriptor, or ok=false if this build system wasn't detected.
type detector func(dir string) (Descriptor, bool)

// detectors runs in spec 4.D's fixed priority order. Recipe-supplied
// commands bypass this list entirely (the detector is not consulted);
// that precedence lives in the Builder, not here.
var detectors = []detector{
	detectCargo,
	detectGo,
	detectCMake,
	detectMeson,
	detectMake,
	detectNpm,
	detectPython,
	detectRubyGem,
	detectJust,
}

// Detect inspects dir and returns the first matching descriptor in
// priority order, or NoBuildSystemError if none match.
func Detect(dir string) (Descriptor, error) {
	for _, d := range detectors {
		if desc, ok := d(dir); ok {
			return desc, nil
		}
	}
	return Descriptor{}, &NoBuildSystemError{Dir: dir}
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func detectCargo(dir string) (Descriptor, bool) {
	if !exists(dir, "Cargo.toml") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "cargo",
		Build:   []string{"cargo build --release"},
		Install: []string{"cargo install --path . --root {{prefix}}"},
	}, true
}

func detectGo(dir string) (Descriptor, bool) {
	if !exists(dir, "go.mod") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "go",
		Build:   []string{"go build -o {{prefix}}/bin/ ./..."},
		Install: nil,
	}, true
}

func detectCMake(dir string) (Descriptor, bool) {
	if !exists(dir, "CMakeLists.txt") {
		return Descriptor{}, false
	}
	return Descriptor{
		System: "cmake",
		Build: []string{
			"cmake -S . -B build -DCMAKE_INSTALL_PREFIX={{prefix}}",
			"cmake --build build",
		},
		Install: []string{"cmake --install build"},
	}, true
}

func detectMeson(dir string) (Descriptor, bool) {
	if !exists(dir, "meson.build") {
		return Descriptor{}, false
	}
	return Descriptor{
		System: "meson",
		Build: []string{
			"meson setup build --prefix={{prefix}}",
			"ninja -C build",
		},
		Install: []string{"ninja -C build install"},
	}, true
}

func detectMake(dir string) (Descriptor, bool) {
	if !exists(dir, "Makefile") && !exists(dir, "makefile") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "make",
		Build:   []string{"make"},
		Install: []string{"make install PREFIX={{prefix}}"},
	}, true
}

func detectNpm(dir string) (Descriptor, bool) {
	if !exists(dir, "package.json") {
		return Descriptor{}, false
	}
	if !packageJSONHasBin(filepath.Join(dir, "package.json")) {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "npm",
		Build:   []string{"npm install --omit=dev"},
		Install: []string{"cp -r . {{prefix}}"},
	}, true
}

func detectPython(dir string) (Descriptor, bool) {
	if !exists(dir, "pyproject.toml") && !exists(dir, "setup.py") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "pip",
		Build:   []string{"python -m build --wheel"},
		Install: []string{"pip install --prefix {{prefix}} dist/*.whl"},
	}, true
}

func detectRubyGem(dir string) (Descriptor, bool) {
	if !exists(dir, "Gemfile") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "gem",
		Build:   []string{"bundle install --path {{prefix}}/vendor/bundle"},
		Install: nil,
	}, true
}

func detectJust(dir string) (Descriptor, bool) {
	if !exists(dir, "Justfile") && !exists(dir, "justfile") {
		return Descriptor{}, false
	}
	return Descriptor{
		System:  "just",
		Build:   nil,
		Install: []string{"just install {{prefix}}"},
	}, true
}
