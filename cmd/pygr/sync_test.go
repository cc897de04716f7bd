package main

import (
	"testing"

	"github.com/stefan-hacks/pygr/internal/state"
)

func TestParseManifestLine(t *testing.T) {
	tests := []struct {
		line string
		want state.ManifestLine
	}{
		{"system:apt:curl", state.ManifestLine{Origin: state.OriginSystem, PM: "apt", Name: "curl"}},
		{"remote-repo:BurntSushi/ripgrep@v13.0.0", state.ManifestLine{Origin: state.OriginRemoteRepo, Name: "BurntSushi/ripgrep", Ref: "v13.0.0"}},
		{"remote-repo:BurntSushi/ripgrep", state.ManifestLine{Origin: state.OriginRemoteRepo, Name: "BurntSushi/ripgrep"}},
		{"recipe:libz@1.2.13", state.ManifestLine{Origin: state.OriginRecipe, Name: "libz", Ref: "1.2.13"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseManifestLine(tt.line)
			if err != nil {
				t.Fatalf("parseManifestLine(%q): %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("parseManifestLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseManifestLineErrors(t *testing.T) {
	for _, line := range []string{"", "bogus:thing", "system:onlyone", "recipe:noref"} {
		if _, err := parseManifestLine(line); err == nil {
			t.Errorf("parseManifestLine(%q) = nil error, want error", line)
		}
	}
}
