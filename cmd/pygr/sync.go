package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/state"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile declarative state with the current profile generation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		m, err := a.gens.CurrentManifest()
		if err != nil {
			fail(err)
		}
		lines, err := parseManifestLines(m.DeclaredLines)
		if err != nil {
			fail(err)
		}
		if err := a.state.SyncFromCurrent(lines); err != nil {
			fail(err)
		}
		printInfo("declarative state synced from current generation")
	},
}

// parseManifestLines parses a generation manifest's declared_lines
// snapshot (exactly the state-file grammar, spec 4.I's manifest) back
// into state.ManifestLine, mirroring internal/state's private line
// grammar since that package only exposes it through its own file.
func parseManifestLines(lines []string) ([]state.ManifestLine, error) {
	out := make([]state.ManifestLine, 0, len(lines))
	for _, line := range lines {
		ml, err := parseManifestLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, ml)
	}
	return out, nil
}

func parseManifestLine(line string) (state.ManifestLine, error) {
	switch {
	case strings.HasPrefix(line, "system:"):
		rest := strings.TrimPrefix(line, "system:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return state.ManifestLine{}, fmt.Errorf("pygr: malformed manifest line %q", line)
		}
		return state.ManifestLine{Origin: state.OriginSystem, PM: parts[0], Name: parts[1]}, nil

	case strings.HasPrefix(line, "remote-repo:"):
		rest := strings.TrimPrefix(line, "remote-repo:")
		name, ref, _ := strings.Cut(rest, "@")
		return state.ManifestLine{Origin: state.OriginRemoteRepo, Name: name, Ref: ref}, nil

	case strings.HasPrefix(line, "recipe:"):
		rest := strings.TrimPrefix(line, "recipe:")
		name, ref, ok := strings.Cut(rest, "@")
		if !ok {
			return state.ManifestLine{}, fmt.Errorf("pygr: malformed manifest line %q", line)
		}
		return state.ManifestLine{Origin: state.OriginRecipe, Name: name, Ref: ref}, nil

	default:
		return state.ManifestLine{}, fmt.Errorf("pygr: unrecognized manifest line %q", line)
	}
}
