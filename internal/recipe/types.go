// Package recipe implements the Recipe Catalog (spec 4.B): parsing the
// YAML recipe schema (spec §6), validating it, and looking packages up
// by name and version constraint across a set of cloned recipe repos.
package recipe

import (
	"fmt"
	"regexp"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/version"
)

// PrefixPlaceholder is the only expansion token a recipe's build/install
// commands may reference (spec 4.B).
const PrefixPlaceholder = "{{prefix}}"

// Recipe is the parsed form of a recipe YAML file (spec §3, §6).
type Recipe struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Source       Source       `yaml:"source"`
	Build        []string     `yaml:"build"`
	Install      []string     `yaml:"install"`
	Dependencies []Dependency `yaml:"dependencies"`

	// parsedVersion is computed once by Validate and reused by the
	// catalog's version-satisfaction lookups.
	parsedVersion *version.Version
}

// Source describes where a recipe's source tree comes from.
type Source struct {
	Kind string `yaml:"kind"`
	Repo string `yaml:"repo"`
	Ref  string `yaml:"ref"`
}

// Dependency is one entry in a recipe's dependency list.
type Dependency struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint"`
}

// ParsedVersion returns the recipe's version, parsed. Validate must have
// succeeded first.
func (r *Recipe) ParsedVersion() *version.Version {
	return r.parsedVersion
}

// MalformedError reports a recipe that failed validation (spec 4.B,
// error kind RecipeMalformed).
type MalformedError struct {
	Path    string
	Message string
}

func (e *MalformedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("recipe malformed (%s): %s", e.Path, e.Message)
	}
	return fmt.Sprintf("recipe malformed: %s", e.Message)
}

func (e *MalformedError) ErrorKind() errmsg.Kind { return errmsg.KindRecipeMalformed }

var templateTokenRE = regexp.MustCompile(`\{\{[^}]*\}\}`)

// Validate checks the required fields (spec 4.B: name, version,
// source.kind, source.repo) and that templated commands reference only
// {{prefix}}. It also parses Version, caching the result for later
// comparisons.
func (r *Recipe) Validate(path string) error {
	if r.Name == "" {
		return &MalformedError{Path: path, Message: "missing required field: name"}
	}
	if r.Version == "" {
		return &MalformedError{Path: path, Message: "missing required field: version"}
	}
	if r.Source.Kind == "" {
		return &MalformedError{Path: path, Message: "missing required field: source.kind"}
	}
	if r.Source.Repo == "" {
		return &MalformedError{Path: path, Message: "missing required field: source.repo"}
	}

	v, err := version.Parse(r.Version)
	if err != nil {
		return &MalformedError{Path: path, Message: fmt.Sprintf("invalid version %q: %v", r.Version, err)}
	}
	r.parsedVersion = v

	for _, cmd := range append(append([]string{}, r.Build...), r.Install...) {
		for _, tok := range templateTokenRE.FindAllString(cmd, -1) {
			if tok != PrefixPlaceholder {
				return &MalformedError{Path: path, Message: fmt.Sprintf("command references unknown placeholder %q", tok)}
			}
		}
	}

	for i, dep := range r.Dependencies {
		if dep.Name == "" {
			return &MalformedError{Path: path, Message: fmt.Sprintf("dependency %d missing name", i)}
		}
	}

	return nil
}
