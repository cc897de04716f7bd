package main

import (
	"fmt"
	"strings"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/version"
)

// pkgSpec is one parsed "install PKG" argument (spec §6): either
// NAME[CONSTRAINT] (a recipe or system-PM lookup) or OWNER/REPO[@REF]
// (an ad-hoc remote-repo build).
type pkgSpec struct {
	Remote     bool
	OwnerRepo  string // "owner/repo", Remote only
	Ref        string // Remote only, empty means default branch
	Name       string
	Constraint *version.Constraint
}

// constraintOps lists every clause operator from spec §3's grammar,
// used to find where a package name ends and its constraint begins.
var constraintOps = []string{"compatible-with", "~>", ">=", "<=", "!=", "=", "<", ">"}

func splitNameConstraint(arg string) (name, constraint string) {
	idx := -1
	for _, op := range constraintOps {
		if i := strings.Index(arg, op); i > 0 && (idx == -1 || i < idx) {
			idx = i
		}
	}
	if idx == -1 {
		return arg, ""
	}
	return arg[:idx], arg[idx:]
}

// parsePkgArg parses one CLI argument per spec §6's "PKG matches
// NAME[CONSTRAINT] or OWNER/REPO[@REF]".
func parsePkgArg(arg string) (pkgSpec, error) {
	if strings.Contains(arg, "/") {
		ownerRepo, ref, _ := strings.Cut(arg, "@")
		if ownerRepo == "" {
			return pkgSpec{}, fmt.Errorf("pygr: empty repository in %q", arg)
		}
		return pkgSpec{Remote: true, OwnerRepo: ownerRepo, Ref: ref}, nil
	}

	name, constraintStr := splitNameConstraint(arg)
	if name == "" {
		return pkgSpec{}, fmt.Errorf("pygr: empty package name in %q", arg)
	}
	var c *version.Constraint
	if constraintStr != "" {
		var err error
		c, err = version.ParseConstraint(constraintStr)
		if err != nil {
			return pkgSpec{}, fmt.Errorf("pygr: %q: %w", arg, err)
		}
	}
	return pkgSpec{Name: name, Constraint: c}, nil
}

// repoCloneURL turns "owner/repo" into a clone URL, mirroring
// internal/builder's recipe.Source.Repo resolution for ad-hoc installs
// that have no companion recipe.
func repoCloneURL(ownerRepo string) string {
	if strings.Contains(ownerRepo, "://") || strings.HasPrefix(ownerRepo, "/") {
		return ownerRepo
	}
	return "https://github.com/" + ownerRepo + ".git"
}

// packageNotFoundError reports a NAME[CONSTRAINT] argument satisfied by
// neither a cataloged recipe nor the detected system package manager.
type packageNotFoundError struct{ Name string }

func (e *packageNotFoundError) Error() string {
	return fmt.Sprintf("no recipe or system package found for %q", e.Name)
}
func (e *packageNotFoundError) ErrorKind() errmsg.Kind { return errmsg.KindUnsatisfiable }

// noSystemPMError reports a system-PM route attempted with no supported
// package manager detected on PATH.
type noSystemPMError struct{ Name string }

func (e *noSystemPMError) Error() string {
	return fmt.Sprintf("no supported system package manager found for %q", e.Name)
}
func (e *noSystemPMError) ErrorKind() errmsg.Kind { return errmsg.KindUnsatisfiable }
