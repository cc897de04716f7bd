// Package resolver implements the Resolver (spec 4.G): a deterministic
// backtracking walk from a set of top-level package requests to a
// topologically ordered, fully pinned build plan.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/recipe"
	"github.com/stefan-hacks/pygr/internal/version"
)

// Origin is a Package Request's source (spec §3).
type Origin string

const (
	OriginSystem     Origin = "system"
	OriginRecipe     Origin = "recipe"
	OriginRemoteRepo Origin = "remote-repo"
)

// Request is a top-level Package Request (spec §3).
type Request struct {
	Name       string
	Origin     Origin
	Constraint *version.Constraint
}

// PinnedBuild is one entry of the resolver's output plan: a fully
// pinned recipe selection with its direct dependency names.
type PinnedBuild struct {
	Name         string
	Recipe       *recipe.Recipe
	Dependencies []string
}

// Plan is the resolver's output: a dependency-first topologically
// ordered list of pinned builds (spec 4.G step 6).
type Plan struct {
	Order []PinnedBuild
}

// UnsatisfiableError is returned when backtracking exhausts every
// candidate at some point in the walk (spec 4.G step 5). Path lists
// every package name on the contradiction (spec P5).
type UnsatisfiableError struct {
	Path []string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("unsatisfiable: %s", strings.Join(e.Path, " -> "))
}
func (e *UnsatisfiableError) ErrorKind() errmsg.Kind { return errmsg.KindUnsatisfiable }

// CycleError reports a dependency cycle detected during resolution
// (spec §9 "Cyclic relationships in recipes").
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}
func (e *CycleError) ErrorKind() errmsg.Kind { return errmsg.KindUnsatisfiable }

// Resolver walks recipe-origin requests to a pinned plan using catalog
// for candidate lookup. system and remote-repo origin requests are
// pinned directly without a dependency walk (spec 4.G: "remote-repo
// origins bypass the resolver's dependency walk").
type Resolver struct {
	Catalog *recipe.Catalog
}

// New returns a Resolver backed by catalog.
func New(catalog *recipe.Catalog) *Resolver {
	return &Resolver{Catalog: catalog}
}

// Resolve runs the deterministic backtracking algorithm of spec 4.G
// over requests, returning a topologically ordered plan or an
// UnsatisfiableError/CycleError.
func (r *Resolver) Resolve(requests []Request) (*Plan, error) {
	st := &state{
		catalog:     r.Catalog,
		selected:    map[string]*recipe.Recipe{},
		constraints: map[string]*version.Constraint{},
	}

	var queue []string
	// Ties among top-level requests are broken by request name (spec
	// 4.G step 6); sorting the initial queue gives that determinism for
	// requests with no dependency relationship to each other.
	sorted := append([]Request{}, requests...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, req := range sorted {
		if req.Origin != OriginRecipe {
			continue // system/remote-repo are pinned by the caller, not walked here
		}
		st.constraints[req.Name] = version.Intersect(st.constraints[req.Name], req.Constraint)
		queue = append(queue, req.Name)
	}

	ok, conflict := st.resolve(queue)
	if !ok {
		return nil, &UnsatisfiableError{Path: conflict}
	}

	order, err := st.topoOrder()
	if err != nil {
		return nil, err
	}
	return &Plan{Order: order}, nil
}

type state struct {
	catalog     *recipe.Catalog
	selected    map[string]*recipe.Recipe
	constraints map[string]*version.Constraint
}

// resolve implements spec 4.G steps 1-5: work through queue, trying
// candidates newest-first for each unselected name, intersecting
// dependency constraints, and backtracking on contradiction.
func (st *state) resolve(queue []string) (bool, []string) {
	if len(queue) == 0 {
		return true, nil
	}
	name, rest := queue[0], queue[1:]

	if _, already := st.selected[name]; already {
		return st.resolve(rest)
	}

	candidates, err := st.catalog.Candidates(name, st.constraints[name])
	if err != nil || len(candidates) == 0 {
		return false, []string{name}
	}

	var deepestConflict []string
	for _, cand := range candidates {
		st.selected[name] = cand
		newQueue := append([]string{}, rest...)
		saved := map[string]*version.Constraint{}
		savedPresent := map[string]bool{}
		ok := true
		var conflict []string

		for _, dep := range cand.Dependencies {
			depConstraint, perr := version.ParseConstraint(dep.Constraint)
			if perr != nil {
				ok = false
				conflict = []string{name, dep.Name}
				break
			}
			existing, present := st.constraints[dep.Name]
			saved[dep.Name] = existing
			savedPresent[dep.Name] = present
			merged := version.Intersect(existing, depConstraint)
			st.constraints[dep.Name] = merged

			if sel, already := st.selected[dep.Name]; already {
				if !merged.Satisfies(sel.ParsedVersion()) {
					ok = false
					conflict = []string{name, dep.Name}
					break
				}
				continue
			}
			newQueue = append(newQueue, dep.Name)
		}

		if ok {
			success, subConflict := st.resolve(newQueue)
			if success {
				return true, nil
			}
			conflict = append([]string{name}, subConflict...)
		}

		for depName, present := range savedPresent {
			if present {
				st.constraints[depName] = saved[depName]
			} else {
				delete(st.constraints, depName)
			}
		}
		delete(st.selected, name)
		deepestConflict = conflict
	}

	return false, append([]string{name}, dedupTail(deepestConflict, name)...)
}

func dedupTail(conflict []string, head string) []string {
	if len(conflict) > 0 && conflict[0] == head {
		return conflict[1:]
	}
	return conflict
}

// topoOrder produces a dependency-first topological order over
// st.selected, detecting cycles, ties broken by name (spec 4.G step 6).
func (st *state) topoOrder() ([]PinnedBuild, error) {
	names := make([]string, 0, len(st.selected))
	for name := range st.selected {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := map[string]int{}
	var order []PinnedBuild
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return &CycleError{Cycle: append(append([]string{}, path...), name)}
		}
		state[name] = visiting
		path = append(path, name)

		rec := st.selected[name]
		depNames := make([]string, len(rec.Dependencies))
		for i, d := range rec.Dependencies {
			depNames[i] = d.Name
		}
		sort.Strings(depNames)
		for _, dep := range depNames {
			if _, ok := st.selected[dep]; !ok {
				continue // system/remote-repo dependency, not part of this walk
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[name] = visited
		order = append(order, PinnedBuild{Name: name, Recipe: rec, Dependencies: depNames})
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
