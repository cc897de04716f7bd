// Package version implements the Version Constraint and ordering rules
// from spec §3: a conjunction of (op, version) clauses over the common
// dotted-numeric ordering with pre-release suffix handling. Ordering and
// parsing of individual version tokens is delegated to
// Masterminds/semver/v3; the clause grammar and its pessimistic/
// compatible-with operators are pygr's own, since they don't map onto
// semver's native constraint syntax.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Op is one clause operator from spec §3.
type Op string

const (
	OpEQ     Op = "="
	OpNE     Op = "!="
	OpLT     Op = "<"
	OpLE     Op = "<="
	OpGT     Op = ">"
	OpGE     Op = ">="
	OpTilde  Op = "~>" // pessimistic: locks the rightmost specified segment
	OpCompat Op = "compatible-with"
)

// Clause is a single (op, version) predicate.
type Clause struct {
	Op      Op
	Version *semver.Version
	// raw preserves the version token as written, so structural equality
	// and re-serialization don't depend on semver's own normalization.
	raw string
}

// Constraint is a conjunction of clauses, per spec §3.
type Constraint struct {
	Clauses []Clause
	// text is the original string, used for Equal() and String().
	text string
}

// String returns the constraint exactly as parsed, so re-parsing it is
// idempotent.
func (c *Constraint) String() string {
	if c == nil {
		return ""
	}
	return c.text
}

// Equal reports structural equality of two constraints, per spec §3
// ("Equality of two constraints is structural"): same clauses in the
// same order, not merely equivalent version sets.
func (c *Constraint) Equal(other *Constraint) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Clauses) != len(other.Clauses) {
		return false
	}
	for i := range c.Clauses {
		a, b := c.Clauses[i], other.Clauses[i]
		if a.Op != b.Op || a.raw != b.raw {
			return false
		}
	}
	return true
}

// ParseConstraint parses a comma-separated list of clauses, e.g.
// ">=1.2, <2.0" or "~>1.4.2" or "compatible-with 2.1.0".
func ParseConstraint(s string) (*Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Constraint{text: s}, nil
	}

	var clauses []Clause
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clause, err := parseClause(part)
		if err != nil {
			return nil, fmt.Errorf("version: invalid constraint clause %q: %w", part, err)
		}
		clauses = append(clauses, clause)
	}
	return &Constraint{Clauses: clauses, text: s}, nil
}

func parseClause(s string) (Clause, error) {
	for _, op := range []Op{OpCompat, OpGE, OpLE, OpNE, OpTilde, OpEQ, OpLT, OpGT} {
		if strings.HasPrefix(s, string(op)) {
			rest := strings.TrimSpace(strings.TrimPrefix(s, string(op)))
			if rest == "" {
				continue
			}
			v, err := semver.NewVersion(rest)
			if err != nil {
				return Clause{}, fmt.Errorf("invalid version %q: %w", rest, err)
			}
			return Clause{Op: op, Version: v, raw: rest}, nil
		}
	}
	// Bare version defaults to exact match.
	v, err := semver.NewVersion(s)
	if err != nil {
		return Clause{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Clause{Op: OpEQ, Version: v, raw: s}, nil
}

// Satisfies reports whether v satisfies every clause in the constraint.
// A nil or empty constraint is satisfied by every version.
func (c *Constraint) Satisfies(v *semver.Version) bool {
	if c == nil {
		return true
	}
	for _, cl := range c.Clauses {
		if !clauseSatisfies(cl, v) {
			return false
		}
	}
	return true
}

func clauseSatisfies(cl Clause, v *semver.Version) bool {
	switch cl.Op {
	case OpEQ:
		return v.Equal(cl.Version)
	case OpNE:
		return !v.Equal(cl.Version)
	case OpLT:
		return v.LessThan(cl.Version)
	case OpLE:
		return v.LessThan(cl.Version) || v.Equal(cl.Version)
	case OpGT:
		return v.GreaterThan(cl.Version)
	case OpGE:
		return v.GreaterThan(cl.Version) || v.Equal(cl.Version)
	case OpTilde:
		return tildeMatch(cl.Version, cl.raw, v)
	case OpCompat:
		return compatMatch(cl.Version, v)
	default:
		return false
	}
}

// tildeMatch implements the pessimistic "~>" operator: the version must
// be >= the clause version and < the next value of the rightmost
// explicitly specified segment. "~>1.4.2" allows [1.4.2, 1.5.0); "~>1.4"
// allows [1.4.0, 2.0.0).
func tildeMatch(base *semver.Version, raw string, v *semver.Version) bool {
	if v.LessThan(base) {
		return false
	}
	segments := len(strings.Split(strings.SplitN(raw, "-", 2)[0], "."))
	var upper *semver.Version
	if segments >= 3 {
		upper = mustVersion(base.Major(), base.Minor()+1, 0)
	} else {
		upper = mustVersion(base.Major()+1, 0, 0)
	}
	return v.LessThan(upper)
}

// mustVersion builds a semver.Version from numeric components. Only
// called with values derived from an already-valid parsed version, so a
// parse failure here would indicate a bug in this package, not bad
// input.
func mustVersion(major, minor, patch int64) *semver.Version {
	v, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	if err != nil {
		panic(fmt.Sprintf("version: unreachable: %v", err))
	}
	return v
}

// compatMatch implements "compatible-with", the caret-style rule: same
// major version (or, for a 0.x base, same minor version) and >= base.
func compatMatch(base *semver.Version, v *semver.Version) bool {
	if v.LessThan(base) {
		return false
	}
	if base.Major() > 0 {
		return v.Major() == base.Major()
	}
	return v.Major() == 0 && v.Minor() == base.Minor()
}

// Intersect returns a constraint satisfied exactly by versions that
// satisfy both c and other (used by the resolver, spec §4.G step 3,
// when merging a new dependency constraint onto an existing one on the
// same package name). The result is simply the union of clauses; it has
// no clauses to simplify or dedup, since clause order only matters for
// Equal(), not for Satisfies().
func Intersect(c, other *Constraint) *Constraint {
	if c == nil || len(c.Clauses) == 0 {
		return other
	}
	if other == nil || len(other.Clauses) == 0 {
		return c
	}
	merged := make([]Clause, 0, len(c.Clauses)+len(other.Clauses))
	merged = append(merged, c.Clauses...)
	merged = append(merged, other.Clauses...)
	text := c.text
	if other.text != "" {
		if text != "" {
			text += ", "
		}
		text += other.text
	}
	return &Constraint{Clauses: merged, text: text}
}
