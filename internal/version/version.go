package version

import "github.com/Masterminds/semver/v3"

// Version re-exports the semver type pygr uses throughout the data
// model (Recipe.Version, Fingerprint inputs, resolver tie-breaks).
type Version = semver.Version

// Parse parses a dotted-numeric version token with optional pre-release
// suffix, per spec §3 ("Version is a structured semantic-like token").
func Parse(s string) (*Version, error) {
	return semver.NewVersion(s)
}

// Compare orders two versions using the common dotted-numeric ordering
// with pre-release suffix handling (spec §3): -1, 0, or 1.
func Compare(a, b *Version) int {
	return a.Compare(b)
}

// Sorted stably sorts versions ascending.
func Sorted(vs []*Version) []*Version {
	out := make([]*Version, len(vs))
	copy(out, vs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].GreaterThan(out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
