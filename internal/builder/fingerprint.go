package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// buildFingerprint computes the 256-bit digest keying an installed
// artifact (spec §3 "Build Fingerprint (Store Key)"): a digest over
// (source-tree fingerprint, canonical recipe text or detected-build
// descriptor, sorted dependency store keys, target prefix template,
// sandbox policy marker).
func buildFingerprint(sourceTreeFingerprint, recipeOrDescriptorText string, dependencyKeys []string, prefixTemplate, policyMarker string) digest.Digest {
	keys := append([]string{}, dependencyKeys...)
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "source:%s\n", sourceTreeFingerprint)
	fmt.Fprintf(&sb, "recipe:%s\n", recipeOrDescriptorText)
	fmt.Fprintf(&sb, "deps:%s\n", strings.Join(keys, ","))
	fmt.Fprintf(&sb, "prefix:%s\n", prefixTemplate)
	fmt.Fprintf(&sb, "policy:%s\n", policyMarker)

	return digest.FromString(sb.String())
}
