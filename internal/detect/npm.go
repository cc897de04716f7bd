package detect

import (
	"encoding/json"
	"os"
)

// packageJSONHasBin reports whether a package.json declares a "bin"
// field (spec 4.D: "Node package manifest with bin field"). A missing
// or malformed manifest is treated as not matching, so the detector
// falls through to the next build system rather than erroring.
func packageJSONHasBin(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var manifest struct {
		Bin json.RawMessage `json:"bin"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false
	}
	return len(manifest.Bin) > 0
}
