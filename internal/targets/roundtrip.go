package targets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RoundTripTarget pins one type for test-unit generation.
type RoundTripTarget struct {
	Name       string `json:"name"`
	ImportPath string `json:"import"`
	Type       string `json:"type"`
	// Codec forces a codec by name instead of detecting one.
	Codec string `json:"codec,omitempty"`
}

// LoadRoundTripTargets parses the JSON config at path.
func LoadRoundTripTargets(path string) ([]RoundTripTarget, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets config: %w", err)
	}
	var targets []RoundTripTarget
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, fmt.Errorf("parse targets config: %w", err)
	}
	for i, t := range targets {
		if t.Name == "" || t.ImportPath == "" || t.Type == "" {
			return nil, fmt.Errorf("target %d is missing fields: %+v", i, t)
		}
		targets[i].ImportPath = strings.TrimSpace(t.ImportPath)
		targets[i].Codec = strings.ToLower(strings.TrimSpace(t.Codec))
	}
	return targets, nil
}

// Filter keeps the targets named in a comma-separated, case-insensitive list.
// An empty filter keeps everything.
func Filter(all []RoundTripTarget, filter string) []RoundTripTarget {
	if filter == "" {
		return all
	}
	names := map[string]bool{}
	for _, part := range strings.Split(filter, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names[strings.ToLower(trimmed)] = true
		}
	}
	var out []RoundTripTarget
	for _, t := range all {
		if names[strings.ToLower(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}

// ByImportPath groups targets by package.
func ByImportPath(all []RoundTripTarget) map[string][]RoundTripTarget {
	out := make(map[string][]RoundTripTarget)
	for _, t := range all {
		out[t.ImportPath] = append(out[t.ImportPath], t)
	}
	return out
}
