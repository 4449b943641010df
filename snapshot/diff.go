package snapshot

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
)

// Diff describes how b differs from a. JSON input is compared structurally;
// anything else falls back to a line diff of the text.
func Diff(a, b []byte) string {
	var av, bv any
	if json.Unmarshal(a, &av) == nil && json.Unmarshal(b, &bv) == nil {
		return cmp.Diff(av, bv)
	}
	return cmp.Diff(string(a), string(b))
}
