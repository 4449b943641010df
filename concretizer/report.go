package concretizer

import "fmt"

// Reason classifies why part of a value could not be randomized.
type Reason string

const (
	ReasonUnsupported    Reason = "unsupported"
	ReasonDepth          Reason = "depth"
	ReasonPanic          Reason = "panic"
	ReasonNotAddressable Reason = "not-addressable"
)

// Gap is a spot in a value that was left at its zero or partial state.
type Gap struct {
	Path   string
	Type   string
	Reason Reason
	Detail string
}

func (g Gap) String() string {
	if g.Detail == "" {
		return fmt.Sprintf("%s (%s): %s", g.Path, g.Type, g.Reason)
	}
	return fmt.Sprintf("%s (%s): %s: %s", g.Path, g.Type, g.Reason, g.Detail)
}

// Report summarizes one Populate call.
type Report struct {
	// Filled counts the leaf values that received random data.
	Filled int
	Gaps   []Gap
}

// Degraded reports whether the populated value is a weaker test input than
// its shape allows.
func (r Report) Degraded() bool {
	return len(r.Gaps) > 0
}

// Count returns the number of gaps with the given reason.
func (r Report) Count(reason Reason) int {
	n := 0
	for _, g := range r.Gaps {
		if g.Reason == reason {
			n++
		}
	}
	return n
}
