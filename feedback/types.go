package feedback

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"alma.local/roundtrip/oracle"
)

// Bug kinds counted in RuntimeSignature.BugKinds. One failed check may count
// under several kinds.
const (
	KindByteMismatch       = "ByteMismatch"
	KindStructuredMismatch = "StructuredMismatch"
	KindLengthMismatch     = "LengthMismatch"
	KindNonDeterministic   = "NonDeterministic"
	KindDecodeError        = "DecodeError"
	KindPanic              = "Panic"
	// KindRoundTripFailure counts failed subtests reported by `go test`.
	KindRoundTripFailure = "RoundTripFailure"
)

// RuntimeSignature is a compact summary of a round-trip run.
type RuntimeSignature struct {
	RoundtripSuccessCount int // checks that passed
	NonBugErrorCount      int // inputs that could not be encoded, or setup failures
	BugFoundCount         int // checks with a failed verdict or a panic
	// BugKinds counts each failure category, e.g. "ByteMismatch".
	BugKinds map[string]int
	// CoverageGaps counts the spots the synthesizer left unfilled.
	CoverageGaps int
}

// NewRuntimeSignature initializes a RuntimeSignature with a non-nil BugKinds map.
func NewRuntimeSignature() RuntimeSignature {
	return RuntimeSignature{
		BugKinds: make(map[string]int),
	}
}

// Observe folds one oracle.Check outcome into s.
func (s *RuntimeSignature) Observe(res *oracle.Result, err error) {
	if s.BugKinds == nil {
		s.BugKinds = make(map[string]int)
	}
	var mismatch *oracle.MismatchError
	switch {
	case err == nil:
		s.RoundtripSuccessCount++
	case errors.As(err, &mismatch):
		s.BugFoundCount++
		r := mismatch.Result
		if !r.BytesEqual {
			s.BugKinds[KindByteMismatch]++
		}
		if r.StructuredAvailable && !r.StructuredEqual {
			s.BugKinds[KindStructuredMismatch]++
		}
		if !r.LengthEqual {
			s.BugKinds[KindLengthMismatch]++
		}
		if r.Nondeterministic {
			s.BugKinds[KindNonDeterministic]++
		}
		if r.DecodeErr != nil {
			s.BugKinds[KindDecodeError]++
		}
	default:
		s.NonBugErrorCount++
	}
}

func (s *RuntimeSignature) ObservePanic() {
	if s.BugKinds == nil {
		s.BugKinds = make(map[string]int)
	}
	s.BugFoundCount++
	s.BugKinds[KindPanic]++
}

func (s *RuntimeSignature) Merge(o RuntimeSignature) {
	if s.BugKinds == nil {
		s.BugKinds = make(map[string]int)
	}
	s.RoundtripSuccessCount += o.RoundtripSuccessCount
	s.NonBugErrorCount += o.NonBugErrorCount
	s.BugFoundCount += o.BugFoundCount
	s.CoverageGaps += o.CoverageGaps
	for k, n := range o.BugKinds {
		s.BugKinds[k] += n
	}
}

func (s RuntimeSignature) Clean() bool {
	return s.BugFoundCount == 0 && s.NonBugErrorCount == 0
}

func (s RuntimeSignature) String() string {
	kinds := make([]string, 0, len(s.BugKinds))
	for k := range s.BugKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, s.BugKinds[k])
	}
	return fmt.Sprintf("passed=%d bugs=%d errors=%d gaps=%d kinds=[%s]",
		s.RoundtripSuccessCount, s.BugFoundCount, s.NonBugErrorCount, s.CoverageGaps, strings.Join(parts, " "))
}
