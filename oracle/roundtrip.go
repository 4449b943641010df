package oracle

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"alma.local/roundtrip/codec"
	"alma.local/roundtrip/snapshot"
)

// ErrEncode signals that the input value could not be encoded at all. No
// round trip was attempted, so it is not a mismatch.
var ErrEncode = errors.New("oracle: encode failed")

type Mode int

const (
	// Strict passes only when the re-encoded bytes and the structured
	// projections both match and the encoder is deterministic.
	Strict Mode = iota
	// Lenient passes when any one of bytes, projection or length matches.
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("oracle: unknown mode %q", s)
}

type Option func(*options)

type options struct {
	mode      Mode
	projector snapshot.Projector
	name      string
}

func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

func WithProjector(p snapshot.Projector) Option {
	return func(o *options) {
		if p != nil {
			o.projector = p
		}
	}
}

// WithName sets the label used in results. It defaults to the Go type.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Result records every observation of one check.
type Result struct {
	Name  string
	Codec string
	Mode  Mode

	Wire, Rewire         []byte
	Snapshot, Resnapshot []byte

	DecodeErr   error
	ReencodeErr error
	// ProjectErr is set when the projector failed on either pass.
	ProjectErr error

	Nondeterministic bool

	BytesEqual      bool
	StructuredEqual bool
	LengthEqual     bool
	// StructuredAvailable is false when the projector rejected both values
	// with the same error. Strict mode then relies on bytes alone.
	StructuredAvailable bool
}

func (r *Result) Passed() bool {
	switch r.Mode {
	case Lenient:
		return r.BytesEqual || r.StructuredEqual || r.LengthEqual
	default:
		structured := r.StructuredEqual || !r.StructuredAvailable
		return r.BytesEqual && structured && !r.Nondeterministic
	}
}

// Check encodes v, decodes the bytes into a fresh value of the same type,
// re-encodes that, and compares both wire and structured forms. v must be a
// non-nil pointer. A failed verdict is returned as *MismatchError together
// with the Result.
func Check(c codec.Codec, v any, opts ...Option) (*Result, error) {
	o := options{mode: Strict, projector: snapshot.JSON()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = fmt.Sprintf("%T", v)
	}
	if c == nil {
		return nil, errors.New("oracle: nil codec")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("%w: %s: oracle needs a non-nil pointer", codec.ErrUnsupported, o.name)
	}

	res := &Result{Name: o.name, Codec: c.Name(), Mode: o.mode}

	wire, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, o.name, err)
	}
	res.Wire = bytes.Clone(wire)
	snap, snapErr := o.projector.Project(v)

	again, err := c.Marshal(v)
	if err != nil || !bytes.Equal(res.Wire, again) {
		res.Nondeterministic = true
	}

	fresh := reflect.New(rv.Type().Elem()).Interface()
	res.DecodeErr = c.Unmarshal(bytes.Clone(res.Wire), fresh)

	rewire, err := c.Marshal(fresh)
	if err != nil {
		res.ReencodeErr = err
	} else {
		res.Rewire = bytes.Clone(rewire)
		res.BytesEqual = bytes.Equal(res.Wire, res.Rewire)
		res.LengthEqual = len(res.Wire) == len(res.Rewire)
	}
	resnap, resnapErr := o.projector.Project(fresh)

	switch {
	case snapErr == nil && resnapErr == nil:
		res.Snapshot, res.Resnapshot = snap, resnap
		res.StructuredAvailable = true
		res.StructuredEqual = bytes.Equal(snap, resnap)
	case snapErr != nil && resnapErr != nil && snapErr.Error() == resnapErr.Error():
		res.ProjectErr = snapErr
	default:
		res.Snapshot, res.Resnapshot = snap, resnap
		res.StructuredAvailable = true
		res.ProjectErr = errors.Join(snapErr, resnapErr)
	}

	if res.Passed() {
		return res, nil
	}
	mismatch := &MismatchError{Result: res}
	if res.StructuredAvailable && !res.StructuredEqual {
		mismatch.Diff = snapshot.Diff(res.Snapshot, res.Resnapshot)
	}
	return res, mismatch
}

// MismatchError reports a failed round trip.
type MismatchError struct {
	Result *Result
	// Diff is the structural difference between the two projections, from
	// the original value to the decoded one.
	Diff string
}

func (e *MismatchError) Error() string {
	r := e.Result
	var sb strings.Builder
	fmt.Fprintf(&sb, "oracle: bug triggered! non-canonical roundtrip of %s via %s (mode=%s bytes=%t structured=%t length=%t deterministic=%t input=%d output=%d)",
		r.Name, r.Codec, r.Mode, r.BytesEqual, r.StructuredEqual, r.LengthEqual, !r.Nondeterministic, len(r.Wire), len(r.Rewire))
	if r.DecodeErr != nil {
		fmt.Fprintf(&sb, "\ndecode error: %v", r.DecodeErr)
	}
	if r.ReencodeErr != nil {
		fmt.Fprintf(&sb, "\nre-encode error: %v", r.ReencodeErr)
	}
	if r.StructuredAvailable {
		fmt.Fprintf(&sb, "\nbefore: %s\nafter:  %s", r.Snapshot, r.Resnapshot)
	}
	if e.Diff != "" {
		fmt.Fprintf(&sb, "\ndiff (-before +after):\n%s", e.Diff)
	}
	return sb.String()
}

// Unwrap exposes the decode error, if any.
func (e *MismatchError) Unwrap() error {
	return e.Result.DecodeErr
}
