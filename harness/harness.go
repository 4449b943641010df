// Package harness drives populate-and-check rounds over a registry.Provider,
// either as Go subtests (Run) or as a standalone parallel pass (Validate).
package harness

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alma.local/roundtrip/codec"
	"alma.local/roundtrip/concretizer"
	"alma.local/roundtrip/feedback"
	"alma.local/roundtrip/oracle"
	"alma.local/roundtrip/registry"
	"alma.local/roundtrip/snapshot"
)

// SeedEnv overrides the base seed, for replaying a reported failure.
const SeedEnv = "ROUNDTRIP_SEED"

const (
	DefaultTrials      = 3
	DefaultParallelism = 4
)

type settings struct {
	trials      int
	seed        int64
	mode        oracle.Mode
	projector   snapshot.Projector
	fallback    codec.Codec
	logger      *zap.Logger
	maxLen      int
	maxDepth    int
	parallelism int
}

type Option func(*settings)

func WithTrials(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.trials = n
		}
	}
}

func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = seed }
}

func WithMode(m oracle.Mode) Option {
	return func(s *settings) { s.mode = m }
}

func WithProjector(p snapshot.Projector) Option {
	return func(s *settings) { s.projector = p }
}

// WithFallback sets the codec for types that expose no generated encoder.
func WithFallback(c codec.Codec) Option {
	return func(s *settings) { s.fallback = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMaxLen(n int) Option {
	return func(s *settings) { s.maxLen = n }
}

func WithMaxDepth(n int) Option {
	return func(s *settings) { s.maxDepth = n }
}

func WithParallelism(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{
		trials:      DefaultTrials,
		seed:        time.Now().UnixNano(),
		mode:        oracle.Strict,
		projector:   snapshot.JSON(),
		logger:      zap.NewNop(),
		maxLen:      concretizer.DefaultMaxLen,
		maxDepth:    concretizer.DefaultMaxDepth,
		parallelism: DefaultParallelism,
	}
	if env := os.Getenv(SeedEnv); env != "" {
		if seed, err := strconv.ParseInt(env, 10, 64); err == nil {
			s.seed = seed
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// seedFor derives a per-type seed so types can run in any order.
func (s *settings) seedFor(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return s.seed ^ int64(h.Sum64())
}

// Run checks every entry as a subtest of t. Failures report the base seed,
// which replays the run through ROUNDTRIP_SEED.
func Run(t *testing.T, p registry.Provider, opts ...Option) {
	t.Helper()
	s := newSettings(opts)
	entries := p.Entries()
	if len(entries) == 0 {
		t.Fatal("harness: provider has no entries")
	}
	for _, e := range entries {
		t.Run(e.Name, func(t *testing.T) {
			_, err := s.checkEntry(e, t.Logf)
			for _, failure := range multierr.Errors(err) {
				t.Errorf("%v (%s=%d)", failure, SeedEnv, s.seed)
			}
		})
	}
}

// Validate checks every entry with bounded parallelism and returns the merged
// signature. Per-type failures are combined into the returned error.
func Validate(ctx context.Context, p registry.Provider, opts ...Option) (feedback.RuntimeSignature, error) {
	s := newSettings(opts)
	total := feedback.NewRuntimeSignature()

	var (
		mu   sync.Mutex
		errs error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, e := range p.Entries() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sig, err := s.checkEntry(e, func(format string, args ...any) {
				s.logger.Debug(fmt.Sprintf(format, args...), zap.String("type", e.Name))
			})
			mu.Lock()
			defer mu.Unlock()
			total.Merge(sig)
			errs = multierr.Append(errs, err)
			return nil
		})
	}
	errs = multierr.Append(errs, g.Wait())
	s.logger.Info("validation finished",
		zap.Int64("seed", s.seed),
		zap.Stringer("signature", total))
	return total, errs
}

func (s *settings) checkEntry(e registry.Entry, logf func(format string, args ...any)) (feedback.RuntimeSignature, error) {
	sig := feedback.NewRuntimeSignature()
	c, err := e.Resolve(s.fallback)
	if err != nil {
		sig.NonBugErrorCount++
		return sig, err
	}

	seed := s.seedFor(e.Name)
	gen := concretizer.New(
		concretizer.WithSeed(seed),
		concretizer.WithMaxLen(s.maxLen),
		concretizer.WithMaxDepth(s.maxDepth),
		concretizer.WithLogger(s.logger.With(zap.String("type", e.Name))),
	)

	var errs error
	for trial := 0; trial < s.trials; trial++ {
		v := e.New()
		report := gen.Populate(v)
		sig.CoverageGaps += len(report.Gaps)
		for _, gap := range report.Gaps {
			logf("coverage gap in %s: %s", e.Name, gap)
		}

		res, err := s.checkOne(c, e.Name, v)
		var pe *panicError
		if errors.As(err, &pe) {
			sig.ObservePanic()
		} else {
			sig.Observe(res, err)
		}
		if err != nil {
			s.logger.Error("round trip failed",
				zap.String("type", e.Name),
				zap.String("codec", c.Name()),
				zap.Int("trial", trial),
				zap.Int64("seed", seed),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s trial %d: %w", e.Name, trial, err))
		}
	}
	return sig, errs
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("codec panicked: %v", e.value)
}

func (s *settings) checkOne(c codec.Codec, name string, v any) (res *oracle.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &panicError{value: r}
		}
	}()
	return oracle.Check(c, v,
		oracle.WithMode(s.mode),
		oracle.WithProjector(s.projector),
		oracle.WithName(name))
}
