// Package pipeline runs the external stages of a roundtrip run: the schema
// code generator and `go test` over the emitted test units.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alma.local/roundtrip/feedback"
	"alma.local/roundtrip/gentest"
	"alma.local/roundtrip/internal/config"
)

// ExecFunc runs argv in dir and returns its combined output.
type ExecFunc func(ctx context.Context, dir string, argv []string) ([]byte, error)

func execCommand(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

type Runner struct {
	logger      *zap.Logger
	parallelism int
	goBin       string
	exec        ExecFunc
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithExec replaces process execution, mainly for tests.
func WithExec(fn ExecFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.exec = fn
		}
	}
}

func New(opts ...Option) *Runner {
	r := &Runner{
		logger:      zap.NewNop(),
		parallelism: 4,
		goBin:       "go",
		exec:        execCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SchemaDirs returns the directories under root holding a file that matches
// glob, in lexical order.
func SchemaDirs(root, glob string) ([]string, error) {
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("pipeline: bad glob %q: %w", glob, err)
	}
	seen := map[string]bool{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(glob, d.Name()); ok {
			seen[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: walk %s: %w", root, err)
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// SchemaFiles returns the names of the files in dir that match glob, sorted.
func SchemaFiles(dir, glob string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("pipeline: bad glob %q: %w", glob, err)
	}
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Base(m)
	}
	sort.Strings(files)
	return files, nil
}

// Gen runs the configured generator in every schema directory, passing it
// that directory's schema files.
func (r *Runner) Gen(ctx context.Context, cfg config.Config) error {
	dirs, err := SchemaDirs(cfg.SchemaRoot, cfg.Generator.Glob)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("pipeline: no %s files under %s", cfg.Generator.Glob, cfg.SchemaRoot)
	}
	outRoot, err := filepath.Abs(cfg.OutRoot)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return fmt.Errorf("pipeline: create out dir: %w", err)
	}
	cfg.OutRoot = outRoot

	_, err = r.each(ctx, "gen", dirs, func(ctx context.Context, dir string) (feedback.RuntimeSignature, error) {
		files, err := SchemaFiles(dir, cfg.Generator.Glob)
		if err != nil {
			return feedback.RuntimeSignature{}, err
		}
		argv := cfg.GeneratorArgs(files)
		out, err := r.exec(ctx, dir, argv)
		if err != nil {
			return feedback.RuntimeSignature{}, fmt.Errorf("%s: %s: %w\n%s", dir, strings.Join(argv, " "), err, out)
		}
		return feedback.RuntimeSignature{}, nil
	})
	return err
}

// TestDirs returns the directories under root that hold a generated test unit.
func TestDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == gentest.FileName {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: walk %s: %w", root, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Test runs the generated test units under outRoot and returns the signature
// parsed from their verbose output. A go.mod at outRoot is tidied first.
func (r *Runner) Test(ctx context.Context, outRoot string) (feedback.RuntimeSignature, error) {
	dirs, err := TestDirs(outRoot)
	if err != nil {
		return feedback.NewRuntimeSignature(), err
	}
	if len(dirs) == 0 {
		return feedback.NewRuntimeSignature(), fmt.Errorf("pipeline: no %s under %s", gentest.FileName, outRoot)
	}
	if _, err := os.Stat(filepath.Join(outRoot, "go.mod")); err == nil {
		tidy := []string{r.goBin, "mod", "tidy"}
		if out, err := r.exec(ctx, outRoot, tidy); err != nil {
			return feedback.NewRuntimeSignature(), fmt.Errorf("pipeline: %s: %s: %w\n%s", outRoot, strings.Join(tidy, " "), err, out)
		}
	}
	argv := []string{r.goBin, "test", "-count=1", "-v", "-run", "TestRoundTrip", "."}
	return r.each(ctx, "test", dirs, func(ctx context.Context, dir string) (feedback.RuntimeSignature, error) {
		out, err := r.exec(ctx, dir, argv)
		sig := ParseTestOutput(string(out))
		if err != nil {
			return sig, fmt.Errorf("%s: %w\n%s", dir, err, out)
		}
		r.logger.Debug("test output", zap.String("dir", dir), zap.ByteString("output", out))
		return sig, nil
	})
}

func (r *Runner) each(ctx context.Context, stage string, dirs []string, fn func(ctx context.Context, dir string) (feedback.RuntimeSignature, error)) (feedback.RuntimeSignature, error) {
	total := feedback.NewRuntimeSignature()
	var (
		mu   sync.Mutex
		errs error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sig, err := fn(ctx, dir)
			mu.Lock()
			defer mu.Unlock()
			total.Merge(sig)
			if err != nil {
				r.logger.Error(stage+" failed", zap.String("dir", dir), zap.Error(err))
				errs = multierr.Append(errs, err)
				return nil
			}
			r.logger.Info(stage+" ok", zap.String("dir", dir))
			return nil
		})
	}
	errs = multierr.Append(errs, g.Wait())
	return total, errs
}

// ParseTestOutput counts per-type subtest results in `go test -v` output.
func ParseTestOutput(output string) feedback.RuntimeSignature {
	sig := feedback.NewRuntimeSignature()
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "--- PASS: TestRoundTrip/"):
			sig.RoundtripSuccessCount++
		case strings.HasPrefix(line, "--- FAIL: TestRoundTrip/"):
			sig.BugFoundCount++
			sig.BugKinds[feedback.KindRoundTripFailure]++
		case strings.Contains(line, "coverage gap in "):
			sig.CoverageGaps++
		case strings.HasPrefix(line, "panic: "):
			sig.BugFoundCount++
			sig.BugKinds[feedback.KindPanic]++
		}
	}
	return sig
}
