package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alma.local/roundtrip/feedback"
	"alma.local/roundtrip/gentest"
	"alma.local/roundtrip/internal/config"
)

type call struct {
	dir  string
	argv []string
}

type recorder struct {
	mu     sync.Mutex
	calls  []call
	output map[string]string
	fail   map[string]bool
}

func (r *recorder) exec(_ context.Context, dir string, argv []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{dir: dir, argv: argv})
	out := []byte(r.output[filepath.Base(dir)])
	if r.fail[filepath.Base(dir)] {
		return out, errors.New("exit status 1")
	}
	return out, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestSchemaDirs(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b", "user.tars"))
	touch(t, filepath.Join(root, "b", "order.tars"))
	touch(t, filepath.Join(root, "a", "nested", "item.tars"))
	touch(t, filepath.Join(root, "c", "readme.md"))

	dirs, err := SchemaDirs(root, "*.tars")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "nested"), filepath.Join(root, "b")}, dirs)

	_, err = SchemaDirs(root, "[")
	require.Error(t, err)
}

func TestGen(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "schemas", "user", "user.tars"))
	touch(t, filepath.Join(root, "schemas", "order", "order.tars"))
	touch(t, filepath.Join(root, "schemas", "order", "item.tars"))
	touch(t, filepath.Join(root, "schemas", "order", "notes.txt"))

	cfg := config.Default()
	cfg.SchemaRoot = filepath.Join(root, "schemas")
	cfg.OutRoot = filepath.Join(root, "gen")

	rec := &recorder{}
	require.NoError(t, New(WithExec(rec.exec)).Gen(context.Background(), cfg))
	require.Len(t, rec.calls, 2)
	argv := map[string][]string{}
	for _, c := range rec.calls {
		argv[filepath.Base(c.dir)] = c.argv
	}
	outFlag := "-outdir=" + cfg.OutRoot
	assert.Equal(t, []string{"tars2go", outFlag, "item.tars", "order.tars"}, argv["order"])
	assert.Equal(t, []string{"tars2go", outFlag, "user.tars"}, argv["user"])
	assert.DirExists(t, cfg.OutRoot)

	rec = &recorder{fail: map[string]bool{"order": true}, output: map[string]string{"order": "syntax error"}}
	err := New(WithExec(rec.exec), WithParallelism(1)).Gen(context.Background(), cfg)
	require.ErrorContains(t, err, "syntax error")

	cfg.Generator.Glob = "*.proto"
	require.ErrorContains(t, New(WithExec(rec.exec)).Gen(context.Background(), cfg), "no *.proto files")
}

const passingOutput = `=== RUN   TestRoundTrip
=== RUN   TestRoundTrip/Order
=== RUN   TestRoundTrip/User
    harness.go:1: coverage gap in User: $.Hook (func()): unsupported
--- PASS: TestRoundTrip (0.00s)
    --- PASS: TestRoundTrip/Order (0.00s)
    --- PASS: TestRoundTrip/User (0.00s)
PASS
`

const failingOutput = `=== RUN   TestRoundTrip
--- FAIL: TestRoundTrip (0.00s)
    --- FAIL: TestRoundTrip/Cart (0.00s)
    --- PASS: TestRoundTrip/Item (0.00s)
FAIL
`

func TestRunTests(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "order", gentest.FileName))
	touch(t, filepath.Join(root, "cart", gentest.FileName))
	touch(t, filepath.Join(root, "empty", "doc.go"))

	rec := &recorder{
		output: map[string]string{"order": passingOutput, "cart": failingOutput},
		fail:   map[string]bool{"cart": true},
	}
	sig, err := New(WithExec(rec.exec)).Test(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart")
	require.Len(t, rec.calls, 2)
	assert.Equal(t, []string{"go", "test", "-count=1", "-v", "-run", "TestRoundTrip", "."}, rec.calls[0].argv)

	assert.Equal(t, 3, sig.RoundtripSuccessCount)
	assert.Equal(t, 1, sig.BugFoundCount)
	assert.Equal(t, 1, sig.CoverageGaps)
	assert.Equal(t, 1, sig.BugKinds[feedback.KindRoundTripFailure])
}

func TestRunTestsTidiesModule(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "go.mod"))
	touch(t, filepath.Join(root, "order", gentest.FileName))

	rec := &recorder{output: map[string]string{"order": passingOutput}}
	_, err := New(WithExec(rec.exec)).Test(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, root, rec.calls[0].dir)
	assert.Equal(t, []string{"go", "mod", "tidy"}, rec.calls[0].argv)

	rec = &recorder{fail: map[string]bool{filepath.Base(root): true}, output: map[string]string{filepath.Base(root): "missing module"}}
	_, err = New(WithExec(rec.exec)).Test(context.Background(), root)
	require.ErrorContains(t, err, "missing module")
	assert.Len(t, rec.calls, 1)
}

func TestRunTestsWithoutUnits(t *testing.T) {
	_, err := New().Test(context.Background(), t.TempDir())
	require.ErrorContains(t, err, "no "+gentest.FileName)
}

func TestParseTestOutput(t *testing.T) {
	sig := ParseTestOutput(passingOutput)
	assert.Equal(t, 2, sig.RoundtripSuccessCount)
	assert.Zero(t, sig.BugFoundCount)

	sig = ParseTestOutput(passingOutput + "panic: runtime error: index out of range [3] with length 3\n")
	assert.Equal(t, 1, sig.BugFoundCount)
	assert.Equal(t, 1, sig.BugKinds[feedback.KindPanic])

	sig = ParseTestOutput(failingOutput + "panic: boom\n")
	assert.Equal(t, 2, sig.BugFoundCount, "a failed subtest and a panic are two bugs")
	assert.Equal(t, 1, sig.BugKinds[feedback.KindRoundTripFailure])
	assert.Equal(t, 1, sig.BugKinds[feedback.KindPanic])
}
