package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".", cfg.ToolModule)
	assert.Equal(t, []string{"tars2go", "-outdir=gen", "a.tars", "b.tars"}, cfg.GeneratorArgs([]string{"a.tars", "b.tars"}))
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schema_root: ./idl
out_root: ./out
generator:
  command: [protoc, "--go_out={out}"]
  glob: "*.proto"
fallback_codec: msgpack
tool_module: /src/roundtrip
mode: lenient
trials: 7
seed: 42
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./idl", cfg.SchemaRoot)
	assert.Equal(t, "*.proto", cfg.Generator.Glob)
	assert.Equal(t, []string{"protoc", "--go_out=./out", "user.proto"}, cfg.GeneratorArgs([]string{"user.proto"}),
		"files are appended when the command has no {files} argument")
	assert.Equal(t, "/src/roundtrip", cfg.ToolModule)
	assert.Equal(t, "lenient", cfg.Mode)
	assert.Equal(t, 7, cfg.Trials)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 8, cfg.MaxDepth, "unset keys keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trials: [1"), 0o644))
	_, err = Load(path)
	require.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Mode = "fuzzy"
	cfg.FallbackCodec = "xml"
	cfg.Trials = 0
	cfg.Generator.Command = nil

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), `fallback_codec "xml"`)
	assert.Contains(t, err.Error(), "trials must be at least 1")
	assert.Contains(t, err.Error(), "generator.command is empty")
}
