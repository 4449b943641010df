// Package config loads the roundtrip tool configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"alma.local/roundtrip/codec/detect"
	"alma.local/roundtrip/oracle"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

const (
	// OutPlaceholder is replaced by the output root in generator arguments.
	OutPlaceholder = "{out}"
	// FilesPlaceholder is an argument that expands to the matched schema
	// files of one directory.
	FilesPlaceholder = "{files}"
)

type Generator struct {
	// Command is the generator argv. Arguments may contain {out}. A {files}
	// argument expands to the schema files; without one they are appended.
	Command []string `yaml:"command"`
	// Glob selects the schema files that mark a directory for generation.
	Glob string `yaml:"glob"`
}

type Config struct {
	SchemaRoot string    `yaml:"schema_root"`
	OutRoot    string    `yaml:"out_root"`
	Generator  Generator `yaml:"generator"`

	// Targets is an optional JSON target list restricting test-unit output.
	Targets string `yaml:"targets"`
	// Types is a comma-separated filter over target names.
	Types string `yaml:"types"`

	// ToolModule is the roundtrip checkout the generated module's go.mod is
	// pointed at. Empty leaves go.mod alone.
	ToolModule string `yaml:"tool_module"`

	// FallbackCodec checks plain structs when set.
	FallbackCodec string `yaml:"fallback_codec"`
	Mode          string `yaml:"mode"`
	Trials        int    `yaml:"trials"`
	Seed          int64  `yaml:"seed"`
	MaxLen        int    `yaml:"max_len"`
	MaxDepth      int    `yaml:"max_depth"`
	Parallelism   int    `yaml:"parallelism"`
}

func Default() Config {
	return Config{
		SchemaRoot: "schemas",
		OutRoot:    "gen",
		Generator: Generator{
			Command: []string{"tars2go", "-outdir=" + OutPlaceholder, FilesPlaceholder},
			Glob:    "*.tars",
		},
		ToolModule:  ".",
		Mode:        oracle.Strict.String(),
		Trials:      3,
		MaxLen:      10,
		MaxDepth:    8,
		Parallelism: 4,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.SchemaRoot) == "" {
		problems = append(problems, "schema_root is empty")
	}
	if strings.TrimSpace(c.OutRoot) == "" {
		problems = append(problems, "out_root is empty")
	}
	if len(c.Generator.Command) == 0 {
		problems = append(problems, "generator.command is empty")
	}
	if c.Generator.Glob == "" {
		problems = append(problems, "generator.glob is empty")
	}
	if _, err := oracle.ParseMode(c.Mode); err != nil {
		problems = append(problems, err.Error())
	}
	if c.FallbackCodec != "" {
		if _, err := detect.ByName(c.FallbackCodec); err != nil {
			problems = append(problems, fmt.Sprintf("fallback_codec %q is not a known codec", c.FallbackCodec))
		}
	}
	if c.Trials < 1 {
		problems = append(problems, "trials must be at least 1")
	}
	if c.MaxLen < 1 {
		problems = append(problems, "max_len must be at least 1")
	}
	if c.MaxDepth < 0 {
		problems = append(problems, "max_depth must not be negative")
	}
	if c.Parallelism < 1 {
		problems = append(problems, "parallelism must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// GeneratorArgs returns the generator argv for one schema directory with
// {out} and {files} expanded.
func (c Config) GeneratorArgs(files []string) []string {
	args := make([]string, 0, len(c.Generator.Command)+len(files))
	expanded := false
	for _, a := range c.Generator.Command {
		if a == FilesPlaceholder {
			args = append(args, files...)
			expanded = true
			continue
		}
		args = append(args, strings.ReplaceAll(a, OutPlaceholder, c.OutRoot))
	}
	if !expanded {
		args = append(args, files...)
	}
	return args
}
