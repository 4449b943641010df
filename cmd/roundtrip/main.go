// Command roundtrip generates code from schemas, emits round-trip test units
// for the generated packages and runs them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"alma.local/roundtrip/codec/detect"
	"alma.local/roundtrip/gentest"
	"alma.local/roundtrip/harness"
	"alma.local/roundtrip/internal/config"
	"alma.local/roundtrip/internal/fixtures"
	"alma.local/roundtrip/internal/pipeline"
	"alma.local/roundtrip/internal/targets"
	"alma.local/roundtrip/oracle"
)

var (
	flagGen        = flag.Bool("gen", false, "run the schema code generator")
	flagGenTest    = flag.Bool("gentest", false, "write round-trip test units into the output root")
	flagTest       = flag.Bool("test", false, "run the generated test units")
	flagAll        = flag.Bool("all", false, "run gen, gentest and test in sequence")
	flagSelfCheck  = flag.Bool("selfcheck", false, "check the built-in fixture types and print the signature")
	flagConfig     = flag.String("config", "", "path to a YAML config file")
	flagSchemaRoot = flag.String("schema-root", "", "schema directory (overrides config)")
	flagOutRoot    = flag.String("out-root", "", "generated code directory (overrides config)")
	flagTargets    = flag.String("targets", "", "JSON target list restricting the emitted test units")
	flagTypes      = flag.String("types", "", "optional comma-separated list of target names to keep (default: all)")
	flagToolModule = flag.String("tool-module", "", "roundtrip checkout the generated go.mod replaces the tool module with (overrides config)")
	flagVerbose    = flag.Bool("v", false, "verbose logging")
)

var errNoStage = errors.New("no stage selected (use -gen, -gentest, -test, -all or -selfcheck)")

func main() {
	flag.Parse()

	logger, err := newLogger(*flagVerbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roundtrip: build logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		if errors.Is(err, errNoStage) {
			flag.Usage()
		}
		logger.Error("roundtrip failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return cfg, err
	}
	if *flagSchemaRoot != "" {
		cfg.SchemaRoot = *flagSchemaRoot
	}
	if *flagOutRoot != "" {
		cfg.OutRoot = *flagOutRoot
	}
	if *flagTargets != "" {
		cfg.Targets = *flagTargets
	}
	if *flagTypes != "" {
		cfg.Types = *flagTypes
	}
	if *flagToolModule != "" {
		cfg.ToolModule = *flagToolModule
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger *zap.Logger) error {
	gen, genTest, test := *flagGen || *flagAll, *flagGenTest || *flagAll, *flagTest || *flagAll
	if !gen && !genTest && !test && !*flagSelfCheck {
		return errNoStage
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Seed != 0 {
		// generated test units read the seed from the environment
		if err := os.Setenv(harness.SeedEnv, strconv.FormatInt(cfg.Seed, 10)); err != nil {
			return err
		}
	}

	if *flagSelfCheck {
		if err := selfCheck(ctx, cfg, logger); err != nil {
			return err
		}
	}

	runner := pipeline.New(pipeline.WithLogger(logger), pipeline.WithParallelism(cfg.Parallelism))
	if gen {
		logger.Info("stage gen", zap.String("schema_root", cfg.SchemaRoot), zap.String("out_root", cfg.OutRoot))
		if err := runner.Gen(ctx, cfg); err != nil {
			return fmt.Errorf("gen: %w", err)
		}
	}
	if genTest {
		logger.Info("stage gentest", zap.String("out_root", cfg.OutRoot))
		if err := emitTestUnits(cfg, logger); err != nil {
			return fmt.Errorf("gentest: %w", err)
		}
	}
	if test {
		logger.Info("stage test", zap.String("out_root", cfg.OutRoot))
		sig, err := runner.Test(ctx, cfg.OutRoot)
		fmt.Println(sig)
		if err != nil {
			return fmt.Errorf("test: %w", err)
		}
	}
	return nil
}

func emitTestUnits(cfg config.Config, logger *zap.Logger) error {
	opts := []gentest.Option{
		gentest.WithLogger(logger),
		gentest.WithFallback(cfg.FallbackCodec),
	}
	if cfg.ToolModule != "" {
		opts = append(opts, gentest.WithToolModule(cfg.ToolModule))
	}
	if cfg.Targets != "" {
		all, err := targets.LoadRoundTripTargets(cfg.Targets)
		if err != nil {
			return err
		}
		selected := targets.Filter(all, cfg.Types)
		if len(selected) == 0 {
			return fmt.Errorf("no targets selected by %q", cfg.Types)
		}
		opts = append(opts, gentest.WithTargets(selected))
	}
	units, err := gentest.Generate(cfg.OutRoot, opts...)
	if err != nil {
		return err
	}
	logger.Info("test units written", zap.Int("packages", len(units)))
	return nil
}

func selfCheck(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	mode, err := oracle.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	opts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithMode(mode),
		harness.WithTrials(cfg.Trials),
		harness.WithMaxLen(cfg.MaxLen),
		harness.WithMaxDepth(cfg.MaxDepth),
		harness.WithParallelism(cfg.Parallelism),
	}
	if cfg.Seed != 0 {
		opts = append(opts, harness.WithSeed(cfg.Seed))
	}
	if cfg.FallbackCodec != "" {
		fallback, err := detect.ByName(cfg.FallbackCodec)
		if err != nil {
			return err
		}
		opts = append(opts, harness.WithFallback(fallback))
	}

	sig, err := harness.Validate(ctx, fixtures.Registry(), opts...)
	fmt.Println(sig)
	if err != nil {
		return fmt.Errorf("selfcheck: %w", err)
	}
	return nil
}
