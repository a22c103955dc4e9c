package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/darianrosebrook/cortex/internal/bt"
	"github.com/darianrosebrook/cortex/internal/capability"
	"github.com/darianrosebrook/cortex/internal/config"
	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/predicate"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - behavior tree runtime for embodied agent capabilities",
	Long: `Cortex compiles declarative behavior tree documents against a
versioned leaf registry and executes them under a tick-based engine
with capability lifecycle governance (shadow evaluation, promotion,
circuit breaking).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shadowCmd)
	rootCmd.AddCommand(leavesCmd)
	rootCmd.AddCommand(versionCmd)
}

// runtime bundles the wired components every subcommand needs.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	leaves     *leaf.Registry
	predicates *predicate.Evaluator
	compiler   *bt.Compiler
	engine     *bt.Engine
	registry   *capability.Registry
}

// buildRuntime loads configuration and wires the full component stack,
// including the built-in demo leaves.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger := cfg.Logger(os.Stderr)

	leaves := leaf.NewRegistry()
	if err := registerDemoLeaves(leaves); err != nil {
		return nil, err
	}

	predicates := predicate.NewEvaluator()

	compiler := bt.NewCompiler(leaves, predicates, bt.WithCompilerLogger(logger))
	engine := bt.NewEngine(
		bt.WithLogger(logger),
		bt.WithTickInterval(cfg.Engine.TickInterval),
		bt.WithMaxTicks(cfg.Engine.MaxTicks),
	)
	registry := capability.NewRegistry(compiler, engine,
		capability.WithRegistryLogger(logger),
		capability.WithDefaultPromotionPolicy(cfg.PromotionPolicy()),
		capability.WithDefaultBreakerPolicy(cfg.BreakerPolicy()),
	)

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		leaves:     leaves,
		predicates: predicates,
		compiler:   compiler,
		engine:     engine,
		registry:   registry,
	}, nil
}
