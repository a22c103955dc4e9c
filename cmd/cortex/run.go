package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/darianrosebrook/cortex/internal/bt"
	"github.com/darianrosebrook/cortex/internal/world"
)

var (
	runWorldFile string
	runArgsJSON  string
	runMetrics   bool
)

var runCmd = &cobra.Command{
	Use:   "run <tree.yaml>",
	Short: "Compile and execute a behavior tree document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorldFile, "world", "w", "", "JSON file with the world snapshot")
	runCmd.Flags().StringVarP(&runArgsJSON, "args", "a", "", "JSON object with invocation arguments for leaf effectors")
	runCmd.Flags().BoolVarP(&runMetrics, "metrics", "m", false, "Print per-node metrics after the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	doc, err := bt.ParseDocument(data)
	if err != nil {
		return err
	}
	tree, err := rt.compiler.Compile(doc)
	if err != nil {
		return err
	}

	snapshot, err := loadWorld(runWorldFile)
	if err != nil {
		return err
	}

	ec := bt.NewExecutionContext(bt.ModeLive, func() *world.Snapshot { return snapshot })
	if runArgsJSON != "" {
		if err := json.Unmarshal([]byte(runArgsJSON), &ec.Args); err != nil {
			return fmt.Errorf("failed to parse --args: %w", err)
		}
	}
	result := rt.engine.Run(cmd.Context(), tree, ec)

	fmt.Printf("Run %s: %s (%d ticks, %s)\n", result.RunID, result.Status, result.Ticks, result.Duration.Round(0))
	if result.Error != nil {
		fmt.Printf("  error: %v\n", result.Error)
	}
	if len(result.Output) > 0 {
		fmt.Printf("  output: %v\n", result.Output)
	}
	if runMetrics {
		printNodeMetrics(result)
	}

	if !result.Succeeded() {
		os.Exit(1)
	}
	return nil
}

func printNodeMetrics(result *bt.Result) {
	ids := make([]string, 0, len(result.NodeMetrics))
	for id := range result.NodeMetrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("  node metrics:")
	for _, id := range ids {
		m := result.NodeMetrics[id]
		fmt.Printf("    %-24s runs=%d ok=%d fail=%d abort=%d timeout=%d dur=%s\n",
			id, m.Runs, m.Successes, m.Failures, m.Aborts, m.Timeouts, m.Duration.Round(0))
	}
}

// loadWorld reads a JSON snapshot file, or returns an empty snapshot when
// no file is given.
func loadWorld(path string) (*world.Snapshot, error) {
	if path == "" {
		return world.NewSnapshot(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return world.ParseSnapshot(data)
}
