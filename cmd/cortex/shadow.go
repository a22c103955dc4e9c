package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/darianrosebrook/cortex/internal/bt"
	"github.com/darianrosebrook/cortex/internal/world"
)

var (
	shadowRuns      int
	shadowParallel  int
	shadowWorldFile string
)

var shadowCmd = &cobra.Command{
	Use:   "shadow <tree.yaml>",
	Short: "Register a capability and drive shadow runs toward promotion",
	Long: `Registers the document as a capability (which starts in Shadow
status), executes the requested number of shadow runs, and reports the
resulting lifecycle state. With default policies a healthy capability
promotes to Active during the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runShadow,
}

func init() {
	shadowCmd.Flags().IntVarP(&shadowRuns, "runs", "n", 10, "Number of shadow runs to execute")
	shadowCmd.Flags().IntVarP(&shadowParallel, "parallel", "p", 1, "Concurrent shadow runs")
	shadowCmd.Flags().StringVarP(&shadowWorldFile, "world", "w", "", "JSON file with the world snapshot")
}

func runShadow(cmd *cobra.Command, args []string) error {
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

	id, err := rt.registry.Register(cmd.Context(), doc.Name, doc.Version, data)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s in shadow\n", id)

	snapshot, err := loadWorld(shadowWorldFile)
	if err != nil {
		return err
	}
	snapshotFn := func() *world.Snapshot { return snapshot }

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(shadowParallel, 1))
	for i := 0; i < shadowRuns; i++ {
		g.Go(func() error {
			_, err := rt.registry.Invoke(ctx, id.String(), snapshotFn)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report, err := rt.registry.Status(doc.Name)
	if err != nil {
		return err
	}
	fmt.Printf("Capability %s: status=%s current=%s\n", report.Name, report.Status, report.CurrentVersion)
	for _, v := range report.Versions {
		m := v.Metrics
		fmt.Printf("  %-12s %-10s runs=%d ok=%d fail=%d shadow=%d/%d\n",
			v.Version, v.Status, m.Runs, m.Successes, m.Failures, m.ShadowSuccesses, m.ShadowRuns)
	}
	return nil
}
