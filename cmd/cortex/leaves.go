package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var leavesCmd = &cobra.Command{
	Use:   "leaves",
	Short: "List the registered leaves",
	Args:  cobra.NoArgs,
	RunE:  runLeaves,
}

func runLeaves(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}

	for _, l := range rt.leaves.List() {
		d := l.Descriptor
		fmt.Printf("%-12s %-8s %s\n", d.Name, d.Version, d.Description)
	}

	stats := rt.leaves.Stats()
	fmt.Printf("%d leaves across %d names\n", stats.Versions, stats.Names)
	return nil
}
