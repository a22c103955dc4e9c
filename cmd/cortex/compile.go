package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/darianrosebrook/cortex/internal/bt"
)

var compileCmd = &cobra.Command{
	Use:   "compile <tree.yaml>",
	Short: "Compile a behavior tree document and report its structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Compiled %s (%d nodes)\n", tree.ID(), tree.NodeCount())
	for _, id := range tree.NodeIDs() {
		node := tree.Node(id)
		switch {
		case node.Leaf != nil:
			fmt.Printf("  %-24s %s -> %s@%s\n", id, node.Type, node.Leaf.Descriptor.Name, node.Leaf.Descriptor.Version)
		case node.PredicateName != "":
			fmt.Printf("  %-24s %s -> %s\n", id, node.Type, node.PredicateName)
		default:
			fmt.Printf("  %-24s %s\n", id, node.Type)
		}
	}
	return nil
}
