package main

import (
	"fmt"
	"os"

	"github.com/cjsstech/changi-dr-agent/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <workflow-file>",
	Short: "Export the workflow graph visualization",
	Long:  `Reads a workflow definition and outputs a Mermaid diagram (graph TD) representing its flow logic.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, err := loadDefinition(args[0])
		if err != nil {
			fmt.Printf("Error reading workflow: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(def))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
