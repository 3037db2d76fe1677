package main

import (
	"fmt"

	dragent "github.com/cjsstech/changi-dr-agent"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dragent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dragent version %s\n", dragent.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
