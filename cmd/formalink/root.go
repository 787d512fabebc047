package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "formalink",
	Short: "Forma scene-edit bridge",
	Long: `formalink accepts mesh import, delete and export requests from the
Autodesk Forma connector and applies them to the active scene document.

Requests are split into asynchronous tasks. The bridge reports busy while
any request or task is outstanding.

Core commands:
- serve: run the HTTP bridge
- status: print the queue state of a running bridge
- watch: follow the bridge's busy state in the terminal`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
