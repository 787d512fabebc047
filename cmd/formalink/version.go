package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikoraes/formalink/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "formalink version %s (connector protocol %s)\n", version.Get(), version.MajorMinor())
	},
}
