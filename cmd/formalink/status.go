package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/server"
)

var (
	statusOutput string
	statusReset  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queue state of a running bridge",
	Long: `Display the state of a running bridge.

Shows:
  - Busy or idle
  - Pending requests and tasks
  - Completion, failure and unknown-id counters

Examples:
  formalink status
  formalink status --output yaml
  formalink status --reset   # clear stuck queues`,
	RunE: runStatus,
}

func init() {
	addURLFlag(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format: text, json or yaml")
	statusCmd.Flags().BoolVar(&statusReset, "reset", false, "Clear the bridge's queues before reporting")
}

func runStatus(cmd *cobra.Command, args []string) error {
	base, err := bridgeURL(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := server.NewClient(base)

	var status coordinator.Status
	if statusReset {
		status, err = client.Reset(cmd.Context())
	} else {
		status, err = client.Status(cmd.Context())
	}
	if err != nil {
		return err
	}

	return printStatus(cmd.OutOrStdout(), status, statusOutput)
}

func printStatus(w io.Writer, s coordinator.Status, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		displayStatus(w, s)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// displayStatus prints a human-readable snapshot.
func displayStatus(w io.Writer, s coordinator.Status) {
	if s.Busy {
		fmt.Fprintf(w, "%s Bridge busy (version %s)\n", color.YellowString("●"), s.Version)
	} else {
		fmt.Fprintf(w, "%s Bridge idle (version %s)\n", color.GreenString("●"), s.Version)
	}

	fmt.Fprintf(w, "\nPending requests: %d\n", len(s.PendingRequests))
	for _, id := range s.PendingRequests {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "Pending tasks:    %d\n", len(s.PendingTasks))
	for _, id := range s.PendingTasks {
		fmt.Fprintf(w, "  %s\n", id)
	}

	fmt.Fprintf(w, "\nAccepted:  %d\n", s.Accepted)
	fmt.Fprintf(w, "Rejected:  %d\n", s.Rejected)
	fmt.Fprintf(w, "Completed: %d\n", s.Completed)
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed:    %s\n", color.RedString("%d", s.Failed))
	} else {
		fmt.Fprintf(w, "Failed:    0\n")
	}
	if s.UnknownTasks > 0 || s.UnknownRequests > 0 {
		fmt.Fprintf(w, "%s %d unknown task and %d unknown request completions\n",
			color.YellowString("⚠"), s.UnknownTasks, s.UnknownRequests)
	}
	if s.DroppedEvents > 0 {
		fmt.Fprintf(w, "Dropped events: %d\n", s.DroppedEvents)
	}
}
