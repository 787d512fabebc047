package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikoraes/formalink/internal/config"
	"github.com/nikoraes/formalink/internal/server"
	"github.com/nikoraes/formalink/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the bridge's busy state",
	Long: `Poll a running bridge and show a spinner while it is busy.

The poll interval is watch.refresh_rate. Press q to quit.`,
	RunE: runWatch,
}

func init() {
	addURLFlag(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base, err := bridgeURL(cmd)
	if err != nil {
		return err
	}

	client := server.NewClient(base)
	return tui.RunWatch(client.Status, cfg.Watch.RefreshRate, base)
}
