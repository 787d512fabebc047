package main

import (
	"github.com/spf13/cobra"

	"github.com/nikoraes/formalink/internal/config"
	"github.com/nikoraes/formalink/internal/server"
)

// bridgeURL resolves the --url flag, falling back to the configured listener.
func bridgeURL(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		return u, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return "http://" + server.Config{Host: cfg.Server.Host, Port: cfg.Server.Port}.Addr(), nil
}

func addURLFlag(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Bridge base url (default from server.host and server.port)")
}
