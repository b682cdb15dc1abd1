package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/nodesync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nodesync",
		Short: "Server-side state trees synchronized with thin clients",
		Long: `nodesync hosts server-authoritative state trees.

Clients send batches of property writes and DOM events over HTTP or a
websocket; the server checks each write against the element's update
filter and enabled state, applies the batch, and replies with the
resulting changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		snapshotCmd(),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}
