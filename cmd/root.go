package cmd

import (
	"fmt"
	"os"

	"spotiqueue/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spotiqueue",
	Short: "Spotiqueue is a guest song-request service.",
	Long: `Spotiqueue lets party guests queue songs to a shared Spotify
player, with per-device rate limits, content filters and an optional
approval workflow in front of the queue.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
