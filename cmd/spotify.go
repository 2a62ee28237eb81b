package cmd

import (
	"context"
	"fmt"
	"time"

	"spotiqueue/config"
	"spotiqueue/core/spotify"

	"github.com/spf13/cobra"
)

var spotifyCmd = &cobra.Command{
	Use:   "spotify [query]",
	Short: "Check Spotify API access",
	Long:  `Run a track search with the configured credentials to verify API access.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRefreshToken)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		tracks, err := client.Search(ctx, args[0], 5)
		if err != nil {
			return err
		}

		for _, t := range tracks {
			fmt.Printf("%s  %s - %s (%s)\n", t.ID, t.Artists, t.Name, t.Album)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spotifyCmd)
}
