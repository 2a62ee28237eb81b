package cmd

import (
	"fmt"

	"spotiqueue/cache"
	"spotiqueue/config"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check Redis connectivity",
	Long:  `Connect to Redis with the configured settings and run a set/get/del round trip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()

		if err := cache.TestRedis(); err != nil {
			return err
		}

		fmt.Println("Redis connection OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
