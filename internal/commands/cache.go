// internal/commands/cache.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached response count",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Cache file: %s\n", cfg.CachePath)
		fmt.Printf("Cached responses: %d\n", count)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared cache at %s\n", cfg.CachePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
