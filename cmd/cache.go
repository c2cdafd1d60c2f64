package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/trust"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the trust score cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached trust score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := getCache()
		count := cache.Len()
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear trust cache: %w", err)
		}
		fmt.Printf("Cleared %d cached scores\n", count)
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the trust cache file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(getCache().Path())
	},
}

func getCache() *trust.Cache {
	cfg := getConfig()
	return trust.NewCache(
		filepath.Join(cfg.CacheDir, "trust_cache.json"),
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
	)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
}
