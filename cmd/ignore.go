package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/trust"
)

var ignoreNote string

// ignoreCmd represents the ignore command
var ignoreCmd = &cobra.Command{
	Use:   "ignore [package]",
	Short: "Exempt a package from trust scoring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := getIgnoreRegistry()
		if err := registry.Ignore(args[0], ignoreNote); err != nil {
			return fmt.Errorf("failed to ignore %q: %w", args[0], err)
		}
		fmt.Printf("Ignoring %s\n", args[0])
		return nil
	},
}

// unignoreCmd represents the unignore command
var unignoreCmd = &cobra.Command{
	Use:   "unignore [package]",
	Short: "Remove a package from the ignore list so it is rescored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		registry := getIgnoreRegistry()
		if err := registry.Unignore(args[0]); err != nil {
			return err
		}

		// Drop any cached verdict so the next lookup rescores.
		cache := trust.NewCache(filepath.Join(cfg.CacheDir, "trust_cache.json"), 0)
		for _, ecosystem := range models.Ecosystems {
			cache.Remove(ecosystem, args[0])
		}

		fmt.Printf("No longer ignoring %s\n", args[0])
		return nil
	},
}

// ignoresCmd represents the ignores command
var ignoresCmd = &cobra.Command{
	Use:   "ignores",
	Short: "List ignored packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := getIgnoreRegistry().List()
		if len(entries) == 0 {
			fmt.Println("No ignored packages.")
			return nil
		}
		for _, entry := range entries {
			if entry.Note != "" {
				fmt.Printf("%s # %s\n", entry.Name, entry.Note)
			} else {
				fmt.Println(entry.Name)
			}
		}
		return nil
	},
}

func getIgnoreRegistry() *trust.IgnoreRegistry {
	cfg := getConfig()
	return trust.NewIgnoreRegistry(filepath.Join(cfg.CacheDir, "ignore.txt"))
}

func init() {
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(unignoreCmd)
	rootCmd.AddCommand(ignoresCmd)

	ignoreCmd.Flags().StringVarP(&ignoreNote, "note", "n", "", "Optional note stored with the ignore entry")
}
