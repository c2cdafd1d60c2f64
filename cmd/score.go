package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
	"github.com/depsentry/depsentry/trust"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score [ecosystem] [package]...",
	Short: "Score one or more packages directly, without a command line",
	Long: `Score one or more packages directly, without a command line.

Example:
  depsentry score python requests flask
  depsentry score javascript lodash`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := getConfig()

		ecosystem, err := models.ParseEcosystem(args[0])
		if err != nil {
			return err
		}

		refs := make([]models.PackageReference, 0, len(args)-1)
		for _, name := range args[1:] {
			refs = append(refs, models.PackageReference{Name: name, Ecosystem: ecosystem})
		}

		sc, err := GetScoringContext(ctx, cfg)
		if err != nil {
			return err
		}
		engine := trust.NewEngine(sc, cfg.Concurrency)

		scores, err := engine.ScoreAll(ctx, refs)
		if err != nil {
			return fmt.Errorf("failed to score %s: %w", strings.Join(args[1:], ", "), err)
		}

		report := &results.Report{
			Mode:     cfg.Mode,
			Decision: results.DecisionAllowed,
			Scores:   scores,
		}
		formatReport(ctx, report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&token, "token", "t", "", "GitHub access token for repository signals (env: GH_TOKEN)")
}
