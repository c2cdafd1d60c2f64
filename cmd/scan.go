package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/depsentry/depsentry/extractor"
	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
	"github.com/depsentry/depsentry/trust"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [manifest]",
	Short: "Score every dependency in a requirements.txt or package.json manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := getConfig()

		refs, err := extractor.FromManifest(args[0])
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			log.Info().Str("manifest", args[0]).Msg("no dependencies found in manifest")
			return nil
		}

		sc, err := GetScoringContext(ctx, cfg)
		if err != nil {
			return err
		}
		engine := trust.NewEngine(sc, cfg.Concurrency)

		log.Debug().Int("packages", len(refs)).Str("manifest", args[0]).Msg("starting manifest scan")
		bar := progressbar.NewOptions(
			len(refs),
			progressbar.OptionSetDescription("Scoring packages"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)

		scores := make([]results.TrustScore, len(refs))
		sem := semaphore.NewWeighted(int64(cfg.Concurrency))
		var wg sync.WaitGroup

		for i, ref := range refs {
			if err := sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("failed to acquire semaphore: %w", err)
			}
			wg.Add(1)
			go func(i int, ref models.PackageReference) {
				defer sem.Release(1)
				defer wg.Done()
				scores[i] = engine.Score(ctx, ref)
				_ = bar.Add(1)
			}(i, ref)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Print("\n\n")

		report := &results.Report{
			Command:  "scan " + args[0],
			Mode:     cfg.Mode,
			Decision: results.DecisionAllowed,
			Scores:   scores,
		}
		if len(report.FlaggedScores()) > 0 && cfg.Mode != "monitor" && cfg.Mode != "disabled" {
			report.Decision = results.DecisionBlocked
		}
		formatReport(ctx, report)

		if report.Decision == results.DecisionBlocked {
			os.Exit(exitCodeBlocked)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&token, "token", "t", "", "GitHub access token for repository signals (env: GH_TOKEN)")
}
