package pretty

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/depsentry/depsentry/results"
)

type Format struct {
	Out io.Writer
}

func (f *Format) Format(ctx context.Context, report *results.Report) error {
	out := f.Out
	if out == nil {
		out = os.Stdout
	}

	if len(report.Scores) == 0 {
		fmt.Fprintln(out, "No packages referenced by this command.")
		return nil
	}

	printScoreTable(out, report)
	printRiskDetails(out, report)

	fmt.Fprintf(out, "\nDecision: %s (mode: %s)\n", report.Decision, report.Mode)
	return nil
}

func printScoreTable(out io.Writer, report *results.Report) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Package", "Registry", "Score", "Level", "Risk Factors"})
	table.SetColWidth(80)

	for _, score := range report.Scores {
		value := "-"
		if score.Score != nil {
			value = fmt.Sprintf("%d", *score.Score)
		}
		table.Append([]string{
			score.PackageName,
			score.Ecosystem.RegistryName(),
			value,
			string(score.Level),
			fmt.Sprintf("%d", len(score.RiskFactors)),
		})
	}

	fmt.Fprint(out, "\nPackage trust summary:\n")
	table.Render()
}

func printRiskDetails(out io.Writer, report *results.Report) {
	for _, score := range report.Scores {
		if len(score.RiskFactors) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n%s (%s)\n", score.PackageName, score.Purl)
		for _, reason := range score.ScoreReasons {
			fmt.Fprintf(out, "  + %s\n", reason)
		}
		for _, risk := range score.RiskFactors {
			fmt.Fprintf(out, "  ! [%s] %s\n", risk.Severity, risk.Text)
		}
	}
}
