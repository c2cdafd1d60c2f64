package sarif

import (
	"context"
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/depsentry/depsentry/results"
)

func NewFormat(out io.Writer, version string) *Format {
	return &Format{
		out:     out,
		version: version,
	}
}

type Format struct {
	out     io.Writer
	version string
}

const (
	ruleUntrusted  = "untrusted-package"
	ruleRisky      = "risky-package"
	toolInfoURI    = "https://github.com/depsentry/depsentry"
	toolDriverName = "depsentry"
)

func (f *Format) Format(ctx context.Context, report *results.Report) error {
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}

	run := sarif.NewRunWithInformationURI(toolDriverName, toolInfoURI)
	run.Tool.Driver.WithSemanticVersion(f.version)
	run.Properties = map[string]interface{}{
		"command":  report.Command,
		"mode":     report.Mode,
		"decision": string(report.Decision),
	}

	run.AddRule(ruleUntrusted).
		WithDescription("Package trust score is below the low threshold")
	run.AddRule(ruleRisky).
		WithDescription("Package carries trust risk factors")

	for _, score := range report.Scores {
		if len(score.RiskFactors) == 0 && score.Level != results.LevelLow {
			continue
		}

		ruleID := ruleRisky
		level := "warning"
		if score.Level == results.LevelLow {
			ruleID = ruleUntrusted
			level = "error"
		}

		message := fmt.Sprintf("%s scored %s trust", score.PackageName, score.Level)
		if score.Score != nil {
			message = fmt.Sprintf("%s (%d/100)", message, *score.Score)
		}
		for _, risk := range score.RiskFactors {
			message += "; " + risk.Text
		}

		run.CreateResultForRule(ruleID).
			WithLevel(level).
			WithMessage(sarif.NewTextMessage(message)).
			WithPartialFingerPrints(map[string]interface{}{
				"packageTrustHash": score.Fingerprint(),
			}).
			AddLocation(
				sarif.NewLocationWithPhysicalLocation(
					sarif.NewPhysicalLocation().
						WithArtifactLocation(
							sarif.NewSimpleArtifactLocation(score.Purl),
						),
				),
			)
	}

	sarifReport.AddRun(run)
	return sarifReport.PrettyWrite(f.out)
}
