// Package intercept gates install commands on package trust scores,
// driving the approval state machine per the configured security mode.
package intercept

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/depsentry/depsentry/extractor"
	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
)

// Formatter renders an interception report for the display layer.
type Formatter interface {
	Format(ctx context.Context, report *results.Report) error
}

// Scorer computes trust scores for extracted package references,
// preserving input order.
type Scorer interface {
	ScoreAll(ctx context.Context, refs []models.PackageReference) ([]results.TrustScore, error)
}

// IgnoreStore records user-exempted packages when the user answers an
// approval prompt with "ignore".
type IgnoreStore interface {
	Ignore(name, note string) error
}

// Interceptor runs the extraction, scoring and policy pipeline for raw
// command lines. One approval request is outstanding at a time; a
// second command submitted while one is pending queues behind the
// session lock rather than interleaving prompts.
type Interceptor struct {
	scorer   Scorer
	ignores  IgnoreStore
	prompter Prompter
	mode     SecurityMode

	mu    sync.Mutex
	state State
}

func New(scorer Scorer, ignores IgnoreStore, prompter Prompter, mode SecurityMode) *Interceptor {
	return &Interceptor{
		scorer:   scorer,
		ignores:  ignores,
		prompter: prompter,
		mode:     mode,
		state:    StateIdle,
	}
}

// State returns the terminal state of the last interception pass.
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Intercept decides whether commandLine may execute. The returned
// report carries per-package scores in extraction order; the boolean
// mirrors report.Proceed for callers that only gate execution.
func (i *Interceptor) Intercept(ctx context.Context, commandLine string) (*results.Report, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	report, err := i.run(ctx, commandLine)
	if err != nil {
		i.state = StateIdle
		return nil, false, err
	}
	return report, report.Proceed(), nil
}

func (i *Interceptor) run(ctx context.Context, commandLine string) (*results.Report, error) {
	report := &results.Report{
		Command:  commandLine,
		Mode:     string(i.mode),
		Decision: results.DecisionAllowed,
	}

	refs := extractor.Extract(commandLine)
	if len(refs) == 0 {
		i.state = StateAllowed
		return report, nil
	}

	// Disabled mode bypasses scoring entirely, no network calls.
	if i.mode == ModeDisabled {
		i.state = StateAllowed
		return report, nil
	}

	i.state = StateAnalyzing
	scores, err := i.scorer.ScoreAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze command %q: %w", commandLine, err)
	}
	report.Scores = scores

	flagged := report.FlaggedScores()
	if len(flagged) == 0 {
		i.state = StateAllowed
		return report, nil
	}

	switch i.mode {
	case ModeBlock:
		i.state = StateBlocked
		report.Decision = results.DecisionBlocked
		for _, score := range flagged {
			logRiskFactors(score)
		}
		return report, nil

	case ModeMonitor:
		for _, score := range flagged {
			log.Warn().Str("package", score.PackageName).Msg("low trust score, proceeding in monitor mode")
			logRiskFactors(score)
		}
		i.state = StateAllowed
		return report, nil
	}

	// Interactive mode: surface an approval request and wait.
	request := &ApprovalRequest{
		Command:  commandLine,
		Packages: refs,
		Flagged:  flagged,
	}
	i.state = StateAwaitingApproval
	decision, err := i.awaitApproval(ctx, request)
	if err != nil {
		return nil, err
	}
	i.state = StateResolved
	report.Decision = decision
	return report, nil
}

// awaitApproval drives the AwaitingApproval state until a valid
// response or cancellation arrives. There is no timeout.
func (i *Interceptor) awaitApproval(ctx context.Context, request *ApprovalRequest) (results.Decision, error) {
	for {
		if ctx.Err() != nil {
			return results.DecisionDenied, nil
		}

		response, err := i.prompter.Prompt(ctx, request)
		if err != nil {
			return "", fmt.Errorf("failed to read approval response: %w", err)
		}

		switch response {
		case ResponseYes:
			log.Info().Str("command", request.Command).Msg("user overrode low trust warning")
			return results.DecisionApproved, nil

		case ResponseNo, "":
			return results.DecisionDenied, nil

		case ResponseDetails:
			// Details do not consume the approval, re-prompt after.
			i.prompter.ShowDetails(request)

		case ResponseIgnore:
			for _, score := range request.Flagged {
				note := fmt.Sprintf("ignored from approval prompt for %q", request.Command)
				if err := i.ignores.Ignore(score.PackageName, note); err != nil {
					log.Error().Err(err).Str("package", score.PackageName).Msg("failed to persist ignore entry")
				}
			}
			return results.DecisionApproved, nil

		default:
			log.Warn().Str("response", string(response)).Msg("invalid approval response, answer y, n, d or i")
		}
	}
}

func logRiskFactors(score results.TrustScore) {
	for _, risk := range score.RiskFactors {
		log.Warn().
			Str("package", score.PackageName).
			Str("severity", string(risk.Severity)).
			Msg(risk.Text)
	}
}
