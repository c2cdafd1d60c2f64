package intercept

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
)

// ApprovalRequest is one pending interactive decision for a command
// whose packages scored low.
type ApprovalRequest struct {
	Command  string
	Packages []models.PackageReference
	Flagged  []results.TrustScore
}

// Response is one raw user answer to an approval prompt.
type Response string

const (
	ResponseYes     Response = "y"
	ResponseNo      Response = "n"
	ResponseDetails Response = "d"
	ResponseIgnore  Response = "i"
)

// Prompter surfaces an approval request and collects one raw response
// at a time. The state machine owns the re-prompt loop.
type Prompter interface {
	Prompt(ctx context.Context, req *ApprovalRequest) (Response, error)
	ShowDetails(req *ApprovalRequest)
}

// TTYPrompter asks on stderr and reads answers from an input stream,
// normally stdin.
type TTYPrompter struct {
	In     io.Reader
	Out    io.Writer
	banner bool
}

func NewTTYPrompter() *TTYPrompter {
	return &TTYPrompter{In: os.Stdin, Out: os.Stderr}
}

// Interactive reports whether stdin is a terminal. Non-interactive
// sessions auto-deny rather than hanging on a prompt nobody sees.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *TTYPrompter) Prompt(ctx context.Context, req *ApprovalRequest) (Response, error) {
	if !p.banner {
		p.printBanner(req)
		p.banner = true
	}

	type answer struct {
		text string
		err  error
	}
	answerChan := make(chan answer, 1)

	go func() {
		reader := bufio.NewReader(p.In)
		fmt.Fprintf(p.Out, "Proceed? [y]es / [n]o / [d]etails / [i]gnore packages: ")
		text, err := reader.ReadString('\n')
		answerChan <- answer{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		// Cancellation resolves the pending request as a denial.
		return ResponseNo, nil
	case a := <-answerChan:
		if a.err != nil {
			return ResponseNo, nil
		}
		return Response(strings.TrimSpace(strings.ToLower(a.text))), nil
	}
}

func (p *TTYPrompter) printBanner(req *ApprovalRequest) {
	fmt.Fprintln(p.Out, "")
	fmt.Fprintln(p.Out, "WARNING: this command installs packages with a low trust score")
	fmt.Fprintln(p.Out, "")
	fmt.Fprintf(p.Out, "Command: %s\n", req.Command)
	for _, score := range req.Flagged {
		fmt.Fprintf(p.Out, "  %s (%s)", score.PackageName, score.Ecosystem.RegistryName())
		if score.Score != nil {
			fmt.Fprintf(p.Out, " scored %d/100", *score.Score)
		}
		fmt.Fprintln(p.Out, "")
	}
	fmt.Fprintln(p.Out, "")
}

func (p *TTYPrompter) ShowDetails(req *ApprovalRequest) {
	for _, score := range req.Flagged {
		fmt.Fprintf(p.Out, "\n%s (%s)\n", score.PackageName, score.Purl)
		for _, reason := range score.ScoreReasons {
			fmt.Fprintf(p.Out, "  + %s\n", reason)
		}
		for _, risk := range score.RiskFactors {
			fmt.Fprintf(p.Out, "  ! [%s] %s\n", risk.Severity, risk.Text)
		}
	}
	fmt.Fprintln(p.Out, "")
}
