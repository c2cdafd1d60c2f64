package results

import (
	"crypto/sha256"
	"fmt"

	"github.com/depsentry/depsentry/models"
)

// TrustLevel is the discretized bucket derived from the numeric score.
type TrustLevel string

const (
	LevelHigh    TrustLevel = "high"
	LevelMedium  TrustLevel = "medium"
	LevelLow     TrustLevel = "low"
	LevelIgnored TrustLevel = "ignored"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

type RiskFactor struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Evidence captures the raw registry signals a score was derived from.
// ReleaseAgeDays is -1 when no release date is known, so a missing
// release is never mistaken for one published today.
type Evidence struct {
	Exists                 bool   `json:"exists"`
	Downloads              uint64 `json:"downloads"`
	ReleaseAgeDays         int    `json:"release_age_days"`
	HasMultipleMaintainers bool   `json:"has_multiple_maintainers"`
	VulnerabilityCount     int    `json:"vulnerability_count"`
}

// TrustScore is the scoring engine's verdict for one package.
// Score is nil when the package is on the ignore list.
type TrustScore struct {
	PackageName  string           `json:"package_name"`
	Purl         string           `json:"purl"`
	Ecosystem    models.Ecosystem `json:"ecosystem"`
	Score        *int             `json:"score"`
	Level        TrustLevel       `json:"level"`
	Evidence     Evidence         `json:"evidence"`
	ScoreReasons []string         `json:"score_reasons,omitempty"`
	RiskFactors  []RiskFactor     `json:"risk_factors,omitempty"`
}

// Flagged reports whether the score gates command execution.
func (t *TrustScore) Flagged() bool {
	return t.Level == LevelLow
}

func (t *TrustScore) Fingerprint() string {
	score := "ignored"
	if t.Score != nil {
		score = fmt.Sprintf("%d", *t.Score)
	}
	h := sha256.New()
	h.Write([]byte(t.Purl + score + string(t.Level)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Decision is the outcome of one interception pass.
type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionBlocked  Decision = "blocked"
	DecisionApproved Decision = "approved" // user overrode a warning
	DecisionDenied   Decision = "denied"   // user declined the prompt
)

// Report is the structured output of one interception or scan pass.
// Scores follow the extraction order of the analyzed command.
type Report struct {
	Command  string       `json:"command,omitempty"`
	Mode     string       `json:"mode"`
	Decision Decision     `json:"decision"`
	Scores   []TrustScore `json:"scores"`
}

// FlaggedScores returns the low-trust subset of the report in order.
func (r *Report) FlaggedScores() []TrustScore {
	var flagged []TrustScore
	for _, score := range r.Scores {
		if score.Flagged() {
			flagged = append(flagged, score)
		}
	}
	return flagged
}

// Proceed reports whether the gated command may execute.
func (r *Report) Proceed() bool {
	return r.Decision == DecisionAllowed || r.Decision == DecisionApproved
}
