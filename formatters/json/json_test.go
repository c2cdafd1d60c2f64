package json

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
)

func TestFormat(t *testing.T) {
	value := 7
	report := &results.Report{
		Command:  "pip install reqeusts",
		Mode:     "block",
		Decision: results.DecisionBlocked,
		Scores: []results.TrustScore{{
			PackageName: "reqeusts",
			Purl:        "pkg:pypi/reqeusts",
			Ecosystem:   models.EcosystemPython,
			Score:       &value,
			Level:       results.LevelLow,
		}},
	}

	var out bytes.Buffer
	require.NoError(t, NewFormat(&out).Format(context.Background(), report))

	var decoded results.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, results.DecisionBlocked, decoded.Decision)
	require.Len(t, decoded.Scores, 1)
	require.NotNil(t, decoded.Scores[0].Score)
	assert.Equal(t, 7, *decoded.Scores[0].Score)
}

func TestFormatIgnoredScoreKeepsNullScore(t *testing.T) {
	report := &results.Report{
		Mode:     "monitor",
		Decision: results.DecisionAllowed,
		Scores: []results.TrustScore{{
			PackageName: "internal-corp-lib",
			Level:       results.LevelIgnored,
		}},
	}

	var out bytes.Buffer
	require.NoError(t, NewFormat(&out).Format(context.Background(), report))
	assert.Contains(t, out.String(), `"score": null`)
}
