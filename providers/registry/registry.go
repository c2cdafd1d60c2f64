// Package registry implements the package-registry metadata clients the
// scoring engine consumes, one per ecosystem.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/depsentry/depsentry/models"
)

// Metadata is the read-only registry snapshot for one package.
// A zero LatestReleaseTime means the release date is unknown.
type Metadata struct {
	Exists                 bool      `json:"exists"`
	WeeklyDownloads        uint64    `json:"weekly_downloads"`
	LatestReleaseTime      time.Time `json:"latest_release_time"`
	MaintainerCount        int       `json:"maintainer_count"`
	HighVulnerabilityCount int       `json:"high_vulnerability_count"`
	GithubRepoURL          string    `json:"github_repo_url,omitempty"`
	RegistryURL            string    `json:"registry_url"`
}

// Client fetches existence and metadata for a package name.
// Implementations fail closed: unrecoverable network or parse errors
// surface as an error the engine degrades to exists=false.
type Client interface {
	Exists(ctx context.Context, name string) (bool, error)
	Meta(ctx context.Context, name string) (Metadata, error)
}

// ForEcosystem returns the registry client for an ecosystem.
// A nil httpClient falls back to a default with a request timeout.
func ForEcosystem(ecosystem models.Ecosystem, httpClient *http.Client) (Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	osv := NewOSVClient(httpClient)

	switch ecosystem {
	case models.EcosystemPython:
		return NewPyPIClient(httpClient, osv), nil
	case models.EcosystemJavaScript:
		return NewNPMClient(httpClient, osv), nil
	}
	return nil, fmt.Errorf("no registry client for ecosystem %q", ecosystem)
}

const maxRetries = 2 // 3 attempts total

// retry runs op with bounded exponential backoff. Operations wrap
// non-retriable outcomes (404, parse errors) in backoff.Permanent.
func retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}

type statusError struct {
	URL    string
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}
